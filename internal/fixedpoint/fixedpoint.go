// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fixedpoint implements Q1.31 fixed-point arithmetic: a signed
// 32-bit integer representing a rational in [-1, 1 - 2^-31]. All
// arithmetic saturates at the signed 32-bit bounds instead of wrapping,
// so the control loop built on top of it never silently overflows.
package fixedpoint

import "math"

// Q is a Q1.31 fixed-point scalar.
type Q int32

const (
	qBits = 31
	// Max is the largest representable Q1.31 value.
	Max Q = (1 << 31) - 1
	// Min is the smallest representable Q1.31 value.
	Min Q = -(1 << 31)
)

// ToFixed converts a float64 in [-1, 1) to Q1.31, rounding to the
// nearest representable value and saturating at the bounds rather than
// overflowing.
func ToFixed(v float64) Q {
	raw := int64(math.Round(v * float64(int64(1)<<qBits)))
	return Q(clamp64(raw))
}

// FromFixed returns the float64 value represented by q.
func FromFixed(q Q) float64 {
	return float64(q) / float64(int64(1)<<qBits)
}

// AddSat returns a+b, clamped to [Min, Max].
func AddSat(a, b Q) Q {
	return Q(clamp64(int64(a) + int64(b)))
}

// MulSat returns (a*b)>>31, clamped to [Min, Max]. The intermediate
// product is computed in 64 bits so the shift never loses the top bits
// before saturation is applied.
func MulSat(a, b Q) Q {
	prod := int64(a) * int64(b)
	return Q(clamp64(prod >> qBits))
}

// MatVec computes M·v in fixed point. Reduction is row-major,
// column-ascending, and every caller must get the same order:
// saturation is not associative, so a different reduction order can
// produce a different (still valid, but non-reproducible) result.
func MatVec(m [][]Q, v []Q) []Q {
	out := make([]Q, len(m))
	for r, row := range m {
		var acc Q
		for c, mv := range row {
			acc = AddSat(acc, MulSat(mv, v[c]))
		}
		out[r] = acc
	}
	return out
}

func clamp64(v int64) int64 {
	if v > int64(Max) {
		return int64(Max)
	}
	if v < int64(Min) {
		return int64(Min)
	}
	return v
}
