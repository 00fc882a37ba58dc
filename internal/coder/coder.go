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

// Package coder implements the rateless row-coding scheme used to
// distribute A·x across a cohort of workers: any R of the N responses
// in a cycle are enough to recover A·x, so up to N-R stragglers or lost
// datagrams per cycle cost nothing.
package coder

import (
	"errors"
	"math"
	"math/rand"

	"edgelattice/internal/fixedpoint"
)

// ErrSingular is returned by Decode when the coefficient matrix of the
// chosen R responses is not invertible. The engine treats this as
// cycle-fatal: the cycle aborts, state does not advance.
var ErrSingular = errors.New("coder: coefficient matrix is singular, cannot decode")

// minCoeff and maxCoeff bound the uniform coefficient draw. Zero is
// excluded so no chunk is ever dropped from a coded block.
const (
	minCoeff = 1
	maxCoeff = 254
)

// Coder chunks an n×n matrix A into R row-blocks and mints coded tasks
// from linear combinations of those blocks.
type Coder struct {
	rows, cols int
	r          int
	chunkSize  int
	chunks     [][][]float64 // chunks[i] is an s×cols block, zero-padded
}

// New builds a Coder for matrix a (n×n, real-valued) split into r
// equal row-chunks, zero-padded so every chunk has identical shape.
func New(a [][]float64, r int) *Coder {
	rows := len(a)
	cols := 0
	if rows > 0 {
		cols = len(a[0])
	}
	chunkSize := ceilDiv(rows, r)

	chunks := make([][][]float64, r)
	for i := 0; i < r; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > rows {
			end = rows
		}
		chunk := make([][]float64, chunkSize)
		for row := 0; row < chunkSize; row++ {
			chunk[row] = make([]float64, cols)
		}
		for row := start; row < end; row++ {
			copy(chunk[row-start], a[row])
		}
		chunks[i] = chunk
	}

	return &Coder{rows: rows, cols: cols, r: r, chunkSize: chunkSize, chunks: chunks}
}

// R is the decoding threshold: the minimum number of distinct,
// linearly independent responses needed to decode a cycle.
func (c *Coder) R() int { return c.r }

// Rows is n, the row count of the original (unchunked) matrix A.
func (c *Coder) Rows() int { return c.rows }

// ChunkSize is the row count of each zero-padded chunk, and therefore
// the exact length of every well-formed result vector.
func (c *Coder) ChunkSize() int { return c.chunkSize }

// Task is one worker's coded assignment for a cycle: the coefficient
// vector that produced it, and the quantized coded row-block.
type Task struct {
	Coeffs []int64
	Block  [][]fixedpoint.Q
}

// GenerateTask draws a fresh random coefficient vector and computes the
// coded block M = Σ c_i·A_i, quantized to Q1.31. Distinct calls within
// a cycle should use independent draws from rng, so callers share one
// *rand.Rand across a cycle's worth of GenerateTask calls rather than
// reseeding per call.
func (c *Coder) GenerateTask(rng *rand.Rand) Task {
	coeffs := make([]int64, c.r)
	for i := range coeffs {
		coeffs[i] = int64(rng.Intn(maxCoeff-minCoeff+1) + minCoeff)
	}

	block := make([][]float64, c.chunkSize)
	for row := 0; row < c.chunkSize; row++ {
		block[row] = make([]float64, c.cols)
	}
	for i, coeff := range coeffs {
		cf := float64(coeff)
		chunk := c.chunks[i]
		for row := 0; row < c.chunkSize; row++ {
			dst := block[row]
			src := chunk[row]
			for col := 0; col < c.cols; col++ {
				dst[col] += cf * src[col]
			}
		}
	}

	fixedBlock := make([][]fixedpoint.Q, c.chunkSize)
	for row := range block {
		fixedRow := make([]fixedpoint.Q, c.cols)
		for col, v := range block[row] {
			fixedRow[col] = fixedpoint.ToFixed(v)
		}
		fixedBlock[row] = fixedRow
	}

	return Task{Coeffs: coeffs, Block: fixedBlock}
}

// GenerateTasks draws count tasks, re-drawing a task's coefficient
// vector whenever it exactly matches one already drawn this batch.
// This does not guarantee the R×R coefficient matrix of any R-subset
// is invertible — true linear dependence can still arise from distinct
// vectors — but it cheaply eliminates the one failure mode a rateless
// coder sees most often in practice (two workers drawing the same
// vector) without the cost of a full rank check per draw. Unused by
// the default engine wiring, which lets Decode reject dependent sets;
// exposed for callers that want fewer avoidable decode aborts.
func (c *Coder) GenerateTasks(rng *rand.Rand, count int) []Task {
	tasks := make([]Task, 0, count)
	seen := make(map[string]struct{}, count)
	for len(tasks) < count {
		t := c.GenerateTask(rng)
		key := coeffKey(t.Coeffs)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tasks = append(tasks, t)
	}
	return tasks
}

func coeffKey(coeffs []int64) string {
	b := make([]byte, 0, len(coeffs)*4)
	for _, c := range coeffs {
		b = append(b, byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
	}
	return string(b)
}

// Response pairs a worker's result row-block with the coefficient
// vector that produced the coded task it answered.
type Response struct {
	Coeffs []int64
	Y      []fixedpoint.Q
}

// Decode reconstructs A·x (as n rounded integers, the zero-padding tail
// discarded) from at least R responses. The first R well-formed
// entries, in first-arrival order, are used: decode is deterministic
// once the chosen R-subset is fixed, and first-arrival order is that
// choice.
//
// Ties at rounding use half-away-from-zero, not banker's rounding.
func (c *Coder) Decode(responses []Response) ([]int64, error) {
	// A response whose vectors have the wrong shape came off a corrupted
	// datagram; indexing it would panic, so it is skipped and never
	// counts toward the quorum.
	subset := make([]Response, 0, c.r)
	for _, resp := range responses {
		if len(resp.Coeffs) != c.r || len(resp.Y) != c.chunkSize {
			continue
		}
		subset = append(subset, resp)
		if len(subset) == c.r {
			break
		}
	}
	if len(subset) < c.r {
		return nil, errors.New("coder: not enough responses to decode")
	}

	cMat := make([][]float64, c.r)
	yMat := make([][]float64, c.r)
	for i, resp := range subset {
		row := make([]float64, c.r)
		for j, coeff := range resp.Coeffs {
			row[j] = float64(coeff)
		}
		cMat[i] = row

		// Y carries raw Q1.31 integers, not their represented reals: the
		// coefficient matrix C has no scale factor, so solving C·D=Y
		// directly against the raw scaled ints recovers D as raw scaled
		// ints too (A·x already in Q1.31 form) — dividing by 2^31 here
		// first would collapse D to near-zero fractions and destroy the
		// result.
		yRow := make([]float64, c.chunkSize)
		for j, q := range resp.Y {
			yRow[j] = float64(q)
		}
		yMat[i] = yRow
	}

	d, err := solve(cMat, yMat)
	if err != nil {
		return nil, ErrSingular
	}

	flat := make([]int64, 0, c.r*c.chunkSize)
	for _, row := range d {
		for _, v := range row {
			flat = append(flat, roundHalfAwayFromZero(v))
		}
	}
	if len(flat) > c.rows {
		flat = flat[:c.rows]
	}
	return flat, nil
}

func roundHalfAwayFromZero(v float64) int64 {
	if v >= 0 {
		return int64(math.Floor(v + 0.5))
	}
	return int64(math.Ceil(v - 0.5))
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// solve computes D such that C·D = Y via Gaussian elimination with
// partial pivoting over a (square) coefficient matrix c and a matching
// right-hand-side matrix y. Returns an error if c is singular to
// working precision.
func solve(c [][]float64, y [][]float64) ([][]float64, error) {
	n := len(c)
	if n == 0 {
		return nil, errors.New("coder: empty coefficient matrix")
	}
	cols := len(y[0])

	// Augmented matrix [C | Y], row-major, mutated in place.
	aug := make([][]float64, n)
	for i := range aug {
		row := make([]float64, n+cols)
		copy(row, c[i])
		copy(row[n:], y[i])
		aug[i] = row
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := math.Abs(aug[col][col])
		for row := col + 1; row < n; row++ {
			if v := math.Abs(aug[row][col]); v > best {
				best = v
				pivot = row
			}
		}
		if best < 1e-12 {
			return nil, errors.New("coder: singular matrix")
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pivotVal := aug[col][col]
		for row := col + 1; row < n; row++ {
			factor := aug[row][col] / pivotVal
			if factor == 0 {
				continue
			}
			for k := col; k < n+cols; k++ {
				aug[row][k] -= factor * aug[col][k]
			}
		}
	}

	// Back-substitution.
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, cols)
	}
	for row := n - 1; row >= 0; row-- {
		for k := 0; k < cols; k++ {
			sum := aug[row][n+k]
			for col := row + 1; col < n; col++ {
				sum -= aug[row][col] * d[col][k]
			}
			d[row][k] = sum / aug[row][row]
		}
	}
	return d, nil
}
