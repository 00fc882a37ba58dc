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

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// MatrixData is the {A, B, x0, u, scale_bits} document produced by the
// (out-of-scope) sparse-matrix generator collaborator.
type MatrixData struct {
	A         [][]float64 `json:"A"`
	B         [][]float64 `json:"B"`
	X0        []float64   `json:"x0"`
	U         []float64   `json:"u"`
	ScaleBits int         `json:"scale_bits"`
}

// LoadMatrix reads and parses the JSON matrix file at path, validating
// the shapes needed by the coder and the B·u composition.
func LoadMatrix(path string) (*MatrixData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read matrix %s: %w", path, err)
	}
	var m MatrixData
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse matrix %s: %w", path, err)
	}

	n := len(m.A)
	if n == 0 {
		return nil, fmt.Errorf("config: matrix A is empty")
	}
	for i, row := range m.A {
		if len(row) != n {
			return nil, fmt.Errorf("config: A is not square: row %d has %d cols, want %d", i, len(row), n)
		}
	}
	if len(m.X0) != n {
		return nil, fmt.Errorf("config: x0 length %d does not match A's %d rows", len(m.X0), n)
	}
	if len(m.B) != n {
		return nil, fmt.Errorf("config: B has %d rows, want %d (matching A)", len(m.B), n)
	}
	m0 := 0
	if len(m.B) > 0 {
		m0 = len(m.B[0])
	}
	for i, row := range m.B {
		if len(row) != m0 {
			return nil, fmt.Errorf("config: B is ragged: row %d has %d cols, want %d", i, len(row), m0)
		}
	}
	if len(m.U) != m0 {
		return nil, fmt.Errorf("config: u length %d does not match B's %d cols", len(m.U), m0)
	}
	return &m, nil
}
