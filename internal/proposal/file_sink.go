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

package proposal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the proposed_state.json debug artifact an operator
// process can poll. Writes are atomic (write-to-temp then rename) so
// the operator collaborator never observes a half-written file.
type FileSink struct {
	path string
}

// NewFileSink builds a FileSink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Publish(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("proposal: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".proposed_state-*.tmp")
	if err != nil {
		return fmt.Errorf("proposal: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("proposal: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("proposal: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("proposal: rename into place: %w", err)
	}
	return nil
}
