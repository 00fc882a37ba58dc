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

// Package proposal materializes the proposed-state artifact at the
// boundary between the cycle engine and the operator collaborator: a
// {seq, x_candidate} record written after decode but before commit.
// A bare file-based rendezvous is race-prone (concurrent read/write on
// the same path), so this package generalizes it into a Sink interface
// with adapters for a file, Redis, or Kafka.
package proposal

import "edgelattice/internal/fixedpoint"

// State is the {seq, x} record published once a cycle reaches PROPOSED.
type State struct {
	Seq uint64         `json:"seq"`
	X   []fixedpoint.Q `json:"x"`
}

// Sink publishes a proposed State to wherever the operator collaborator
// is watching. The engine only depends on this interface.
type Sink interface {
	Publish(s State) error
}
