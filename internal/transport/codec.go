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

package transport

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"edgelattice/internal/fixedpoint"
)

// ErrUnknownTag is returned by Decode when a datagram's "t" field does
// not match any recognized frame kind. Callers should log and drop,
// per the transport's "never fatal" decode policy.
var ErrUnknownTag = fmt.Errorf("transport: unrecognized frame tag")

type tagPeek struct {
	T string `cbor:"t"`
}

type wireTask struct {
	T   string           `cbor:"t"`
	Seq uint64           `cbor:"seq"`
	Tid int              `cbor:"tid"`
	C   []int64          `cbor:"c"`
	X   []fixedpoint.Q   `cbor:"x"`
	TS  int64            `cbor:"ts"`
	M   [][]fixedpoint.Q `cbor:"M,omitempty"`
}

type wireResult struct {
	T   string         `cbor:"t"`
	Seq uint64         `cbor:"seq"`
	Tid int            `cbor:"tid"`
	W   int            `cbor:"w"`
	Y   []fixedpoint.Q `cbor:"y"`
	C   []int64        `cbor:"c"`
	TS  int64          `cbor:"ts,omitempty"`
}

type wireCommit struct {
	T   string `cbor:"t"`
	Seq uint64 `cbor:"seq"`
	Sig []byte `cbor:"sig"`
	PK  string `cbor:"pk"`
}

// EncodeTask serializes a TaskFrame as a self-describing CBOR map.
func EncodeTask(f TaskFrame) ([]byte, error) {
	w := wireTask{T: string(TagTask), Seq: f.Seq, Tid: f.Tid, C: f.C, X: f.X, TS: f.TS, M: f.M}
	return cbor.Marshal(w)
}

// EncodeResult serializes a ResultFrame as a self-describing CBOR map.
func EncodeResult(f ResultFrame) ([]byte, error) {
	w := wireResult{T: string(TagResult), Seq: f.Seq, Tid: f.Tid, W: f.W, Y: f.Y, C: f.C, TS: f.TS}
	return cbor.Marshal(w)
}

// EncodeCommit serializes a CommitFrame as a self-describing CBOR map.
func EncodeCommit(f CommitFrame) ([]byte, error) {
	w := wireCommit{T: string(TagCommit), Seq: f.Seq, Sig: f.Sig, PK: f.PK}
	return cbor.Marshal(w)
}

// Decode parses a datagram into a typed Frame. An unrecognized tag
// returns ErrUnknownTag; a malformed payload returns the underlying
// CBOR error. Both are non-fatal for callers: the transport contract
// is log-and-drop, never propagate as process-fatal.
func Decode(data []byte) (Frame, error) {
	var peek tagPeek
	if err := cbor.Unmarshal(data, &peek); err != nil {
		return Frame{}, fmt.Errorf("transport: decode tag: %w", err)
	}

	switch Tag(peek.T) {
	case TagTask:
		var w wireTask
		if err := cbor.Unmarshal(data, &w); err != nil {
			return Frame{}, fmt.Errorf("transport: decode TASK: %w", err)
		}
		return Frame{Tag: TagTask, Task: &TaskFrame{Seq: w.Seq, Tid: w.Tid, C: w.C, X: w.X, TS: w.TS, M: w.M}}, nil
	case TagResult:
		var w wireResult
		if err := cbor.Unmarshal(data, &w); err != nil {
			return Frame{}, fmt.Errorf("transport: decode RES: %w", err)
		}
		return Frame{Tag: TagResult, Result: &ResultFrame{Seq: w.Seq, Tid: w.Tid, W: w.W, Y: w.Y, C: w.C, TS: w.TS}}, nil
	case TagCommit:
		var w wireCommit
		if err := cbor.Unmarshal(data, &w); err != nil {
			return Frame{}, fmt.Errorf("transport: decode COMMIT: %w", err)
		}
		return Frame{Tag: TagCommit, Commit: &CommitFrame{Seq: w.Seq, Sig: w.Sig, PK: w.PK}}, nil
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownTag, peek.T)
	}
}
