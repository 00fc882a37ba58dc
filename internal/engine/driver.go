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

package engine

import (
	"context"
	"time"

	"edgelattice/internal/transport"
)

// pollGranularity is the maximum interval between deadline checks
// while a cycle is collecting results.
const pollGranularity = 5 * time.Millisecond

// Run drives cycles back to back against sock until ctx is canceled:
// dispatch, collect RES/COMMIT frames off one receive loop, poll the
// deadline/decode condition every pollGranularity, and start the next
// cycle the instant the current one reaches COMMITTED or ABORTED.
// Cancellation returns at once, including mid-cycle: a cycle still in
// DISPATCHED or PROPOSED is abandoned and x keeps its last committed
// value. This
// is the single owning goroutine the concurrency model requires — every
// Engine mutation happens here or in the methods this loop calls, never
// from the receive loop directly.
func (e *Engine) Run(ctx context.Context, sock *transport.Socket) error {
	frames := make(chan transport.Frame, 64)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- sock.Listen(ctx, frames)
	}()

	ticker := time.NewTicker(pollGranularity)
	defer ticker.Stop()

	e.dispatch(sock, e.StartCycle())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-listenErr:
			return err
		case frame := <-frames:
			e.handleFrame(frame)
		case now := <-ticker.C:
			e.Poll(now)
		}

		if e.state == StateCommitted || e.state == StateAborted {
			e.Reset()
			e.dispatch(sock, e.StartCycle())
		}
	}
}

func (e *Engine) handleFrame(frame transport.Frame) {
	switch frame.Tag {
	case transport.TagResult:
		if frame.Result != nil {
			e.IngestResult(*frame.Result)
		}
	case transport.TagCommit:
		if frame.Commit != nil {
			e.IngestCommit(*frame.Commit)
		}
	}
}

func (e *Engine) dispatch(sock *transport.Socket, tasks []transport.TaskFrame) {
	for _, t := range tasks {
		if err := sock.SendTask(t.Tid, t); err != nil {
			e.log.Warn().Err(err).Int("tid", t.Tid).Msg("send task failed")
		}
	}
}
