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

// Package engine implements the cycle state machine: IDLE -> DISPATCHED
// -> PROPOSED -> (COMMITTED | ABORTED) -> IDLE. x, seq, the results
// buffer, and the next-state buffer all live as fields on Engine rather
// than package globals, with a single owning goroutine driving every
// mutation, so no lock guards the results buffer or the active seq.
package engine

import (
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"edgelattice/internal/coder"
	"edgelattice/internal/fixedpoint"
	"edgelattice/internal/metrics"
	"edgelattice/internal/poa"
	"edgelattice/internal/proposal"
	"edgelattice/internal/transport"
)

// State names one of the five cycle states.
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateProposed
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDispatched:
		return "DISPATCHED"
	case StateProposed:
		return "PROPOSED"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// ErrDeadlineExceeded is returned by Poll when a cycle times out before
// a decoding-sufficient quorum of results arrives.
var ErrDeadlineExceeded = errors.New("engine: cycle deadline exceeded")

// Config bundles everything an Engine needs at construction: the coder
// and PoA gate from C2/C3, the fixed B matrix and control input u, the
// initial state, the cohort size, the per-cycle deadline, and the
// collaborators (sink, logger, clock) an engine instance is wired to.
type Config struct {
	Coder       *coder.Coder
	Gate        *poa.Gate
	Sink        proposal.Sink
	B           [][]fixedpoint.Q
	U           []fixedpoint.Q
	X0          []fixedpoint.Q
	WorkerCount int
	Deadline    time.Duration
	Rand        *rand.Rand
	Log         zerolog.Logger
	Now         func() time.Time // overridable for deterministic tests; defaults to time.Now
}

// Engine holds all cycle-scoped mutable state and drives the state
// machine forward one ingress event or poll tick at a time.
type Engine struct {
	coder    *coder.Coder
	gate     *poa.Gate
	sink     proposal.Sink
	b        [][]fixedpoint.Q
	u        []fixedpoint.Q
	n        int
	deadline time.Duration
	rng      *rand.Rand
	log      zerolog.Logger
	now      func() time.Time

	x               []fixedpoint.Q
	seq             uint64
	state           State
	resultsBuffer   []coder.Response
	nextStateBuffer []fixedpoint.Q
	cycleStart      time.Time
	proposedAt      time.Time
	lastAbortErr    error
}

// New constructs an Engine in the IDLE state with the given initial
// state vector x0.
func New(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		coder:    cfg.Coder,
		gate:     cfg.Gate,
		sink:     cfg.Sink,
		b:        cfg.B,
		u:        cfg.U,
		n:        cfg.WorkerCount,
		deadline: cfg.Deadline,
		rng:      cfg.Rand,
		log:      cfg.Log,
		now:      now,
		x:        append([]fixedpoint.Q(nil), cfg.X0...),
		state:    StateIdle,
	}
}

// State returns the current cycle state.
func (e *Engine) State() State { return e.state }

// Seq returns the active cycle sequence number.
func (e *Engine) Seq() uint64 { return e.seq }

// X returns the committed state vector. Safe to read between cycles;
// during DISPATCHED/PROPOSED it is the last committed value, not the
// candidate.
func (e *Engine) X() []fixedpoint.Q { return append([]fixedpoint.Q(nil), e.x...) }

// LastAbortErr returns the reason the most recent ABORTED transition
// happened, or nil if the engine has never aborted.
func (e *Engine) LastAbortErr() error { return e.lastAbortErr }

// StartCycle transitions IDLE -> DISPATCHED: bumps seq, clears the
// results buffer, records cycle_start, and mints one coded task per
// worker. Callers are responsible for actually transmitting the
// returned frames.
func (e *Engine) StartCycle() []transport.TaskFrame {
	e.seq++
	e.resultsBuffer = e.resultsBuffer[:0]
	e.cycleStart = e.now()
	e.state = StateDispatched

	tasks := make([]transport.TaskFrame, e.n)
	for i := 0; i < e.n; i++ {
		t := e.coder.GenerateTask(e.rng)
		tasks[i] = transport.TaskFrame{
			Seq: e.seq,
			Tid: i,
			C:   t.Coeffs,
			X:   append([]fixedpoint.Q(nil), e.x...),
			TS:  e.now().UnixNano(),
			M:   t.Block,
		}
	}
	e.log.Info().Uint64("seq", e.seq).Int("workers", e.n).Msg("cycle dispatched")
	return tasks
}

// IngestResult applies the RES ingress rule: a result for any seq other
// than the active one is discarded; once decode has already moved the
// cycle out of DISPATCHED, later arrivals are stragglers and are
// dropped too, since the buffer they'd join is about to be cleared.
// Results whose coefficient or payload vectors have the wrong length
// came off corrupted datagrams and are dropped with a warning rather
// than buffered.
func (e *Engine) IngestResult(f transport.ResultFrame) {
	if f.Seq != e.seq {
		e.log.Warn().Uint64("seq", f.Seq).Uint64("active_seq", e.seq).Msg("discarding result for stale seq")
		return
	}
	if e.state != StateDispatched {
		return
	}
	if len(f.C) != e.coder.R() || len(f.Y) != e.coder.ChunkSize() {
		e.log.Warn().Uint64("seq", f.Seq).Int("tid", f.Tid).
			Int("c_len", len(f.C)).Int("y_len", len(f.Y)).
			Msg("discarding result with malformed vector lengths")
		return
	}
	e.resultsBuffer = append(e.resultsBuffer, coder.Response{Coeffs: f.C, Y: f.Y})
}

// IngestCommit applies the COMMIT ingress rule: a seq mismatch is
// discarded with a warning and counted as a stale_seq rejection; a
// matching seq with no active proposal is a silent discard; an
// unverified signature is
// logged and leaves the engine in PROPOSED awaiting a valid COMMIT; a
// verified signature swaps in the candidate state and transitions to
// COMMITTED.
func (e *Engine) IngestCommit(f transport.CommitFrame) bool {
	if f.Seq != e.seq {
		e.log.Warn().Uint64("seq", f.Seq).Uint64("active_seq", e.seq).Msg("discarding commit for stale seq")
		metrics.CommitRejections.WithLabelValues(metrics.ReasonStaleSeq).Inc()
		return false
	}
	if e.state != StateProposed {
		return false
	}
	if !e.gate.Verify(f.Seq, f.Sig, f.PK) {
		reason := metrics.ReasonBadSignature
		if !e.gate.Authorized(f.PK) {
			reason = metrics.ReasonUnknownKey
		}
		e.log.Warn().Uint64("seq", f.Seq).Str("reason", reason).Msg("rejected COMMIT")
		metrics.CommitRejections.WithLabelValues(reason).Inc()
		return false
	}

	e.x = e.nextStateBuffer
	e.nextStateBuffer = nil
	e.state = StateCommitted
	metrics.CyclesCommitted.Inc()
	metrics.CycleDuration.Observe(e.now().Sub(e.cycleStart).Seconds())
	e.log.Info().Uint64("seq", e.seq).Dur("cycle_duration", e.now().Sub(e.cycleStart)).Msg("cycle committed")
	return true
}

// Poll checks decode-readiness and the deadline, transitioning
// DISPATCHED -> PROPOSED (decode succeeded) or DISPATCHED -> ABORTED
// (deadline exceeded or decode singular). It is a no-op outside
// DISPATCHED. Callers must invoke it at least once per 5ms tick so the
// deadline check keeps up with the cycle budget.
func (e *Engine) Poll(now time.Time) (transitioned bool, err error) {
	if e.state != StateDispatched {
		return false, nil
	}

	if len(e.resultsBuffer) >= e.coder.R() {
		axNext, decErr := e.coder.Decode(e.resultsBuffer)
		if decErr != nil {
			e.state = StateAborted
			e.lastAbortErr = decErr
			metrics.DecodeFailures.Inc()
			metrics.CyclesAborted.WithLabelValues(metrics.ReasonDecodeSingular).Inc()
			e.log.Error().Uint64("seq", e.seq).Err(decErr).Msg("cycle aborted: decode failed")
			return true, decErr
		}

		axFixed := make([]fixedpoint.Q, len(axNext))
		for i, v := range axNext {
			axFixed[i] = clampToQ(v)
		}
		bu := fixedpoint.MatVec(e.b, e.u)
		candidate := make([]fixedpoint.Q, len(axFixed))
		for i := range candidate {
			candidate[i] = fixedpoint.AddSat(axFixed[i], bu[i])
		}

		e.nextStateBuffer = candidate
		e.proposedAt = now
		e.state = StateProposed

		if e.sink != nil {
			if pubErr := e.sink.Publish(proposal.State{Seq: e.seq, X: candidate}); pubErr != nil {
				e.log.Warn().Err(pubErr).Uint64("seq", e.seq).Msg("failed to publish proposed state")
			}
		}
		e.log.Info().Uint64("seq", e.seq).Msg("cycle proposed")
		return true, nil
	}

	if now.Sub(e.cycleStart) > e.deadline {
		e.state = StateAborted
		e.lastAbortErr = ErrDeadlineExceeded
		metrics.CyclesAborted.WithLabelValues(metrics.ReasonDeadline).Inc()
		e.log.Error().Uint64("seq", e.seq).Msg("cycle timeout - stragglers detected")
		return true, ErrDeadlineExceeded
	}
	return false, nil
}

// ProposalAge reports how long the engine has been waiting for a
// COMMIT since entering PROPOSED. Exposed so a caller can build a
// commit-window deadman switch without the core imposing one.
func (e *Engine) ProposalAge(now time.Time) time.Duration {
	if e.state != StateProposed {
		return 0
	}
	return now.Sub(e.proposedAt)
}

// Reset returns a terminal (COMMITTED or ABORTED) engine to IDLE so the
// driver can begin the next cycle. A no-op from any other state.
func (e *Engine) Reset() {
	if e.state == StateCommitted || e.state == StateAborted {
		e.state = StateIdle
	}
}

func clampToQ(v int64) fixedpoint.Q {
	if v > int64(fixedpoint.Max) {
		return fixedpoint.Max
	}
	if v < int64(fixedpoint.Min) {
		return fixedpoint.Min
	}
	return fixedpoint.Q(v)
}
