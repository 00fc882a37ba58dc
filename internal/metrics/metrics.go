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

// Package metrics registers the Prometheus series that back the "one
// metrics row per completed cycle" requirement: how long cycles take,
// how often they commit versus abort, and why rejections happen.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edgelattice_cycle_duration_seconds",
		Help:    "Wall-clock duration of a committed cycle from dispatch to commit",
		Buckets: prometheus.DefBuckets,
	})
	CyclesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edgelattice_cycles_committed_total",
		Help: "Total cycles that reached COMMITTED",
	})
	CyclesAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgelattice_cycles_aborted_total",
		Help: "Total cycles that reached ABORTED, labeled by reason",
	}, []string{"reason"})
	DecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edgelattice_decode_failures_total",
		Help: "Total decode attempts that failed due to a singular coefficient matrix",
	})
	CommitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgelattice_commit_rejections_total",
		Help: "Total COMMIT frames rejected, labeled by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(CycleDuration, CyclesCommitted, CyclesAborted, DecodeFailures, CommitRejections)
}

// Serve starts a dedicated /metrics HTTP endpoint on addr. Callers
// that already expose Prometheus elsewhere can skip this and register
// promhttp themselves.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

// Reasons for cycle aborts and commit rejections, kept as constants so
// call sites and tests don't duplicate label literals.
const (
	ReasonDeadline       = "deadline"
	ReasonDecodeSingular = "decode_singular"
	ReasonUnknownKey     = "unknown_key"
	ReasonBadSignature   = "bad_signature"
	ReasonStaleSeq       = "stale_seq"
)
