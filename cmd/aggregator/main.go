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

// Command aggregator is the production entry point for the cycle
// engine: it loads the system config, the matrix data, and the
// authorized-key set, binds the UDP transport, and runs cycles back to
// back until SIGINT/SIGTERM. The signal stops the engine at once, even
// mid-cycle; an unfinished cycle is abandoned and the last committed
// state stands. It takes no flags: every knob is in the config file,
// and the three EDGELATTICE_* environment variables below override the
// paths of the config, matrix and authorized-keys files.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"edgelattice/internal/coder"
	"edgelattice/internal/config"
	"edgelattice/internal/engine"
	"edgelattice/internal/fixedpoint"
	"edgelattice/internal/metrics"
	"edgelattice/internal/poa"
	"edgelattice/internal/proposal"
	"edgelattice/internal/transport"
)

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	configPath := envOr("EDGELATTICE_CONFIG", "configs/app_config.yaml")
	matrixPath := envOr("EDGELATTICE_MATRIX", "configs/matrix.json")
	keysPath := envOr("EDGELATTICE_KEYS", "configs/authorized_keys.txt")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("unreadable config")
	}
	mat, err := config.LoadMatrix(matrixPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", matrixPath).Msg("unreadable matrix data")
	}
	gate, err := poa.Load(keysPath)
	if err != nil {
		// Zero authorized keys means no COMMIT can ever be accepted.
		log.Fatal().Err(err).Str("path", keysPath).Msg("cannot start with no authorized keys")
	}

	sink, err := buildSink(cfg.Proposal)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot construct proposal sink")
	}

	c := coder.New(mat.A, cfg.System.R)

	x0 := make([]fixedpoint.Q, len(mat.X0))
	for i, v := range mat.X0 {
		x0[i] = fixedpoint.ToFixed(v)
	}
	u := make([]fixedpoint.Q, len(mat.U))
	for i, v := range mat.U {
		u[i] = fixedpoint.ToFixed(v)
	}
	b := make([][]fixedpoint.Q, len(mat.B))
	for i, row := range mat.B {
		fixedRow := make([]fixedpoint.Q, len(row))
		for j, v := range row {
			fixedRow[j] = fixedpoint.ToFixed(v)
		}
		b[i] = fixedRow
	}

	sock, err := transport.Bind(cfg.Transport.BindHost, cfg.Transport.BindPort, cfg.Transport.WorkerPortStart, log)
	if err != nil {
		log.Fatal().Err(err).Msg("socket bind failed")
	}
	defer sock.Close()

	eng := engine.New(engine.Config{
		Coder:       c,
		Gate:        gate,
		Sink:        sink,
		B:           b,
		U:           u,
		X0:          x0,
		WorkerCount: cfg.System.N,
		Deadline:    time.Duration(cfg.System.CycleDeadlineMs) * time.Millisecond,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		Log:         log,
	})

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("aggregator listening on %s:%d, N=%d R=%d deadline=%dms\n",
		cfg.Transport.BindHost, cfg.Transport.BindPort, cfg.System.N, cfg.System.R, cfg.System.CycleDeadlineMs)

	if err := eng.Run(ctx, sock); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("cycle engine stopped unexpectedly")
	}

	fmt.Println("aggregator shut down cleanly")
}

func buildSink(pc config.ProposalConfig) (proposal.Sink, error) {
	opts := proposal.SinkOptions{
		FilePath:   pc.FilePath,
		KafkaTopic: pc.KafkaTopic,
	}
	if pc.Adapter == "redis" && pc.RedisAddr != "" {
		opts.RedisClient = redis.NewClient(&redis.Options{Addr: pc.RedisAddr})
		opts.RedisTTL = time.Duration(pc.RedisTTLMs) * time.Millisecond
	}
	return proposal.BuildSink(pc.Adapter, opts)
}
