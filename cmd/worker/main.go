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

// Command worker simulates the worker collaborator: it answers every
// TASK with the M·x computation after a random jitter sleep, and drops
// the occasional response to exercise the aggregator's straggler
// tolerance.
package main

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	"edgelattice/internal/config"
	"edgelattice/internal/fixedpoint"
	"edgelattice/internal/transport"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: worker <udp-port>")
		os.Exit(1)
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", os.Args[1], err)
		os.Exit(1)
	}

	// Simulation jitter/loss are config knobs consumed only by this
	// process (the aggregator never reads them); fall back
	// to sensible defaults if the shared config file isn't readable from
	// the worker's working directory.
	jitterMin, jitterMax := 5, 30
	lossProbability := 0.1
	configPath := os.Getenv("EDGELATTICE_CONFIG")
	if configPath == "" {
		configPath = "configs/app_config.yaml"
	}
	if cfg, cfgErr := config.Load(configPath); cfgErr == nil {
		jitterMin, jitterMax = cfg.Sim.JitterMsMin, cfg.Sim.JitterMsMax
		lossProbability = cfg.Sim.LossProbability
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bind failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("Worker listening on %d\n", port)

	buf := make([]byte, 65507)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		frame, err := transport.Decode(payload)
		if err != nil || frame.Tag != transport.TagTask {
			continue
		}
		go respond(conn, addr, port, *frame.Task, jitterMin, jitterMax, lossProbability)
	}
}

// respond runs concurrently per task, so it draws from the package-level
// math/rand functions (safe for concurrent use via a locked source)
// rather than a shared *rand.Rand.
func respond(conn *net.UDPConn, addr *net.UDPAddr, workerID int, task transport.TaskFrame, jitterMin, jitterMax int, lossProbability float64) {
	if rand.Float64() < lossProbability {
		return // simulated packet loss/crash
	}

	jitter := jitterMin
	if jitterMax > jitterMin {
		jitter += rand.Intn(jitterMax - jitterMin)
	}
	time.Sleep(time.Duration(jitter) * time.Millisecond)

	y := fixedpoint.MatVec(task.M, task.X)
	resp := transport.ResultFrame{
		Seq: task.Seq,
		Tid: task.Tid,
		W:   workerID,
		Y:   y,
		C:   task.C,
	}
	data, err := transport.EncodeResult(resp)
	if err != nil {
		return
	}
	_, _ = conn.WriteToUDP(data, addr)
}
