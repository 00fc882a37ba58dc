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

// Package config loads the YAML system configuration and the JSON
// matrix data file, both read once at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SystemConfig mirrors the "system" block: cohort size, decode
// threshold, and the per-cycle deadline.
type SystemConfig struct {
	N               int `yaml:"N"`
	R               int `yaml:"R"`
	CycleDeadlineMs int `yaml:"cycle_deadline_ms"`
}

// TransportConfig mirrors the "transport" block.
type TransportConfig struct {
	BindHost        string `yaml:"bind_host"`
	BindPort        int    `yaml:"bind_port"`
	WorkerPortStart int    `yaml:"worker_port_start"`
}

// SimConfig mirrors the "sim" block, consumed only by the worker
// simulator collaborator (cmd/worker), never by the aggregator core.
type SimConfig struct {
	JitterMsMin     int     `yaml:"jitter_ms_min"`
	JitterMsMax     int     `yaml:"jitter_ms_max"`
	LossProbability float64 `yaml:"loss_probability"`
}

// ProposalConfig mirrors the "proposal" block: which Sink adapter the
// aggregator publishes the proposed-state artifact through.
type ProposalConfig struct {
	Adapter    string `yaml:"adapter"` // "file" (default), "redis", "kafka"
	FilePath   string `yaml:"file_path"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisTTLMs int    `yaml:"redis_ttl_ms"`
	KafkaTopic string `yaml:"kafka_topic"`
}

// MetricsConfig mirrors the "metrics" block. Empty Addr disables the
// standalone /metrics HTTP server.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full parsed app_config.yaml document.
type Config struct {
	System    SystemConfig    `yaml:"system"`
	Transport TransportConfig `yaml:"transport"`
	Sim       SimConfig       `yaml:"sim"`
	Proposal  ProposalConfig  `yaml:"proposal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads and parses the YAML system config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.System.N <= 0 {
		return nil, fmt.Errorf("config: system.N must be positive, got %d", cfg.System.N)
	}
	if cfg.System.R <= 0 || cfg.System.R > cfg.System.N {
		return nil, fmt.Errorf("config: system.R must be in (0, N], got R=%d N=%d", cfg.System.R, cfg.System.N)
	}
	return &cfg, nil
}
