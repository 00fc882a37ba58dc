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
	"fmt"
	"time"
)

// SinkOptions carries the knobs for each adapter BuildSink can select.
type SinkOptions struct {
	FilePath      string
	RedisClient   RedisSetter
	RedisTTL      time.Duration
	KafkaProducer KafkaProducer
	KafkaTopic    string
}

// BuildSink constructs a Sink from a string selector.
//
// Supported adapters:
//   - "", "file": FileSink writing to opts.FilePath (debug artifact)
//   - "redis": RedisSink over opts.RedisClient
//   - "kafka": KafkaSink over opts.KafkaProducer
func BuildSink(adapter string, opts SinkOptions) (Sink, error) {
	switch adapter {
	case "", "file":
		path := opts.FilePath
		if path == "" {
			path = "proposed_state.json"
		}
		return NewFileSink(path), nil
	case "redis":
		if opts.RedisClient == nil {
			return nil, fmt.Errorf("proposal: redis adapter requires a RedisClient")
		}
		return NewRedisSink(opts.RedisClient, opts.RedisTTL), nil
	case "kafka":
		if opts.KafkaProducer == nil {
			return nil, fmt.Errorf("proposal: kafka adapter requires a KafkaProducer")
		}
		topic := opts.KafkaTopic
		if topic == "" {
			topic = "edgelattice-proposals"
		}
		return NewKafkaSink(opts.KafkaProducer, topic), nil
	default:
		return nil, fmt.Errorf("proposal: unknown sink adapter %q", adapter)
	}
}
