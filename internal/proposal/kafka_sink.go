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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// KafkaProducer is a minimal abstraction over a Kafka client. This
// package deliberately imports no concrete Kafka library: callers wire
// a client that satisfies this interface.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaSink produces every proposal to a topic, giving an audit trail
// of all proposals — not just the ones that end up committed.
type KafkaSink struct {
	producer KafkaProducer
	topic    string
}

// NewKafkaSink builds a KafkaSink publishing to topic.
func NewKafkaSink(p KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (k *KafkaSink) Publish(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("proposal: marshal state: %w", err)
	}
	key := []byte(strconv.FormatUint(s.Seq, 10))
	headers := map[string]string{"content-type": "application/json"}
	if err := k.producer.Produce(context.Background(), k.topic, key, data, headers); err != nil {
		return fmt.Errorf("proposal: kafka produce seq=%d: %w", s.Seq, err)
	}
	return nil
}
