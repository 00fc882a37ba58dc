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
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisSetter is the minimal surface this package needs from a Redis
// client; a full *redis.Client satisfies it.
type RedisSetter interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
}

// RedisSink SETs the proposed state under a "proposal:<seq>" key, so an
// operator console running on a different host can watch it without
// sharing a filesystem with the aggregator.
type RedisSink struct {
	client RedisSetter
	ttl    time.Duration
}

// NewRedisSink builds a RedisSink. ttl of 0 disables expiry.
func NewRedisSink(client RedisSetter, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

// RedisProposalKey is the key layout helper, exposed so a watching
// operator collaborator can compute it without importing this package's
// internals.
func RedisProposalKey(seq uint64) string {
	return fmt.Sprintf("proposal:%d", seq)
}

func (r *RedisSink) Publish(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("proposal: marshal state: %w", err)
	}
	if err := r.client.Set(context.Background(), RedisProposalKey(s.Seq), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("proposal: redis set seq=%d: %w", s.Seq, err)
	}
	return nil
}
