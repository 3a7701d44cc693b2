// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sink implements the optional, out-of-core persistence
// collaborator named by spec.md §1 ("the optional Redis... persistence
// sinks"). It is a one-way, best-effort forwarder: records already
// dequeued by table.ReadOneRecord are pipelined into Redis off the hot
// path. A failed push is logged and dropped; it never feeds back into
// the ring or blocks a consumer.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Conf configures the Redis forwarding sink.
type Conf struct {
	Enable    bool   `mapstructure:"enable"`
	Addr      string `mapstructure:"addr"`
	Database  int    `mapstructure:"database"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SetDefaults returns a Conf with the sink disabled by default.
func SetDefaults() *Conf {
	return &Conf{Enable: false, Addr: "127.0.0.1:6379", Database: 0, KeyPrefix: "tickring:"}
}

// RedisSink forwards dequeued records into Redis as hashes, keyed by
// KeyPrefix plus a caller-supplied record key (typically the symbol).
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink builds a RedisSink from conf. It does not attempt to
// connect; connection errors surface lazily on the first Forward call,
// exactly as go-redis's lazy-dial client already behaves.
func NewRedisSink(conf Conf) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr: conf.Addr,
		DB:   conf.Database,
	})
	return &RedisSink{client: client, prefix: conf.KeyPrefix}
}

// Forward pipelines one record's fields into a Redis hash under
// "<prefix><key>". It returns the underlying error, if any, purely for
// the caller's own logging/metrics — a Forward failure must never be
// treated as a reason to retry against the ring, since the record has
// already been irrevocably dequeued (spec.md §4.2: dequeue takes
// ownership, it does not leave a copy behind).
func (s *RedisSink) Forward(ctx context.Context, key string, record map[string][]byte) error {
	if len(record) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(record))
	for name, payload := range record {
		fields[name] = payload
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.prefix+key, fields)
	pipe.Expire(ctx, s.prefix+key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("sink: redis forward failed for key %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis client's connections.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
