// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package partition implements the symbol-partitioned store variant
// named, but not fully specified, by the core spec's configuration
// surface (num_partitions, buffer_capacity). It is a thin composition
// layer over package table: N independent tables, each routed to by a
// hash of the record's symbol. Several symbols can hash to the same
// partition and then share its rings, so record-level atomicity within a
// partition holds only when a single producer writes every symbol routed
// to that partition; the store as a whole can still serve many producers,
// one per partition.
package partition

import (
	"errors"
	"hash/fnv"
	"strconv"
	"sync/atomic"

	"github.com/ticklane/ticklane/table"
)

// ErrNoPartitions is returned by New when numPartitions is zero.
var ErrNoPartitions = errors.New("partition: numPartitions must be at least 1")

// Store holds numPartitions independent table.Table instances, all built
// from the same TableConfig, and routes writes/reads to a partition by
// hashing the record's symbol.
type Store struct {
	partitions []*table.Table
	rrCursor   atomic.Uint64
}

// New builds a Store of numPartitions tables, each named "<name>-N" and
// built from cfg.
func New(name string, cfg table.TableConfig, numPartitions int) (*Store, error) {
	if numPartitions < 1 {
		return nil, ErrNoPartitions
	}

	partitions := make([]*table.Table, numPartitions)
	for i := 0; i < numPartitions; i++ {
		t, err := table.New(partitionName(name, i), cfg)
		if err != nil {
			return nil, err
		}
		partitions[i] = t
	}

	return &Store{partitions: partitions}, nil
}

func partitionName(name string, i int) string {
	return name + "-" + strconv.Itoa(i)
}

// PartitionFor returns the deterministic partition index for symbol. The
// same symbol always maps to the same index for the lifetime of the
// Store, since numPartitions is fixed at construction.
func (s *Store) PartitionFor(symbol string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return int(h.Sum32()) % len(s.partitions)
}

// NumPartitions returns the number of partitions in the store.
func (s *Store) NumPartitions() int {
	return len(s.partitions)
}

// Partition returns the underlying table.Table for a given index, for
// callers that need direct access (diagnostics, metrics collection).
func (s *Store) Partition(i int) *table.Table {
	return s.partitions[i]
}

// WriteRecord routes record to the partition owned by symbol and writes
// it there. It returns false if that partition's write is rejected
// (spec.md §4.3 write_record semantics, applied per-partition).
func (s *Store) WriteRecord(symbol string, record map[string][]byte) bool {
	return s.partitions[s.PartitionFor(symbol)].WriteRecord(record)
}

// ReadOneRecord reads one record from the partition owned by symbol.
func (s *Store) ReadOneRecord(symbol string) (map[string][]byte, bool) {
	return s.partitions[s.PartitionFor(symbol)].ReadOneRecord()
}

// ReadAny round-robins across partitions, reading the next record found
// from any partition that has one. It is for consumers that don't care
// which symbol they read next — e.g. a generic forwarding sink.
func (s *Store) ReadAny() (map[string][]byte, bool) {
	n := uint64(len(s.partitions))
	start := s.rrCursor.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		if rec, ok := s.partitions[idx].ReadOneRecord(); ok {
			return rec, true
		}
	}
	return nil, false
}

// RecordCount sums the best-effort in-flight record count across all
// partitions. Diagnostic only, per the same caveats as table.Table.RecordCount.
func (s *Store) RecordCount() int64 {
	var total int64
	for _, p := range s.partitions {
		total += p.RecordCount()
	}
	return total
}
