// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package table implements the field-partitioned table layer on top of
// package ring: a user-facing façade that writes a record (field name to
// byte payload) by enqueueing each field into its own ring, and reads a
// record by dequeueing from each ring in a fixed, deterministic order.
//
// Because each field has its own ring, and rings advance independently,
// record-level atomicity across fields is NOT guaranteed under multiple
// concurrent producers: a consumer may pair one producer's "symbol" with
// another producer's "price". SequenceField adds an opt-in, table-minted
// sequence number as one more field of each record; that number travels
// in its own ring only, and the other fields' payloads do not carry it, so
// it does not by itself show whether a record's fields came from the same
// write.
package table

import (
	"encoding/binary"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ticklane/ticklane/ring"
)

// SequenceField is the reserved field name a TableConfig may include to
// opt into table-minted sequence numbers (spec.md §4.4 discipline (b)).
// When a field by this name is present, Table.WriteRecord ignores any
// caller-supplied payload for it and writes its own monotonically
// increasing counter instead.
const SequenceField = "__seq"

// ErrDuplicateField is returned by New when TableConfig.Fields names the
// same field twice.
var ErrDuplicateField = errors.New("table: duplicate field name in config")

// FieldConfig describes one field's ring. PayloadSizeHint is advisory
// only: the ring stores variable-length byte slices regardless of the
// hint; RingCapacity must be a power of two, at least 2.
type FieldConfig struct {
	PayloadSizeHint int
	RingCapacity    uint64
}

// FieldSpec pairs a field name with its configuration. TableConfig uses
// an ordered slice of FieldSpec, rather than a bare map, so that field
// iteration order is deterministic and stable across calls — Go map
// iteration order is randomized, and the spec requires a fixed order for
// both write_record and read_one_record.
type FieldSpec struct {
	Name   string
	Config FieldConfig
}

// TableConfig is the ordered set of fields a Table is built from.
type TableConfig struct {
	Fields []FieldSpec
}

// Table is the user-facing façade over one Ring per field. Once
// constructed, its field set and ring capacities never change: there is
// no dynamic field addition after table creation.
type Table struct {
	name       string
	instanceID string
	order      []string
	rings      map[string]*ring.Ring[[]byte]
	fieldConfs map[string]FieldConfig
	inFlight   atomic.Int64
	seqCounter atomic.Uint64
	hasSeq     bool
}

// New builds a Table from name and cfg: one Ring per field, sized by
// that field's RingCapacity. It returns an error if any field has a
// non-power-of-two capacity or if a field name is duplicated.
func New(name string, cfg TableConfig) (*Table, error) {
	order := make([]string, 0, len(cfg.Fields))
	rings := make(map[string]*ring.Ring[[]byte], len(cfg.Fields))
	confs := make(map[string]FieldConfig, len(cfg.Fields))

	t := &Table{name: name, instanceID: uuid.NewString()}

	for _, spec := range cfg.Fields {
		if _, exists := rings[spec.Name]; exists {
			return nil, ErrDuplicateField
		}
		r, err := ring.New[[]byte](spec.Config.RingCapacity)
		if err != nil {
			return nil, err
		}
		order = append(order, spec.Name)
		rings[spec.Name] = r
		confs[spec.Name] = spec.Config
		if spec.Name == SequenceField {
			t.hasSeq = true
		}
	}

	t.order = order
	t.rings = rings
	t.fieldConfs = confs
	return t, nil
}

// Name returns the table's informational name.
func (t *Table) Name() string { return t.name }

// InstanceID returns a process-lifetime-unique identifier minted when
// this Table was constructed. It distinguishes one table/partition
// instance from another in logs and metrics labels across restarts —
// purely diagnostic, like RecordCount.
func (t *Table) InstanceID() string { return t.instanceID }

// FieldOrder returns the table's deterministic field iteration order.
// The returned slice is owned by the caller; mutating it does not affect
// the table.
func (t *Table) FieldOrder() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// RecordCount returns the best-effort count of fully completed writes
// minus fully completed reads. It is a diagnostic, not a guarantee: under
// rejected writes or aborted reads it becomes an approximation (spec.md
// §4.3/§7).
func (t *Table) RecordCount() int64 {
	return t.inFlight.Load()
}

// WriteRecord writes one record by enqueueing each of record's fields
// into its corresponding ring, in the table's deterministic field order.
// Fields present in record but absent from the table's config are
// skipped silently — they are not persisted. Fields configured for the
// table but absent from record are simply not enqueued for this record;
// subsequent read_one_record calls on that field's ring will see whatever
// was enqueued independently.
//
// If SequenceField is part of this table's configuration, its payload is
// always the table-minted sequence number; any caller-supplied value for
// that field is ignored.
//
// On the first field ring that reports full, the write is rejected and
// WriteRecord returns false. Fields already enqueued earlier in the
// iteration are NOT rolled back — they remain in their rings as orphaned
// payloads (spec.md §4.4/§7 partial-failure policy). On full success,
// in_flight_count is incremented exactly once.
func (t *Table) WriteRecord(record map[string][]byte) bool {
	var seqBuf []byte
	if t.hasSeq {
		seqBuf = make([]byte, 8)
		binary.LittleEndian.PutUint64(seqBuf, t.seqCounter.Add(1)-1)
	}

	for _, name := range t.order {
		r, ok := t.rings[name]
		if !ok {
			continue
		}
		var payload []byte
		if name == SequenceField {
			payload = seqBuf
		} else {
			p, present := record[name]
			if !present {
				continue
			}
			payload = p
		}
		if !r.TryEnqueue(payload) {
			return false
		}
	}

	t.inFlight.Add(1)
	return true
}

// ReadOneRecord reads one record by dequeueing from each field's ring, in
// the table's deterministic field order. If any ring is empty, the read
// aborts and returns (nil, false); fields already dequeued earlier in the
// iteration are discarded — they are NOT returned to their rings
// (spec.md §4.4/§7 partial-failure policy).
//
// in_flight_count is decremented only when every field yields a value —
// never on a partial/aborted read (spec.md §9's documented fix to the
// source's decrement-on-abort bug).
func (t *Table) ReadOneRecord() (map[string][]byte, bool) {
	record := make(map[string][]byte, len(t.order))
	for _, name := range t.order {
		r := t.rings[name]
		v, ok := r.TryDequeue()
		if !ok {
			return nil, false
		}
		record[name] = v
	}

	t.inFlight.Add(-1)
	return record, true
}

// DecodeSequence extracts the table-minted sequence number from a record
// produced by ReadOneRecord, if this table was configured with
// SequenceField. It returns (0, false) if the field is absent or not
// exactly 8 bytes.
func DecodeSequence(record map[string][]byte) (uint64, bool) {
	raw, ok := record[SequenceField]
	if !ok || len(raw) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(raw), true
}
