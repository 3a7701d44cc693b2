// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config loads the tickserver demo binary's TOML configuration
// with viper, and re-reads it via fsnotify when the file changes, handing
// the reloaded Config to a caller-supplied callback. Ring/table shape is immutable once a table.Table is
// built (spec.md §3/§9: no dynamic field addition) — a config reload
// never mutates an already-constructed Table; it only signals, via
// ShapeChanged, that the caller must rebuild the store to pick up a
// changed field list or capacity.
package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ticklane/ticklane/internal/logging"
	"github.com/ticklane/ticklane/internal/metrics"
	"github.com/ticklane/ticklane/internal/sink"
	"github.com/ticklane/ticklane/table"
)

// FieldConfig mirrors table.FieldConfig for TOML unmarshalling.
type FieldConfig struct {
	Name            string `mapstructure:"name"`
	PayloadSizeHint int    `mapstructure:"payload_size_hint"`
	RingCapacity    uint64 `mapstructure:"ring_capacity"`
}

// Config is the top-level tickserver configuration.
type Config struct {
	TableName      string        `mapstructure:"table_name"`
	Fields         []FieldConfig `mapstructure:"fields"`
	NumPartitions  int           `mapstructure:"num_partitions"`
	BufferCapacity uint64        `mapstructure:"buffer_capacity"`

	Logging logging.Conf `mapstructure:"logging"`
	Metrics metrics.Conf `mapstructure:"metrics"`
	Sink    sink.Conf    `mapstructure:"sink"`
}

// SetDefaults returns a Config with a minimal, valid demo table shape.
func SetDefaults() *Config {
	return &Config{
		TableName: "ticks",
		Fields: []FieldConfig{
			{Name: "symbol", PayloadSizeHint: 8, RingCapacity: 1024},
			{Name: "price", PayloadSizeHint: 8, RingCapacity: 1024},
			{Name: table.SequenceField, PayloadSizeHint: 8, RingCapacity: 1024},
		},
		NumPartitions:  4,
		BufferCapacity: 1024,
		Logging:        *logging.SetDefaults(),
		Metrics:        *metrics.SetDefaults(),
		Sink:           *sink.SetDefaults(),
	}
}

// TableConfig converts Config's field list into a table.TableConfig.
func (c *Config) TableConfig() table.TableConfig {
	fields := make([]table.FieldSpec, 0, len(c.Fields))
	for _, f := range c.Fields {
		capacity := f.RingCapacity
		if capacity == 0 {
			capacity = c.BufferCapacity
		}
		fields = append(fields, table.FieldSpec{
			Name: f.Name,
			Config: table.FieldConfig{
				PayloadSizeHint: f.PayloadSizeHint,
				RingCapacity:    capacity,
			},
		})
	}
	return table.TableConfig{Fields: fields}
}

// Loader loads Config from a TOML file and watches it for ancillary
// (non-shape) changes.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader rooted at confDir, expecting a file named
// "config.toml" there.
func NewLoader(confDir string) *Loader {
	v := viper.New()
	v.AddConfigPath(confDir)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	return &Loader{v: v}
}

// Load reads the config file and unmarshals it into a Config, applying
// SetDefaults first so a partial file still yields a valid demo table.
func (l *Loader) Load() (*Config, error) {
	cfg := SetDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config file: %w", err)
	}
	return cfg, nil
}

// WatchForAncillaryChanges invokes onChange whenever the config file on
// disk changes, passing the freshly reloaded Config. Callers must only
// use the reloaded Config to rebuild logging/metrics/sink; they must
// never attempt to reshape an already-constructed table.Table or
// partition.Store from it.
func (l *Loader) WatchForAncillaryChanges(onChange func(*Config)) {
	l.v.WatchConfig()
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// ShapeChanged reports whether b's partition count or field list (names,
// size hints and per-field ring capacities as written) differ from a's,
// meaning a caller holding a table.Table built from a must rebuild
// it from b rather than attempt any in-place mutation. BufferCapacity is
// not compared, so a change to it alone is not reported even for fields
// whose zero RingCapacity falls back to it.
func ShapeChanged(a, b *Config) bool {
	if a.NumPartitions != b.NumPartitions || len(a.Fields) != len(b.Fields) {
		return true
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return true
		}
	}
	return false
}
