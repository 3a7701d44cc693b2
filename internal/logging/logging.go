// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package logging configures structured logging for the tickserver demo
// binary and its support packages (metrics, sink). Nothing on the ring
// or table hot path imports this package: the core never logs.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

// Conf holds logger configuration, loaded by internal/config from the
// service's TOML file.
type Conf struct {
	Output     string `mapstructure:"output"`
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	Level      string `mapstructure:"level"`
	RotateSize int    `mapstructure:"rotate_size_mb"`
	RotateNum  int    `mapstructure:"rotate_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SetDefaults returns a Conf with sensible defaults for the demo binary.
func SetDefaults() *Conf {
	return &Conf{
		Output:     "stdout",
		Path:       "./logs",
		Filename:   "tickserver.log",
		Level:      "INFO",
		RotateSize: 100,
		RotateNum:  10,
		MaxAgeDays: 7,
	}
}

// Validate fills in conservative fallbacks for a file-output config.
func (c *Conf) Validate() error {
	if c.Output == "file" {
		if c.Path == "" {
			return fmt.Errorf("logging: path is required when output is \"file\"")
		}
		if c.RotateSize <= 0 {
			c.RotateSize = 100
		}
		if c.RotateNum <= 0 {
			c.RotateNum = 10
		}
		if c.MaxAgeDays <= 0 {
			c.MaxAgeDays = 7
		}
	}
	return nil
}

// Init builds the process-global zap logger from conf.
func Init(conf *Conf) (*zap.Logger, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("logging: invalid config: %w", err)
	}

	var writeSyncer zapcore.WriteSyncer
	switch conf.Output {
	case "file":
		var err error
		writeSyncer, err = fileWriteSyncer(conf)
		if err != nil {
			return nil, fmt.Errorf("logging: failed to create file writer: %w", err)
		}
	default:
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	encoderConf := zap.NewProductionEncoderConfig()
	encoderConf.TimeKey = "time"
	encoderConf.EncodeTime = iso8601TimeEncoder
	encoderConf.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConf.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConf), writeSyncer, parseLevel(conf.Level))
	l := zap.New(core, zap.AddCaller())

	mu.Lock()
	logger = l
	mu.Unlock()

	return l, nil
}

// L returns the process-global logger, or a no-op logger if Init was
// never called.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func fileWriteSyncer(conf *Conf) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(conf.Path, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(conf.Path, conf.Filename)
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    conf.RotateSize,
		MaxBackups: conf.RotateNum,
		MaxAge:     conf.MaxAgeDays,
		Compress:   true,
	}
	return zapcore.AddSync(rotator), nil
}

func iso8601TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
