// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ticklane/ticklane/internal/config"
	"github.com/ticklane/ticklane/internal/logging"
	"github.com/ticklane/ticklane/internal/metrics"
	"github.com/ticklane/ticklane/internal/safe"
	"github.com/ticklane/ticklane/internal/sink"
	"github.com/ticklane/ticklane/partition"
)

var symbols = []string{"AAPL", "MSFT", "GOOG", "TSLA", "AMZN"}

func newRunCommand() *cobra.Command {
	var (
		confDir     string
		numProducers int
		numConsumers int
		duration    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "bootstrap the tick store and run a demo producer/consumer workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(confDir, numProducers, numConsumers, duration)
		},
	}

	cmd.Flags().StringVar(&confDir, "conf", "./conf.d", "directory containing config.toml")
	cmd.Flags().IntVar(&numProducers, "producers", 4, "number of synthetic producer goroutines")
	cmd.Flags().IntVar(&numConsumers, "consumers", 4, "number of synthetic consumer goroutines")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run the demo workload before exiting")

	return cmd
}

func runDemo(confDir string, numProducers, numConsumers int, duration time.Duration) error {
	loader := config.NewLoader(confDir)
	cfg, err := loader.Load()
	if err != nil {
		// Fall back to an in-process default shape; the demo harness
		// should still run without a config file on disk.
		cfg = config.SetDefaults()
	}

	logger, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("tickserver: logger init failed: %w", err)
	}
	defer logger.Sync()

	metricsServer := metrics.NewServer(cfg.Metrics)
	metricsServer.Start()
	reporter := metrics.NewReporter(metricsServer.Sink())

	store, err := partition.New(cfg.TableName, cfg.TableConfig(), cfg.NumPartitions)
	if err != nil {
		return fmt.Errorf("tickserver: failed to build store: %w", err)
	}

	var redisSink *sink.RedisSink
	if cfg.Sink.Enable {
		redisSink = sink.NewRedisSink(cfg.Sink)
		defer redisSink.Close()
	}

	loader.WatchForAncillaryChanges(func(newCfg *config.Config) {
		if config.ShapeChanged(cfg, newCfg) {
			logger.Warn("config reload changed table shape; restart tickserver to apply it")
			return
		}
		logger.Info("config reloaded (ancillary settings only)")
	})

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var wg sync.WaitGroup
	runProducers(ctx, &wg, store, numProducers, logger)
	runConsumers(ctx, &wg, store, numConsumers, redisSink, logger)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			reporter.Report(store)
		}
	}

	wg.Wait()
	return metricsServer.Stop(context.Background())
}

func runProducers(ctx context.Context, wg *sync.WaitGroup, store *partition.Store, n int, logger *zap.Logger) {
	for p := 0; p < n; p++ {
		wg.Add(1)
		safe.Go(func() {
			defer wg.Done()
			producerLoop(ctx, store, logger)
		})
	}
}

func producerLoop(ctx context.Context, store *partition.Store, logger *zap.Logger) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		symbol := symbols[rng.Intn(len(symbols))]
		price := make([]byte, 8)
		binary.LittleEndian.PutUint64(price, uint64(rng.Intn(1_000_000)))

		record := map[string][]byte{
			"symbol": []byte(symbol),
			"price":  price,
		}
		if !store.WriteRecord(symbol, record) {
			logger.Debug("write rejected: partition full", zap.String("symbol", symbol))
		}
	}
}

func runConsumers(ctx context.Context, wg *sync.WaitGroup, store *partition.Store, n int, forwarder *sink.RedisSink, logger *zap.Logger) {
	for c := 0; c < n; c++ {
		consumerID := c
		wg.Add(1)
		safe.Go(func() {
			defer wg.Done()
			consumerLoop(ctx, store, forwarder, logger, consumerID)
		})
	}
}

func consumerLoop(ctx context.Context, store *partition.Store, forwarder *sink.RedisSink, logger *zap.Logger, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, ok := store.ReadAny()
		if !ok {
			continue
		}
		if forwarder != nil {
			key := string(record["symbol"]) + "-" + strconv.Itoa(id)
			if err := forwarder.Forward(ctx, key, record); err != nil {
				logger.Warn("sink forward failed", zap.Error(err))
			}
		}
	}
}
