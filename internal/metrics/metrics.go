// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exposes the core's own diagnostics over Prometheus:
// Reporter publishes the store-wide record_count and a per-partition
// record count. No per-field enqueue/dequeue or full/empty-return counters
// are collected. It is diagnostic only (spec.md §4.3: "not for flow
// control"): nothing here ever reads back a metric to decide whether to
// call TryEnqueue/TryDequeue.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	gometrics "github.com/hashicorp/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ticklane/ticklane/internal/safe"
)

// Conf configures the metrics HTTP server.
type Conf struct {
	Enable bool   `mapstructure:"enable"`
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Path   string `mapstructure:"path"`
}

// SetDefaults returns a Conf with the metrics server disabled by default.
func SetDefaults() *Conf {
	return &Conf{Enable: false, Host: "0.0.0.0", Port: 9090, Path: "/metrics"}
}

func (c *Conf) setDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// promSink implements gometrics.MetricSink on top of a prometheus
// registry, so core counters can be fed through the same go-metrics
// interface the rest of the ambient stack already speaks, per the sink
// design this is grounded on.
type promSink struct {
	registry *prometheus.Registry
	mu       sync.Mutex
	gauges   map[string]*prometheus.GaugeVec
	counters map[string]*prometheus.CounterVec
}

func newPromSink(registry *prometheus.Registry) *promSink {
	return &promSink{
		registry: registry,
		gauges:   make(map[string]*prometheus.GaugeVec),
		counters: make(map[string]*prometheus.CounterVec),
	}
}

func (s *promSink) SetGauge(key []string, val float32) {
	s.SetGaugeWithLabels(key, val, nil)
}

func (s *promSink) SetGaugeWithLabels(key []string, val float32, labels []gometrics.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := sanitize(key)
	g, ok := s.gauges[name]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: "tickring gauge " + name}, labelNames(labels))
		s.registry.MustRegister(g)
		s.gauges[name] = g
	}
	g.With(toPromLabels(labels)).Set(float64(val))
}

func (s *promSink) EmitKey(key []string, val float32) {
	s.SetGauge(key, val)
}

func (s *promSink) IncrCounter(key []string, val float32) {
	s.IncrCounterWithLabels(key, val, nil)
}

func (s *promSink) IncrCounterWithLabels(key []string, val float32, labels []gometrics.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := sanitize(key)
	c, ok := s.counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: "tickring counter " + name}, labelNames(labels))
		s.registry.MustRegister(c)
		s.counters[name] = c
	}
	c.With(toPromLabels(labels)).Add(float64(val))
}

func (s *promSink) AddSample(key []string, val float32) {
	s.IncrCounter(key, val)
}

func (s *promSink) AddSampleWithLabels(key []string, val float32, labels []gometrics.Label) {
	s.IncrCounterWithLabels(key, val, labels)
}

// Server is the metrics HTTP endpoint and the registry backing it.
type Server struct {
	conf     Conf
	registry *prometheus.Registry
	sink     *promSink
	httpSrv  *http.Server
}

// NewServer builds a Server with a fresh Prometheus registry, the Go
// runtime/process collectors, and a go-metrics-compatible sink.
func NewServer(conf Conf) *Server {
	conf.setDefaults()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		conf:     conf,
		registry: registry,
		sink:     newPromSink(registry),
	}
}

// Sink returns the go-metrics-compatible sink backing this server's
// registry, for Reporter to report through.
func (s *Server) Sink() gometrics.MetricSink {
	return s.sink
}

// Start launches the metrics HTTP listener in a panic-safe goroutine. It
// is a no-op if the server is disabled in config.
func (s *Server) Start() {
	if !s.conf.Enable {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(s.conf.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	s.httpSrv = &http.Server{Addr: fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port), Handler: mux}

	safe.Go(func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	})
}

// Stop shuts down the metrics HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func sanitize(key []string) string {
	if len(key) == 0 {
		return "unknown"
	}
	name := key[0]
	for _, k := range key[1:] {
		name += "_" + k
	}
	return prometheus.BuildFQName("tickring", "", name)
}

func labelNames(labels []gometrics.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}

func toPromLabels(labels []gometrics.Label) prometheus.Labels {
	if len(labels) == 0 {
		return nil
	}
	out := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		out[l.Name] = l.Value
	}
	return out
}
