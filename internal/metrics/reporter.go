// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package metrics

import (
	gometrics "github.com/hashicorp/go-metrics"

	"github.com/ticklane/ticklane/partition"
)

// Reporter periodically samples a partition.Store's best-effort
// RecordCount into the configured sink as a gauge. It never reads back
// the gauge to make a decision — purely diagnostic, per spec.md §4.3.
type Reporter struct {
	sink gometrics.MetricSink
}

// NewReporter builds a Reporter that reports through sink.
func NewReporter(sink gometrics.MetricSink) *Reporter {
	return &Reporter{sink: sink}
}

// Report samples store's current diagnostics into the sink.
func (r *Reporter) Report(store *partition.Store) {
	r.sink.SetGauge([]string{"record_count"}, float32(store.RecordCount()))
	for i := 0; i < store.NumPartitions(); i++ {
		p := store.Partition(i)
		r.sink.SetGaugeWithLabels(
			[]string{"partition_record_count"},
			float32(p.RecordCount()),
			[]gometrics.Label{
				{Name: "table", Value: p.Name()},
				{Name: "instance", Value: p.InstanceID()},
			},
		)
	}
}
