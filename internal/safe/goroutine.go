// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package safe provides panic-recovering goroutine launch helpers. It is
// used by non-hot-path goroutines (the demo producers/consumers in
// cmd/tickserver, whose consumers call the Redis sink, and the metrics
// HTTP listener);
// nothing in ring or table imports it — the core never recovers from a
// panic, it simply never panics on an expected condition.
package safe

import (
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/ticklane/ticklane/internal/logging"
)

// Go starts f in a new goroutine, recovering and logging any panic
// rather than letting it crash the process.
func Go(f func()) {
	go Do(f)
}

// Do runs f, recovering from any panic and logging it through the
// process-global logger (a no-op logger before logging.Init runs, so
// this is safe to call from goroutines started ahead of bootstrap).
func Do(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("recovered from panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()
	f()
}
