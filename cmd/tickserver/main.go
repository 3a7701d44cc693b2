// Copyright (c) 2026 Ticklane Authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command tickserver is a demonstration harness for the tickring core:
// it loads a table shape from a TOML config file, builds a symbol-
// partitioned store, and runs synthetic producer/consumer goroutines
// against it while exposing Prometheus diagnostics and optionally
// forwarding dequeued records to Redis.
//
// It is explicitly NOT the feed ingress, NOT a wire protocol server, and
// NOT a persistence layer — those remain external collaborators per
// spec.md §1. It exists only to exercise ring/table/partition under a
// realistic ambient stack (logging, config, metrics, CLI).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	root := &cobra.Command{
		Use:   "tickserver",
		Short: "tickserver runs the in-memory MPMC tick store demo",
		Long:  "tickserver bootstraps a symbol-partitioned tick store from config and runs a synthetic producer/consumer workload against it.",
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print tickserver's version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
