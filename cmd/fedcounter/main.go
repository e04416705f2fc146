// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fedcounter",
	Short: "Replicated-counter federation node and local simulator",
	Long: `fedcounter runs a single-decree consensus protocol across a small,
fixed federation of peer nodes that jointly maintain one replicated
counter. It provides:

- A ZeroMQ-backed node process for running a real multi-host federation
- A local in-process simulator for exercising the protocol with a
  configurable federation size and number of increments, without any
  external transport`,
}

func main() {
	rootCmd.AddCommand(
		runCmd(),
		simCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
