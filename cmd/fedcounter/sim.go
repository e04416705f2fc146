// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/luxfi/fedcounter/config"
	"github.com/luxfi/fedcounter/fedid"
	fclog "github.com/luxfi/fedcounter/log"
	"github.com/luxfi/fedcounter/metrics"
	"github.com/luxfi/fedcounter/node"
	"github.com/luxfi/fedcounter/transport"
)

func simCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run an in-process federation simulation",
		Long: `Starts an all-in-one-process federation over the in-process transport
and drives a configurable number of increment triggers against one
node, printing every member's final counter once they settle.`,
		RunE: runSim,
	}
	cmd.Flags().Int("nodes", 5, "federation size (minimum 3)")
	cmd.Flags().Int("increments", 10, "number of increment triggers to issue")
	cmd.Flags().Duration("settle", 2*time.Second, "time to wait after the last trigger before reporting")
	return cmd
}

func runSim(cmd *cobra.Command, args []string) error {
	numNodes, _ := cmd.Flags().GetInt("nodes")
	increments, _ := cmd.Flags().GetInt("increments")
	settle, _ := cmd.Flags().GetDuration("settle")
	if numNodes < 3 {
		return fmt.Errorf("--nodes must be at least 3")
	}

	var known []fedid.NodeID
	for i := 0; i < numNodes; i++ {
		known = append(known, fedid.NodeID(fmt.Sprintf("n%d", i+1)))
	}

	logger := fclog.NewNoOpLogger()
	network := transport.NewNetwork()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodes := make(map[fedid.NodeID]*node.Node, numNodes)
	for _, id := range known {
		params := config.Local()
		params.NodeID = id
		params.KnownNodes = known

		n, err := node.New(params, logger)
		if err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		n.AttachMetrics(metrics.NewMetrics(prometheus.NewRegistry()))
		n.AttachBus(network.Join(id, 256, logger))
		nodes[id] = n

		go func() { _ = n.Run(ctx) }()
	}

	proposer := nodes[known[0]]
	for i := 0; i < increments; i++ {
		triggerCtx, triggerCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := proposer.OnIncrementRequest(triggerCtx); err != nil {
			fmt.Printf("trigger %d rejected: %v\n", i+1, err)
		}
		triggerCancel()
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(settle)

	for _, id := range known {
		snap := nodes[id].Store().Snapshot()
		fmt.Printf("%s: counter=%d state=%s\n", id, snap.Counter, snap.ConsensusState)
	}
	return nil
}
