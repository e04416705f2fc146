// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
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

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one federation node over ZeroMQ",
		Long: `Start a single federation member, binding a ROUTER socket for its
own queue and a DEALER socket to every other known peer. Reads
"increment" on stdin to trigger a new proposal and "status" to print
the current counter and consensus state.`,
		RunE: runNode,
	}

	cmd.Flags().String("node-id", "", "this node's federation id (required)")
	cmd.Flags().StringSlice("peers", nil, "nodeId=offset pairs for every federation member, including self (port = base-port+offset)")
	cmd.Flags().String("endpoint", "tcp://127.0.0.1", "ZeroMQ endpoint prefix")
	cmd.Flags().Int("base-port", 5560, "base TCP port; each peer binds base-port+<its offset>")
	cmd.Flags().String("queue-prefix", "fedcounter", "queue name prefix (spec wire naming)")
	cmd.Flags().Duration("proposal-timeout", 0, "override the default proposal deadline (0 = default)")
	cmd.MarkFlagRequired("node-id")
	cmd.MarkFlagRequired("peers")
	return cmd
}

func runNode(cmd *cobra.Command, args []string) error {
	nodeIDStr, _ := cmd.Flags().GetString("node-id")
	peerFlags, _ := cmd.Flags().GetStringSlice("peers")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	basePort, _ := cmd.Flags().GetInt("base-port")
	prefix, _ := cmd.Flags().GetString("queue-prefix")
	proposalTimeout, _ := cmd.Flags().GetDuration("proposal-timeout")

	ports := make(map[fedid.NodeID]int)
	var known []fedid.NodeID
	for _, p := range peerFlags {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --peers entry %q, want nodeId=offset", p)
		}
		var port int
		if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil {
			return fmt.Errorf("invalid port offset in %q: %w", p, err)
		}
		id := fedid.NodeID(parts[0])
		ports[id] = port
		known = append(known, id)
	}

	params := config.Defaults()
	params.NodeID = fedid.NodeID(nodeIDStr)
	params.KnownNodes = known
	params.QueueEndpoint = endpoint
	params.QueueNamePrefix = prefix
	if proposalTimeout > 0 {
		params.ProposalTimeout = proposalTimeout
	}

	logger := fclog.NewNoOpLogger()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	n, err := node.New(params, logger)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	n.AttachMetrics(m)

	bus, err := transport.NewZMQBus(transport.ZMQConfig{
		NodeID:          params.NodeID,
		Endpoint:        endpoint,
		BasePort:        basePort,
		QueuePrefix:     prefix,
		KnownNodes:      ports,
		SendMaxRetries:  params.SendMaxRetries,
		SendBaseBackoff: params.SendBaseBackoff,
		InboxCapacity:   256,
		Metrics:         m,
	}, logger)
	if err != nil {
		return fmt.Errorf("zmq setup: %w", err)
	}
	n.AttachBus(bus)
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- n.Run(ctx) }()

	go stdinTriggerLoop(ctx, n)

	select {
	case <-ctx.Done():
		n.Shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

func stdinTriggerLoop(ctx context.Context, n *node.Node) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "increment":
			reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := n.OnIncrementRequest(reqCtx); err != nil {
				fmt.Fprintf(os.Stderr, "increment rejected: %v\n", err)
			} else {
				fmt.Println("ack")
			}
			cancel()
		case "status":
			snap := n.Store().Snapshot()
			fmt.Printf("counter=%d state=%s recovering=%v\n", snap.Counter, snap.ConsensusState, snap.Recovering)
		case "":
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (try increment, status)\n", line)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
