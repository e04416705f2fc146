// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fedcounter/config"
	"github.com/luxfi/fedcounter/fedid"
	fclog "github.com/luxfi/fedcounter/log"
	"github.com/luxfi/fedcounter/message"
	"github.com/luxfi/fedcounter/transport"
)

func msgPropose(proposalID fedid.ProposalID, value uint64) message.Message {
	return message.Message{
		Type:          message.PROPOSE,
		ProposalID:    proposalID,
		ProposedValue: message.Uint64Ptr(value),
	}
}

func buildFederation(t *testing.T, ids []fedid.NodeID) (*transport.Network, map[fedid.NodeID]*Node) {
	t.Helper()
	logger := fclog.NewNoOpLogger()
	network := transport.NewNetwork()
	nodes := make(map[fedid.NodeID]*Node, len(ids))
	for _, id := range ids {
		params := config.Local()
		params.NodeID = id
		params.KnownNodes = ids

		n, err := New(params, logger)
		require.NoError(t, err)
		n.AttachBus(network.Join(id, 256, logger))
		nodes[id] = n
	}
	return network, nodes
}

func serveAll(ctx context.Context, nodes map[fedid.NodeID]*Node) {
	for _, n := range nodes {
		go func(n *Node) { _ = n.Serve(ctx) }(n)
	}
}

func waitForCounter(t *testing.T, n *Node, want uint64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if n.Store().GetCounter() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, want, n.Store().GetCounter())
}

func TestHappyPathIncrementCommitsAcrossFederation(t *testing.T) {
	ids := []fedid.NodeID{"n1", "n2", "n3", "n4", "n5"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, nodes := buildFederation(t, ids)
	serveAll(ctx, nodes)

	require.NoError(t, nodes["n1"].OnIncrementRequest(ctx))

	for _, id := range ids {
		waitForCounter(t, nodes[id], 1, 3*time.Second)
	}
}

// TestConcurrentIncrementsNeverDiverge drives two proposals racing from
// different nodes at the same counter value. Which one (if either)
// reaches quorum before the proposal deadline is a liveness question
// this test does not assert on; the safety property it does assert,
// per spec §8's "concurrent initiation" property, is that every node
// converges on the SAME final value — never two different non-zero
// values committed from the same base counter.
func TestConcurrentIncrementsNeverDiverge(t *testing.T) {
	ids := []fedid.NodeID{"n1", "n2", "n3", "n4", "n5"}
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	_, nodes := buildFederation(t, ids)
	serveAll(ctx, nodes)

	go func() { _ = nodes["n1"].OnIncrementRequest(ctx) }()
	go func() { _ = nodes["n2"].OnIncrementRequest(ctx) }()

	time.Sleep(6 * time.Second)

	want := nodes["n1"].Store().GetCounter()
	require.Contains(t, []uint64{0, 1}, want)
	for _, id := range ids {
		require.Equal(t, want, nodes[id].Store().GetCounter(), "node %s diverged from the federation's agreed counter", id)
	}
}

func TestOnIncrementRequestBusyWhileProposing(t *testing.T) {
	ids := []fedid.NodeID{"n1", "n2", "n3"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, nodes := buildFederation(t, ids)
	// Do not serve n2/n3 so n1's proposal never resolves: its own
	// OnIncrementRequest immediately enters PROPOSING and must reject a
	// second concurrent trigger.
	n1 := nodes["n1"]
	require.NoError(t, n1.OnIncrementRequest(ctx))
	require.ErrorIs(t, n1.OnIncrementRequest(ctx), ErrBusy)
}

func TestOnProposeRejectsStaleValue(t *testing.T) {
	ids := []fedid.NodeID{"n1", "n2", "n3"}
	_, nodes := buildFederation(t, ids)
	n2 := nodes["n2"]
	require.NoError(t, n2.Store().UpdateCounter(5))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() { _ = n2.Serve(ctx) }()

	// n1 proposes counter+1 relative to its own (stale) view of 0,
	// which n2 must reject since it expects 6.
	done := make(chan struct{})
	var replied bool
	go func() {
		batch, _ := nodes["n1"].bus.Poll(ctx, 1, 2*time.Second)
		replied = len(batch) == 1 && batch[0].Payload.Accept != nil && !*batch[0].Payload.Accept
		close(done)
	}()

	proposalID := fedid.NewProposalID()
	require.NoError(t, nodes["n1"].bus.Send(ctx, "n2", msgPropose(proposalID, 1)))
	<-done
	require.True(t, replied)
}
