// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fedcounter/config"
	"github.com/luxfi/fedcounter/fedid"
	fclog "github.com/luxfi/fedcounter/log"
	"github.com/luxfi/fedcounter/message"
	"github.com/luxfi/fedcounter/store"
	"github.com/luxfi/fedcounter/transport"
)

func testParams(nodeID fedid.NodeID, known []fedid.NodeID) config.Parameters {
	p := config.Local()
	p.NodeID = nodeID
	p.KnownNodes = known
	p.RecoveryTimeout = 200 * time.Millisecond
	p.RecoveryRetryInterval = 50 * time.Millisecond
	p.MaxRecoveryAttempts = 2
	return p
}

// peerResponder answers every RECOVERY_REQUEST addressed to it with its
// own store's counter, the minimal stand-in for a full Node in these
// unit tests.
func peerResponder(ctx context.Context, bus transport.Bus, self fedid.NodeID, counter uint64) {
	go func() {
		for {
			batch, err := bus.Poll(ctx, 10, 50*time.Millisecond)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				continue
			}
			for _, im := range batch {
				if im.Payload.Type == message.RECOVERY_REQUEST {
					reply := message.Message{
						Type:          message.RECOVERY_RESPONSE,
						SourceNodeID:  self,
						RequestID:     im.Payload.RequestID,
						ProposedValue: message.Uint64Ptr(counter),
					}
					_ = bus.Send(ctx, im.Payload.SourceNodeID, reply)
				}
				_ = bus.Ack(ctx, im.DeliveryToken)
			}
		}
	}()
}

func TestRecoveryAdoptsMajorityValue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	known := []fedid.NodeID{"n1", "n2", "n3", "n4"}
	network := transport.NewNetwork()
	logger := fclog.NewNoOpLogger()

	selfBus := network.Join("n1", 64, logger)

	// Three peers answer; two agree on 7, one says 3 -> majority is 7.
	peerResponder(ctx, network.Join("n2", 64, logger), "n2", 7)
	peerResponder(ctx, network.Join("n3", 64, logger), "n3", 7)
	peerResponder(ctx, network.Join("n4", 64, logger), "n4", 3)

	st := store.New("n1", known, logger)
	params := testParams("n1", known)
	c := New(st, selfBus, params, logger)

	require.NoError(t, c.Run(ctx))
	require.Equal(t, uint64(7), st.GetCounter())
	require.Equal(t, store.IDLE, st.Snapshot().ConsensusState)
	require.False(t, st.Snapshot().Recovering)
}

func TestRecoveryFailsWithoutEnoughResponses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	known := []fedid.NodeID{"n1", "n2", "n3", "n4"}
	network := transport.NewNetwork()
	logger := fclog.NewNoOpLogger()

	selfBus := network.Join("n1", 64, logger)
	// Only one peer answers, below the hard floor of 3 responses.
	peerResponder(ctx, network.Join("n2", 64, logger), "n2", 7)
	network.Join("n3", 64, logger)
	network.Join("n4", 64, logger)

	st := store.New("n1", known, logger)
	params := testParams("n1", known)
	c := New(st, selfBus, params, logger)

	err := c.Run(ctx)
	require.ErrorIs(t, err, ErrRecoveryFailed)
	require.Equal(t, store.IDLE, st.Snapshot().ConsensusState)
}

func TestDecideValueTieBreaksOnMax(t *testing.T) {
	resp := map[fedid.NodeID]response{
		"n2": {counter: 5},
		"n3": {counter: 9},
		"n4": {counter: 9},
	}
	require.Equal(t, uint64(9), decideValue(resp))

	resp = map[fedid.NodeID]response{
		"n2": {counter: 4},
		"n3": {counter: 9},
		"n4": {counter: 2},
	}
	require.Equal(t, uint64(9), decideValue(resp))
}
