// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/fedcounter/config"
	"github.com/luxfi/fedcounter/fedid"
	fclog "github.com/luxfi/fedcounter/log"
	"github.com/luxfi/fedcounter/message"
	"github.com/luxfi/fedcounter/transport/transportmock"
)

// TestOnIncrementRequestBroadcastsPropose exercises the Consensus
// Coordinator against a mocked transport.Bus instead of a live network,
// asserting the exact PROPOSE shape spec §4.5's OnIncrementRequest must
// emit: proposedValue == counter+1, a fresh proposalId, and exactly one
// Broadcast call.
func TestOnIncrementRequestBroadcastsPropose(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := transportmock.NewBus(ctrl)

	ids := []fedid.NodeID{"n1", "n2", "n3"}
	params := config.Local()
	params.NodeID = "n1"
	params.KnownNodes = ids

	n, err := New(params, fclog.NewNoOpLogger())
	require.NoError(t, err)
	n.AttachBus(bus)

	bus.EXPECT().Broadcast(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg message.Message) int {
			require.Equal(t, message.PROPOSE, msg.Type)
			require.NotNil(t, msg.ProposedValue)
			require.Equal(t, uint64(1), *msg.ProposedValue)
			require.NotEqual(t, fedid.ProposalID{}, msg.ProposalID)
			return len(ids) - 1
		},
	)

	require.NoError(t, n.OnIncrementRequest(context.Background()))
	require.ErrorIs(t, n.OnIncrementRequest(context.Background()), ErrBusy)
}

// TestOnProposeAcceptVoteSurfacesTransportFailure exercises the
// transport-failure contract of spec §4.1/§7: a failed Send is "no vote"
// at the proposer, never a reject. The voter still decides accept for a
// valid PROPOSE and sends that vote; onPropose returns the Send error to
// its caller rather than changing the vote it cast.
func TestOnProposeAcceptVoteSurfacesTransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := transportmock.NewBus(ctrl)

	ids := []fedid.NodeID{"n1", "n2", "n3"}
	params := config.Local()
	params.NodeID = "n2"
	params.KnownNodes = ids

	n, err := New(params, fclog.NewNoOpLogger())
	require.NoError(t, err)
	n.AttachBus(bus)

	proposalID := fedid.NewProposalID()
	bus.EXPECT().Send(gomock.Any(), fedid.NodeID("n1"), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ fedid.NodeID, msg message.Message) error {
			require.Equal(t, message.VOTE, msg.Type)
			require.NotNil(t, msg.Accept)
			require.True(t, *msg.Accept)
			return &transportFailure{}
		},
	)

	err = n.OnMessage(context.Background(), message.Message{
		Type:          message.PROPOSE,
		SourceNodeID:  "n1",
		ProposalID:    proposalID,
		ProposedValue: message.Uint64Ptr(1),
	})
	require.Error(t, err)
}

type transportFailure struct{}

func (*transportFailure) Error() string { return "simulated transport failure" }
