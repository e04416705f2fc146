// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fedcounter/fedid"
	fclog "github.com/luxfi/fedcounter/log"
)

func newTestStore() *Store {
	return New("n1", []fedid.NodeID{"n1", "n2", "n3"}, fclog.NewNoOpLogger())
}

func TestNewStoreStartsIdle(t *testing.T) {
	s := newTestStore()
	snap := s.Snapshot()
	require.Equal(t, IDLE, snap.ConsensusState)
	require.Equal(t, uint64(0), snap.Counter)
	require.Empty(t, snap.ReceivedVotes)
}

func TestCanTransitionTable(t *testing.T) {
	require.True(t, CanTransition(IDLE, PROPOSING))
	require.True(t, CanTransition(IDLE, VOTING))
	require.True(t, CanTransition(IDLE, RECOVERING))
	require.False(t, CanTransition(IDLE, COMMITTING))
	require.False(t, CanTransition(COMMITTING, VOTING))
	require.False(t, CanTransition(IDLE, IDLE))
}

func TestTransitionToRejectsInvalidEdge(t *testing.T) {
	s := newTestStore()
	err := s.TransitionTo(COMMITTING)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionToIdleClearsProposalAndVotes(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.TransitionTo(PROPOSING))
	pid := fedid.NewProposalID()
	require.NoError(t, s.BeginProposal(pid))
	_, err := s.RecordVote("n2", Vote{VoterNodeID: "n2", ProposalID: pid, Accept: true})
	require.NoError(t, err)

	require.NoError(t, s.TransitionTo(IDLE))
	snap := s.Snapshot()
	require.Empty(t, snap.ReceivedVotes)
	require.Equal(t, fedid.ProposalID{}, snap.CurrentProposalID)
}

func TestBeginProposalRequiresProposingOrVoting(t *testing.T) {
	s := newTestStore()
	err := s.BeginProposal(fedid.NewProposalID())
	require.ErrorIs(t, err, ErrNotProposing)
}

func TestRecordVoteRejectsMismatchedProposal(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.TransitionTo(PROPOSING))
	require.NoError(t, s.BeginProposal(fedid.NewProposalID()))

	_, err := s.RecordVote("n2", Vote{VoterNodeID: "n2", ProposalID: fedid.NewProposalID(), Accept: true})
	require.ErrorIs(t, err, ErrProposalMismatch)
}

func TestRecordVoteRejectsEmptyVoter(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.TransitionTo(PROPOSING))
	pid := fedid.NewProposalID()
	require.NoError(t, s.BeginProposal(pid))

	_, err := s.RecordVote("", Vote{ProposalID: pid, Accept: true})
	require.ErrorIs(t, err, ErrEmptyVoterID)
}

func TestRecordVoteReplacesPriorVoteFromSameVoter(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.TransitionTo(PROPOSING))
	pid := fedid.NewProposalID()
	require.NoError(t, s.BeginProposal(pid))

	count, err := s.RecordVote("n2", Vote{VoterNodeID: "n2", ProposalID: pid, Accept: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = s.RecordVote("n2", Vote{VoterNodeID: "n2", ProposalID: pid, Accept: false})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestSetRecoveringClearsProposalState(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.TransitionTo(PROPOSING))
	pid := fedid.NewProposalID()
	require.NoError(t, s.BeginProposal(pid))

	s.SetRecovering(true)
	snap := s.Snapshot()
	require.True(t, snap.Recovering)
	require.Equal(t, fedid.ProposalID{}, snap.CurrentProposalID)
	require.Empty(t, snap.ReceivedVotes)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := newTestStore()
	snap := s.Snapshot()
	snap.KnownNodes[0] = "tampered"

	snap2 := s.Snapshot()
	require.Equal(t, fedid.NodeID("n1"), snap2.KnownNodes[0])
}

func TestUpdateCounter(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.UpdateCounter(42))
	require.Equal(t, uint64(42), s.GetCounter())
}
