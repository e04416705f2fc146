// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/store"
)

func TestQuorumFloor(t *testing.T) {
	require.Equal(t, 3, Quorum(3))
	require.Equal(t, 3, Quorum(4))
	require.Equal(t, 3, Quorum(5))
	require.Equal(t, 4, Quorum(6))
	require.Equal(t, 4, Quorum(7))
}

func TestDecideCommitOnStrictMajority(t *testing.T) {
	// n=5, quorum=3; proposer + 2 accepts = 3 >= 3 and 3 > 0.
	require.Equal(t, COMMIT, Decide(2, 0, 5))
}

func TestDecideWaitBelowQuorum(t *testing.T) {
	require.Equal(t, WAIT, Decide(1, 0, 5))
}

func TestDecideAbortOnRejectMajority(t *testing.T) {
	// n=5, quorum=3; proposer accept=1, rejects=3: a+r=4>=3, a<=r.
	require.Equal(t, ABORT, Decide(0, 3, 5))
}

func TestDecideTieIsNotCommit(t *testing.T) {
	// n=5: accepts=1 (+1 proposer=2), rejects=2 -> a+r=4>=3, a<=r -> ABORT, not WAIT/COMMIT.
	require.Equal(t, ABORT, Decide(1, 2, 5))
}

func TestCountsAndDecideFromVotes(t *testing.T) {
	votes := map[fedid.NodeID]store.Vote{
		"n2": {VoterNodeID: "n2", Accept: true, Timestamp: time.Now()},
		"n3": {VoterNodeID: "n3", Accept: true, Timestamp: time.Now()},
		"n4": {VoterNodeID: "n4", Accept: false, Timestamp: time.Now()},
	}
	accepts, rejects := Counts(votes)
	require.Equal(t, 2, accepts)
	require.Equal(t, 1, rejects)
	require.Equal(t, COMMIT, DecideFromVotes(votes, 5))
}

func TestReachedQuorum(t *testing.T) {
	require.False(t, ReachedQuorum(1, 5))
	require.True(t, ReachedQuorum(2, 5))
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "WAIT", WAIT.String())
	require.Equal(t, "COMMIT", COMMIT.String())
	require.Equal(t, "ABORT", ABORT.String())
}
