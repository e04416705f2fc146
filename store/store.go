// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"errors"
	"sync"
	"time"

	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/log"
)

// Sentinel errors for the "protocol violation" / "invalid transition"
// error kinds of spec §7. Callers compare with errors.Is.
var (
	ErrInvalidTransition = errors.New("store: invalid consensus state transition")
	ErrNegativeCounter   = errors.New("store: counter must be non-negative")
	ErrEmptyVoterID      = errors.New("store: voter id must not be empty")
	ErrProposalMismatch  = errors.New("store: vote proposal id does not match current proposal")
	ErrNotProposing      = errors.New("store: BeginProposal requires PROPOSING or VOTING state")
)

// Store is the State Store (spec §4.2). A single instance guards
// exactly one NodeState behind a reader-writer lock (spec §5): reads
// take the read lock, mutations take the write lock, and no Store
// method ever performs network I/O.
type Store struct {
	mu    sync.RWMutex
	state NodeState
	log   log.Logger
}

// New creates a Store for nodeID with counter 0, state IDLE, and no
// recorded votes, matching the NodeState lifecycle in spec §3.
func New(nodeID fedid.NodeID, knownNodes []fedid.NodeID, logger log.Logger) *Store {
	known := make([]fedid.NodeID, len(knownNodes))
	copy(known, knownNodes)
	return &Store{
		state: NodeState{
			NodeID:         nodeID,
			Counter:        0,
			ConsensusState: IDLE,
			KnownNodes:     known,
			ReceivedVotes:  make(map[fedid.NodeID]Vote),
		},
		log: logger,
	}
}

// GetCounter returns the current committed counter value.
func (s *Store) GetCounter() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counter
}

// Snapshot returns an immutable copy of the entire NodeState.
func (s *Store) Snapshot() NodeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// UpdateCounter sets the counter to new. Monotonicity is enforced by
// the Consensus Coordinator, not here (spec §4.2): Recovery legitimately
// jumps the value forward, and COMMIT idempotence checks happen above
// this layer.
func (s *Store) UpdateCounter(new uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Counter = new
	return nil
}

// TransitionTo moves the consensus state machine, applying the
// state-entry side effects of spec §3 on success: entering IDLE clears
// the current proposal and votes; entering PROPOSING also clears
// previous votes (BeginProposal sets the new id separately).
func (s *Store) TransitionTo(newState ConsensusState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(newState)
}

func (s *Store) transitionLocked(newState ConsensusState) error {
	from := s.state.ConsensusState
	if !CanTransition(from, newState) {
		s.log.Error("invalid consensus transition", "from", from.String(), "to", newState.String())
		return ErrInvalidTransition
	}
	s.state.ConsensusState = newState
	if newState == IDLE {
		s.state.CurrentProposalID = fedid.ProposalID{}
		s.state.ReceivedVotes = make(map[fedid.NodeID]Vote)
	}
	if newState == PROPOSING {
		s.state.ReceivedVotes = make(map[fedid.NodeID]Vote)
	}
	return nil
}

// BeginProposal atomically sets CurrentProposalID and clears votes.
// Callable only when the state is already PROPOSING or VOTING (the
// caller transitions into one of those states first).
func (s *Store) BeginProposal(proposalID fedid.ProposalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ConsensusState != PROPOSING && s.state.ConsensusState != VOTING {
		return ErrNotProposing
	}
	s.state.CurrentProposalID = proposalID
	s.state.ReceivedVotes = make(map[fedid.NodeID]Vote)
	return nil
}

// RecordVote accepts vote only if vote.ProposalID matches the current
// proposal and voterID is non-empty, replacing any prior vote from the
// same voter. Returns the updated vote count.
func (s *Store) RecordVote(voterID fedid.NodeID, vote Vote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if voterID == "" {
		return len(s.state.ReceivedVotes), ErrEmptyVoterID
	}
	if vote.ProposalID != s.state.CurrentProposalID {
		return len(s.state.ReceivedVotes), ErrProposalMismatch
	}
	s.state.ReceivedVotes[voterID] = vote
	return len(s.state.ReceivedVotes), nil
}

// SetRecovering sets the recovering flag. Setting it true additionally
// clears CurrentProposalID and ReceivedVotes (spec §3), but does not
// itself transition ConsensusState — that is always a separate,
// explicit TransitionTo(RECOVERING) call.
func (s *Store) SetRecovering(recovering bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Recovering = recovering
	if recovering {
		s.state.CurrentProposalID = fedid.ProposalID{}
		s.state.ReceivedVotes = make(map[fedid.NodeID]Vote)
	}
}

// Touch records a liveness heartbeat timestamp in LastHeartbeat, for
// diagnostics only; it is not part of the consensus safety invariants.
// No other package in this module calls it.
func (s *Store) Touch(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastHeartbeat = at
}
