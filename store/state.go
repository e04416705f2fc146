// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store is the State Store (spec §4.2): the single source of
// truth for a node's in-memory data, and the only component allowed to
// mutate it. Every operation here appears atomic with respect to every
// other operation on the same Store (spec §5); none of them perform
// network I/O.
package store

import (
	"time"

	"golang.org/x/exp/maps"

	"github.com/luxfi/fedcounter/fedid"
)

// ConsensusState is one of the five states a node's consensus machine
// can be in (spec §3).
type ConsensusState int

const (
	IDLE ConsensusState = iota
	PROPOSING
	VOTING
	COMMITTING
	RECOVERING
)

func (s ConsensusState) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case PROPOSING:
		return "PROPOSING"
	case VOTING:
		return "VOTING"
	case COMMITTING:
		return "COMMITTING"
	case RECOVERING:
		return "RECOVERING"
	default:
		return "UNKNOWN"
	}
}

// transitions encodes the table in spec §3. Every other (from, to) pair
// is rejected.
var transitions = map[ConsensusState]map[ConsensusState]bool{
	IDLE:       {PROPOSING: true, VOTING: true, RECOVERING: true},
	PROPOSING:  {COMMITTING: true, IDLE: true, RECOVERING: true},
	VOTING:     {COMMITTING: true, IDLE: true, RECOVERING: true},
	COMMITTING: {IDLE: true, RECOVERING: true},
	RECOVERING: {IDLE: true, VOTING: true, PROPOSING: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// edge in the state table.
func CanTransition(from, to ConsensusState) bool {
	if from == to {
		return false
	}
	return transitions[from][to]
}

// Vote is one peer's response to a PROPOSE (spec §3). A vote is valid
// only when ProposalID matches the recipient's current proposal;
// RecordVote rejects any other with ErrProposalMismatch.
type Vote struct {
	VoterNodeID fedid.NodeID
	ProposalID  fedid.ProposalID
	Accept      bool
	Timestamp   time.Time
	Reason      string
}

// NodeState is the authoritative per-node data described in spec §3.
// NodeState is always read via Snapshot and never mutated outside the
// Store's guarded operations.
type NodeState struct {
	NodeID            fedid.NodeID
	Counter           uint64
	ConsensusState    ConsensusState
	KnownNodes        []fedid.NodeID
	CurrentProposalID fedid.ProposalID // zero value means none
	ReceivedVotes     map[fedid.NodeID]Vote
	LastHeartbeat     time.Time
	Recovering        bool
}

// clone returns a deep copy so Snapshot callers can never observe, let
// alone mutate, the Store's internal map.
func (s NodeState) clone() NodeState {
	s.KnownNodes = append([]fedid.NodeID(nil), s.KnownNodes...)
	s.ReceivedVotes = maps.Clone(s.ReceivedVotes)
	return s
}
