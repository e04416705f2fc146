// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tally is the Vote Tally (spec §4.3): a pure deciding function
// over a set of recorded votes and the federation size, the same shape
// as the teacher's quorum/binary_threshold.go and poll/default.go
// decide-from-counts logic, specialized to the proposer-always-accepts
// single-decree protocol of spec §4.5.
package tally

import (
	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/store"
)

// Decision is the outcome of tallying a proposal's votes.
type Decision int

const (
	WAIT Decision = iota
	COMMIT
	ABORT
)

func (d Decision) String() string {
	switch d {
	case COMMIT:
		return "COMMIT"
	case ABORT:
		return "ABORT"
	default:
		return "WAIT"
	}
}

// Quorum returns floor(n/2)+1, with a hard floor of 3 (spec §3): a
// federation configurationally requires N>=3, and no decision or
// recovery round can complete on fewer than 3 responses even when
// floor(n/2)+1 would otherwise be smaller.
func Quorum(n int) int {
	q := n/2 + 1
	if q < 3 {
		return 3
	}
	return q
}

// ReachedQuorum reports whether enough votes plus the proposer's
// implicit self-accept have arrived to decide anything at all.
func ReachedQuorum(receivedVotes int, n int) bool {
	return receivedVotes+1 >= Quorum(n)
}

// Counts tallies recorded votes into accepts/rejects, as seen (not
// counting the proposer's implicit self-accept, which the caller adds
// separately via accepts+1 — see Decide).
func Counts(votes map[fedid.NodeID]store.Vote) (accepts, rejects int) {
	for _, v := range votes {
		if v.Accept {
			accepts++
		} else {
			rejects++
		}
	}
	return accepts, rejects
}

// Decide implements the tally rule of spec §4.3/P4, with a counting the
// received accepts plus the proposer's own implicit accept and r the
// rejects: COMMIT when a alone reaches the quorum and a > r; ABORT when
// a+r reaches the quorum and a <= r; WAIT otherwise, including when a+r
// reaches the quorum with a > r but a is still below it. Ties are not
// majorities.
func Decide(accepts, rejects, n int) Decision {
	a := accepts + 1 // the proposer's own implicit accept
	r := rejects
	q := Quorum(n)
	switch {
	case a >= q && a > r:
		return COMMIT
	case a+r >= q && a <= r:
		return ABORT
	default:
		return WAIT
	}
}

// DecideFromVotes is a convenience wrapper tallying a live vote map and
// deciding in one call, used by the Consensus Coordinator's VOTE
// handler (spec §4.5).
func DecideFromVotes(votes map[fedid.NodeID]store.Vote, n int) Decision {
	accepts, rejects := Counts(votes)
	return Decide(accepts, rejects, n)
}
