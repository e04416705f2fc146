// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fedid holds the identifier types shared by every component
// of the federation. NodeID follows spec §3 (an opaque non-empty
// string); ProposalID and RequestID reuse github.com/luxfi/ids.ID, the
// same 256-bit container-identifier type the teacher generates
// container and request ids with elsewhere in the stack (e.g.
// poll.Set's requestID correlation and the PROPOSE/VOTE/COMMIT
// correlation ids here serve the identical role).
package fedid

import (
	"crypto/rand"
	"errors"

	"github.com/luxfi/ids"
)

// NodeID is an opaque, non-empty identifier for a federation peer.
// Nodes are addressed by NodeID only; the core never learns a peer's
// transport address directly (see transport.Bus).
type NodeID string

// ErrEmptyNodeID is returned when a NodeID is required but was empty.
var ErrEmptyNodeID = errors.New("fedid: node id must not be empty")

// Validate reports whether id is usable as a federation member identifier.
func (id NodeID) Validate() error {
	if id == "" {
		return ErrEmptyNodeID
	}
	return nil
}

func (id NodeID) String() string { return string(id) }

// ProposalID uniquely identifies one attempted increment. Owned by the
// proposer and echoed by VOTE, COMMIT and ABORT (spec §3).
type ProposalID = ids.ID

// NewProposalID allocates a fresh globally-unique proposal identifier.
func NewProposalID() ProposalID {
	return randomID()
}

// RequestID uniquely identifies one recovery round (spec §4.4).
type RequestID = ids.ID

// NewRequestID allocates a fresh globally-unique recovery request id.
func NewRequestID() RequestID {
	return randomID()
}

func randomID() ids.ID {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken, a condition this process cannot recover from.
		panic(err)
	}
	id, err := ids.ToID(buf[:])
	if err != nil {
		panic(err)
	}
	return id
}
