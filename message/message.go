// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package message defines the wire schema exchanged between federation
// peers (spec §6) as a tagged sum over the seven message kinds, and the
// InboundMessage envelope that keeps a transport's delivery token
// separate from protocol metadata (see transport.Bus).
package message

import "github.com/luxfi/fedcounter/fedid"

// Type enumerates the kinds of message the federation exchanges.
// Dispatch sites (node.OnMessage) have one case per kind. Go does not
// check a switch for exhaustiveness, so adding a new kind compiles
// without a new case; unhandled kinds fall to the default branch.
type Type int

const (
	// INCREMENT_REQUEST is delivered by the external trigger, never by
	// a peer, so it never appears on the wire between nodes — it is
	// included here because it shares the envelope and dispatch path.
	INCREMENT_REQUEST Type = iota
	PROPOSE
	VOTE
	COMMIT
	ABORT
	RECOVERY_REQUEST
	RECOVERY_RESPONSE
)

func (t Type) String() string {
	switch t {
	case INCREMENT_REQUEST:
		return "INCREMENT_REQUEST"
	case PROPOSE:
		return "PROPOSE"
	case VOTE:
		return "VOTE"
	case COMMIT:
		return "COMMIT"
	case ABORT:
		return "ABORT"
	case RECOVERY_REQUEST:
		return "RECOVERY_REQUEST"
	case RECOVERY_RESPONSE:
		return "RECOVERY_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Message is the self-describing record carried by the Message Bus
// Adapter, with the fields enumerated in spec §6. Any self-describing
// serialization (JSON here, see codec.go) satisfies the contract; the
// core never depends on the concrete wire format.
type Message struct {
	Type          Type                   `json:"type"`
	SourceNodeID  fedid.NodeID           `json:"sourceNodeId"`
	TargetNodeID  fedid.NodeID           `json:"targetNodeId,omitempty"`
	ProposedValue *uint64                `json:"proposedValue,omitempty"`
	ProposalID    fedid.ProposalID       `json:"proposalId,omitempty"`
	RequestID     fedid.RequestID        `json:"requestId,omitempty"`
	Accept        *bool                  `json:"accept,omitempty"`
	Reason        string                 `json:"reason,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// InboundMessage pairs a decoded Message with the transport-specific
// handle used to Ack it later. Keeping the two separate means the ack
// token can never be read back out of Metadata by mistake (a bug the
// teacher's source had with receipt handles leaking through message
// metadata maps — see DESIGN.md).
type InboundMessage struct {
	Payload       Message
	DeliveryToken string
}

// Uint64Ptr is a small constructor helper for the optional ProposedValue
// field, mirroring the pointer-valued optional fields of spec §6.
func Uint64Ptr(v uint64) *uint64 { return &v }

// BoolPtr is a small constructor helper for the optional Accept field.
func BoolPtr(v bool) *bool { return &v }
