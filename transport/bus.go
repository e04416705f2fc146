// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport is the Message Bus Adapter (spec §4.1): the sole
// I/O surface the core uses to exchange messages with peers. The core
// never addresses a queue directly and never depends on a concrete
// transport; it only depends on the Bus interface below.
package transport

import (
	"context"
	"time"

	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/message"
)

// ErrTransport reports a transient or exhausted-retry transport
// failure. The consensus layer treats it as "no response from that
// peer", never as an implicit protocol reject (spec §4.1, §7).
type ErrTransport struct {
	NodeID fedid.NodeID
	Op     string
	Err    error
}

func (e *ErrTransport) Error() string {
	return "transport: " + e.Op + " to " + string(e.NodeID) + ": " + e.Err.Error()
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// Bus is the point-to-point message bus the core core consumes.
// Implementations may reorder and duplicate deliveries and need not
// offer cross-node ordering; the consensus layer is built to tolerate
// both (spec §4.1, §5).
type Bus interface {
	// Send delivers msg to targetNodeID, retrying transient failures
	// with bounded exponential backoff up to the configured retry
	// count. Returns ErrTransport once retries are exhausted. ZMQBus
	// retries this way; InProcBus makes a single delivery attempt and
	// returns ErrTransport if it fails.
	Send(ctx context.Context, targetNodeID fedid.NodeID, msg message.Message) error

	// Broadcast sends msg to every known peer other than self and
	// returns the number of peers the transport accepted the message
	// for. A single peer's failure never fails the whole broadcast.
	Broadcast(ctx context.Context, msg message.Message) (accepted int)

	// Poll blocks up to waitDeadline for up to maxBatch messages
	// addressed to this node.
	Poll(ctx context.Context, maxBatch int, waitDeadline time.Duration) ([]message.InboundMessage, error)

	// Ack acknowledges a previously polled delivery. Neither InProcBus
	// nor ZMQBus redelivers unacked messages: InProcBus only records the
	// token and ZMQBus ignores it.
	Ack(ctx context.Context, deliveryToken string) error

	// Close releases the adapter's resources. Safe to call once the
	// owning node's cancellation signal has fired and the outbound
	// pool has drained (spec §5).
	Close() error
}

// QueueName derives the deterministic queue name a node's peers use to
// address it, per spec §6: "<prefix>-<nodeId>-queue".
func QueueName(prefix string, nodeID fedid.NodeID) string {
	return prefix + "-" + string(nodeID) + "-queue"
}
