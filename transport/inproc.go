// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/message"
	"github.com/luxfi/log"
)

// Network is a shared in-process switchboard connecting every node's
// InProcBus. It stands in for the generic reliable point-to-point
// message bus spec §1 assumes exists, so unit and property tests can
// run a whole federation in one process without a real queue broker.
type Network struct {
	mu    sync.Mutex
	boxes map[fedid.NodeID]*InProcBus

	// Blocked marks nodes whose inbound transport is cut off (see
	// Block): every Send or Broadcast delivery to them fails.
	Blocked map[fedid.NodeID]bool
}

// NewNetwork creates an empty in-process network.
func NewNetwork() *Network {
	return &Network{boxes: make(map[fedid.NodeID]*InProcBus)}
}

// Join registers nodeID's inbound queue on the network and returns its
// Bus. maxQueue bounds the queue the way a real broker would.
func (n *Network) Join(nodeID fedid.NodeID, maxQueue int, logger log.Logger) *InProcBus {
	n.mu.Lock()
	defer n.mu.Unlock()
	b := &InProcBus{
		nodeID:  nodeID,
		network: n,
		inbox:   make(chan message.InboundMessage, maxQueue),
		acked:   make(map[string]struct{}),
		log:     logger,
	}
	n.boxes[nodeID] = b
	return b
}

// Block prevents messages from reaching nodeID's inbox, simulating the
// "n5's inbound transport is blocked" scenario of spec §8 scenario 2.
func (n *Network) Block(nodeID fedid.NodeID, blocked bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Blocked == nil {
		n.Blocked = make(map[fedid.NodeID]bool)
	}
	n.Blocked[nodeID] = blocked
}

func (n *Network) isBlocked(nodeID fedid.NodeID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Blocked[nodeID]
}

func (n *Network) peers() []fedid.NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]fedid.NodeID, 0, len(n.boxes))
	for id := range n.boxes {
		out = append(out, id)
	}
	return out
}

func (n *Network) deliver(target fedid.NodeID, msg message.Message, token string) error {
	if n.isBlocked(target) {
		return fmt.Errorf("node %s unreachable", target)
	}
	n.mu.Lock()
	box, ok := n.boxes[target]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown node %s", target)
	}
	select {
	case box.inbox <- message.InboundMessage{Payload: msg, DeliveryToken: token}:
		return nil
	default:
		return fmt.Errorf("queue full for node %s", target)
	}
}

// InProcBus implements transport.Bus over a Network's channels. It is
// the default transport for tests and the `sim` CLI subcommand; the
// ZMQ-backed Bus in zmq.go is used by the multi-process harness.
type InProcBus struct {
	nodeID  fedid.NodeID
	network *Network
	inbox   chan message.InboundMessage
	seq     int64
	mu      sync.Mutex
	acked   map[string]struct{}
	log     log.Logger
}

var _ Bus = (*InProcBus)(nil)

func (b *InProcBus) nextToken() string {
	return fmt.Sprintf("%s-%d", b.nodeID, atomic.AddInt64(&b.seq, 1))
}

func (b *InProcBus) Send(ctx context.Context, targetNodeID fedid.NodeID, msg message.Message) error {
	msg.SourceNodeID = b.nodeID
	msg.TargetNodeID = targetNodeID
	if err := b.network.deliver(targetNodeID, msg, b.nextToken()); err != nil {
		b.log.Debug("send failed", "target", string(targetNodeID), "err", err)
		return &ErrTransport{NodeID: targetNodeID, Op: "send", Err: err}
	}
	return nil
}

func (b *InProcBus) Broadcast(ctx context.Context, msg message.Message) int {
	msg.SourceNodeID = b.nodeID
	accepted := 0
	for _, peer := range b.network.peers() {
		if peer == b.nodeID {
			continue
		}
		peerMsg := msg
		peerMsg.TargetNodeID = peer
		if err := b.network.deliver(peer, peerMsg, b.nextToken()); err == nil {
			accepted++
		}
	}
	return accepted
}

func (b *InProcBus) Poll(ctx context.Context, maxBatch int, waitDeadline time.Duration) ([]message.InboundMessage, error) {
	timer := time.NewTimer(waitDeadline)
	defer timer.Stop()

	batch := make([]message.InboundMessage, 0, maxBatch)
	for len(batch) < maxBatch {
		select {
		case m := <-b.inbox:
			batch = append(batch, m)
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return batch, ctx.Err()
		default:
			if len(batch) > 0 {
				return batch, nil
			}
			select {
			case m := <-b.inbox:
				batch = append(batch, m)
			case <-timer.C:
				return batch, nil
			case <-ctx.Done():
				return batch, ctx.Err()
			}
		}
	}
	return batch, nil
}

func (b *InProcBus) Ack(ctx context.Context, deliveryToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked[deliveryToken] = struct{}{}
	return nil
}

func (b *InProcBus) Close() error {
	b.network.mu.Lock()
	defer b.network.mu.Unlock()
	delete(b.network.boxes, b.nodeID)
	return nil
}
