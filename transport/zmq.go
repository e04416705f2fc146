// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/message"
	"github.com/luxfi/fedcounter/metrics"
	"github.com/luxfi/log"
)

// ZMQBus is the concrete, out-of-core (spec §1) Message Bus Adapter
// used by the `fedcounter run` CLI harness. Every peer runs a ROUTER
// socket bound to its own queue address and a DEALER socket per known
// peer, named by QueueName so every node derives every other node's
// address the same way (spec §6). This generalizes the poll/vote
// ROUTER-DEALER loop of the teacher's cmd/consensus/zmq.go from
// sampling rounds to the PROPOSE/VOTE/COMMIT/ABORT/RECOVERY_* schema.
type ZMQBus struct {
	nodeID fedid.NodeID
	prefix string
	log    log.Logger

	router *zmq.Socket

	mu      sync.Mutex
	dealers map[fedid.NodeID]*zmq.Socket
	peers   []fedid.NodeID

	inbox chan message.InboundMessage

	maxRetries  int
	baseBackoff time.Duration
	metrics     *metrics.Metrics

	closeOnce sync.Once
	done      chan struct{}
}

var _ Bus = (*ZMQBus)(nil)

// ZMQConfig configures a ZMQBus.
type ZMQConfig struct {
	NodeID        fedid.NodeID
	Endpoint      string // e.g. "tcp://127.0.0.1"
	BasePort      int
	QueuePrefix   string
	KnownNodes    map[fedid.NodeID]int // nodeID -> port offset from BasePort
	SendMaxRetries int
	SendBaseBackoff time.Duration
	InboxCapacity int
	// Metrics, if non-nil, receives a TransportRetries increment for
	// every retried Send attempt (spec §5: "transport retries" are
	// part of the process-wide operational signal).
	Metrics *metrics.Metrics
}

// NewZMQBus binds a ROUTER socket for this node's own queue and opens a
// DEALER socket to each known peer, matching identities to QueueName so
// peers can address each other without any out-of-band discovery.
func NewZMQBus(cfg ZMQConfig, logger log.Logger) (*ZMQBus, error) {
	router, err := zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		return nil, fmt.Errorf("zmq: create router: %w", err)
	}
	router.SetIdentity(QueueName(cfg.QueuePrefix, cfg.NodeID))

	bindAddr := fmt.Sprintf("%s:%d", cfg.Endpoint, cfg.BasePort+cfg.KnownNodes[cfg.NodeID])
	if err := router.Bind(bindAddr); err != nil {
		router.Close()
		return nil, fmt.Errorf("zmq: bind %s: %w", bindAddr, err)
	}

	b := &ZMQBus{
		nodeID:      cfg.NodeID,
		prefix:      cfg.QueuePrefix,
		log:         logger,
		router:      router,
		dealers:     make(map[fedid.NodeID]*zmq.Socket),
		inbox:       make(chan message.InboundMessage, max(1, cfg.InboxCapacity)),
		maxRetries:  cfg.SendMaxRetries,
		baseBackoff: cfg.SendBaseBackoff,
		metrics:     cfg.Metrics,
		done:        make(chan struct{}),
	}

	for peer, port := range cfg.KnownNodes {
		if peer == cfg.NodeID {
			continue
		}
		dealer, err := zmq.NewSocket(zmq.DEALER)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("zmq: create dealer for %s: %w", peer, err)
		}
		dealer.SetIdentity(QueueName(cfg.QueuePrefix, cfg.NodeID))
		addr := fmt.Sprintf("%s:%d", cfg.Endpoint, cfg.BasePort+port)
		if err := dealer.Connect(addr); err != nil {
			dealer.Close()
			b.Close()
			return nil, fmt.Errorf("zmq: connect to %s at %s: %w", peer, addr, err)
		}
		b.dealers[peer] = dealer
		b.peers = append(b.peers, peer)
	}

	go b.recvLoop()
	return b, nil
}

func (b *ZMQBus) recvLoop() {
	b.router.SetRcvtimeo(200 * time.Millisecond)
	for {
		select {
		case <-b.done:
			return
		default:
		}
		parts, err := b.router.RecvMessageBytes(0)
		if err != nil || len(parts) < 2 {
			continue
		}
		payload := parts[len(parts)-1]
		msg, err := message.Decode(payload)
		if err != nil {
			b.log.Debug("dropping undecodable message", "err", err)
			continue
		}
		select {
		case b.inbox <- message.InboundMessage{Payload: msg, DeliveryToken: fmt.Sprintf("%s-%d", b.nodeID, time.Now().UnixNano())}:
		default:
			b.log.Warn("inbox full, dropping message", "type", msg.Type.String())
		}
	}
}

func (b *ZMQBus) Send(ctx context.Context, targetNodeID fedid.NodeID, msg message.Message) error {
	msg.SourceNodeID = b.nodeID
	msg.TargetNodeID = targetNodeID
	payload, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("zmq: encode: %w", err)
	}

	b.mu.Lock()
	dealer, ok := b.dealers[targetNodeID]
	b.mu.Unlock()
	if !ok {
		return &ErrTransport{NodeID: targetNodeID, Op: "send", Err: fmt.Errorf("unknown peer")}
	}

	backoff := b.baseBackoff
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			if b.metrics != nil {
				b.metrics.TransportRetries.Inc()
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if _, err := dealer.SendBytes(payload, 0); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return &ErrTransport{NodeID: targetNodeID, Op: "send", Err: lastErr}
}

func (b *ZMQBus) Broadcast(ctx context.Context, msg message.Message) int {
	accepted := 0
	for _, peer := range b.peers {
		if b.Send(ctx, peer, msg) == nil {
			accepted++
		}
	}
	return accepted
}

func (b *ZMQBus) Poll(ctx context.Context, maxBatch int, waitDeadline time.Duration) ([]message.InboundMessage, error) {
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
		}
	}
	return batch, nil
}

func (b *ZMQBus) Ack(ctx context.Context, deliveryToken string) error { return nil }

func (b *ZMQBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.router.Close()
		b.mu.Lock()
		for _, d := range b.dealers {
			d.Close()
		}
		b.mu.Unlock()
	})
	return nil
}
