// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package recovery is the Recovery Coordinator (spec §4.4): the
// protocol a freshly-started node runs, exactly once per process
// start, to adopt the federation's current counter value from a live
// quorum before accepting proposer or voter duties for new proposals.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/fedcounter/config"
	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/message"
	fcmetrics "github.com/luxfi/fedcounter/metrics"
	"github.com/luxfi/fedcounter/store"
	"github.com/luxfi/fedcounter/transport"
	"github.com/luxfi/log"
)

// ErrRecoveryFailed is surfaced after MaxRecoveryAttempts rounds all
// fail to gather at least 3 responses (spec §4.4 step 6). Run leaves the
// store IDLE with Recovering false, and nothing records the failure, so
// the node stays live and accepts new increment requests as usual.
var ErrRecoveryFailed = errors.New("recovery: exhausted all attempts without a quorum of responses")

// minResponses is the hard floor on recovery responses regardless of
// federation size, per spec §3 ("recovery additionally requires at
// least 3 responses regardless of N").
const minResponses = 3

// Coordinator runs the recovery protocol described in spec §4.4.
type Coordinator struct {
	store   *store.Store
	bus     transport.Bus
	params  config.Parameters
	log     log.Logger
	metrics *fcmetrics.Metrics
}

type response struct {
	counter uint64
}

// New creates a Recovery Coordinator for the given Store/Bus pair.
func New(st *store.Store, bus transport.Bus, params config.Parameters, logger log.Logger) *Coordinator {
	return &Coordinator{
		store:  st,
		bus:    bus,
		params: params,
		log:    logger,
	}
}

// AttachMetrics wires a Metrics instance the Coordinator reports
// recovery-round counters to. Optional: a Coordinator with no Metrics
// attached skips the increments.
func (c *Coordinator) AttachMetrics(m *fcmetrics.Metrics) {
	c.metrics = m
}

// Run executes the full recovery protocol: Initiate, then up to
// MaxRecoveryAttempts request/collect/decide rounds with
// RecoveryRetryInterval between failed rounds, ending with Apply on
// success or a surfaced recovery-failed condition on exhaustion
// (spec §4.4 steps 1-6).
func (c *Coordinator) Run(ctx context.Context) error {
	c.initiate()

	var lastErr error
	for attempt := 1; attempt <= c.params.MaxRecoveryAttempts; attempt++ {
		if c.metrics != nil {
			c.metrics.RecoveryAttempts.Inc()
		}
		chosen, err := c.round(ctx, attempt)
		if err == nil {
			return c.apply(chosen)
		}
		lastErr = err
		c.log.Warn("recovery round failed", "attempt", attempt, "err", err)

		if attempt == c.params.MaxRecoveryAttempts {
			break
		}
		select {
		case <-time.After(c.params.RecoveryRetryInterval):
		case <-ctx.Done():
			lastErr = ctx.Err()
			goto exhausted
		}
	}

exhausted:
	c.store.SetRecovering(false)
	_ = c.store.TransitionTo(store.IDLE)
	if c.metrics != nil {
		c.metrics.RecoveryFailures.Inc()
	}
	if lastErr == nil {
		lastErr = ErrRecoveryFailed
	}
	return fmt.Errorf("%w: %v", ErrRecoveryFailed, lastErr)
}

// initiate is step 1 of spec §4.4: enter RECOVERING.
func (c *Coordinator) initiate() {
	c.store.SetRecovering(true)
	_ = c.store.TransitionTo(store.RECOVERING)
}

// round performs one request/collect/decide cycle (spec §4.4 steps
// 2-4) and returns the chosen counter value on success. Unlike
// OnRecoveryResponse, which feeds a Node's shared dispatch loop, round
// polls the bus itself: startup recovery runs before a Node's
// dispatch loop starts (spec §4.4 step 0 happens exactly once, before
// the node accepts any other duty), so there is no other consumer of
// this bus yet to hand responses to it.
func (c *Coordinator) round(ctx context.Context, attempt int) (uint64, error) {
	snap := c.store.Snapshot()
	reqID := fedid.NewRequestID()

	sent := 0
	for _, peer := range snap.KnownNodes {
		if peer == snap.NodeID {
			continue
		}
		msg := message.Message{
			Type:      message.RECOVERY_REQUEST,
			RequestID: reqID,
		}
		if err := c.bus.Send(ctx, peer, msg); err == nil {
			sent++
		}
	}
	c.log.Debug("recovery request round started", "attempt", attempt, "sent", sent, "requestId", reqID.String())

	n := len(snap.KnownNodes)
	known := make(map[fedid.NodeID]bool, n)
	for _, id := range snap.KnownNodes {
		known[id] = true
	}
	resp := make(map[fedid.NodeID]response)
	deadlineAt := time.Now().Add(c.params.RecoveryTimeout)

	for len(resp) < minResponses || len(resp)+1 < quorumOf(n) {
		remaining := time.Until(deadlineAt)
		if remaining <= 0 {
			break
		}
		waitFor := remaining
		if waitFor > 50*time.Millisecond {
			waitFor = 50 * time.Millisecond
		}
		batch, err := c.bus.Poll(ctx, 16, waitFor)
		if err != nil && ctx.Err() != nil {
			return 0, ctx.Err()
		}
		for _, im := range batch {
			if im.Payload.Type == message.RECOVERY_RESPONSE && im.Payload.RequestID == reqID && im.Payload.ProposedValue != nil && known[im.Payload.SourceNodeID] {
				resp[im.Payload.SourceNodeID] = response{counter: *im.Payload.ProposedValue}
			}
			_ = c.bus.Ack(ctx, im.DeliveryToken)
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}

	if len(resp) < minResponses {
		return 0, fmt.Errorf("only %d of required %d responses arrived", len(resp), minResponses)
	}
	chosen := decideValue(resp)
	agree := 0
	for _, r := range resp {
		if r.counter == chosen {
			agree++
		}
	}
	if agree < len(resp)/2+1 {
		c.log.Warn("recovery tie-break: no majority value, adopting the maximum", "value", chosen, "responses", len(resp))
	}
	return chosen, nil
}

func quorumOf(n int) int {
	q := n/2 + 1
	if q < minResponses {
		return minResponses
	}
	return q
}

// decideValue implements spec §4.4 step 4: majority value if one
// exists (strictly more than half), else the maximum observed value,
// logged as a tie-break event by the caller.
func decideValue(resp map[fedid.NodeID]response) uint64 {
	freq := make(map[uint64]int, len(resp))
	var max uint64
	for _, r := range resp {
		freq[r.counter]++
		if r.counter > max {
			max = r.counter
		}
	}
	threshold := len(resp)/2 + 1
	for v, count := range freq {
		if count >= threshold {
			return v
		}
	}
	return max
}

// apply is spec §4.4 step 5.
func (c *Coordinator) apply(chosen uint64) error {
	if err := c.store.UpdateCounter(chosen); err != nil {
		return err
	}
	c.store.SetRecovering(false)
	return c.store.TransitionTo(store.IDLE)
}

// OnRecoveryRequest answers a peer's RECOVERY_REQUEST, implementing the
// "peers answering" rules at the end of spec §4.4: a node currently
// recovering must decline (send nothing — answering with a counter it
// does not itself trust would weaken the requester's majority).
func (c *Coordinator) OnRecoveryRequest(ctx context.Context, from fedid.NodeID, reqID fedid.RequestID) error {
	snap := c.store.Snapshot()
	if snap.Recovering {
		c.log.Debug("declining recovery request while recovering ourselves", "from", from.String())
		return nil
	}
	msg := message.Message{
		Type:          message.RECOVERY_RESPONSE,
		RequestID:     reqID,
		ProposedValue: message.Uint64Ptr(snap.Counter),
	}
	return c.bus.Send(ctx, from, msg)
}

// OnRecoveryResponse handles a RECOVERY_RESPONSE arriving through a
// Node's ordinary dispatch loop rather than this Coordinator's own
// round polling. That only happens for a stray or duplicate response
// to a round that has already finished (round polls the bus directly
// for the responses it is actively waiting on — see round), so there
// is nothing left to apply it to; it is logged and dropped.
func (c *Coordinator) OnRecoveryResponse(from fedid.NodeID, reqID fedid.RequestID, counter *uint64) {
	c.log.Debug("dropping unsolicited recovery response", "from", from.String(), "requestId", reqID.String(), "counter", counter)
}
