// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package node is the Consensus Coordinator (spec §4.5): the component
// that drives one federation member's participation in the
// PROPOSE/VOTE/COMMIT protocol, wiring the Message Bus Adapter, the
// State Store, the Vote Tally and the Recovery Coordinator together.
package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luxfi/fedcounter/config"
	"github.com/luxfi/fedcounter/fedid"
	"github.com/luxfi/fedcounter/message"
	"github.com/luxfi/fedcounter/metrics"
	"github.com/luxfi/fedcounter/recovery"
	"github.com/luxfi/fedcounter/store"
	"github.com/luxfi/fedcounter/tally"
	"github.com/luxfi/fedcounter/transport"
	"github.com/luxfi/log"
)

// ErrBusy is returned by OnIncrementRequest when the node cannot
// accept a new increment trigger because it already has a proposal in
// flight or is recovering (spec §4.5, "ack|busy entry point").
var ErrBusy = errors.New("node: a proposal is already in flight or recovery is in progress")

// proposalRound tracks the proposer-side bookkeeping for one in-flight
// proposal: its id, the value proposed and the deadline timer. The Vote
// Tally's quorum check takes n from the configured KnownNodes.
type proposalRound struct {
	id       fedid.ProposalID
	value    uint64
	deadline *time.Timer
}

// Node wires the Message Bus Adapter, State Store, Vote Tally and
// Recovery Coordinator into the per-member consensus engine of spec
// §4.5. All exported entry points are safe for concurrent use; the
// Store's own lock discipline serializes the state they read and
// write.
type Node struct {
	params  config.Parameters
	store   *store.Store
	bus     transport.Bus
	rec     *recovery.Coordinator
	log     log.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	round  *proposalRound
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New constructs a Node. Call Run to start it; Run blocks until ctx is
// canceled.
func New(params config.Parameters, logger log.Logger) (*Node, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	st := store.New(params.NodeID, params.KnownNodes, logger)
	return &Node{
		params: params,
		store:  st,
		log:    logger,
	}, nil
}

// AttachBus wires the transport the node uses once constructed by the
// caller (zmq or in-process), keeping Node ignorant of which concrete
// Bus implementation it's given (spec §4.1).
func (n *Node) AttachBus(bus transport.Bus) {
	n.bus = bus
	n.rec = recovery.New(n.store, bus, n.params, n.log)
	if n.metrics != nil {
		n.rec.AttachMetrics(n.metrics)
	}
}

// AttachMetrics wires a Metrics instance the node, and its Recovery
// Coordinator once attached, report proposal/vote/recovery counters
// to. Optional: a Node with no Metrics attached simply skips the
// increments. Safe to call before or after AttachBus.
func (n *Node) AttachMetrics(m *metrics.Metrics) {
	n.metrics = m
	if n.rec != nil {
		n.rec.AttachMetrics(m)
	}
}

// Store exposes the node's State Store for read-only inspection (e.g.
// by a CLI status command or tests).
func (n *Node) Store() *store.Store { return n.store }

// Run performs startup recovery (spec §4.4 step 0: "every node runs
// recovery once at startup before accepting proposer or voter duties")
// and then runs the inbound dispatcher loop until ctx is canceled. It
// is Recover followed by Serve; call them separately when a caller
// needs to observe or retry recovery on its own (e.g. the CLI's
// status reporting, or a test harness that starts peers live before
// the node under test attempts to recover from them).
func (n *Node) Run(ctx context.Context) error {
	if n.bus == nil {
		return errors.New("node: AttachBus must be called before Run")
	}
	if err := n.Recover(ctx); err != nil {
		n.log.Warn("startup recovery did not complete", "err", err)
	}
	return n.Serve(ctx)
}

// Recover runs the Recovery Coordinator once (spec §4.4 step 0).
func (n *Node) Recover(ctx context.Context) error {
	return n.rec.Run(ctx)
}

// Serve runs the inbound dispatcher loop until ctx is canceled,
// without first running recovery. Safe to call directly by a caller
// that has already recovered (or never needed to).
func (n *Node) Serve(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	n.dispatchLoop(runCtx)
	n.wg.Wait()
	return runCtx.Err()
}

// Shutdown cancels the dispatcher loop and waits for in-flight
// handlers to finish (spec §5: "the outbound pool has drained").
func (n *Node) Shutdown() {
	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	n.wg.Wait()
}

// dispatchLoop is the inbound dispatcher task of spec §5: it polls the
// bus and hands each message to OnMessage on its own goroutine from a
// bounded pool, so that one slow peer's handling never blocks delivery
// to another.
func (n *Node) dispatchLoop(ctx context.Context) {
	const workers = 4
	msgs := make(chan message.InboundMessage, 64)

	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case im, ok := <-msgs:
					if !ok {
						return
					}
					if err := n.OnMessage(ctx, im.Payload); err != nil {
						n.log.Warn("message handling failed", "type", im.Payload.Type.String(), "err", err)
					}
					if err := n.bus.Ack(ctx, im.DeliveryToken); err != nil {
						n.log.Warn("ack failed", "err", err)
					}
				}
			}
		}()
	}
	defer close(msgs)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		batch, err := n.bus.Poll(ctx, n.params.PollMaxBatch, n.params.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.log.Warn("poll failed", "err", err)
			continue
		}
		for _, im := range batch {
			select {
			case msgs <- im:
			case <-ctx.Done():
				return
			}
		}
	}
}

// OnIncrementRequest is the external trigger entry point (spec §4.5):
// it either starts a new proposal round and returns nil ("ack"), or
// returns ErrBusy if one is already in flight or recovery is running.
func (n *Node) OnIncrementRequest(ctx context.Context) error {
	snap := n.store.Snapshot()
	if snap.Recovering {
		return ErrBusy
	}

	n.mu.Lock()
	if n.round != nil {
		n.mu.Unlock()
		return ErrBusy
	}
	if err := n.store.TransitionTo(store.PROPOSING); err != nil {
		n.mu.Unlock()
		return ErrBusy
	}
	proposalID := fedid.NewProposalID()
	proposedValue := snap.Counter + 1
	if err := n.store.BeginProposal(proposalID); err != nil {
		n.mu.Unlock()
		return err
	}
	round := &proposalRound{id: proposalID, value: proposedValue}
	round.deadline = time.AfterFunc(n.params.ProposalTimeout, func() {
		n.onProposalTimeout(ctx, proposalID)
	})
	n.round = round
	n.mu.Unlock()
	if n.metrics != nil {
		n.metrics.ProposalsStarted.Inc()
	}

	msg := message.Message{
		Type:          message.PROPOSE,
		SourceNodeID:  n.params.NodeID,
		ProposalID:    proposalID,
		ProposedValue: message.Uint64Ptr(proposedValue),
	}
	n.bus.Broadcast(ctx, msg)
	return nil
}

// onProposalTimeout implements spec §9 Q4's resolution: this
// implementation relies solely on the proposal deadline to abandon a
// stalled round, rather than broadcasting an ABORT message, because a
// deadline (this one on the proposer, the one armed in onPropose on each
// accepting voter) is self-enforcing on every peer without requiring delivery
// of one more message that could itself be lost. See DESIGN.md.
func (n *Node) onProposalTimeout(ctx context.Context, proposalID fedid.ProposalID) {
	n.mu.Lock()
	if n.round == nil || n.round.id != proposalID {
		n.mu.Unlock()
		return
	}
	n.round = nil
	n.mu.Unlock()

	n.log.Warn("proposal timed out without quorum", "proposalId", proposalID.String())
	if n.metrics != nil {
		n.metrics.ProposalsTimedOut.Inc()
	}
	_ = n.store.TransitionTo(store.IDLE)
}

// OnMessage dispatches one inbound protocol message to its handler
// (spec §4.5). It has one case for every message.Type; a type with no
// case falls to the default branch and is dropped. The Go compiler does
// not check this switch for exhaustiveness, so a new message kind needs
// a new case added here by hand.
func (n *Node) OnMessage(ctx context.Context, msg message.Message) error {
	switch msg.Type {
	case message.PROPOSE:
		return n.onPropose(ctx, msg)
	case message.VOTE:
		return n.onVote(ctx, msg)
	case message.COMMIT:
		return n.onCommit(msg)
	case message.ABORT:
		return n.onAbort(msg)
	case message.RECOVERY_REQUEST:
		return n.rec.OnRecoveryRequest(ctx, msg.SourceNodeID, msg.RequestID)
	case message.RECOVERY_RESPONSE:
		n.rec.OnRecoveryResponse(msg.SourceNodeID, msg.RequestID, msg.ProposedValue)
		return nil
	case message.INCREMENT_REQUEST:
		return n.OnIncrementRequest(ctx)
	default:
		return nil
	}
}

// onPropose is the voter-side handling of a PROPOSE (spec §4.5): a
// node votes accept if the proposed value is exactly one more than its
// own counter and it isn't itself mid-proposal or recovering; reject
// otherwise, always echoing the proposal id. An accepting voter that
// enters VOTING arms the proposal deadline and returns to IDLE if it is
// still voting on that proposal when the deadline fires.
func (n *Node) onPropose(ctx context.Context, msg message.Message) error {
	snap := n.store.Snapshot()
	accept := true
	reason := ""
	switch {
	case snap.Recovering:
		accept, reason = false, "recovering"
	case msg.ProposedValue == nil:
		accept, reason = false, "missing proposed value"
	case *msg.ProposedValue != snap.Counter+1:
		accept, reason = false, "proposed value is not counter+1"
	case (snap.ConsensusState == store.PROPOSING || snap.ConsensusState == store.VOTING) && snap.CurrentProposalID != msg.ProposalID:
		accept, reason = false, "already committed to a different in-flight proposal"
	}

	if accept {
		if err := n.store.TransitionTo(store.VOTING); err == nil {
			_ = n.store.BeginProposal(msg.ProposalID)
			proposalID := msg.ProposalID
			time.AfterFunc(n.params.ProposalTimeout, func() {
				cur := n.store.Snapshot()
				if cur.ConsensusState == store.VOTING && cur.CurrentProposalID == proposalID {
					_ = n.store.TransitionTo(store.IDLE)
				}
			})
		} else if !errors.Is(err, store.ErrInvalidTransition) {
			return err
		}
	}

	if n.metrics != nil {
		n.metrics.VotesCast.WithLabelValues(boolLabel(accept)).Inc()
	}

	reply := message.Message{
		Type:         message.VOTE,
		SourceNodeID: n.params.NodeID,
		ProposalID:   msg.ProposalID,
		Accept:       message.BoolPtr(accept),
		Reason:       reason,
	}
	return n.bus.Send(ctx, msg.SourceNodeID, reply)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// onVote is the proposer-side handling of a VOTE (spec §4.5): record
// the vote, tally, and act on COMMIT/ABORT/WAIT.
func (n *Node) onVote(ctx context.Context, msg message.Message) error {
	n.mu.Lock()
	round := n.round
	n.mu.Unlock()
	if round == nil || round.id != msg.ProposalID || msg.Accept == nil {
		return nil
	}

	if _, err := n.store.RecordVote(msg.SourceNodeID, store.Vote{
		VoterNodeID: msg.SourceNodeID,
		ProposalID:  msg.ProposalID,
		Accept:      *msg.Accept,
		Timestamp:   time.Now(),
		Reason:      msg.Reason,
	}); err != nil {
		return nil
	}

	snap := n.store.Snapshot()
	decision := tally.DecideFromVotes(snap.ReceivedVotes, len(n.params.KnownNodes))
	switch decision {
	case tally.COMMIT:
		return n.commitRound(ctx, round)
	case tally.ABORT:
		n.abortRound(round, "quorum rejected")
	}
	return nil
}

// commitRound implements spec §4.5's commit path: move to COMMITTING,
// persist the new counter, broadcast COMMIT, then return to IDLE.
func (n *Node) commitRound(ctx context.Context, round *proposalRound) error {
	n.mu.Lock()
	if n.round == nil || n.round.id != round.id {
		n.mu.Unlock()
		return nil
	}
	n.round.deadline.Stop()
	n.round = nil
	n.mu.Unlock()

	if err := n.store.TransitionTo(store.COMMITTING); err != nil {
		return err
	}
	if err := n.store.UpdateCounter(round.value); err != nil {
		return err
	}
	if n.metrics != nil {
		n.metrics.ProposalsCommitted.Inc()
	}

	msg := message.Message{
		Type:          message.COMMIT,
		SourceNodeID:  n.params.NodeID,
		ProposalID:    round.id,
		ProposedValue: message.Uint64Ptr(round.value),
	}
	n.bus.Broadcast(ctx, msg)
	return n.store.TransitionTo(store.IDLE)
}

// abortRound returns the proposer to IDLE without updating the
// counter (spec §4.5's abort path).
func (n *Node) abortRound(round *proposalRound, reason string) {
	n.mu.Lock()
	if n.round != nil && n.round.id == round.id {
		n.round.deadline.Stop()
		n.round = nil
	}
	n.mu.Unlock()
	n.log.Debug("proposal aborted", "proposalId", round.id.String(), "reason", reason)
	if n.metrics != nil {
		n.metrics.ProposalsAborted.Inc()
	}
	_ = n.store.TransitionTo(store.IDLE)
}

// onCommit is a voter's handling of a peer's COMMIT broadcast (spec
// §4.5): apply the counter value the proposer committed and return to
// IDLE, idempotently — a duplicate COMMIT for a value already applied
// is accepted silently (at-least-once delivery, spec §4.1).
func (n *Node) onCommit(msg message.Message) error {
	if msg.ProposedValue == nil {
		return nil
	}
	snap := n.store.Snapshot()
	if snap.CurrentProposalID != msg.ProposalID {
		// Not the proposal this node is tracking (possibly a retried
		// or duplicate delivery after it already moved on, or for a
		// proposal it never saw a PROPOSE for); apply the value
		// defensively only if it actually advances the counter, per
		// spec §4.5 ("COMMIT with value <= counter is dropped").
		if *msg.ProposedValue <= snap.Counter {
			return nil
		}
	}
	if err := n.store.TransitionTo(store.COMMITTING); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		return err
	}
	if err := n.store.UpdateCounter(*msg.ProposedValue); err != nil {
		return err
	}
	if err := n.store.TransitionTo(store.IDLE); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) && n.store.Snapshot().ConsensusState == store.IDLE {
			return nil
		}
		return err
	}
	return nil
}

// onAbort is a voter's handling of a peer's ABORT broadcast. This
// implementation never sends ABORT itself (see onProposalTimeout) but
// still honors one from a differently-configured peer, returning
// itself to IDLE if it was tracking that proposal.
func (n *Node) onAbort(msg message.Message) error {
	snap := n.store.Snapshot()
	if snap.CurrentProposalID != msg.ProposalID {
		return nil
	}
	return n.store.TransitionTo(store.IDLE)
}
