// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the federation's Prometheus counters, built
// the same thin Registerer-wrapping way the teacher's metrics.Metrics
// does, specialized to the counters spec §9's Design Notes call out as
// useful operational signal: proposals, votes, commits, aborts,
// recovery attempts and transport retries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter fedcounter reports, registered against a
// single prometheus.Registerer supplied by the caller (typically the
// CLI's own registry, or prometheus.DefaultRegisterer).
type Metrics struct {
	Registry prometheus.Registerer

	ProposalsStarted   prometheus.Counter
	ProposalsCommitted prometheus.Counter
	ProposalsAborted   prometheus.Counter
	ProposalsTimedOut  prometheus.Counter
	VotesCast          *prometheus.CounterVec
	RecoveryAttempts   prometheus.Counter
	RecoveryFailures   prometheus.Counter
	TransportRetries   prometheus.Counter
}

// NewMetrics creates and registers the federation's counters against
// reg. Registration failures are possible only when the same node
// process constructs two Metrics against the same registry, which is
// a caller bug; NewMetrics panics rather than silently losing observability,
// matching the teacher's fail-fast posture for metrics setup.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		ProposalsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "proposals_started_total",
			Help:      "Number of increment proposals this node has initiated as proposer.",
		}),
		ProposalsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "proposals_committed_total",
			Help:      "Number of proposals this node committed as proposer.",
		}),
		ProposalsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "proposals_aborted_total",
			Help:      "Number of proposals this node aborted as proposer.",
		}),
		ProposalsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "proposals_timed_out_total",
			Help:      "Number of proposals abandoned by deadline without reaching quorum.",
		}),
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "votes_cast_total",
			Help:      "Number of VOTE messages this node sent, partitioned by accept/reject.",
		}, []string{"accept"}),
		RecoveryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "recovery_attempts_total",
			Help:      "Number of recovery rounds this node has run since process start.",
		}),
		RecoveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "recovery_failures_total",
			Help:      "Number of recovery rounds that exhausted all attempts without a quorum.",
		}),
		TransportRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedcounter",
			Name:      "transport_retries_total",
			Help:      "Number of Send retries performed by the message bus adapter.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ProposalsStarted,
		m.ProposalsCommitted,
		m.ProposalsAborted,
		m.ProposalsTimedOut,
		m.VotesCast,
		m.RecoveryAttempts,
		m.RecoveryFailures,
		m.TransportRetries,
	} {
		if err := m.Register(c); err != nil {
			panic(err)
		}
	}
	return m
}

// Register registers a single prometheus collector against m's registry.
func (m *Metrics) Register(collector prometheus.Collector) error {
	return m.Registry.Register(collector)
}
