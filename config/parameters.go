// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the enumerated configuration of spec §6, in the
// same Parameters-struct-plus-presets-plus-Validator shape the teacher
// uses in config/parameters.go, config/presets.go and config/validator.go.
package config

import (
	"time"

	"github.com/luxfi/fedcounter/fedid"
)

// Parameters is the federation's runtime configuration (spec §6).
type Parameters struct {
	NodeID          fedid.NodeID
	KnownNodes      []fedid.NodeID
	QueueEndpoint   string
	QueueNamePrefix string

	ProposalTimeout time.Duration

	RecoveryTimeout       time.Duration
	RecoveryRetryInterval time.Duration
	MaxRecoveryAttempts   int

	SendMaxRetries  int
	SendBaseBackoff time.Duration

	PollMaxBatch int
	PollWait     time.Duration

	LogLevel string
}

// Defaults returns the default Parameters from spec §6, with NodeID,
// KnownNodes and QueueEndpoint left for the caller to fill in (they
// have no sane defaults).
func Defaults() Parameters {
	return Parameters{
		QueueNamePrefix:       "consensus",
		ProposalTimeout:       60 * time.Second,
		RecoveryTimeout:       10 * time.Second,
		RecoveryRetryInterval: 30 * time.Second,
		MaxRecoveryAttempts:   3,
		SendMaxRetries:        3,
		SendBaseBackoff:       100 * time.Millisecond,
		PollMaxBatch:          10,
		PollWait:              20 * time.Second,
		LogLevel:              "info",
	}
}

// Local returns defaults tuned for fast local development/testing: a
// five-node federation of n1..n5 with short timeouts, mirroring the
// teacher's config.Local() preset.
func Local() Parameters {
	p := Defaults()
	p.KnownNodes = []fedid.NodeID{"n1", "n2", "n3", "n4", "n5"}
	p.ProposalTimeout = 5 * time.Second
	p.RecoveryTimeout = 2 * time.Second
	p.RecoveryRetryInterval = 3 * time.Second
	return p
}
