// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"

	"github.com/luxfi/fedcounter/utils/wrappers"
)

// ValidationError pairs a field with the constraint it violated,
// matching the shape of the teacher's config.ValidationError.
type ValidationError struct {
	Field      string
	Constraint string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Constraint)
}

// Validate checks Parameters against the configuration-failure rules of
// spec §3 and §7: knownNodes size < 3, empty nodeId, missing endpoint,
// and the node-count floor implied by Quorum's hard floor of 3. The
// endpoint check fails only when QueueEndpoint and QueueNamePrefix are
// both empty; an empty QueueEndpoint alone is accepted. Unlike
// the teacher's StrictMode/SoftMode validator, every violation here is
// fatal at startup (spec §7), so Validate returns as soon as it has
// collected them all via wrappers.Errs rather than distinguishing
// warnings from errors.
func (p Parameters) Validate() error {
	errs := wrappers.Errs{}

	if p.NodeID == "" {
		errs.Add(ErrEmptyNodeID)
	}
	if len(p.KnownNodes) < 3 {
		errs.Add(ErrTooFewKnownNodes)
	}
	if p.QueueEndpoint == "" && p.QueueNamePrefix == "" {
		errs.Add(ErrMissingEndpoint)
	}
	if p.MaxRecoveryAttempts < 1 {
		errs.Add(ErrMaxRecoveryTooLow)
	}
	if p.SendMaxRetries < 0 {
		errs.Add(ErrSendMaxRetriesNeg)
	}
	if p.PollMaxBatch < 1 {
		errs.Add(ErrPollMaxBatchTooLow)
	}

	seen := make(map[string]bool, len(p.KnownNodes))
	selfPresent := false
	for _, n := range p.KnownNodes {
		if seen[string(n)] {
			errs.Add(ErrDuplicateNode)
		}
		seen[string(n)] = true
		if n == p.NodeID {
			selfPresent = true
		}
	}
	if p.NodeID != "" && len(p.KnownNodes) > 0 && !selfPresent {
		errs.Add(ErrNodeNotInFederation)
	}

	return errs.Err()
}

// Quorum returns the minimum number of agreeing peers required to
// commit a proposal or complete recovery for this federation, per
// spec §3 ("floor(N/2)+1, with a hard floor of 3").
func (p Parameters) Quorum() int {
	n := len(p.KnownNodes)
	q := n/2 + 1
	if q < 3 {
		return 3
	}
	return q
}
