// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

// Configuration-failure sentinel errors (spec §7: "fatal at startup").
var (
	ErrEmptyNodeID        = errors.New("config: nodeId must not be empty")
	ErrTooFewKnownNodes   = errors.New("config: knownNodes must contain at least 3 members")
	ErrNodeNotInFederation = errors.New("config: nodeId must be a member of knownNodes")
	ErrDuplicateNode      = errors.New("config: knownNodes contains a duplicate node id")
	ErrMissingEndpoint    = errors.New("config: queueEndpoint must not be empty")
	ErrMaxRecoveryTooLow  = errors.New("config: maxRecoveryAttempts must be at least 1")
	ErrSendMaxRetriesNeg  = errors.New("config: sendMaxRetries must not be negative")
	ErrPollMaxBatchTooLow = errors.New("config: pollMaxBatch must be at least 1")
)
