// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"github.com/luxfi/log"
)

// NewNoOpLogger returns a logger that doesn't log anything. Used by the
// CLI commands and tests in place of a configured logger wherever log
// output would only add noise (spec's ambient stack carries structured
// logging, but a discarded sink is still the right default for a
// simulator or unit test).
func NewNoOpLogger() log.Logger {
	return log.NewNoOpLogger()
}
