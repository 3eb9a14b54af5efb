// Package recovery classifies operation failures as recoverable or fatal
// and produces degraded-but-successful results for the recoverable ones.
//
// The policy is consulted once, after the base operation has already
// failed. It is not a retry loop: retries with backoff belong to the
// callers of network operations, not here.
package recovery

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// fatalPatterns identify permission-class and explicitly fatal failures
// by message. Matching is case-insensitive substring.
var fatalPatterns = []string{
	"permission denied",
	"access denied",
	"unauthorized",
	"forbidden",
	"invalid credentials",
	"fatal",
}

// Policy decides whether a failure is recoverable and builds the degraded
// result when it is.
type Policy struct {
	maxRetries int
}

// NewPolicy creates a recovery policy. maxRetries bounds how many times a
// single invocation may be recovered; 0 disables recovery entirely.
func NewPolicy(maxRetries int) *Policy {
	return &Policy{maxRetries: maxRetries}
}

// CanRecover reports whether the error is recoverable given how many
// recovery attempts this invocation has already consumed. A fatal or
// permission-class error is never recoverable.
func (p *Policy) CanRecover(err error, attempts int) bool {
	if err == nil {
		return false
	}
	if attempts >= p.maxRetries {
		return false
	}
	return !isFatal(err)
}

// Classify wraps the error as recoverable or fatal for the given
// operation, preserving the cause.
func (p *Policy) Classify(operation string, err error) error {
	if isFatal(err) {
		return &models.FatalOperationError{Operation: operation, Cause: err}
	}
	return &models.RecoverableOperationError{Operation: operation, Cause: err}
}

// Recover produces a degraded success result for a recoverable failure.
// The payload is clearly marked recovered and carries the failure message
// so callers can surface it.
func (p *Policy) Recover(_ context.Context, req models.OperationRequest, err error, startedAt time.Time) *models.OperationResult {
	log.Warn().
		Str("operation", req.Operation).
		Str("session", req.SessionID).
		Err(err).
		Msg("Recovering from operation failure with degraded result")

	return &models.OperationResult{
		Operation: req.Operation,
		SessionID: req.SessionID,
		Success:   true,
		Recovered: true,
		Payload: map[string]any{
			"recovered": true,
			"degraded":  true,
			"failure":   err.Error(),
		},
		DurationMs: time.Since(startedAt).Milliseconds(),
	}
}

func isFatal(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
