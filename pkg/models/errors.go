package models

import (
	"errors"
	"fmt"
)

// ── Validation Errors ───────────────────────────────────────

// ConfigValidationError reports one or more schema violations from a
// configuration update. It is returned as a value, never thrown; the
// previously cached configuration stays in effect.
type ConfigValidationError struct {
	Operation string
	Issues    []string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid config for %s: %s", e.Operation, joinIssues(e.Issues))
}

func joinIssues(issues []string) string {
	out := ""
	for i, issue := range issues {
		if i > 0 {
			out += "; "
		}
		out += issue
	}
	return out
}

// ── Resource Errors ─────────────────────────────────────────

// ResourceTooLargeError is returned when a serialized payload exceeds the
// operation's maxResourceSizeMB limit. Nothing is stored.
type ResourceTooLargeError struct {
	Size  int
	Limit int
}

func (e *ResourceTooLargeError) Error() string {
	return fmt.Sprintf("resource of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// UnsupportedMimeTypeError is returned for a malformed or empty mime type.
type UnsupportedMimeTypeError struct {
	MimeType string
}

func (e *UnsupportedMimeTypeError) Error() string {
	return fmt.Sprintf("unsupported mime type %q", e.MimeType)
}

// InvalidTTLError is returned when an explicit TTL falls outside the
// configured bounds.
type InvalidTTLError struct {
	TTLSeconds int
	Min        int
	Max        int
}

func (e *InvalidTTLError) Error() string {
	return fmt.Sprintf("ttl %ds outside allowed range [%ds, %ds]", e.TTLSeconds, e.Min, e.Max)
}

// InvalidURIError is returned for a URI that does not match the resource
// URI scheme.
type InvalidURIError struct {
	URI    string
	Reason string
}

func (e *InvalidURIError) Error() string {
	return fmt.Sprintf("invalid resource uri %q: %s", e.URI, e.Reason)
}

// ── Sampling Errors ─────────────────────────────────────────

// ErrNoCandidates is returned when a winner is requested from an empty
// candidate list. Always fatal to the sampling step.
var ErrNoCandidates = errors.New("no candidates to select a winner from")

// GenerationFailure reports that the generator failed or produced zero
// valid candidates. It is not automatically fatal; the pipeline decides.
type GenerationFailure struct {
	Operation string
	Cause     string
}

func (e *GenerationFailure) Error() string {
	if e.Cause == "" {
		return fmt.Sprintf("%s: generator produced no valid candidates", e.Operation)
	}
	return fmt.Sprintf("%s: candidate generation failed: %s", e.Operation, e.Cause)
}

// ── Operation Errors ────────────────────────────────────────

// RecoverableOperationError marks a base-operation failure the recovery
// policy classified as recoverable.
type RecoverableOperationError struct {
	Operation string
	Cause     error
}

func (e *RecoverableOperationError) Error() string {
	return fmt.Sprintf("%s failed (recoverable): %v", e.Operation, e.Cause)
}

func (e *RecoverableOperationError) Unwrap() error { return e.Cause }

// FatalOperationError marks a base-operation failure that must not be
// recovered from (permission-class or explicitly fatal).
type FatalOperationError struct {
	Operation string
	Cause     error
}

func (e *FatalOperationError) Error() string {
	return fmt.Sprintf("%s failed (fatal): %v", e.Operation, e.Cause)
}

func (e *FatalOperationError) Unwrap() error { return e.Cause }

// ErrCancelled is returned when an invocation observes its abort signal.
var ErrCancelled = errors.New("operation cancelled")

// ── Not Found ───────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
