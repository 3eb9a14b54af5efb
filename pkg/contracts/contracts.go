// Package contracts defines the collaborator interfaces for the
// enhancement pipeline.
//
// The pipeline wraps domain operations (repository analysis, recipe
// generation, image build, scan, deploy) but never implements them; it
// only depends on the contracts below. The embedding application
// constructs concrete collaborators once and passes them in explicitly;
// there is no global registry or singleton accessor.
package contracts

import (
	"context"

	"github.com/gambtho/container-assist/pkg/models"
)

// ── Operations ──────────────────────────────────────────────

// Operation is a wrappable domain operation. Execute may block; it must
// honor ctx cancellation. Failures are returned as errors and are caught
// exactly once, at the pipeline boundary.
type Operation interface {
	// Name returns the operation name (e.g. "generate-recipe").
	Name() string

	// Category returns the operation's category, which selects its
	// configuration defaults and progress step template.
	Category() models.OperationCategory

	// Execute runs the operation and returns its result payload.
	Execute(ctx context.Context, req models.OperationRequest) (map[string]any, error)
}

// ── Progress Notification ───────────────────────────────────

// ProgressSink receives progress events. Delivery is best-effort: the
// tracker logs and swallows sink errors, it never propagates them.
type ProgressSink interface {
	Notify(ctx context.Context, event models.ProgressEvent) error
}

// ProgressSinkFunc adapts a function to the ProgressSink interface.
type ProgressSinkFunc func(ctx context.Context, event models.ProgressEvent) error

func (f ProgressSinkFunc) Notify(ctx context.Context, event models.ProgressEvent) error {
	return f(ctx, event)
}

// ProgressReporter reports step progress from inside an operation. The
// pipeline installs one on the request context for the duration of the
// base call; steps named after the category's template contribute their
// configured weight, unknown steps are tracked unweighted.
type ProgressReporter func(ctx context.Context, step string, percentage float64, message string)

type reporterKey struct{}

// WithProgressReporter returns a context carrying the reporter.
func WithProgressReporter(ctx context.Context, r ProgressReporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

// ReporterFrom extracts the reporter from ctx. The result is never nil;
// without an installed reporter it is a no-op.
func ReporterFrom(ctx context.Context) ProgressReporter {
	if r, ok := ctx.Value(reporterKey{}).(ProgressReporter); ok {
		return r
	}
	return func(context.Context, string, float64, string) {}
}

// ── Session Services ────────────────────────────────────────

// SessionService is the basic session collaborator: load and
// compare-and-swap workflow state. Implementations must reject an update
// whose Version does not match the stored Version+1.
type SessionService interface {
	GetState(ctx context.Context, sessionID string) (models.WorkflowState, error)
	PutState(ctx context.Context, state models.WorkflowState) error
}

// ExtendedSessionService adds atomic read-modify-write on top of the
// basic service. Callers that need multi-field updates should prefer
// UpdateState over a manual get/put cycle.
//
// Capability is resolved once at construction time with a checked type
// assertion, never by probing for methods at call sites.
type ExtendedSessionService interface {
	SessionService

	// UpdateState applies fn to the current state and persists the result
	// atomically, retrying on version conflicts.
	UpdateState(ctx context.Context, sessionID string, fn func(models.WorkflowState) models.WorkflowState) (models.WorkflowState, error)

	// DeleteState removes a session's workflow state.
	DeleteState(ctx context.Context, sessionID string) error
}
