// Package pipeline composes the enhancement capabilities over arbitrary
// operations: per-operation config, weighted progress, optional sampling,
// size-aware resource publishing, and bounded error recovery.
//
// One invocation is a single sequential chain of suspension points; the
// generator and base operation may themselves block, the pipeline simply
// awaits them. Invocations for different sessions or operations may run
// concurrently; all shared state lives in the config registry and the
// resource store, both of which are safe for concurrent use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gambtho/container-assist/internal/config"
	"github.com/gambtho/container-assist/internal/metrics"
	"github.com/gambtho/container-assist/internal/ops"
	"github.com/gambtho/container-assist/internal/progress"
	"github.com/gambtho/container-assist/internal/recovery"
	"github.com/gambtho/container-assist/internal/resources"
	"github.com/gambtho/container-assist/internal/sampling"
	"github.com/gambtho/container-assist/pkg/contracts"
	"github.com/gambtho/container-assist/pkg/models"
)

// Wrapper enhances registered operations. All collaborators are injected
// at construction; the wrapper holds no global state.
type Wrapper struct {
	registry  *config.Registry
	ops       *ops.Registry
	publisher *resources.Publisher
	sink      contracts.ProgressSink
	sessions  contracts.SessionService
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures optional wrapper collaborators.
type Option func(*Wrapper)

// WithProgressSink attaches the external progress-notification channel.
func WithProgressSink(sink contracts.ProgressSink) Option {
	return func(w *Wrapper) { w.sink = sink }
}

// WithSessions attaches the session collaborator. Winning artifacts are
// recorded in workflow state when one is present.
func WithSessions(sessions contracts.SessionService) Option {
	return func(w *Wrapper) { w.sessions = sessions }
}

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wrapper) { w.metrics = m }
}

// NewWrapper creates the enhancement wrapper.
func NewWrapper(registry *config.Registry, opRegistry *ops.Registry, publisher *resources.Publisher, opts ...Option) *Wrapper {
	w := &Wrapper{
		registry:  registry,
		ops:       opRegistry,
		publisher: publisher,
		tracer:    otel.Tracer("container-assist/pipeline"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute runs one enhanced invocation:
//
//	Init → ConfigResolved → (Sampling)? → BaseExecuted → (Published)? →
//	Completed | Recovered | Failed
//
// Disabled features are no-ops. A failed base operation is caught exactly
// once, here: the recovery policy either produces a degraded result or
// the failure message (never the raw error object) goes to the caller.
func (w *Wrapper) Execute(ctx context.Context, req models.OperationRequest) *models.OperationResult {
	started := time.Now()

	ctx, span := w.tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(
			attribute.String("operation", req.Operation),
			attribute.String("session", req.SessionID),
		))
	defer span.End()

	reg, ok := w.ops.Get(req.Operation)
	if !ok {
		return w.fail(req, started, fmt.Sprintf("unknown operation %q", req.Operation))
	}

	cfg := w.registry.GetConfig(req.Operation)
	if !cfg.Enabled {
		return w.fail(req, started, fmt.Sprintf("operation %q is disabled", req.Operation))
	}

	// Progress start always precedes sampling and the base call. With
	// progress reporting off, the tracker still computes state but stays
	// silent (nil sink).
	sink := w.sink
	if !cfg.Features.ProgressReporting {
		sink = nil
	}
	tracker := progress.NewTracker(req.Operation, req.SessionID,
		progress.TemplateFor(reg.Operation.Category()), sink)
	tracker.ReportProgress(ctx, "resolve-context", 100, "configuration resolved")

	payload, ref, err := w.run(ctx, req, reg, cfg, tracker)
	if err != nil {
		recoverable := !errors.Is(err, models.ErrCancelled) && !isFatalClass(err)
		tracker.ReportError(ctx, err.Error(), recoverable)

		policy := recovery.NewPolicy(cfg.Limits.MaxRetries)
		if cfg.Features.ErrorRecovery && !errors.Is(err, models.ErrCancelled) && policy.CanRecover(err, 0) {
			result := policy.Recover(ctx, req, err, started)
			w.observe(req.Operation, "recovered", started)
			span.SetAttributes(attribute.String("outcome", "recovered"))
			return result
		}

		w.observe(req.Operation, "failed", started)
		span.SetAttributes(attribute.String("outcome", "failed"))
		return w.fail(req, started, err.Error())
	}

	// Publishing happened before this point; completion comes last.
	tracker.ReportComplete(ctx, fmt.Sprintf("%s completed", req.Operation))

	w.observe(req.Operation, "completed", started)
	span.SetAttributes(attribute.String("outcome", "completed"))

	return &models.OperationResult{
		Operation:  req.Operation,
		SessionID:  req.SessionID,
		Success:    true,
		Payload:    payload,
		Resource:   ref,
		DurationMs: time.Since(started).Milliseconds(),
	}
}

// run drives sampling, the base operation, and publishing. Any error it
// returns is handled once, in Execute.
func (w *Wrapper) run(ctx context.Context, req models.OperationRequest, reg ops.Registration, cfg models.OperationConfig, tracker *progress.Tracker) (map[string]any, *models.ResourceReference, error) {
	// Abort check before the first long-running point.
	if ctx.Err() != nil {
		return nil, nil, fmt.Errorf("%w: before candidate generation", models.ErrCancelled)
	}

	if cfg.Features.Sampling && reg.Generator != nil && cfg.Sampling != nil {
		winner, err := w.sample(ctx, req, reg, *cfg.Sampling, tracker)
		if err != nil {
			return nil, nil, err
		}
		if req.Params == nil {
			req.Params = make(map[string]any)
		}
		req.Params["selectedCandidate"] = winner.Content
		req.Params["candidateScore"] = winner.Score
	}

	// Abort check before the base operation.
	if ctx.Err() != nil {
		return nil, nil, fmt.Errorf("%w: before base operation", models.ErrCancelled)
	}

	// The operation reports its own template steps through the context
	// reporter; "finalize" is only reported here, afterwards, so the
	// operation's steps are never leapfrogged.
	opCtx := contracts.WithProgressReporter(ctx, tracker.ReportProgress)
	payload, err := reg.Operation.Execute(opCtx, req)
	if err != nil {
		return nil, nil, err
	}
	tracker.ReportProgress(ctx, "finalize", 80, "operation executed")

	ref, payload := w.maybePublish(ctx, req, cfg, payload)

	if w.sessions != nil && ref != nil {
		w.recordArtifact(ctx, req, ref.URI)
	}

	return payload, ref, nil
}

// sample generates, scores, and selects the winning candidate.
func (w *Wrapper) sample(ctx context.Context, req models.OperationRequest, reg ops.Registration, samplingCfg models.SamplingConfig, tracker *progress.Tracker) (sampling.ScoredCandidate[map[string]any], error) {
	var zero sampling.ScoredCandidate[map[string]any]

	scorer := reg.Scorer
	if scorer == nil {
		scorer = &sampling.MetadataScorer[map[string]any]{}
	}
	coordinator := sampling.NewCoordinator(reg.Generator, scorer)

	tracker.ReportProgress(ctx, "generate-candidates", 0, "generating candidates")
	candidates := coordinator.Generate(ctx, req, samplingCfg)
	if w.metrics != nil {
		w.metrics.CandidatesGenerated.Add(float64(len(candidates)))
	}
	if len(candidates) == 0 {
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%w: during candidate generation", models.ErrCancelled)
		}
		return zero, &models.GenerationFailure{Operation: req.Operation}
	}
	tracker.ReportProgress(ctx, "generate-candidates", 100,
		fmt.Sprintf("%d candidates generated", len(candidates)))

	tracker.ReportProgress(ctx, "score-candidates", 0, "scoring candidates")
	scored := coordinator.Score(ctx, candidates, samplingCfg.ScoringWeights)
	if w.metrics != nil && len(scored) < len(candidates) {
		w.metrics.CandidatesDropped.Add(float64(len(candidates) - len(scored)))
	}

	winner, err := sampling.SelectWinner(scored)
	if err != nil {
		return zero, err
	}
	tracker.ReportProgress(ctx, "score-candidates", 100,
		fmt.Sprintf("winner scored %.1f", winner.Score))

	log.Debug().
		Str("operation", req.Operation).
		Str("candidate", winner.ID).
		Float64("score", winner.Score).
		Msg("Sampling winner selected")
	return winner, nil
}

// maybePublish externalizes the payload when resource publishing is on
// and the serialized payload exceeds the inline threshold. Publish
// failures degrade to inline delivery; they never fail the invocation.
func (w *Wrapper) maybePublish(ctx context.Context, req models.OperationRequest, cfg models.OperationConfig, payload map[string]any) (*models.ResourceReference, map[string]any) {
	if !cfg.Features.ResourcePublishing || cfg.Resources == nil || payload == nil {
		return nil, payload
	}
	if resources.ShouldInline(payload, cfg.Resources.MaxInlineSize) {
		return nil, payload
	}

	mimeType, _ := payload["contentType"].(string)
	if mimeType == "" {
		mimeType = resources.MimeJSON
	}

	// Textual payloads externalize their body verbatim; everything else
	// serializes per the mime type.
	var data any = payload
	if body, ok := payload["content"].(string); ok && strings.HasPrefix(mimeType, "text/") {
		data = body
	}

	ref, err := w.publisher.Publish(ctx, req.SessionID, data, mimeType)
	if err != nil {
		log.Warn().
			Str("operation", req.Operation).
			Err(err).
			Msg("Resource publish failed, returning payload inline")
		return nil, payload
	}
	if w.metrics != nil {
		w.metrics.ResourcesPublished.Inc()
	}

	summary := map[string]any{
		"summary":  resources.DescribeContent(data),
		"resource": ref.URI,
	}
	return &ref, summary
}

// recordArtifact stores the published artifact URI in workflow state.
// Session persistence is a collaborator concern; failures here are
// logged, not fatal.
func (w *Wrapper) recordArtifact(ctx context.Context, req models.OperationRequest, uri string) {
	if extended, ok := w.sessions.(contracts.ExtendedSessionService); ok {
		_, err := extended.UpdateState(ctx, req.SessionID, func(state models.WorkflowState) models.WorkflowState {
			return state.WithArtifact(req.Operation, uri)
		})
		if err != nil {
			log.Warn().Str("session", req.SessionID).Err(err).Msg("Failed to record artifact in session")
		}
		return
	}

	state, err := w.sessions.GetState(ctx, req.SessionID)
	if err != nil {
		log.Warn().Str("session", req.SessionID).Err(err).Msg("Failed to load session state")
		return
	}
	if err := w.sessions.PutState(ctx, state.WithArtifact(req.Operation, uri)); err != nil {
		log.Warn().Str("session", req.SessionID).Err(err).Msg("Failed to record artifact in session")
	}
}

// Health derives the health report for an operation from its config.
func (w *Wrapper) Health(operation string) models.HealthReport {
	return w.registry.Health(operation)
}

func (w *Wrapper) fail(req models.OperationRequest, started time.Time, message string) *models.OperationResult {
	return &models.OperationResult{
		Operation:  req.Operation,
		SessionID:  req.SessionID,
		Success:    false,
		Error:      message,
		DurationMs: time.Since(started).Milliseconds(),
	}
}

func (w *Wrapper) observe(operation, outcome string, started time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	w.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func isFatalClass(err error) bool {
	var fatal *models.FatalOperationError
	return errors.As(err, &fatal)
}
