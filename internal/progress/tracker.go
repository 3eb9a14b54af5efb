// Package progress accumulates weighted completion across a predefined
// sequence of named steps and reports point-in-time progress, completion,
// and error events to an optional notification sink.
package progress

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/contracts"
	"github.com/gambtho/container-assist/pkg/models"
)

// Step is one entry of a progress template.
type Step struct {
	Name        string
	Weight      float64
	Description string
}

// Tracker tracks one operation invocation. It is owned exclusively by
// that invocation and discarded when the invocation ends; it is not safe
// for concurrent use across invocations.
//
// Overall progress is Σ(weight of fully completed steps) plus the current
// step's weight scaled by its percentage, normalized by the total weight.
// With no steps defined, overall progress equals the reported percentage.
type Tracker struct {
	steps       []Step
	totalWeight float64
	sink        contracts.ProgressSink
	state       models.ProgressState
	currentIdx  int     // index into steps, -1 before the first templated step
	frozen      float64 // partial weight of a template step interrupted by an ad-hoc step
	adhocWeight bool
}

// NewTracker creates a tracker for the given step template. An empty
// template gives untracked ad hoc progress. sink may be nil, in which
// case events are only reflected in the local state.
func NewTracker(operation, sessionID string, steps []Step, sink contracts.ProgressSink) *Tracker {
	total := 0.0
	for _, s := range steps {
		total += s.Weight
	}
	return &Tracker{
		steps:       steps,
		totalWeight: total,
		sink:        sink,
		currentIdx:  -1,
		state: models.ProgressState{
			OperationName: operation,
			SessionID:     sessionID,
			TotalSteps:    len(steps),
			StartTime:     time.Now().UTC(),
			Subtasks:      make(map[string]float64),
		},
	}
}

// ReportProgress records progress on a step. The percentage is clamped to
// [0, 100]. A step name not in the template is treated as an ad-hoc
// unweighted step: it shows as the current step but contributes no weight.
func (t *Tracker) ReportProgress(ctx context.Context, step string, percentage float64, message string) {
	percentage = clampPct(percentage)

	if step != t.state.CurrentStep {
		if idx := t.findStep(step); idx >= 0 {
			t.currentIdx = idx
			t.state.CompletedSteps = idx
			t.frozen = 0
			t.adhocWeight = false
		} else {
			// An ad-hoc step keeps the weighted credit accumulated so
			// far, including the partial share of an interrupted template
			// step, so overall progress never moves backwards.
			if t.currentIdx >= 0 && !t.adhocWeight {
				if t.state.CurrentStepProgress >= 100 {
					t.currentIdx++
					t.state.CompletedSteps = t.currentIdx
				} else {
					t.frozen = t.steps[t.currentIdx].Weight * t.state.CurrentStepProgress / 100
				}
			}
			t.adhocWeight = true
		}
		t.state.CurrentStep = step
	}
	t.state.CurrentStepProgress = percentage
	t.recomputeOverall()
	t.estimateCompletion()

	t.notify(ctx, models.ProgressEvent{
		Type:      models.ProgressEventUpdate,
		Operation: t.state.OperationName,
		SessionID: t.state.SessionID,
		Step:      step,
		Progress:  t.state.OverallProgress,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// ReportComplete forces overall progress to 100 and clears the current step.
func (t *Tracker) ReportComplete(ctx context.Context, summary string) {
	t.state.OverallProgress = 100
	t.state.CompletedSteps = t.state.TotalSteps
	t.state.CurrentStep = ""
	t.state.CurrentStepProgress = 0

	t.notify(ctx, models.ProgressEvent{
		Type:      models.ProgressEventComplete,
		Operation: t.state.OperationName,
		SessionID: t.state.SessionID,
		Progress:  100,
		Message:   summary,
		Timestamp: time.Now().UTC(),
	})
}

// ReportError emits an error event. It does not alter overall progress.
func (t *Tracker) ReportError(ctx context.Context, message string, recoverable bool) {
	t.notify(ctx, models.ProgressEvent{
		Type:        models.ProgressEventError,
		Operation:   t.state.OperationName,
		SessionID:   t.state.SessionID,
		Step:        t.state.CurrentStep,
		Progress:    t.state.OverallProgress,
		Message:     message,
		Recoverable: recoverable,
		Timestamp:   time.Now().UTC(),
	})
}

// ReportSubtask records a named subtask's progress in a side map. It
// exists purely for diagnostic granularity and does not affect the main
// calculation.
func (t *Tracker) ReportSubtask(name string, percentage float64) {
	t.state.Subtasks[name] = clampPct(percentage)
}

// State returns a snapshot of the current progress state.
func (t *Tracker) State() models.ProgressState {
	snap := t.state
	snap.Subtasks = make(map[string]float64, len(t.state.Subtasks))
	for k, v := range t.state.Subtasks {
		snap.Subtasks[k] = v
	}
	return snap
}

// ── Internals ───────────────────────────────────────────────

func (t *Tracker) findStep(name string) int {
	for i, s := range t.steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (t *Tracker) recomputeOverall() {
	if t.totalWeight == 0 {
		// No template: overall equals the single reported percentage.
		t.state.OverallProgress = t.state.CurrentStepProgress
		return
	}

	completed := t.frozen
	for i := 0; i < t.currentIdx && i < len(t.steps); i++ {
		completed += t.steps[i].Weight
	}
	current := 0.0
	if t.currentIdx >= 0 && !t.adhocWeight {
		current = t.steps[t.currentIdx].Weight * t.state.CurrentStepProgress / 100
	}
	t.state.OverallProgress = (completed + current) / t.totalWeight * 100
}

func (t *Tracker) estimateCompletion() {
	if t.state.OverallProgress <= 0 || t.state.OverallProgress >= 100 {
		t.state.EstimatedCompletion = nil
		return
	}
	elapsed := time.Since(t.state.StartTime)
	remaining := time.Duration(float64(elapsed) * (100 - t.state.OverallProgress) / t.state.OverallProgress)
	eta := time.Now().UTC().Add(remaining)
	t.state.EstimatedCompletion = &eta
}

// notify delivers the event best-effort: sink failures are logged and
// swallowed, never propagated.
func (t *Tracker) notify(ctx context.Context, event models.ProgressEvent) {
	if t.sink == nil {
		return
	}
	if err := t.sink.Notify(ctx, event); err != nil {
		log.Warn().
			Str("operation", event.Operation).
			Str("type", string(event.Type)).
			Err(err).
			Msg("Progress notification failed")
	}
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
