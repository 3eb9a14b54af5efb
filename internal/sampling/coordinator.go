// Package sampling implements multi-candidate generation, weighted
// scoring, and winner selection over a pluggable generator and scorer.
//
// Generator and scorer failures never propagate as errors: they degrade
// to an empty or partial candidate list, and the orchestrating pipeline
// decides whether that is fatal.
package sampling

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// DefaultMetricWeight applies to any metric absent from the weight map.
const DefaultMetricWeight = 0.25

// Candidate is one generated option for a requested artifact, prior to
// scoring. Immutable once created.
type Candidate[T any] struct {
	ID          string
	Content     T
	Metadata    map[string]any
	GeneratedAt time.Time
}

// ScoredCandidate is a candidate with its overall and per-metric scores.
// Created only by scoring; never mutated after creation.
type ScoredCandidate[T any] struct {
	Candidate[T]

	// Score is the weighted average of Scores, in [0, 100].
	Score float64

	// Scores maps metric name → score in [0, 100].
	Scores map[string]float64

	// Reasoning optionally explains the scoring.
	Reasoning string
}

// Generator produces candidates for an operation request.
type Generator[T any] interface {
	// Generate returns up to maxCandidates candidates. It must honor ctx.
	Generate(ctx context.Context, req models.OperationRequest, maxCandidates int) ([]Candidate[T], error)

	// Validate reports whether a candidate is usable. Invalid candidates
	// are dropped silently.
	Validate(c Candidate[T]) bool
}

// Scorer produces a per-metric score map for one candidate, plus optional
// reasoning.
type Scorer[T any] interface {
	Score(ctx context.Context, c Candidate[T]) (map[string]float64, string, error)
}

// Coordinator drives a generator and a scorer for one candidate type.
type Coordinator[T any] struct {
	generator Generator[T]
	scorer    Scorer[T]
}

// NewCoordinator creates a sampling coordinator.
func NewCoordinator[T any](generator Generator[T], scorer Scorer[T]) *Coordinator[T] {
	return &Coordinator[T]{generator: generator, scorer: scorer}
}

// Generate produces candidates and filters them through the generator's
// own validation. A generator error or timeout yields the empty list, not
// a failure; the caller decides whether that is fatal.
//
// cfg.TimeoutMs races the generator against a timer so a stuck generator
// cannot stall the invocation.
func (c *Coordinator[T]) Generate(ctx context.Context, req models.OperationRequest, cfg models.SamplingConfig) []Candidate[T] {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type genResult struct {
		candidates []Candidate[T]
		err        error
	}
	done := make(chan genResult, 1)
	go func() {
		candidates, err := c.generator.Generate(genCtx, req, cfg.MaxCandidates)
		done <- genResult{candidates, err}
	}()

	var candidates []Candidate[T]
	select {
	case res := <-done:
		if res.err != nil {
			log.Warn().
				Str("operation", req.Operation).
				Err(res.err).
				Msg("Candidate generation failed")
			return nil
		}
		candidates = res.candidates
	case <-genCtx.Done():
		log.Warn().
			Str("operation", req.Operation).
			Dur("timeout", timeout).
			Msg("Candidate generation timed out")
		return nil
	}

	valid := candidates[:0]
	for _, cand := range candidates {
		if c.generator.Validate(cand) {
			valid = append(valid, cand)
		}
	}
	if len(valid) < len(candidates) {
		log.Debug().
			Str("operation", req.Operation).
			Int("generated", len(candidates)).
			Int("valid", len(valid)).
			Msg("Dropped invalid candidates")
	}
	return valid
}

// Score scores each candidate and returns the list sorted descending by
// overall score. The sort is stable: ties preserve generation order.
// A scorer error drops that candidate (with a log) rather than failing
// the batch.
func (c *Coordinator[T]) Score(ctx context.Context, candidates []Candidate[T], weights map[string]float64) []ScoredCandidate[T] {
	scored := make([]ScoredCandidate[T], 0, len(candidates))
	for _, cand := range candidates {
		metrics, reasoning, err := c.scorer.Score(ctx, cand)
		if err != nil {
			log.Warn().Str("candidate", cand.ID).Err(err).Msg("Scoring failed, dropping candidate")
			continue
		}
		scored = append(scored, ScoredCandidate[T]{
			Candidate: cand,
			Score:     WeightedScore(metrics, weights),
			Scores:    metrics,
			Reasoning: reasoning,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// SelectWinner returns the highest-scoring candidate, or
// models.ErrNoCandidates for an empty list.
func SelectWinner[T any](scored []ScoredCandidate[T]) (ScoredCandidate[T], error) {
	if len(scored) == 0 {
		var zero ScoredCandidate[T]
		return zero, models.ErrNoCandidates
	}
	return scored[0], nil
}

// WeightedScore computes Σ(score·weight) / Σ(weight) over the metric map,
// using DefaultMetricWeight for metrics absent from weights. An empty
// metric map scores zero.
func WeightedScore(metrics map[string]float64, weights map[string]float64) float64 {
	if len(metrics) == 0 {
		return 0
	}

	// Iterate in sorted order so the result is deterministic under
	// floating-point non-associativity.
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum, weightSum float64
	for _, name := range names {
		w, ok := weights[name]
		if !ok {
			w = DefaultMetricWeight
		}
		sum += metrics[name] * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}
