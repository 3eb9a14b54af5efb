package sampling

import (
	"context"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// NeutralScore is assigned to a metric when a candidate carries no
// quality metadata for it. The default scorer is deterministic: it never
// invents scores, it reads them from candidate metadata or falls back to
// this documented neutral value.
const NeutralScore = 50.0

// ── Metadata Scorer ─────────────────────────────────────────

// MetadataScorer is the default scoring heuristic. It reads per-metric
// scores from the candidate's "quality" metadata map (metric → number in
// [0, 100], clamped) and scores NeutralScore for each requested metric
// that is absent.
type MetadataScorer[T any] struct {
	// Metrics are the metric names to score. Empty means "whatever the
	// candidate's quality metadata provides".
	Metrics []string
}

// Score implements Scorer.
func (s *MetadataScorer[T]) Score(_ context.Context, c Candidate[T]) (map[string]float64, string, error) {
	quality, _ := c.Metadata["quality"].(map[string]any)

	metrics := s.Metrics
	if len(metrics) == 0 {
		metrics = make([]string, 0, len(quality))
		for name := range quality {
			metrics = append(metrics, name)
		}
		sort.Strings(metrics)
	}

	if len(metrics) == 0 {
		// No requested metrics and no embedded quality metadata.
		return map[string]float64{"overall": NeutralScore}, "no quality metadata; neutral score", nil
	}

	out := make(map[string]float64, len(metrics))
	for _, name := range metrics {
		out[name] = clampScore(asFloat(quality[name], NeutralScore))
	}
	return out, "", nil
}

// ── Expression Scorer ───────────────────────────────────────

// ExprScorer scores candidates with configured expressions, one per
// metric, evaluated against the candidate's metadata. Expressions are
// compiled once at construction.
//
// The expression environment exposes:
//
//	id:       candidate ID
//	metadata: the candidate metadata map
//	quality:  the "quality" sub-map (empty map when absent)
type ExprScorer[T any] struct {
	programs map[string]*vm.Program
}

// NewExprScorer compiles one expression per metric. Each expression must
// evaluate to a number; results are clamped to [0, 100].
func NewExprScorer[T any](rules map[string]string) (*ExprScorer[T], error) {
	programs := make(map[string]*vm.Program, len(rules))
	for metric, source := range rules {
		program, err := expr.Compile(source, expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("compile scoring rule %q: %w", metric, err)
		}
		programs[metric] = program
	}
	return &ExprScorer[T]{programs: programs}, nil
}

// Score implements Scorer. A rule evaluation error fails the candidate,
// which the coordinator handles by dropping it.
func (s *ExprScorer[T]) Score(_ context.Context, c Candidate[T]) (map[string]float64, string, error) {
	quality, _ := c.Metadata["quality"].(map[string]any)
	if quality == nil {
		quality = map[string]any{}
	}
	env := map[string]any{
		"id":       c.ID,
		"metadata": c.Metadata,
		"quality":  quality,
	}

	out := make(map[string]float64, len(s.programs))
	for metric, program := range s.programs {
		val, err := expr.Run(program, env)
		if err != nil {
			return nil, "", fmt.Errorf("evaluate scoring rule %q: %w", metric, err)
		}
		out[metric] = clampScore(asFloat(val, 0))
	}
	return out, "", nil
}

// ── Helpers ─────────────────────────────────────────────────

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func asFloat(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	default:
		return fallback
	}
}
