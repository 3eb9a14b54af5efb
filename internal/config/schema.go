package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gambtho/container-assist/pkg/models"
)

// ── Schema Defaults ─────────────────────────────────────────

// Defaults returns the schema defaults with environment overrides
// applied, before any category specialization. Process-wide components
// (the resource publisher, notably) size themselves from this.
func Defaults() models.OperationConfig {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	return cfg
}

// defaultConfig returns the hard-coded schema defaults, the lowest layer
// of the three-layer merge.
func defaultConfig() models.OperationConfig {
	return models.OperationConfig{
		Enabled: true,
		Features: models.FeatureFlags{
			Sampling:           false,
			ResourcePublishing: true,
			ProgressReporting:  true,
			ErrorRecovery:      true,
			DynamicConfig:      true,
			MCPIntegration:     false,
		},
		Limits: models.Limits{
			MaxExecutionTimeMs:      300_000,
			MaxResourceSizeMB:       50,
			MaxCandidates:           5,
			MaxConcurrentOperations: 3,
			MaxRetries:              3,
		},
		Sampling: &models.SamplingConfig{
			MaxCandidates: 3,
			TimeoutMs:     30_000,
		},
		Resources: &models.ResourceConfig{
			MaxInlineSize:     1_048_576,
			DefaultTTLSeconds: 3_600,
		},
	}
}

// ── Environment Overrides ───────────────────────────────────

// applyEnvOverrides layers environment-derived overrides on top of the
// schema defaults, field by field. Unset variables leave the field alone.
func applyEnvOverrides(cfg *models.OperationConfig) {
	overrideInt(&cfg.Limits.MaxExecutionTimeMs, "CASSIST_MAX_EXECUTION_TIME_MS")
	overrideInt(&cfg.Limits.MaxResourceSizeMB, "CASSIST_MAX_RESOURCE_SIZE_MB")
	overrideInt(&cfg.Limits.MaxCandidates, "CASSIST_MAX_CANDIDATES")
	overrideInt(&cfg.Limits.MaxConcurrentOperations, "CASSIST_MAX_CONCURRENT_OPERATIONS")
	overrideInt(&cfg.Limits.MaxRetries, "CASSIST_MAX_RETRIES")

	overrideBool(&cfg.Features.Sampling, "CASSIST_FEATURE_SAMPLING")
	overrideBool(&cfg.Features.ResourcePublishing, "CASSIST_FEATURE_RESOURCES")
	overrideBool(&cfg.Features.ProgressReporting, "CASSIST_FEATURE_PROGRESS")
	overrideBool(&cfg.Features.ErrorRecovery, "CASSIST_FEATURE_RECOVERY")

	if cfg.Sampling != nil {
		overrideInt(&cfg.Sampling.MaxCandidates, "CASSIST_SAMPLING_MAX_CANDIDATES")
		overrideInt(&cfg.Sampling.TimeoutMs, "CASSIST_SAMPLING_TIMEOUT_MS")
	}
	if cfg.Resources != nil {
		overrideInt(&cfg.Resources.MaxInlineSize, "CASSIST_MAX_INLINE_SIZE")
		overrideInt(&cfg.Resources.DefaultTTLSeconds, "CASSIST_RESOURCE_DEFAULT_TTL")
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func overrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// ── Category Specializations ────────────────────────────────

// specialize applies the per-category defaults, the top layer of the
// merge. Generative operations sample by default with domain-specific
// scoring weights; scans and builds run longer and never sample.
func specialize(cfg *models.OperationConfig, category models.OperationCategory) {
	cfg.Category = category

	switch category {
	case models.CategoryGenerate:
		cfg.Features.Sampling = true
		cfg.Sampling.ScoringWeights = map[string]float64{
			"correctness":     0.35,
			"security":        0.25,
			"efficiency":      0.20,
			"maintainability": 0.20,
		}

	case models.CategoryBuild:
		cfg.Features.Sampling = false
		cfg.Limits.MaxExecutionTimeMs = 600_000

	case models.CategoryScan:
		cfg.Features.Sampling = false
		cfg.Limits.MaxExecutionTimeMs = 600_000
		cfg.Limits.MaxRetries = 2

	case models.CategoryDeploy:
		cfg.Features.Sampling = false
		cfg.Limits.MaxConcurrentOperations = 1

	case models.CategoryAnalyze, models.CategoryOps:
		// schema defaults apply
	}
}

// ── Validation ──────────────────────────────────────────────

type intBound struct {
	name string
	min  int
	max  int
}

var limitBounds = []intBound{
	{"limits.maxExecutionTimeMs", 1_000, 600_000},
	{"limits.maxResourceSizeMB", 1, 100},
	{"limits.maxCandidates", 1, 20},
	{"limits.maxConcurrentOperations", 1, 10},
	{"limits.maxRetries", 0, 5},
}

// Validate checks a resolved configuration against the schema bounds.
// It returns every violation found, not just the first.
func Validate(cfg *models.OperationConfig) []string {
	var issues []string

	values := []int{
		cfg.Limits.MaxExecutionTimeMs,
		cfg.Limits.MaxResourceSizeMB,
		cfg.Limits.MaxCandidates,
		cfg.Limits.MaxConcurrentOperations,
		cfg.Limits.MaxRetries,
	}
	for i, b := range limitBounds {
		if values[i] < b.min || values[i] > b.max {
			issues = append(issues, fmt.Sprintf("%s=%d outside [%d, %d]", b.name, values[i], b.min, b.max))
		}
	}

	if cfg.Sampling != nil {
		if cfg.Sampling.MaxCandidates < 1 || cfg.Sampling.MaxCandidates > 10 {
			issues = append(issues, fmt.Sprintf("sampling.maxCandidates=%d outside [1, 10]", cfg.Sampling.MaxCandidates))
		}
		if cfg.Sampling.TimeoutMs < 1_000 || cfg.Sampling.TimeoutMs > 300_000 {
			issues = append(issues, fmt.Sprintf("sampling.timeoutMs=%d outside [1000, 300000]", cfg.Sampling.TimeoutMs))
		}
		for metric, w := range cfg.Sampling.ScoringWeights {
			if w < 0 {
				issues = append(issues, fmt.Sprintf("sampling.scoringWeights[%s]=%g is negative", metric, w))
			}
		}
	}

	if cfg.Resources != nil {
		if cfg.Resources.MaxInlineSize < 1_024 || cfg.Resources.MaxInlineSize > 5_242_880 {
			issues = append(issues, fmt.Sprintf("resources.maxInlineSize=%d outside [1024, 5242880]", cfg.Resources.MaxInlineSize))
		}
		if cfg.Resources.DefaultTTLSeconds < 60 || cfg.Resources.DefaultTTLSeconds > 604_800 {
			issues = append(issues, fmt.Sprintf("resources.defaultTTL=%d outside [60, 604800]", cfg.Resources.DefaultTTLSeconds))
		}
	}

	// Sampling on requires a sampling config with valid bounds.
	if cfg.Features.Sampling && cfg.Sampling == nil {
		issues = append(issues, "features.sampling=true requires a sampling config")
	}

	if cfg.Category != "" && !knownCategory(cfg.Category) {
		issues = append(issues, fmt.Sprintf("unknown category %q", cfg.Category))
	}

	return issues
}

func knownCategory(c models.OperationCategory) bool {
	for _, known := range models.Categories() {
		if c == known {
			return true
		}
	}
	return false
}
