package config_test

import (
	"errors"
	"testing"

	"github.com/gambtho/container-assist/internal/config"
	"github.com/gambtho/container-assist/pkg/models"
)

func categorizer(operation string) models.OperationCategory {
	switch operation {
	case "generate-recipe":
		return models.CategoryGenerate
	case "build-image":
		return models.CategoryBuild
	case "scan-image":
		return models.CategoryScan
	case "deploy":
		return models.CategoryDeploy
	default:
		return models.CategoryOps
	}
}

func TestGetConfigDefaults(t *testing.T) {
	r := config.NewRegistry(categorizer)

	cfg := r.GetConfig("mystery-op")
	if !cfg.Enabled {
		t.Error("default config not enabled")
	}
	if cfg.Limits.MaxExecutionTimeMs != 300_000 {
		t.Errorf("maxExecutionTimeMs = %d, want 300000", cfg.Limits.MaxExecutionTimeMs)
	}
	if cfg.Features.Sampling {
		t.Error("sampling enabled by default, want disabled")
	}
	if !cfg.Features.ResourcePublishing || !cfg.Features.ProgressReporting || !cfg.Features.ErrorRecovery {
		t.Error("resource publishing, progress, and recovery should default on")
	}
}

func TestGetConfigGenerateSpecialization(t *testing.T) {
	r := config.NewRegistry(categorizer)

	cfg := r.GetConfig("generate-recipe")
	if !cfg.Features.Sampling {
		t.Error("generate category should enable sampling")
	}
	if cfg.Sampling == nil {
		t.Fatal("generate category missing sampling config")
	}
	wantWeights := map[string]float64{
		"correctness":     0.35,
		"security":        0.25,
		"efficiency":      0.20,
		"maintainability": 0.20,
	}
	for metric, want := range wantWeights {
		if got := cfg.Sampling.ScoringWeights[metric]; got != want {
			t.Errorf("scoringWeights[%s] = %v, want %v", metric, got, want)
		}
	}
}

func TestGetConfigBuildAndScanSpecializations(t *testing.T) {
	r := config.NewRegistry(categorizer)

	for _, op := range []string{"build-image", "scan-image"} {
		cfg := r.GetConfig(op)
		if cfg.Features.Sampling {
			t.Errorf("%s: sampling enabled, want disabled", op)
		}
		if cfg.Limits.MaxExecutionTimeMs != 600_000 {
			t.Errorf("%s: maxExecutionTimeMs = %d, want 600000", op, cfg.Limits.MaxExecutionTimeMs)
		}
	}
}

func TestGetConfigReturnsCopy(t *testing.T) {
	r := config.NewRegistry(categorizer)

	cfg := r.GetConfig("generate-recipe")
	cfg.Limits.MaxRetries = 99
	cfg.Sampling.ScoringWeights["correctness"] = 0

	again := r.GetConfig("generate-recipe")
	if again.Limits.MaxRetries == 99 {
		t.Error("mutating a returned config leaked into the cache")
	}
	if again.Sampling.ScoringWeights["correctness"] != 0.35 {
		t.Error("mutating returned scoring weights leaked into the cache")
	}
}

func TestGetConfigCopiesOverrides(t *testing.T) {
	r := config.NewRegistry(categorizer)

	_, err := r.UpdateConfig("build-image", map[string]any{
		"overrides": map[string]any{"team": "platform"},
	})
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}

	cfg := r.GetConfig("build-image")
	cfg.Overrides["team"] = "tampered"
	cfg.Overrides["extra"] = true

	again := r.GetConfig("build-image")
	if again.Overrides["team"] != "platform" {
		t.Errorf("Overrides[team] = %v, mutation leaked into the cache", again.Overrides["team"])
	}
	if _, ok := again.Overrides["extra"]; ok {
		t.Error("added override key leaked into the cache")
	}
}

func TestUpdateConfigMerge(t *testing.T) {
	r := config.NewRegistry(categorizer)

	updated, err := r.UpdateConfig("build-image", map[string]any{
		"limits": map[string]any{"maxRetries": 5},
	})
	if err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if updated.Limits.MaxRetries != 5 {
		t.Errorf("maxRetries = %d, want 5", updated.Limits.MaxRetries)
	}
	// Untouched siblings survive the merge.
	if updated.Limits.MaxExecutionTimeMs != 600_000 {
		t.Errorf("maxExecutionTimeMs = %d, want 600000 after partial update", updated.Limits.MaxExecutionTimeMs)
	}

	if got := r.GetConfig("build-image"); got.Limits.MaxRetries != 5 {
		t.Errorf("GetConfig() after update maxRetries = %d, want 5", got.Limits.MaxRetries)
	}
}

func TestUpdateConfigRejectsOutOfBounds(t *testing.T) {
	r := config.NewRegistry(categorizer)
	before := r.GetConfig("build-image")

	_, err := r.UpdateConfig("build-image", map[string]any{
		"limits": map[string]any{"maxRetries": 10},
	})
	var verr *models.ConfigValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("UpdateConfig() error = %v, want *ConfigValidationError", err)
	}
	if len(verr.Issues) == 0 {
		t.Error("validation error carries no issues")
	}

	after := r.GetConfig("build-image")
	if after.Limits.MaxRetries != before.Limits.MaxRetries {
		t.Errorf("rejected update changed cached maxRetries: %d → %d", before.Limits.MaxRetries, after.Limits.MaxRetries)
	}
}

func TestUpdateConfigRejectsUnknownField(t *testing.T) {
	r := config.NewRegistry(categorizer)

	_, err := r.UpdateConfig("build-image", map[string]any{"nonsense": true})
	var verr *models.ConfigValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("UpdateConfig() with unknown field error = %v, want *ConfigValidationError", err)
	}
}

func TestResetConfig(t *testing.T) {
	r := config.NewRegistry(categorizer)

	if _, err := r.UpdateConfig("build-image", map[string]any{
		"limits": map[string]any{"maxRetries": 5},
	}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}

	r.ResetConfig("build-image")
	if got := r.GetConfig("build-image"); got.Limits.MaxRetries != 3 {
		t.Errorf("maxRetries after reset = %d, want default 3", got.Limits.MaxRetries)
	}
}

func TestAuditLogRecordsUpdatesAndResets(t *testing.T) {
	r := config.NewRegistry(categorizer)

	r.UpdateConfig("build-image", map[string]any{"limits": map[string]any{"maxRetries": 5}})
	r.ResetConfig("build-image")

	events := r.AuditLog()
	if len(events) != 2 {
		t.Fatalf("AuditLog() has %d events, want 2", len(events))
	}
	if events[0].Action != "update" || events[1].Action != "reset" {
		t.Errorf("audit actions = %q, %q; want update, reset", events[0].Action, events[1].Action)
	}
	for _, e := range events {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("audit event missing id or timestamp: %+v", e)
		}
	}
}

func TestIsFeatureEnabled(t *testing.T) {
	r := config.NewRegistry(categorizer)

	if !r.IsFeatureEnabled("generate-recipe", "sampling") {
		t.Error("sampling should be enabled for generate operations")
	}
	if r.IsFeatureEnabled("build-image", "sampling") {
		t.Error("sampling should be disabled for build operations")
	}
	if r.IsFeatureEnabled("build-image", "no-such-feature") {
		t.Error("unknown feature reported enabled")
	}

	// A disabled operation reports every feature off.
	if _, err := r.UpdateConfig("build-image", map[string]any{"enabled": false}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if r.IsFeatureEnabled("build-image", "errorRecovery") {
		t.Error("disabled operation reported a feature enabled")
	}
}

func TestHealth(t *testing.T) {
	r := config.NewRegistry(categorizer)

	// generate: sampling, resources, progress all on → healthy.
	if report := r.Health("generate-recipe"); report.Status != models.HealthHealthy {
		t.Errorf("generate health = %s, want healthy", report.Status)
	}

	// build: sampling off → degraded.
	if report := r.Health("build-image"); report.Status != models.HealthDegraded {
		t.Errorf("build health = %s, want degraded", report.Status)
	}

	// disabled operation → unhealthy.
	if _, err := r.UpdateConfig("scan-image", map[string]any{"enabled": false}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if report := r.Health("scan-image"); report.Status != models.HealthUnhealthy {
		t.Errorf("disabled operation health = %s, want unhealthy", report.Status)
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := config.Defaults()
	cfg.Limits.MaxRetries = 50
	cfg.Limits.MaxCandidates = 0
	cfg.Sampling.TimeoutMs = 10

	issues := config.Validate(&cfg)
	if len(issues) != 3 {
		t.Errorf("Validate() found %d issues, want 3: %v", len(issues), issues)
	}
}
