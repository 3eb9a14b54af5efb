package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// Categorizer maps an operation name to its category. The operation
// registry supplies this so that per-category defaults apply without the
// config package knowing any operation names.
type Categorizer func(operation string) models.OperationCategory

// Registry resolves and caches per-operation configuration.
//
// Resolution merges three layers in precedence order: schema defaults,
// environment overrides, per-category specializations. Updates deep-merge
// a partial document into the cached config and re-validate; an invalid
// update is rejected as a value error and leaves the cached config
// untouched.
type Registry struct {
	categorize Categorizer

	mu    sync.RWMutex
	cache map[string]*models.OperationConfig

	auditMu sync.Mutex
	audit   []models.AuditEvent
}

// NewRegistry creates a config registry. A nil categorizer maps every
// operation to CategoryOps.
func NewRegistry(categorize Categorizer) *Registry {
	if categorize == nil {
		categorize = func(string) models.OperationCategory { return models.CategoryOps }
	}
	return &Registry{
		categorize: categorize,
		cache:      make(map[string]*models.OperationConfig),
	}
}

// GetConfig returns the resolved configuration for the named operation,
// computing and caching it on first use. Callers receive a copy; mutating
// it does not affect the cache.
func (r *Registry) GetConfig(operation string) models.OperationConfig {
	r.mu.RLock()
	cached, ok := r.cache[operation]
	r.mu.RUnlock()
	if ok {
		return cloneConfig(cached)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[operation]; ok {
		return cloneConfig(cached)
	}

	cfg := r.resolve(operation)
	r.cache[operation] = cfg
	return cloneConfig(cfg)
}

// resolve computes a fresh configuration from the three layers.
func (r *Registry) resolve(operation string) *models.OperationConfig {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	specialize(&cfg, r.categorize(operation))
	return &cfg
}

// UpdateConfig deep-merges partial into the cached configuration for the
// operation and re-validates the result. On success the merged config is
// cached and returned; on validation failure a *models.ConfigValidationError
// is returned and the prior cached value stays in effect.
func (r *Registry) UpdateConfig(operation string, partial map[string]any) (models.OperationConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.cache[operation]
	if !ok {
		current = r.resolve(operation)
		r.cache[operation] = current
	}

	merged, err := mergeConfig(current, partial)
	if err != nil {
		return models.OperationConfig{}, &models.ConfigValidationError{
			Operation: operation,
			Issues:    []string{err.Error()},
		}
	}

	if issues := Validate(merged); len(issues) > 0 {
		log.Warn().
			Str("operation", operation).
			Strs("issues", issues).
			Msg("Config update rejected")
		return models.OperationConfig{}, &models.ConfigValidationError{
			Operation: operation,
			Issues:    issues,
		}
	}

	r.cache[operation] = merged
	r.recordAudit("update", operation, map[string]any{"partial": partial})
	log.Info().Str("operation", operation).Msg("Config updated")
	return cloneConfig(merged), nil
}

// ResetConfig evicts the cache entry so the next GetConfig recomputes
// from defaults.
func (r *Registry) ResetConfig(operation string) {
	r.mu.Lock()
	delete(r.cache, operation)
	r.mu.Unlock()

	r.recordAudit("reset", operation, nil)
	log.Info().Str("operation", operation).Msg("Config reset to defaults")
}

// IsFeatureEnabled reports whether the named feature is active for the
// operation: the operation must be enabled and the flag set.
func (r *Registry) IsFeatureEnabled(operation, feature string) bool {
	cfg := r.GetConfig(operation)
	if !cfg.Enabled {
		return false
	}
	switch feature {
	case "sampling":
		return cfg.Features.Sampling
	case "resourcePublishing":
		return cfg.Features.ResourcePublishing
	case "progressReporting":
		return cfg.Features.ProgressReporting
	case "errorRecovery":
		return cfg.Features.ErrorRecovery
	case "dynamicConfig":
		return cfg.Features.DynamicConfig
	case "mcpIntegration":
		return cfg.Features.MCPIntegration
	default:
		return false
	}
}

// Health derives the health report for an operation from its current
// configuration. Healthy iff every capability is available, unhealthy iff
// none are, degraded otherwise.
func (r *Registry) Health(operation string) models.HealthReport {
	cfg := r.GetConfig(operation)

	avail := func(on bool) models.FeatureAvailability {
		if !cfg.Enabled {
			return models.FeatureUnavailable
		}
		if on {
			return models.FeatureAvailable
		}
		return models.FeatureUnavailable
	}

	features := map[string]models.FeatureAvailability{
		"sampling":  avail(cfg.Features.Sampling),
		"resources": avail(cfg.Features.ResourcePublishing),
		"progress":  avail(cfg.Features.ProgressReporting),
	}

	available := 0
	for _, a := range features {
		if a == models.FeatureAvailable {
			available++
		}
	}

	status := models.HealthDegraded
	switch available {
	case len(features):
		status = models.HealthHealthy
	case 0:
		status = models.HealthUnhealthy
	}

	return models.HealthReport{Name: operation, Status: status, Features: features}
}

// AuditLog returns a copy of the recorded audit events, oldest first.
func (r *Registry) AuditLog() []models.AuditEvent {
	r.auditMu.Lock()
	defer r.auditMu.Unlock()
	return append([]models.AuditEvent(nil), r.audit...)
}

func (r *Registry) recordAudit(action, operation string, detail map[string]any) {
	event := models.AuditEvent{
		ID:        uuid.New().String(),
		Action:    action,
		Operation: operation,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	r.auditMu.Lock()
	r.audit = append(r.audit, event)
	r.auditMu.Unlock()
}

// ── Merge Helpers ───────────────────────────────────────────

// mergeConfig deep-merges a partial document into cfg via a JSON round
// trip. Nested objects merge field by field; scalars and arrays in the
// partial replace the originals.
func mergeConfig(cfg *models.OperationConfig, partial map[string]any) (*models.OperationConfig, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var base map[string]any
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	deepMerge(base, partial)

	mergedRaw, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal merged config: %w", err)
	}
	var merged models.OperationConfig
	dec := json.NewDecoder(bytes.NewReader(mergedRaw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&merged); err != nil {
		return nil, fmt.Errorf("unknown or malformed field: %w", err)
	}
	return &merged, nil
}

// deepMerge merges src into dst in place. Maps merge recursively; any
// other value in src replaces the value in dst.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

func cloneConfig(cfg *models.OperationConfig) models.OperationConfig {
	out := *cfg
	if cfg.Sampling != nil {
		s := *cfg.Sampling
		if cfg.Sampling.ScoringWeights != nil {
			s.ScoringWeights = make(map[string]float64, len(cfg.Sampling.ScoringWeights))
			for k, v := range cfg.Sampling.ScoringWeights {
				s.ScoringWeights[k] = v
			}
		}
		out.Sampling = &s
	}
	if cfg.Resources != nil {
		res := *cfg.Resources
		out.Resources = &res
	}
	if cfg.Overrides != nil {
		out.Overrides = make(map[string]any, len(cfg.Overrides))
		for k, v := range cfg.Overrides {
			out.Overrides[k] = v
		}
	}
	return out
}
