// Package models defines the shared data model for the container-assist
// enhancement pipeline: operation configuration, progress state, resource
// references, workflow session state, and the request/response envelope
// that wrapped operations exchange with the pipeline.
package models

import (
	"time"
)

// ── Operation Categories ────────────────────────────────────

// OperationCategory is the closed set of operation families the pipeline
// knows about. Each category carries its own configuration defaults;
// adding a category means extending this set, not string-matching names.
type OperationCategory string

const (
	CategoryAnalyze  OperationCategory = "analyze"
	CategoryGenerate OperationCategory = "generate"
	CategoryBuild    OperationCategory = "build"
	CategoryScan     OperationCategory = "scan"
	CategoryDeploy   OperationCategory = "deploy"
	CategoryOps      OperationCategory = "ops"
)

// Categories lists all known operation categories.
func Categories() []OperationCategory {
	return []OperationCategory{
		CategoryAnalyze, CategoryGenerate, CategoryBuild,
		CategoryScan, CategoryDeploy, CategoryOps,
	}
}

// ── Operation Configuration ─────────────────────────────────

// FeatureFlags toggles the cross-cutting capabilities for one operation.
type FeatureFlags struct {
	Sampling           bool `json:"sampling"`
	ResourcePublishing bool `json:"resourcePublishing"`
	ProgressReporting  bool `json:"progressReporting"`
	ErrorRecovery      bool `json:"errorRecovery"`
	DynamicConfig      bool `json:"dynamicConfig"`
	MCPIntegration     bool `json:"mcpIntegration"`
}

// Limits bounds an operation's resource usage. All fields are validated
// against the schema bounds in the config registry before they take effect.
type Limits struct {
	MaxExecutionTimeMs      int `json:"maxExecutionTimeMs"`
	MaxResourceSizeMB       int `json:"maxResourceSizeMB"`
	MaxCandidates           int `json:"maxCandidates"`
	MaxConcurrentOperations int `json:"maxConcurrentOperations"`
	MaxRetries              int `json:"maxRetries"`
}

// SamplingConfig configures multi-candidate generation and scoring.
type SamplingConfig struct {
	MaxCandidates int `json:"maxCandidates"`
	TimeoutMs     int `json:"timeoutMs"`

	// ScoringWeights maps metric name → weight. Metrics absent from the
	// map score with the default weight of 0.25.
	ScoringWeights map[string]float64 `json:"scoringWeights,omitempty"`
}

// ResourceConfig configures size-aware result externalization.
type ResourceConfig struct {
	MaxInlineSize     int `json:"maxInlineSize"`
	DefaultTTLSeconds int `json:"defaultTTL"`
}

// OperationConfig is the resolved per-operation configuration. It is built
// by merging schema defaults, environment overrides, and per-category
// specializations, in that precedence order.
type OperationConfig struct {
	Enabled   bool              `json:"enabled"`
	Category  OperationCategory `json:"category,omitempty"`
	Features  FeatureFlags      `json:"features"`
	Limits    Limits            `json:"limits"`
	Sampling  *SamplingConfig   `json:"sampling,omitempty"`
	Resources *ResourceConfig   `json:"resources,omitempty"`
	Overrides map[string]any    `json:"overrides,omitempty"`
}

// ── Health ──────────────────────────────────────────────────

// FeatureAvailability describes one capability's availability.
type FeatureAvailability string

const (
	FeatureAvailable   FeatureAvailability = "available"
	FeatureDegraded    FeatureAvailability = "degraded"
	FeatureUnavailable FeatureAvailability = "unavailable"
)

// HealthState is the overall health of an operation.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthReport is computed on demand from the current OperationConfig;
// it is never stored.
type HealthReport struct {
	Name     string                         `json:"name"`
	Status   HealthState                    `json:"status"`
	Features map[string]FeatureAvailability `json:"features"`
}

// ── Resource References ─────────────────────────────────────

// ResourceReference is a lightweight pointer standing in for a large
// externalized payload. The URI is deterministic: it embeds the session
// ID and the first 16 hex chars of the SHA-256 of the serialized content.
type ResourceReference struct {
	URI         string         `json:"uri"`
	MimeType    string         `json:"mimeType"`
	Description string         `json:"description,omitempty"`
	Size        int            `json:"size"`
	TTLSeconds  int            `json:"ttlSeconds"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ── Progress ────────────────────────────────────────────────

// ProgressState is the point-in-time progress of one in-flight operation
// invocation. It is owned exclusively by the invocation that created it.
type ProgressState struct {
	OperationName       string             `json:"operationName"`
	SessionID           string             `json:"sessionId"`
	TotalSteps          int                `json:"totalSteps"`
	CompletedSteps      int                `json:"completedSteps"`
	CurrentStep         string             `json:"currentStep"`
	CurrentStepProgress float64            `json:"currentStepProgress"`
	OverallProgress     float64            `json:"overallProgress"`
	StartTime           time.Time          `json:"startTime"`
	EstimatedCompletion *time.Time         `json:"estimatedCompletion,omitempty"`
	Subtasks            map[string]float64 `json:"subtasks,omitempty"`
}

// ProgressEventType discriminates progress notifications.
type ProgressEventType string

const (
	ProgressEventUpdate   ProgressEventType = "progress"
	ProgressEventComplete ProgressEventType = "complete"
	ProgressEventError    ProgressEventType = "error"
)

// ProgressEvent is the payload delivered to the external
// progress-notification channel.
type ProgressEvent struct {
	Type        ProgressEventType `json:"type"`
	Operation   string            `json:"operation"`
	SessionID   string            `json:"sessionId"`
	Step        string            `json:"step,omitempty"`
	Progress    float64           `json:"progress"`
	Message     string            `json:"message,omitempty"`
	Recoverable bool              `json:"recoverable,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// ── Operation Envelope ──────────────────────────────────────

// OperationRequest is the request contract between the pipeline and a
// wrapped operation.
type OperationRequest struct {
	Operation string         `json:"operation"`
	SessionID string         `json:"sessionId"`
	Params    map[string]any `json:"params,omitempty"`
}

// OperationResult is what the pipeline returns to its caller. A failed
// invocation carries a human-readable Error message, never a raw error
// object or stack trace.
type OperationResult struct {
	Operation  string             `json:"operation"`
	SessionID  string             `json:"sessionId"`
	Success    bool               `json:"success"`
	Recovered  bool               `json:"recovered,omitempty"`
	Payload    map[string]any     `json:"payload,omitempty"`
	Resource   *ResourceReference `json:"resource,omitempty"`
	Error      string             `json:"error,omitempty"`
	DurationMs int64              `json:"durationMs"`
}

// ── Workflow Sessions ───────────────────────────────────────

// WorkflowState is the versioned, typed workflow state carried by a
// session. Updates produce a new value with a bumped Version; the session
// store enforces compare-and-swap on Version.
type WorkflowState struct {
	SessionID       string            `json:"sessionId"`
	Version         int               `json:"version"`
	Stage           string            `json:"stage,omitempty"`
	CompletedStages []string          `json:"completedStages,omitempty"`
	Artifacts       map[string]string `json:"artifacts,omitempty"` // name → resource URI
	Metadata        map[string]any    `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// WithArtifact returns a copy of the state with the artifact recorded and
// the version bumped. The receiver is not mutated.
func (w WorkflowState) WithArtifact(name, uri string) WorkflowState {
	next := w
	next.Artifacts = make(map[string]string, len(w.Artifacts)+1)
	for k, v := range w.Artifacts {
		next.Artifacts[k] = v
	}
	next.Artifacts[name] = uri
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	return next
}

// WithStage returns a copy of the state advanced to the given stage. The
// previous stage, if any, is recorded as completed.
func (w WorkflowState) WithStage(stage string) WorkflowState {
	next := w
	next.CompletedStages = append([]string(nil), w.CompletedStages...)
	if w.Stage != "" {
		next.CompletedStages = append(next.CompletedStages, w.Stage)
	}
	next.Stage = stage
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	return next
}

// ── Audit ───────────────────────────────────────────────────

// AuditEvent records a configuration update or reset observed by the
// config registry.
type AuditEvent struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"` // "update" | "reset"
	Operation string         `json:"operation"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ── Notification Channels ───────────────────────────────────

// NotificationChannel is a registered progress-notification endpoint.
type NotificationChannel struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret,omitempty"`
	Events []string `json:"events,omitempty"` // empty means all
	Active bool     `json:"active"`
}
