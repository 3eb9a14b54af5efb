// Package handlers implements the HTTP handlers for the container-assist
// service: operation execution, per-operation configuration, resource
// reads, session state, and notification channel registration.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/internal/config"
	"github.com/gambtho/container-assist/internal/notify"
	"github.com/gambtho/container-assist/internal/ops"
	"github.com/gambtho/container-assist/internal/pipeline"
	"github.com/gambtho/container-assist/internal/resources"
	"github.com/gambtho/container-assist/pkg/contracts"
	"github.com/gambtho/container-assist/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Wrapper   *pipeline.Wrapper
	Registry  *config.Registry
	Ops       *ops.Registry
	Publisher *resources.Publisher
	Sessions  contracts.ExtendedSessionService
	Notify    *notify.Service

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// New creates a Handlers instance with all dependencies.
func New(w *pipeline.Wrapper, reg *config.Registry, opReg *ops.Registry, pub *resources.Publisher, sess contracts.ExtendedSessionService, n *notify.Service) *Handlers {
	return &Handlers{
		Wrapper:   w,
		Registry:  reg,
		Ops:       opReg,
		Publisher: pub,
		Sessions:  sess,
		Notify:    n,
		slots:     make(map[string]chan struct{}),
	}
}

// ══════════════════════════════════════════════════════════════
// ── Operation Handlers ───────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type executeRequest struct {
	SessionID string         `json:"sessionId"`
	Params    map[string]any `json:"params,omitempty"`
}

// ExecuteOperation runs one enhanced operation invocation.
func (h *Handlers) ExecuteOperation(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	if _, ok := h.Ops.Get(operation); !ok {
		respondError(w, http.StatusNotFound, "unknown operation: "+operation)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	release, ok := h.acquire(operation)
	if !ok {
		respondError(w, http.StatusTooManyRequests, "operation at concurrency limit: "+operation)
		return
	}
	defer release()

	result := h.Wrapper.Execute(r.Context(), models.OperationRequest{
		Operation: operation,
		SessionID: req.SessionID,
		Params:    req.Params,
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}

// ListOperations returns the registered operation names with their
// categories.
func (h *Handlers) ListOperations(w http.ResponseWriter, r *http.Request) {
	names := h.Ops.Names()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{
			"name":     name,
			"category": h.Ops.CategoryOf(name),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"operations": out})
}

// OperationHealth reports an operation's feature availability.
func (h *Handlers) OperationHealth(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	respondJSON(w, http.StatusOK, h.Wrapper.Health(operation))
}

// acquire reserves a concurrency slot for the operation. The slot count
// follows the operation's current maxConcurrentOperations limit; a
// lowered limit applies to new invocations only.
func (h *Handlers) acquire(operation string) (func(), bool) {
	limit := h.Registry.GetConfig(operation).Limits.MaxConcurrentOperations
	if limit <= 0 {
		return func() {}, true
	}

	h.mu.Lock()
	slot, ok := h.slots[operation]
	if !ok || cap(slot) != limit {
		slot = make(chan struct{}, limit)
		h.slots[operation] = slot
	}
	h.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, true
	default:
		return nil, false
	}
}

// ══════════════════════════════════════════════════════════════
// ── Config Handlers ──────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// GetConfig returns the effective configuration for an operation.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	respondJSON(w, http.StatusOK, h.Registry.GetConfig(operation))
}

// UpdateConfig applies a partial configuration update. A rejected update
// leaves the cached configuration untouched.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.Registry.UpdateConfig(operation, partial)
	if err != nil {
		var verr *models.ConfigValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"issues": verr.Issues,
			})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// ResetConfig evicts the cached configuration for an operation.
func (h *Handlers) ResetConfig(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	h.Registry.ResetConfig(operation)
	respondJSON(w, http.StatusOK, h.Registry.GetConfig(operation))
}

// ConfigAudit returns the configuration change audit log.
func (h *Handlers) ConfigAudit(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"events": h.Registry.AuditLog()})
}

// ══════════════════════════════════════════════════════════════
// ── Resource Handlers ────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ReadResource resolves a published resource by URI (query param "uri").
func (h *Handlers) ReadResource(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		respondError(w, http.StatusBadRequest, "uri query parameter is required")
		return
	}

	entry, err := h.Publisher.Read(r.Context(), uri)
	if err != nil {
		if models.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "resource not found or expired: "+uri)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", entry.Reference.MimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(entry.Data)
}

// ══════════════════════════════════════════════════════════════
// ── Session Handlers ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// GetSession returns the workflow state for a session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	state, err := h.Sessions.GetState(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// DeleteSession removes a session's workflow state and cleans up its
// published resources.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	removed, err := h.Publisher.Cleanup(r.Context(), sessionID, "")
	if err != nil {
		log.Warn().Str("session", sessionID).Err(err).Msg("Resource cleanup failed")
	}

	if err := h.Sessions.DeleteState(r.Context(), sessionID); err != nil && !models.IsNotFound(err) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId":        sessionID,
		"resourcesRemoved": removed,
	})
}

// ══════════════════════════════════════════════════════════════
// ── Notification Handlers ────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// RegisterChannel registers a webhook notification channel.
func (h *Handlers) RegisterChannel(w http.ResponseWriter, r *http.Request) {
	var channel models.NotificationChannel
	if err := json.NewDecoder(r.Body).Decode(&channel); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if channel.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	h.Notify.RegisterChannel(channel)
	respondJSON(w, http.StatusCreated, channel)
}

// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
