// Package sessions provides workflow-state session stores. State is a
// versioned value; every write is a compare-and-swap on the version, so
// concurrent invocations can never silently clobber each other's updates.
package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gambtho/container-assist/pkg/models"
)

// ErrVersionConflict is returned when a PutState loses a compare-and-swap
// race. Callers should re-read and retry, or use UpdateState.
type ErrVersionConflict struct {
	SessionID string
	Expected  int
	Actual    int
}

func (e *ErrVersionConflict) Error() string {
	return fmt.Sprintf("session %s: version conflict (put version %d, stored %d)", e.SessionID, e.Expected, e.Actual)
}

// MemoryStore is a thread-safe in-memory session store implementing
// contracts.ExtendedSessionService.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.WorkflowState
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.WorkflowState)}
}

// GetState returns the workflow state for a session, creating a fresh
// version-0 state on first access.
func (s *MemoryStore) GetState(_ context.Context, sessionID string) (models.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.sessions[sessionID]; ok {
		return state, nil
	}
	now := time.Now().UTC()
	state := models.WorkflowState{
		SessionID: sessionID,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = state
	return state, nil
}

// PutState persists state if its version is exactly one ahead of the
// stored version. Otherwise it fails with *ErrVersionConflict.
func (s *MemoryStore) PutState(_ context.Context, state models.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[state.SessionID]
	if !ok {
		s.sessions[state.SessionID] = state
		return nil
	}
	if state.Version != current.Version+1 {
		return &ErrVersionConflict{
			SessionID: state.SessionID,
			Expected:  state.Version,
			Actual:    current.Version,
		}
	}
	s.sessions[state.SessionID] = state
	return nil
}

// UpdateState applies fn to the current state and persists the result
// atomically under the store lock.
func (s *MemoryStore) UpdateState(ctx context.Context, sessionID string, fn func(models.WorkflowState) models.WorkflowState) (models.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now().UTC()
		current = models.WorkflowState{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
	}
	next := fn(current)
	next.SessionID = sessionID
	s.sessions[sessionID] = next
	return next, nil
}

// DeleteState removes a session's workflow state.
func (s *MemoryStore) DeleteState(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return &models.ErrNotFound{Entity: "session", Key: sessionID}
	}
	delete(s.sessions, sessionID)
	return nil
}
