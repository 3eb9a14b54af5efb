package sessions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gambtho/container-assist/internal/sessions"
	"github.com/gambtho/container-assist/pkg/models"
)

func TestGetStateCreatesFreshSession(t *testing.T) {
	s := sessions.NewMemoryStore()
	ctx := context.Background()

	state, err := s.GetState(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.SessionID != "sess-1" || state.Version != 0 {
		t.Errorf("fresh state = %s v%d, want sess-1 v0", state.SessionID, state.Version)
	}
	if state.CreatedAt.IsZero() {
		t.Error("fresh state missing CreatedAt")
	}
}

func TestPutStateCompareAndSwap(t *testing.T) {
	s := sessions.NewMemoryStore()
	ctx := context.Background()

	state, _ := s.GetState(ctx, "sess-1")

	next := state.WithArtifact("generate-recipe", "cassist://sess-1/resources/abc")
	if err := s.PutState(ctx, next); err != nil {
		t.Fatalf("PutState() error = %v", err)
	}

	// The same base version writing again must lose the CAS.
	stale := state.WithArtifact("generate-recipe", "cassist://sess-1/resources/def")
	err := s.PutState(ctx, stale)
	var conflict *sessions.ErrVersionConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("PutState() with stale version error = %v, want *ErrVersionConflict", err)
	}

	got, _ := s.GetState(ctx, "sess-1")
	if got.Artifacts["generate-recipe"] != "cassist://sess-1/resources/abc" {
		t.Errorf("lost write won: artifact = %q", got.Artifacts["generate-recipe"])
	}
}

func TestPutStateSkippedVersion(t *testing.T) {
	s := sessions.NewMemoryStore()
	ctx := context.Background()

	state, _ := s.GetState(ctx, "sess-1")
	jumped := state.WithArtifact("a", "u").WithArtifact("b", "v") // version +2
	var conflict *sessions.ErrVersionConflict
	if err := s.PutState(ctx, jumped); !errors.As(err, &conflict) {
		t.Fatalf("PutState() with skipped version error = %v, want *ErrVersionConflict", err)
	}
}

func TestUpdateStateAtomic(t *testing.T) {
	s := sessions.NewMemoryStore()
	ctx := context.Background()

	updated, err := s.UpdateState(ctx, "sess-1", func(state models.WorkflowState) models.WorkflowState {
		return state.WithArtifact("build-image", "cassist://sess-1/resources/xyz")
	})
	if err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	if updated.Version != 1 {
		t.Errorf("version after update = %d, want 1", updated.Version)
	}
	if updated.Artifacts["build-image"] == "" {
		t.Error("artifact not recorded by update")
	}
}

func TestUpdateStateConcurrent(t *testing.T) {
	s := sessions.NewMemoryStore()
	ctx := context.Background()

	const writers = 20
	done := make(chan struct{})
	for i := 0; i < writers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			s.UpdateState(ctx, "sess-1", func(state models.WorkflowState) models.WorkflowState {
				return state.WithStage("next")
			})
		}()
	}
	for i := 0; i < writers; i++ {
		<-done
	}

	state, _ := s.GetState(ctx, "sess-1")
	if state.Version != writers {
		t.Errorf("version after %d concurrent updates = %d, want %d", writers, state.Version, writers)
	}
}

func TestDeleteState(t *testing.T) {
	s := sessions.NewMemoryStore()
	ctx := context.Background()

	s.GetState(ctx, "sess-1")
	if err := s.DeleteState(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteState() error = %v", err)
	}
	if err := s.DeleteState(ctx, "sess-1"); !models.IsNotFound(err) {
		t.Errorf("DeleteState() of missing session error = %v, want not-found", err)
	}
}
