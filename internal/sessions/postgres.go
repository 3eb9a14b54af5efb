package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gambtho/container-assist/pkg/models"
)

// PostgresStore is a PostgreSQL-backed session store. Compare-and-swap is
// enforced in SQL: updates only apply when the stored version matches,
// so concurrent writers across processes serialize correctly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL, verifies the connection, and
// creates the sessions table if needed.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("PostgreSQL session store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS ca_sessions (
			session_id TEXT PRIMARY KEY,
			version    INTEGER NOT NULL DEFAULT 0,
			state      JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// GetState returns the workflow state for a session, inserting a fresh
// version-0 state on first access.
func (s *PostgresStore) GetState(ctx context.Context, sessionID string) (models.WorkflowState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM ca_sessions WHERE session_id = $1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		now := time.Now().UTC()
		state := models.WorkflowState{SessionID: sessionID, Version: 0, CreatedAt: now, UpdatedAt: now}
		stateJSON, _ := json.Marshal(state)
		_, err = s.pool.Exec(ctx,
			`INSERT INTO ca_sessions (session_id, version, state) VALUES ($1, 0, $2)
			 ON CONFLICT (session_id) DO NOTHING`, sessionID, stateJSON)
		if err != nil {
			return models.WorkflowState{}, fmt.Errorf("insert session: %w", err)
		}
		return state, nil
	}
	if err != nil {
		return models.WorkflowState{}, fmt.Errorf("select session: %w", err)
	}

	var state models.WorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.WorkflowState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

// PutState persists state iff its version is exactly one ahead of the
// stored version, enforced by the WHERE clause.
func (s *PostgresStore) PutState(ctx context.Context, state models.WorkflowState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ca_sessions
		 SET version = $2, state = $3, updated_at = NOW()
		 WHERE session_id = $1 AND version = $2 - 1`,
		state.SessionID, state.Version, stateJSON)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing row from a version conflict.
	var actual int
	err = s.pool.QueryRow(ctx,
		`SELECT version FROM ca_sessions WHERE session_id = $1`, state.SessionID).Scan(&actual)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO ca_sessions (session_id, version, state) VALUES ($1, $2, $3)`,
			state.SessionID, state.Version, stateJSON)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("select session version: %w", err)
	}
	return &ErrVersionConflict{SessionID: state.SessionID, Expected: state.Version, Actual: actual}
}

// UpdateState applies fn under optimistic concurrency, retrying on
// version conflicts.
func (s *PostgresStore) UpdateState(ctx context.Context, sessionID string, fn func(models.WorkflowState) models.WorkflowState) (models.WorkflowState, error) {
	const maxAttempts = 5
	var conflict *ErrVersionConflict

	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := s.GetState(ctx, sessionID)
		if err != nil {
			return models.WorkflowState{}, err
		}
		next := fn(current)
		next.SessionID = sessionID

		err = s.PutState(ctx, next)
		if err == nil {
			return next, nil
		}
		if !errors.As(err, &conflict) {
			return models.WorkflowState{}, err
		}
	}
	return models.WorkflowState{}, fmt.Errorf("session %s: update contention after %d attempts: %w", sessionID, maxAttempts, conflict)
}

// DeleteState removes a session row.
func (s *PostgresStore) DeleteState(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ca_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &models.ErrNotFound{Entity: "session", Key: sessionID}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
