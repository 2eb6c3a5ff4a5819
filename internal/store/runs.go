package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/optiq-ai/optiq/internal/schema"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Runs provides persistence for pipeline runs. It satisfies the pipeline
// service's RunStore interface.
type Runs struct {
	db *DB
}

// NewRuns creates a run store backed by the given database.
func NewRuns(database *DB) *Runs {
	return &Runs{db: database}
}

// SaveRun upserts a run. The full run is stored as a JSON payload with the
// lifecycle columns duplicated for querying.
func (s *Runs) SaveRun(ctx context.Context, run *schema.PipelineRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshalling run: %w", err)
	}

	var completedAt sql.NullTime
	if run.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *run.CompletedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, state, failed_stage, error, payload, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			failed_stage = excluded.failed_stage,
			error = excluded.error,
			payload = excluded.payload,
			completed_at = excluded.completed_at`,
		run.ID,
		string(run.State),
		string(run.FailedStage),
		run.Error,
		string(payload),
		run.CreatedAt.UTC(),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Runs) GetRun(ctx context.Context, id string) (*schema.PipelineRun, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	var run schema.PipelineRun
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("unmarshalling run %s: %w", id, err)
	}
	return &run, nil
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID          string          `json:"id"`
	State       schema.RunState `json:"state"`
	FailedStage schema.Stage    `json:"failed_at_stage,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ListRuns returns run summaries, newest first.
func (s *Runs) ListRuns(ctx context.Context, limit, offset int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, failed_stage, created_at, completed_at
		FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var failedStage string
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.State, &failedStage, &r.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.FailedStage = schema.Stage(failedStage)
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
