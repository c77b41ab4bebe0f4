package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a migration run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one migration run record.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Produced    int        `json:"produced"`
	Reused      int        `json:"reused"`
	Skipped     int        `json:"skipped"`
}

// StartRun records the start of a migration run.
func (r *Registry) StartRun() (*Run, error) {
	if r.db == nil {
		return nil, fmt.Errorf("registry not opened")
	}

	run := &Run{
		ID:        uuid.New().String(),
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// FinishRun records the outcome of a migration run.
func (r *Registry) FinishRun(run *Run) error {
	if r.db == nil {
		return fmt.Errorf("registry not opened")
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	if run.Status == RunStatusRunning {
		run.Status = RunStatusCompleted
	}

	_, err := r.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ?, produced = ?, reused = ?, skipped = ? WHERE id = ?`,
		run.Status, now, run.Error, run.Produced, run.Reused, run.Skipped, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run record by ID.
func (r *Registry) GetRun(id string) (*Run, error) {
	if r.db == nil {
		return nil, fmt.Errorf("registry not opened")
	}

	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := r.db.QueryRow(
		`SELECT id, status, started_at, completed_at, error, produced, reused, skipped FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Status, &run.StartedAt, &completedAt, &errMsg, &run.Produced, &run.Reused, &run.Skipped)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}

	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}
