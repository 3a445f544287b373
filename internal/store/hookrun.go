package store

import (
	"database/sql"
	"time"
)

// HookRun is the result of one post-recording hook.
type HookRun struct {
	ID          int64     `json:"id"`
	RecordingID string    `json:"recording_id"`
	Hook        string    `json:"hook"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	RanAt       time.Time `json:"ran_at"`
}

// HookRunRepository records hook executions.
type HookRunRepository struct {
	db *sql.DB
}

// HookRuns returns the hook run repository for this store.
func (s *Store) HookRuns() *HookRunRepository {
	return &HookRunRepository{db: s.db}
}

// Create stores a hook result.
func (r *HookRunRepository) Create(run *HookRun) error {
	run.RanAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO hook_runs (recording_id, hook, success, error, ran_at) VALUES (?, ?, ?, ?, ?)`,
		run.RecordingID, run.Hook, run.Success, run.Error, run.RanAt,
	)
	if err != nil {
		return err
	}

	run.ID, err = result.LastInsertId()
	return err
}

// ListByRecording returns the hook runs of a recording in execution order.
func (r *HookRunRepository) ListByRecording(recordingID string) ([]HookRun, error) {
	rows, err := r.db.Query(
		`SELECT id, recording_id, hook, success, error, ran_at
		 FROM hook_runs WHERE recording_id = ? ORDER BY id`,
		recordingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []HookRun
	for rows.Next() {
		var run HookRun
		var success int
		if err := rows.Scan(&run.ID, &run.RecordingID, &run.Hook, &success, &run.Error, &run.RanAt); err != nil {
			return nil, err
		}
		run.Success = success != 0
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
