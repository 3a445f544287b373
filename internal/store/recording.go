package store

import (
	"database/sql"
	"errors"
	"time"
)

// RecordingStatus is the lifecycle state of a catalogued recording.
type RecordingStatus string

const (
	// StatusRecording marks a recording that is still running, or one whose
	// process died before it could be finished.
	StatusRecording RecordingStatus = "recording"
	// StatusCompleted marks a recording stopped on request.
	StatusCompleted RecordingStatus = "completed"
	// StatusFailed marks a recording ended by a fatal error.
	StatusFailed RecordingStatus = "failed"
)

// Recording is one catalogued recording session.
type Recording struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	Sequence   int             `json:"sequence"`
	Trial      int             `json:"trial"`
	VideoPath  string          `json:"video_path"`
	EulerPath  string          `json:"euler_path"`
	QuatPath   string          `json:"quat_path"`
	Status     RecordingStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	Ticks      int64           `json:"ticks"`
	Snapshots  int64           `json:"snapshots"`
	Rows       int64           `json:"rows"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// RecordingRepository provides CRUD operations for recordings.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

const recordingColumns = `id, subject, sequence, trial, video_path, euler_path, quat_path,
	status, error, ticks, snapshots, row_count, started_at, finished_at`

// Create inserts a new recording in StatusRecording.
func (r *RecordingRepository) Create(rec *Recording) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.Status = StatusRecording

	_, err := r.db.Exec(
		`INSERT INTO recordings (id, subject, sequence, trial, video_path, euler_path, quat_path, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Subject, rec.Sequence, rec.Trial, rec.VideoPath, rec.EulerPath, rec.QuatPath,
		string(rec.Status), rec.StartedAt,
	)
	return err
}

// Finish stores the outcome of a recording.
func (r *RecordingRepository) Finish(rec *Recording) error {
	now := time.Now()
	rec.FinishedAt = &now

	result, err := r.db.Exec(
		`UPDATE recordings SET status = ?, error = ?, ticks = ?, snapshots = ?, row_count = ?, finished_at = ?
		 WHERE id = ?`,
		string(rec.Status), rec.Error, rec.Ticks, rec.Snapshots, rec.Rows, now, rec.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (*Recording, error) {
	rec := &Recording{}
	var status string
	var finished sql.NullTime

	err := row.Scan(&rec.ID, &rec.Subject, &rec.Sequence, &rec.Trial,
		&rec.VideoPath, &rec.EulerPath, &rec.QuatPath,
		&status, &rec.Error, &rec.Ticks, &rec.Snapshots, &rec.Rows,
		&rec.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	rec.Status = RecordingStatus(status)
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}

// GetByID retrieves a recording by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	rec, err := scanRecording(r.db.QueryRow(
		`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List retrieves all recordings, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	return r.query(`SELECT ` + recordingColumns + ` FROM recordings ORDER BY started_at DESC`)
}

// ListBySubject retrieves the recordings of subject in sequence and trial order.
func (r *RecordingRepository) ListBySubject(subject string) ([]*Recording, error) {
	return r.query(`SELECT `+recordingColumns+` FROM recordings WHERE subject = ?
		ORDER BY sequence, trial, started_at`, subject)
}

func (r *RecordingRepository) query(q string, args ...any) ([]*Recording, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// NextTrial returns the trial number following the highest one recorded for
// subject and sequence, starting at 1.
func (r *RecordingRepository) NextTrial(subject string, sequence int) (int, error) {
	var last sql.NullInt64
	err := r.db.QueryRow(
		`SELECT MAX(trial) FROM recordings WHERE subject = ? AND sequence = ?`,
		subject, sequence,
	).Scan(&last)
	if err != nil {
		return 0, err
	}
	if !last.Valid {
		return 1, nil
	}
	return int(last.Int64) + 1, nil
}

// AbandonRunning marks recordings left in StatusRecording as failed. It is
// called at startup, when no recording can be running.
func (r *RecordingRepository) AbandonRunning() (int64, error) {
	result, err := r.db.Exec(
		`UPDATE recordings SET status = ?, error = ?, finished_at = ? WHERE status = ?`,
		string(StatusFailed), "interrupted", time.Now(), string(StatusRecording),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a recording from the catalog. The files are left alone.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
