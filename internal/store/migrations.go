package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Recordings table - one row per recording session
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			sequence INTEGER NOT NULL CHECK(sequence BETWEEN 1 AND 100),
			trial INTEGER NOT NULL CHECK(trial BETWEEN 1 AND 100),
			video_path TEXT NOT NULL,
			euler_path TEXT NOT NULL,
			quat_path TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('recording', 'completed', 'failed')),
			error TEXT NOT NULL DEFAULT '',
			ticks INTEGER NOT NULL DEFAULT 0,
			snapshots INTEGER NOT NULL DEFAULT 0,
			row_count INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// Hook runs table - results of post-recording hooks
		`CREATE TABLE IF NOT EXISTS hook_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			hook TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			ran_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_recordings_subject ON recordings(subject, sequence, trial)`,
		`CREATE INDEX IF NOT EXISTS idx_hook_runs_recording_id ON hook_runs(recording_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
