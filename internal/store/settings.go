package store

import (
	"database/sql"
	"errors"
)

// Setting keys used by the recorder.
const (
	SettingLastSubject  = "last_subject"
	SettingLastSequence = "last_sequence"
)

// SettingsRepository stores application settings as key-value pairs.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
