// Package store provides repositories over the StudyFlow database: study
// sessions and their tags, daily health metrics, physical activities, and
// user-defined custom factors with their sparse override log.
//
// The correlation engine treats this package as its only source of truth;
// every read is a committed range query with no long-lived cursors.
package store

import (
	"fmt"

	"github.com/aristath/studyflow/internal/database"
	"github.com/rs/zerolog"
)

// Store bundles the per-domain repositories over a single database.
type Store struct {
	Sessions   *SessionRepository
	Health     *HealthRepository
	Activities *ActivityRepository
	Factors    *FactorRepository

	db  *database.DB
	log zerolog.Logger
}

// New creates a Store over an open database connection.
func New(db *database.DB, log zerolog.Logger) *Store {
	l := log.With().Str("component", "store").Logger()
	conn := db.Conn()
	return &Store{
		Sessions:   &SessionRepository{db: conn, log: l},
		Health:     &HealthRepository{db: conn, log: l},
		Activities: &ActivityRepository{db: conn, log: l},
		Factors:    &FactorRepository{db: conn, log: l},
		db:         db,
		log:        l,
	}
}

// schema is the single source of truth for the application tables.
// Dates are TEXT in ISO form (YYYY-MM-DD); timestamps are TEXT in
// "YYYY-MM-DD HH:MM:SS" form so sqlite's date() works on them directly.
const schema = `
CREATE TABLE IF NOT EXISTS categories (
    name TEXT PRIMARY KEY NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
    name          TEXT PRIMARY KEY NOT NULL,
    color         TEXT DEFAULT '#3b8ed0',
    category_name TEXT,
    FOREIGN KEY (category_name) REFERENCES categories (name)
);

CREATE TABLE IF NOT EXISTS sessions (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    tag              TEXT NOT NULL,
    start_time       TEXT NOT NULL,
    end_time         TEXT NOT NULL,
    duration_seconds INTEGER NOT NULL,
    notes            TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time);

CREATE TABLE IF NOT EXISTS health_metrics (
    date                   TEXT PRIMARY KEY,
    sleep_score            INTEGER,
    resting_hr             INTEGER,
    body_battery           INTEGER,
    pulse_ox               REAL,
    respiration            REAL,
    sleep_duration_seconds INTEGER,
    avg_stress             INTEGER
);

CREATE TABLE IF NOT EXISTS activities (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    activity_type    TEXT NOT NULL,
    start_time       TEXT NOT NULL UNIQUE,
    duration_seconds INTEGER NOT NULL,
    distance         REAL,
    calories         INTEGER
);
CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities (start_time);

CREATE TABLE IF NOT EXISTS custom_factors (
    name       TEXT PRIMARY KEY,
    start_date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_factor_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    factor_name TEXT NOT NULL,
    date        TEXT NOT NULL,
    value       INTEGER NOT NULL,
    FOREIGN KEY (factor_name) REFERENCES custom_factors (name) ON DELETE CASCADE,
    UNIQUE (factor_name, date)
);
`

// Migrate creates the application tables if they do not exist.
func (s *Store) Migrate() error {
	if _, err := s.db.Conn().Exec(schema); err != nil {
		return fmt.Errorf("failed to apply store schema: %w", err)
	}
	s.log.Debug().Msg("Store schema applied")
	return nil
}
