package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// SessionRepository reads and writes study sessions, tags and categories.
type SessionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// StudyMinutesByDay returns the sum of session minutes per calendar day over
// the inclusive range, optionally restricted to a tag category. An empty
// category means all sessions count.
func (r *SessionRepository) StudyMinutesByDay(start, end time.Time, category string) (map[string]float64, error) {
	query := `
		SELECT date(s.start_time) AS day, SUM(s.duration_seconds) AS total_seconds
		FROM sessions s
		JOIN tags t ON s.tag = t.name
		WHERE date(s.start_time) BETWEEN ? AND ?`
	args := []any{start.Format(DateFormat), end.Format(DateFormat)}
	if category != "" {
		query += " AND t.category_name = ?"
		args = append(args, category)
	}
	query += " GROUP BY date(s.start_time)"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query study minutes: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var day string
		var seconds float64
		if err := rows.Scan(&day, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan study minutes row: %w", err)
		}
		totals[day] = seconds / 60
	}
	return totals, rows.Err()
}

// EarliestSessionDate returns the date of the first session ever recorded,
// or nil when no sessions exist. The engine uses this as the global anchor
// for the "no data before tracking started" rule; it is deliberately not
// restricted by any category filter, so filtered ranges stay comparable
// across filters (early in-range days with no matching sessions read 0).
func (r *SessionRepository) EarliestSessionDate() (*time.Time, error) {
	var day sql.NullString
	err := r.db.QueryRow(`SELECT MIN(date(start_time)) FROM sessions`).Scan(&day)
	if err != nil {
		return nil, fmt.Errorf("failed to query earliest session date: %w", err)
	}
	if !day.Valid || day.String == "" {
		return nil, nil
	}
	t, err := time.Parse(DateFormat, day.String)
	if err != nil {
		return nil, fmt.Errorf("invalid earliest session date %q: %w", day.String, err)
	}
	return &t, nil
}

// Add inserts a study session.
func (r *SessionRepository) Add(tag string, start, end time.Time, durationSeconds int64, notes string) (int64, error) {
	res, err := r.db.Exec(
		`INSERT INTO sessions (tag, start_time, end_time, duration_seconds, notes) VALUES (?, ?, ?, ?, ?)`,
		tag, start.Format(TimeFormat), end.Format(TimeFormat), durationSeconds, notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	return res.LastInsertId()
}

// AddTag inserts a tag, ignoring duplicates. An empty category leaves the
// tag uncategorized.
func (r *SessionRepository) AddTag(name, category string) error {
	var cat any
	if category != "" {
		cat = category
	}
	if _, err := r.db.Exec(
		`INSERT OR IGNORE INTO tags (name, category_name) VALUES (?, ?)`, name, cat,
	); err != nil {
		return fmt.Errorf("failed to insert tag %s: %w", name, err)
	}
	return nil
}

// AddCategory inserts a tag category, ignoring duplicates.
func (r *SessionRepository) AddCategory(name string) error {
	if _, err := r.db.Exec(`INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("failed to insert category %s: %w", name, err)
	}
	return nil
}

// Categories returns all tag category names in alphabetical order.
func (r *SessionRepository) Categories() ([]string, error) {
	rows, err := r.db.Query(`SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
