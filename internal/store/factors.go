package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/database"
)

// FactorRepository reads and writes user-defined binary factors ("meditated",
// "caffeine after 2pm", ...) and their sparse override log. The log holds one
// row per change; the engine forward-fills it over the full date range.
type FactorRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// Names returns all registered factor names in alphabetical order.
func (r *FactorRepository) Names() ([]string, error) {
	rows, err := r.db.Query(`SELECT name FROM custom_factors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom factors: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan custom factor name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Log returns a factor's override entries ordered by date ascending.
func (r *FactorRepository) Log(name string) ([]FactorOverride, error) {
	rows, err := r.db.Query(
		`SELECT date, value FROM custom_factor_log WHERE factor_name = ? ORDER BY date`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query factor log for %s: %w", name, err)
	}
	defer rows.Close()

	var overrides []FactorOverride
	for rows.Next() {
		var dateStr string
		var value float64
		if err := rows.Scan(&dateStr, &value); err != nil {
			return nil, fmt.Errorf("failed to scan factor log row: %w", err)
		}
		date, err := time.Parse(DateFormat, dateStr)
		if err != nil {
			r.log.Warn().Str("factor", name).Str("date", dateStr).Msg("Skipping factor override with invalid date")
			continue
		}
		overrides = append(overrides, FactorOverride{Date: date, Value: value})
	}
	return overrides, rows.Err()
}

// Add registers a factor. Registration is idempotent: re-adding an existing
// name changes nothing. A first-time registration also seeds the log with a
// zero entry at startDate, in the same transaction, so the forward-fill
// always has an anchor before the first real override.
func (r *FactorRepository) Add(name string, startDate time.Time) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO custom_factors (name, start_date) VALUES (?, ?)`,
			name, startDate.Format(DateFormat),
		)
		if err != nil {
			return fmt.Errorf("failed to insert custom factor %s: %w", name, err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result for factor %s: %w", name, err)
		}
		if inserted == 0 {
			return nil
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO custom_factor_log (factor_name, date, value) VALUES (?, ?, 0)`,
			name, startDate.Format(DateFormat),
		); err != nil {
			return fmt.Errorf("failed to seed log for factor %s: %w", name, err)
		}
		return nil
	})
}

// SetOverride records a factor's value for a day, replacing any previous
// entry for the same day.
func (r *FactorRepository) SetOverride(name string, date time.Time, value float64) error {
	if _, err := r.db.Exec(`
		INSERT INTO custom_factor_log (factor_name, date, value) VALUES (?, ?, ?)
		ON CONFLICT (factor_name, date) DO UPDATE SET value = excluded.value`,
		name, date.Format(DateFormat), value,
	); err != nil {
		return fmt.Errorf("failed to set override for factor %s: %w", name, err)
	}
	return nil
}

// Delete removes a factor and, via cascade, its log entries.
func (r *FactorRepository) Delete(name string) error {
	if _, err := r.db.Exec(`DELETE FROM custom_factors WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete custom factor %s: %w", name, err)
	}
	return nil
}
