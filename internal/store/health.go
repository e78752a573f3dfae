package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// HealthRepository reads and writes the per-day health metric records
// populated by the Garmin importer.
type HealthRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// ByDay returns one record per day that has any health data in the inclusive
// range. Days without a record are simply absent. Values that cannot be read
// as numbers (manual entries like "--" or "N/A") come back as nil, never as
// an error: a single bad cell must not poison the whole range.
func (r *HealthRepository) ByDay(start, end time.Time) ([]HealthDay, error) {
	rows, err := r.db.Query(`
		SELECT date, sleep_score, resting_hr, body_battery, pulse_ox,
		       respiration, sleep_duration_seconds, avg_stress
		FROM health_metrics
		WHERE date BETWEEN ? AND ?
		ORDER BY date`,
		start.Format(DateFormat), end.Format(DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query health metrics: %w", err)
	}
	defer rows.Close()

	var days []HealthDay
	for rows.Next() {
		var dateStr string
		raw := make([]any, 7)
		dest := []any{&dateStr, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6]}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan health metrics row: %w", err)
		}
		date, err := time.Parse(DateFormat, dateStr)
		if err != nil {
			r.log.Warn().Str("date", dateStr).Msg("Skipping health record with invalid date")
			continue
		}
		days = append(days, HealthDay{
			Date:                 date,
			SleepScore:           coerceFloat(raw[0]),
			RestingHR:            coerceFloat(raw[1]),
			BodyBattery:          coerceFloat(raw[2]),
			PulseOx:              coerceFloat(raw[3]),
			Respiration:          coerceFloat(raw[4]),
			SleepDurationSeconds: coerceFloat(raw[5]),
			AvgStress:            coerceFloat(raw[6]),
		})
	}
	return days, rows.Err()
}

// Upsert inserts or replaces a day's health record.
func (r *HealthRepository) Upsert(day HealthDay) error {
	if _, err := r.db.Exec(`
		INSERT OR REPLACE INTO health_metrics
		    (date, sleep_score, resting_hr, body_battery, pulse_ox,
		     respiration, sleep_duration_seconds, avg_stress)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		day.Date.Format(DateFormat),
		ptrToNull(day.SleepScore), ptrToNull(day.RestingHR), ptrToNull(day.BodyBattery),
		ptrToNull(day.PulseOx), ptrToNull(day.Respiration),
		ptrToNull(day.SleepDurationSeconds), ptrToNull(day.AvgStress),
	); err != nil {
		return fmt.Errorf("failed to upsert health metrics for %s: %w", day.Date.Format(DateFormat), err)
	}
	return nil
}

// coerceFloat converts a raw driver value to a float, returning nil for
// NULLs and for text that does not parse as a number.
func coerceFloat(v any) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return &val
	case int64:
		f := float64(val)
		return &f
	case []byte:
		return parseFloat(string(val))
	case string:
		return parseFloat(val)
	default:
		return nil
	}
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func ptrToNull(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
