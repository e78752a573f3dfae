package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ActivityRepository reads and writes logged physical activities.
type ActivityRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// Between returns all activities whose start date falls within the inclusive
// range, ordered by start time. An empty result is normal for users without
// an activity tracker.
func (r *ActivityRepository) Between(start, end time.Time) ([]Activity, error) {
	rows, err := r.db.Query(`
		SELECT id, activity_type, start_time, duration_seconds, distance, calories
		FROM activities
		WHERE date(start_time) BETWEEN ? AND ?
		ORDER BY start_time`,
		start.Format(DateFormat), end.Format(DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var startStr string
		var duration float64
		var distance, calories sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.ActivityType, &startStr, &duration, &distance, &calories); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		startTime, err := parseStoredTime(startStr)
		if err != nil {
			r.log.Warn().Str("start_time", startStr).Msg("Skipping activity with invalid start time")
			continue
		}
		a.StartTime = startTime
		a.DurationSeconds = duration
		a.Distance = nullToPtr(distance)
		a.Calories = nullToPtr(calories)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// Add inserts an activity. Duplicate start times are ignored, matching the
// importer's dedup behavior.
func (r *ActivityRepository) Add(activityType string, start time.Time, durationSeconds float64, distance, calories *float64) error {
	if _, err := r.db.Exec(`
		INSERT OR IGNORE INTO activities (activity_type, start_time, duration_seconds, distance, calories)
		VALUES (?, ?, ?, ?, ?)`,
		activityType, start.Format(TimeFormat), durationSeconds,
		ptrToNull(distance), ptrToNull(calories),
	); err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func nullToPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// parseStoredTime accepts the two timestamp shapes that importers have
// historically written.
func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
