package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/studyflow/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := New(db, zerolog.Nop())
	require.NoError(t, st.Migrate())
	return st
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateFormat, s)
	require.NoError(t, err)
	return d
}

func TestStudyMinutesByDay(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Sessions.AddCategory("Languages"))
	require.NoError(t, st.Sessions.AddCategory("Music"))
	require.NoError(t, st.Sessions.AddTag("spanish", "Languages"))
	require.NoError(t, st.Sessions.AddTag("piano", "Music"))

	day1 := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC)

	// Two sessions on day1, one of them in another category.
	_, err := st.Sessions.Add("spanish", day1, day1.Add(30*time.Minute), 1800, "")
	require.NoError(t, err)
	_, err = st.Sessions.Add("spanish", day1.Add(time.Hour), day1.Add(90*time.Minute), 1800, "")
	require.NoError(t, err)
	_, err = st.Sessions.Add("piano", day1.Add(3*time.Hour), day1.Add(4*time.Hour), 3600, "")
	require.NoError(t, err)
	_, err = st.Sessions.Add("spanish", day2, day2.Add(15*time.Minute), 900, "notes")
	require.NoError(t, err)

	start := mustDate(t, "2025-09-01")
	end := mustDate(t, "2025-09-03")

	totals, err := st.Sessions.StudyMinutesByDay(start, end, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"2025-09-01": 120,
		"2025-09-02": 15,
	}, totals)

	languagesOnly, err := st.Sessions.StudyMinutesByDay(start, end, "Languages")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"2025-09-01": 60,
		"2025-09-02": 15,
	}, languagesOnly)
}

func TestEarliestSessionDate(t *testing.T) {
	st := newTestStore(t)

	earliest, err := st.Sessions.EarliestSessionDate()
	require.NoError(t, err)
	assert.Nil(t, earliest)

	require.NoError(t, st.Sessions.AddTag("spanish", ""))
	later := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)
	first := time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC)
	_, err = st.Sessions.Add("spanish", later, later.Add(time.Hour), 3600, "")
	require.NoError(t, err)
	_, err = st.Sessions.Add("spanish", first, first.Add(time.Hour), 3600, "")
	require.NoError(t, err)

	earliest, err = st.Sessions.EarliestSessionDate()
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.Equal(t, "2025-09-03", earliest.Format(DateFormat))
}

func TestCategories(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Sessions.AddCategory("Music"))
	require.NoError(t, st.Sessions.AddCategory("Languages"))
	require.NoError(t, st.Sessions.AddCategory("Music")) // duplicate ignored

	names, err := st.Sessions.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Languages", "Music"}, names)
}

func TestHealthUpsertAndByDay(t *testing.T) {
	st := newTestStore(t)

	score := 82.0
	stress := 31.0
	day := HealthDay{
		Date:       mustDate(t, "2025-09-01"),
		SleepScore: &score,
		AvgStress:  &stress,
	}
	require.NoError(t, st.Health.Upsert(day))

	days, err := st.Health.ByDay(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-07"))
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.NotNil(t, days[0].SleepScore)
	assert.Equal(t, 82.0, *days[0].SleepScore)
	require.NotNil(t, days[0].AvgStress)
	assert.Equal(t, 31.0, *days[0].AvgStress)
	assert.Nil(t, days[0].RestingHR)
	assert.Nil(t, days[0].SleepDurationSeconds)

	// Upsert replaces the existing record for the day.
	newScore := 90.0
	day.SleepScore = &newScore
	day.AvgStress = nil
	require.NoError(t, st.Health.Upsert(day))

	days, err = st.Health.ByDay(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-01"))
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.NotNil(t, days[0].SleepScore)
	assert.Equal(t, 90.0, *days[0].SleepScore)
	assert.Nil(t, days[0].AvgStress)
}

func TestHealthByDayCoercesBadText(t *testing.T) {
	st := newTestStore(t)

	// Manual CSV imports have written placeholder text into numeric columns.
	_, err := st.db.Conn().Exec(`
		INSERT INTO health_metrics (date, sleep_score, resting_hr) VALUES ('2025-09-01', '--', '55')`)
	require.NoError(t, err)

	days, err := st.Health.ByDay(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-01"))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Nil(t, days[0].SleepScore)
	require.NotNil(t, days[0].RestingHR)
	assert.Equal(t, 55.0, *days[0].RestingHR)
}

func TestActivitiesAddAndBetween(t *testing.T) {
	st := newTestStore(t)

	start := time.Date(2025, 9, 1, 7, 30, 0, 0, time.UTC)
	dist := 5.2
	cal := 410.0
	require.NoError(t, st.Activities.Add("Running", start, 1800, &dist, &cal))
	require.NoError(t, st.Activities.Add("Breathwork", start.Add(12*time.Hour), 600, nil, nil))
	// Duplicate start time is ignored.
	require.NoError(t, st.Activities.Add("Running", start, 9999, nil, nil))

	activities, err := st.Activities.Between(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-01"))
	require.NoError(t, err)
	require.Len(t, activities, 2)

	run := activities[0]
	assert.Equal(t, "Running", run.ActivityType)
	assert.Equal(t, 1800.0, run.DurationSeconds)
	require.NotNil(t, run.Distance)
	assert.Equal(t, 5.2, *run.Distance)
	require.NotNil(t, run.Calories)
	assert.Equal(t, 410.0, *run.Calories)

	breath := activities[1]
	assert.Equal(t, "Breathwork", breath.ActivityType)
	assert.Nil(t, breath.Distance)
	assert.Nil(t, breath.Calories)

	outside, err := st.Activities.Between(mustDate(t, "2025-09-02"), mustDate(t, "2025-09-05"))
	require.NoError(t, err)
	assert.Empty(t, outside)
}

func TestFactorLifecycle(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Factors.Add("meditated", mustDate(t, "2025-09-01")))
	require.NoError(t, st.Factors.Add("cold shower", mustDate(t, "2025-09-01")))
	require.NoError(t, st.Factors.Add("meditated", mustDate(t, "2025-09-05"))) // idempotent

	names, err := st.Factors.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"cold shower", "meditated"}, names)

	require.NoError(t, st.Factors.SetOverride("meditated", mustDate(t, "2025-09-03"), 1))
	require.NoError(t, st.Factors.SetOverride("meditated", mustDate(t, "2025-09-01"), 1))
	// Same-day override replaces the previous value.
	require.NoError(t, st.Factors.SetOverride("meditated", mustDate(t, "2025-09-03"), 0))

	log, err := st.Factors.Log("meditated")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "2025-09-01", log[0].Date.Format(DateFormat))
	assert.Equal(t, 1.0, log[0].Value)
	assert.Equal(t, "2025-09-03", log[1].Date.Format(DateFormat))
	assert.Equal(t, 0.0, log[1].Value)

	require.NoError(t, st.Factors.Delete("meditated"))
	names, err = st.Factors.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"cold shower"}, names)

	log, err = st.Factors.Log("meditated")
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestFactorAddSeedsLog(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.Factors.Add("meditated", mustDate(t, "2025-09-01")))

	// A fresh registration writes a zero anchor at its start date.
	log, err := st.Factors.Log("meditated")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "2025-09-01", log[0].Date.Format(DateFormat))
	assert.Equal(t, 0.0, log[0].Value)

	// Re-registering with a later date touches neither table.
	require.NoError(t, st.Factors.Add("meditated", mustDate(t, "2025-09-10")))
	log, err = st.Factors.Log("meditated")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "2025-09-01", log[0].Date.Format(DateFormat))
}
