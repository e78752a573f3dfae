package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/studyflow/internal/store"
)

func TestRunSummaryStats(t *testing.T) {
	earliest := day(0)
	fs := &fakeStore{
		minutes: map[string]float64{
			day(0).Format(store.DateFormat): 30,
			day(1).Format(store.DateFormat): 90,
		},
		earliest: &earliest,
	}
	score := 80.0
	fs.health = append(fs.health, store.HealthDay{Date: day(0), SleepScore: &score})
	e := newTestEngine(fs)

	stats, err := e.RunSummaryStats(day(0), day(2), "")
	require.NoError(t, err)
	require.NotEmpty(t, stats)

	byName := make(map[string]ColumnSummary, len(stats))
	for _, s := range stats {
		byName[s.Name] = s
	}

	target, ok := byName[TargetColumn]
	require.True(t, ok)
	assert.Equal(t, 3, target.Count)
	require.NotNil(t, target.Mean)
	assert.InDelta(t, 40.0, *target.Mean, 1e-9)
	require.NotNil(t, target.Min)
	assert.Equal(t, 0.0, *target.Min)
	require.NotNil(t, target.Max)
	assert.Equal(t, 90.0, *target.Max)

	sleep, ok := byName[colSleepScore]
	require.True(t, ok)
	assert.Equal(t, 1, sleep.Count)
	require.NotNil(t, sleep.Mean)
	assert.Equal(t, 80.0, *sleep.Mean)
	// A single observation has no sample standard deviation.
	assert.Nil(t, sleep.Std)
}

func TestDescribeColumnEmpty(t *testing.T) {
	s := describeColumn("sleep_score", []float64{math.NaN(), math.NaN()})
	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.Mean)
	assert.Nil(t, s.Std)
	assert.Nil(t, s.Min)
	assert.Nil(t, s.Max)
}
