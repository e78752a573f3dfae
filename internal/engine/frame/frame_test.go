package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewDailyDenseIndex(t *testing.T) {
	f := NewDaily(day(2025, 9, 1), day(2025, 9, 30))
	require.Equal(t, 30, f.Len())

	seen := make(map[time.Time]bool)
	prev := time.Time{}
	for i := 0; i < f.Len(); i++ {
		d := f.Date(i)
		assert.False(t, seen[d], "duplicate date %s", d)
		seen[d] = true
		if i > 0 {
			assert.Equal(t, 24*time.Hour, d.Sub(prev), "gap before %s", d)
		}
		prev = d
	}
}

func TestJoinByDateAlignsAndFillsNaN(t *testing.T) {
	f := NewDaily(day(2025, 9, 1), day(2025, 9, 5))
	f.JoinByDate("sleep_score", map[time.Time]float64{
		day(2025, 9, 2): 80,
		day(2025, 9, 4): 90,
	})

	col := f.Column("sleep_score")
	require.Len(t, col, 5)
	assert.True(t, math.IsNaN(col[0]))
	assert.Equal(t, 80.0, col[1])
	assert.True(t, math.IsNaN(col[2]))
	assert.Equal(t, 90.0, col[3])
	assert.True(t, math.IsNaN(col[4]))
	assert.Equal(t, 2, f.NonMissingCount("sleep_score"))
}

func TestFillColumnMeanLeavesValidValues(t *testing.T) {
	f := NewDaily(day(2025, 9, 1), day(2025, 9, 4))
	require.NoError(t, f.Set("x", []float64{1, math.NaN(), 3, math.NaN()}))
	f.FillColumnMean("x")
	assert.Equal(t, []float64{1, 2, 3, 2}, f.Column("x"))
}

func TestDropRowsMissing(t *testing.T) {
	f := NewDaily(day(2025, 9, 1), day(2025, 9, 4))
	require.NoError(t, f.Set("a", []float64{1, math.NaN(), 3, 4}))
	require.NoError(t, f.Set("b", []float64{1, 2, math.NaN(), 4}))

	out := f.DropRowsMissing([]string{"a", "b"})
	require.Equal(t, 2, out.Len())
	assert.Equal(t, day(2025, 9, 1), out.Date(0))
	assert.Equal(t, day(2025, 9, 4), out.Date(1))
	assert.Equal(t, []float64{1, 4}, out.Column("a"))
}

func TestRollingMeanMatchesTrailingWindow(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70}
	w := 3
	got := RollingMean(values, w, w)

	for i := range values {
		if i < w-1 {
			assert.True(t, math.IsNaN(got[i]), "index %d should be NaN", i)
			continue
		}
		want := (values[i] + values[i-1] + values[i-2]) / 3
		assert.InDelta(t, want, got[i], 1e-12, "index %d", i)
	}
}

func TestLaggedRollingMeanIsShiftedByWindow(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8}
	w := 4
	roll := RollingMean(values, w, w)
	lag := Shift(roll, w)

	for i := w; i < len(values); i++ {
		if math.IsNaN(roll[i-w]) {
			assert.True(t, math.IsNaN(lag[i]))
		} else {
			assert.InDelta(t, roll[i-w], lag[i], 1e-12, "index %d", i)
		}
	}
}

func TestRollingMinPeriodsGate(t *testing.T) {
	values := []float64{1, 2, math.NaN(), 4, 5}
	got := RollingMean(values, 3, 2)

	assert.True(t, math.IsNaN(got[0]), "one observation is below min_periods")
	assert.InDelta(t, 1.5, got[1], 1e-12)
	assert.InDelta(t, 1.5, got[2], 1e-12) // window {1,2,NaN}
	assert.InDelta(t, 3.0, got[3], 1e-12) // window {2,NaN,4}
	assert.InDelta(t, 4.5, got[4], 1e-12) // window {NaN,4,5}
}

func TestRollingStdSingleObservationIsNaN(t *testing.T) {
	values := []float64{5, math.NaN(), math.NaN()}
	got := RollingStd(values, 3, 1)
	for i := range got {
		assert.True(t, math.IsNaN(got[i]), "index %d", i)
	}
}

func TestWeekEnding(t *testing.T) {
	// 2025-09-01 is a Monday; its week ends Sunday 2025-09-07.
	assert.Equal(t, day(2025, 9, 7), WeekEnding(day(2025, 9, 1)))
	assert.Equal(t, day(2025, 9, 7), WeekEnding(day(2025, 9, 7)))
	assert.Equal(t, day(2025, 9, 14), WeekEnding(day(2025, 9, 8)))
}

func TestResampleWeeklySumMatchesDailyTotals(t *testing.T) {
	// 8 complete Monday-to-Sunday weeks.
	f := NewDaily(day(2025, 9, 1), day(2025, 10, 26))
	require.Equal(t, 56, f.Len())

	study := make([]float64, f.Len())
	sleep := make([]float64, f.Len())
	for i := range study {
		study[i] = float64(30 + 7*i%120)
		sleep[i] = float64(60 + i%40)
	}
	require.NoError(t, f.Set("total_study_minutes", study))
	require.NoError(t, f.Set("sleep_score", sleep))

	weekly := f.ResampleWeekly(map[string]Agg{
		"total_study_minutes": AggSum,
		"sleep_score":         AggMean,
	}, []string{"total_study_minutes", "sleep_score"})

	require.Equal(t, 8, weekly.Len())

	for w := 0; w < weekly.Len(); w++ {
		sum, meanSum := 0.0, 0.0
		for i := 0; i < 7; i++ {
			sum += study[w*7+i]
			meanSum += sleep[w*7+i]
		}
		assert.InDelta(t, sum, weekly.At("total_study_minutes", w), 1e-9, "week %d", w)
		assert.InDelta(t, meanSum/7, weekly.At("sleep_score", w), 1e-9, "week %d", w)
		assert.Equal(t, time.Sunday, weekly.Date(w).Weekday())
	}
}

func TestResampleWeeklyDropsAllMissingWeeks(t *testing.T) {
	f := NewDaily(day(2025, 9, 1), day(2025, 9, 14))
	col := make([]float64, f.Len())
	for i := range col {
		if i < 7 {
			col[i] = math.NaN()
		} else {
			col[i] = 1
		}
	}
	require.NoError(t, f.Set("sleep_score", col))

	weekly := f.ResampleWeekly(map[string]Agg{"sleep_score": AggMean}, []string{"sleep_score"})
	require.Equal(t, 1, weekly.Len())
	assert.Equal(t, day(2025, 9, 14), weekly.Date(0))
}
