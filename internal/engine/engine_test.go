package engine

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/studyflow/internal/store"
)

// fakeStore is an in-memory DataStore for engine tests.
type fakeStore struct {
	minutes    map[string]float64
	earliest   *time.Time
	health     []store.HealthDay
	activities []store.Activity
	factors    map[string][]store.FactorOverride
}

func (f *fakeStore) StudyMinutesByDay(start, end time.Time, category string) (map[string]float64, error) {
	return f.minutes, nil
}
func (f *fakeStore) EarliestSessionDate() (*time.Time, error) { return f.earliest, nil }
func (f *fakeStore) HealthByDay(start, end time.Time) ([]store.HealthDay, error) {
	return f.health, nil
}
func (f *fakeStore) ActivitiesBetween(start, end time.Time) ([]store.Activity, error) {
	return f.activities, nil
}
func (f *fakeStore) FactorNames() ([]string, error) {
	var names []string
	for name := range f.factors {
		names = append(names, name)
	}
	return names, nil
}
func (f *fakeStore) FactorLog(name string) ([]store.FactorOverride, error) {
	return f.factors[name], nil
}

func day(offset int) time.Time {
	return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func newTestEngine(fs *fakeStore) *Engine {
	return New(fs, DefaultConfig(), zerolog.Nop())
}

// syntheticStore builds n days of study minutes and sleep scores starting at
// day(0), with tracking anchored at day(0).
func syntheticStore(n int, seed int64) *fakeStore {
	rng := rand.New(rand.NewSource(seed))
	earliest := day(0)
	fs := &fakeStore{
		minutes:  make(map[string]float64),
		earliest: &earliest,
	}
	for i := 0; i < n; i++ {
		d := day(i)
		fs.minutes[d.Format(store.DateFormat)] = float64(rng.Intn(300))
		score := float64(60 + rng.Intn(40))
		fs.health = append(fs.health, store.HealthDay{Date: d, SleepScore: &score})
	}
	return fs
}

func TestAssembleDailyFeatures_DateRangeComplete(t *testing.T) {
	e := newTestEngine(&fakeStore{minutes: map[string]float64{}})

	df, err := e.AssembleDailyFeatures(day(0), day(29), "")
	require.NoError(t, err)

	assert.Equal(t, 30, df.Len())
	seen := make(map[time.Time]bool)
	for i := 0; i < df.Len(); i++ {
		d := df.Date(i)
		assert.False(t, seen[d], "duplicate date %s", d)
		seen[d] = true
		if i > 0 {
			assert.Equal(t, df.Date(i-1).AddDate(0, 0, 1), d, "gap before %s", d)
		}
	}
}

func TestAssembleDailyFeatures_TargetPreHistory(t *testing.T) {
	earliest := day(10)
	fs := &fakeStore{
		minutes:  map[string]float64{day(12).Format(store.DateFormat): 90},
		earliest: &earliest,
	}
	e := newTestEngine(fs)

	df, err := e.AssembleDailyFeatures(day(0), day(19), "")
	require.NoError(t, err)

	target := df.Column(TargetColumn)
	for i := 0; i < 10; i++ {
		assert.True(t, math.IsNaN(target[i]), "day %d predates tracking", i)
	}
	for i := 10; i < 20; i++ {
		require.False(t, math.IsNaN(target[i]), "day %d is after tracking started", i)
		assert.GreaterOrEqual(t, target[i], 0.0)
	}
	assert.Equal(t, 90.0, target[12])
	assert.Equal(t, 0.0, target[11])
}

func TestAssembleDailyFeatures_NoSessionsEver(t *testing.T) {
	e := newTestEngine(&fakeStore{minutes: map[string]float64{}})

	df, err := e.AssembleDailyFeatures(day(0), day(9), "")
	require.NoError(t, err)

	for _, v := range df.Column(TargetColumn) {
		assert.True(t, math.IsNaN(v))
	}
}

func TestAssembleDailyFeatures_ActivityColumnsAbsentWhenEmpty(t *testing.T) {
	e := newTestEngine(syntheticStore(10, 1))

	df, err := e.AssembleDailyFeatures(day(0), day(9), "")
	require.NoError(t, err)

	assert.False(t, df.Has("running_minutes"))
	assert.False(t, df.Has("activity_count"))
	assert.False(t, df.Has("total_activity_minutes"))
}

func TestAssembleDailyFeatures_ActivityAggregates(t *testing.T) {
	fs := syntheticStore(10, 2)
	dist := 5.0
	fs.activities = []store.Activity{
		{ActivityType: "Trail Running", StartTime: day(3).Add(8 * time.Hour), DurationSeconds: 1800, Distance: &dist},
		{ActivityType: "Breathwork", StartTime: day(3).Add(20 * time.Hour), DurationSeconds: 600},
		{ActivityType: "Cycling", StartTime: day(5).Add(9 * time.Hour), DurationSeconds: 3600},
	}
	e := newTestEngine(fs)

	df, err := e.AssembleDailyFeatures(day(0), day(9), "")
	require.NoError(t, err)

	// Day 3: one running activity (substring match), one breathwork.
	assert.Equal(t, 30.0, df.At("running_minutes", 3))
	assert.Equal(t, 1.0, df.At("breathwork_sessions", 3))
	assert.Equal(t, 2.0, df.At("activity_count", 3))
	assert.Equal(t, 40.0, df.At("total_activity_minutes", 3))
	assert.Equal(t, 20.0, df.At("avg_activity_duration_minutes", 3))
	assert.Equal(t, 5.0, df.At("distance", 3))

	// Day 5 has no running, so the running column stays missing there.
	assert.True(t, math.IsNaN(df.At("running_minutes", 5)))
	assert.Equal(t, 1.0, df.At("activity_count", 5))

	// Day 4 has no activities at all.
	assert.True(t, math.IsNaN(df.At("activity_count", 4)))
}

func TestAssembleDailyFeatures_CustomFactorForwardFill(t *testing.T) {
	fs := syntheticStore(10, 3)
	fs.factors = map[string][]store.FactorOverride{
		"morning walk": {
			{Date: day(3), Value: 1},
			{Date: day(6), Value: 0},
		},
	}
	e := newTestEngine(fs)

	df, err := e.AssembleDailyFeatures(day(0), day(9), "")
	require.NoError(t, err)

	col := df.Column("factor_morning_walk")
	require.NotNil(t, col)
	assert.Equal(t, []float64{0, 0, 0, 1, 1, 1, 0, 0, 0, 0}, col)
}

func TestAvailableFeatures_ThresholdBoundary(t *testing.T) {
	fs := syntheticStore(30, 4)
	// Keep sleep scores on exactly 9 days.
	fs.health = fs.health[:9]
	e := newTestEngine(fs)

	df, err := e.AssembleDailyFeatures(day(0), day(29), "")
	require.NoError(t, err)
	assert.NotContains(t, e.availableFeatures(df), "sleep_score")

	fs.health = syntheticStore(30, 4).health[:10]
	df, err = e.AssembleDailyFeatures(day(0), day(29), "")
	require.NoError(t, err)
	assert.Contains(t, e.availableFeatures(df), "sleep_score")
}

func TestPrepareModelData_ImputedNeverFillsTarget(t *testing.T) {
	fs := syntheticStore(30, 5)
	// Tracking starts at day 5, so the first five targets are NaN.
	earliest := day(5)
	fs.earliest = &earliest
	e := newTestEngine(fs)

	df, err := e.AssembleDailyFeatures(day(0), day(29), "")
	require.NoError(t, err)

	features := e.availableFeatures(df)
	model, msg := e.prepareModelData(df, features, Imputed, e.cfg.MinDailyRows, "days")
	require.Empty(t, msg)

	assert.Equal(t, 25, model.Len())
	for _, v := range model.Column(TargetColumn) {
		assert.False(t, math.IsNaN(v))
	}
}

func TestPrepareModelData_RowGateBoundary(t *testing.T) {
	e := newTestEngine(syntheticStore(9, 6))
	df, err := e.AssembleDailyFeatures(day(0), day(8), "")
	require.NoError(t, err)

	// 9 days cannot clear the 10-observation feature filter either, so force
	// the availability list and check the row gate alone.
	_, msg := e.prepareModelData(df, []string{"sleep_score"}, Strict, e.cfg.MinDailyRows, "days")
	assert.Contains(t, msg, "at least 10")

	e = newTestEngine(syntheticStore(10, 6))
	df, err = e.AssembleDailyFeatures(day(0), day(9), "")
	require.NoError(t, err)
	model, msg := e.prepareModelData(df, []string{"sleep_score"}, Strict, e.cfg.MinDailyRows, "days")
	assert.Empty(t, msg)
	assert.Equal(t, 10, model.Len())
}

func TestPrepareModelData_NoFeatures(t *testing.T) {
	e := newTestEngine(syntheticStore(30, 7))
	df, err := e.AssembleDailyFeatures(day(0), day(29), "")
	require.NoError(t, err)

	_, msg := e.prepareModelData(df, nil, Strict, e.cfg.MinDailyRows, "days")
	assert.Contains(t, msg, "No single factor had enough data points")
}

func TestRunAnalysis_StandardEndToEnd(t *testing.T) {
	e := newTestEngine(syntheticStore(60, 42))

	res, err := e.RunAnalysis(Request{
		Start:      day(0),
		End:        day(59),
		DataMethod: Strict,
		ModelType:  ModelStandard,
	})
	require.NoError(t, err)
	require.Empty(t, res.ErrMessage())

	std, ok := res.(*StandardResult)
	require.True(t, ok)

	var names []string
	for _, f := range append(std.SignificantFactors, std.InsignificantFactors...) {
		names = append(names, f.Name)
		for _, dayName := range []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"} {
			assert.NotEqual(t, dayName, f.Name)
		}
	}
	assert.Contains(t, names, "Sleep Score")
}

func TestRunAnalysis_LassoEndToEnd(t *testing.T) {
	e := newTestEngine(syntheticStore(60, 43))

	res, err := e.RunAnalysis(Request{
		Start:      day(0),
		End:        day(59),
		DataMethod: Imputed,
		ModelType:  ModelLasso,
	})
	require.NoError(t, err)
	require.Empty(t, res.ErrMessage())

	lasso, ok := res.(*LassoResult)
	require.True(t, ok)
	assert.Greater(t, lasso.Alpha, 0.0)
	assert.Equal(t, 1, len(lasso.SelectedFactors)+len(lasso.EliminatedFactors))
}

func TestRunAnalysis_LassoDeterministic(t *testing.T) {
	run := func() *LassoResult {
		e := newTestEngine(syntheticStore(60, 44))
		res, err := e.RunAnalysis(Request{
			Start: day(0), End: day(59), DataMethod: Strict, ModelType: ModelLasso,
		})
		require.NoError(t, err)
		return res.(*LassoResult)
	}
	first, second := run(), run()
	assert.Equal(t, first.Alpha, second.Alpha)
	assert.Equal(t, first.SelectedFactors, second.SelectedFactors)
}

func TestRunAnalysis_PCAEndToEnd(t *testing.T) {
	fs := syntheticStore(60, 45)
	// Add a second metric so the decomposition has something to rotate.
	for i := range fs.health {
		stress := float64(20 + i%30)
		fs.health[i].AvgStress = &stress
	}
	e := newTestEngine(fs)

	res, err := e.RunAnalysis(Request{
		Start: day(0), End: day(59), DataMethod: Strict, ModelType: ModelPCA,
	})
	require.NoError(t, err)
	require.Empty(t, res.ErrMessage())

	pca, ok := res.(*PCAResult)
	require.True(t, ok)
	require.NotEmpty(t, pca.Components)

	cum := 0.0
	for _, share := range pca.ExplainedVariance {
		cum += share
	}
	assert.GreaterOrEqual(t, cum, 0.95)
}

func TestRunAnalysis_ErrorFirstContract(t *testing.T) {
	e := newTestEngine(syntheticStore(5, 46))

	for _, model := range []ModelType{ModelStandard, ModelLasso, ModelPCA, ModelPLS, ModelQuantile, ModelVAR, ModelHMM} {
		res, err := e.RunAnalysis(Request{
			Start: day(0), End: day(4), DataMethod: Strict, ModelType: model,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.ErrMessage(), "model %s must fail on 5 days of data", model)
	}
}

func TestRunAnalysis_PLSGates(t *testing.T) {
	// 20 rows clear the PLS row gate but only one feature is available.
	e := newTestEngine(syntheticStore(20, 47))

	res, err := e.RunAnalysis(Request{
		Start: day(0), End: day(19), DataMethod: Strict, ModelType: ModelPLS,
	})
	require.NoError(t, err)
	assert.Contains(t, res.ErrMessage(), "at least 2 usable features")
}

func TestRunAnalysis_QuantileEndToEnd(t *testing.T) {
	e := newTestEngine(syntheticStore(40, 48))

	res, err := e.RunAnalysis(Request{
		Start: day(0), End: day(39), DataMethod: Strict, ModelType: ModelQuantile,
	})
	require.NoError(t, err)
	require.Empty(t, res.ErrMessage())

	q, ok := res.(*QuantileResult)
	require.True(t, ok)
	require.Len(t, q.Fits, 3)
	for _, fit := range q.Fits {
		assert.Empty(t, fit.Error)
		assert.NotEmpty(t, fit.Coefficients)
	}
}

func TestRunAnalysis_VAREndToEnd(t *testing.T) {
	e := newTestEngine(syntheticStore(80, 49))

	res, err := e.RunAnalysis(Request{
		Start: day(0), End: day(79), DataMethod: Strict, ModelType: ModelVAR,
	})
	require.NoError(t, err)
	require.Empty(t, res.ErrMessage())

	v, ok := res.(*VARResult)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v.LagOrder, 1)
	assert.Contains(t, v.Variables, TargetColumn)
	require.NotEmpty(t, v.Responses)
	for _, ir := range v.Responses {
		assert.Len(t, ir.Response, DefaultConfig().VARHorizon)
	}
}

func TestRunAnalysis_HMMEndToEnd(t *testing.T) {
	fs := syntheticStore(80, 50)
	for i := range fs.health {
		stress := float64(20 + (i*7)%40)
		fs.health[i].AvgStress = &stress
	}
	e := newTestEngine(fs)

	res, err := e.RunAnalysis(Request{
		Start: day(0), End: day(79), DataMethod: Strict, ModelType: ModelHMM,
	})
	require.NoError(t, err)
	require.Empty(t, res.ErrMessage())

	h, ok := res.(*HMMResult)
	require.True(t, ok)
	require.Len(t, h.States, 3)
	assert.Len(t, h.StateSequence, 80)

	total := 0
	for _, s := range h.States {
		total += s.Days
	}
	assert.Equal(t, 80, total)
}

func TestRunWeeklyAnalysis_TooFewWeeks(t *testing.T) {
	e := newTestEngine(syntheticStore(5, 51))

	// Five days resample to a single week, where no feature can clear the
	// 10-observation filter either; the week gate must win.
	res, err := e.RunWeeklyAnalysis(Request{
		Start: day(0), End: day(4), DataMethod: Imputed, ModelType: ModelLasso,
	})
	require.NoError(t, err)
	assert.Contains(t, res.ErrMessage(), "4 weeks")
}

func TestRunWeeklyAnalysis_NoFeaturesAfterWeekGate(t *testing.T) {
	// Eight full weeks clear the week gate, but eight weekly observations per
	// feature stay under the 10-observation availability filter.
	e := newTestEngine(syntheticStore(56, 52))

	res, err := e.RunWeeklyAnalysis(Request{
		Start: day(0), End: day(55), DataMethod: Imputed, ModelType: ModelLasso,
	})
	require.NoError(t, err)
	assert.Contains(t, res.ErrMessage(), "No single factor had enough data points")
}

func TestRunWeeklyAnalysis_RejectsSequenceModels(t *testing.T) {
	e := newTestEngine(syntheticStore(120, 52))

	res, err := e.RunWeeklyAnalysis(Request{
		Start: day(0), End: day(119), DataMethod: Imputed, ModelType: ModelVAR,
	})
	require.NoError(t, err)
	assert.Contains(t, res.ErrMessage(), "Standard, Lasso and PCA")
}

func TestRunCCF(t *testing.T) {
	e := newTestEngine(syntheticStore(60, 53))

	res, err := e.RunCCF(day(0), day(59), "")
	require.NoError(t, err)
	require.Empty(t, res.Error)

	assert.Len(t, res.Lags, 15)
	require.Contains(t, res.Features, "sleep_score")
	row := res.Correlations["sleep_score"]
	require.Len(t, row, 15)
	for _, r := range row {
		assert.False(t, math.IsNaN(r))
		assert.LessOrEqual(t, math.Abs(r), 1.0)
	}
}

func TestRunEventStudy_NoEvents(t *testing.T) {
	e := newTestEngine(syntheticStore(60, 54))

	res, err := e.RunEventStudy(EventStudyRequest{
		Start: day(0), End: day(59),
		Feature:   "sleep_score",
		Threshold: 1e6,
		Direction: ShockDrop,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "No qualifying")
}

func TestRunEventStudy_DetectsSpikes(t *testing.T) {
	fs := syntheticStore(60, 55)
	// Flatten sleep scores, then spike one day well above baseline.
	for i := range fs.health {
		score := 70.0
		if i == 30 {
			score = 100
		}
		fs.health[i].SleepScore = &score
	}
	e := newTestEngine(fs)

	res, err := e.RunEventStudy(EventStudyRequest{
		Start: day(0), End: day(59),
		Feature:   "sleep_score",
		Window:    7,
		Threshold: 10,
		Direction: ShockSpike,
	})
	require.NoError(t, err)
	require.Empty(t, res.Error)
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, -7, res.Offsets[0])
	assert.Equal(t, 8, res.Offsets[len(res.Offsets)-1])
}

func TestRunWeeklyEfficiency(t *testing.T) {
	fs := syntheticStore(56, 56)
	hours := 7.5 * 3600
	for i := range fs.health {
		h := hours
		fs.health[i].SleepDurationSeconds = &h
	}
	e := newTestEngine(fs)

	res, err := e.RunWeeklyEfficiency(Request{Start: day(0), End: day(55)})
	require.NoError(t, err)
	require.Empty(t, res.Error)

	assert.GreaterOrEqual(t, res.Weeks, 4)
	assert.NotEmpty(t, res.Insights)
	require.Contains(t, res.CorrelationMatrix, "study_per_sleep_hour")
	assert.InDelta(t, 1.0, res.CorrelationMatrix["study_per_sleep_hour"]["study_per_sleep_hour"], 1e-9)
}

func TestRunWeeklyEfficiency_TooFewWeeks(t *testing.T) {
	e := newTestEngine(syntheticStore(5, 57))

	res, err := e.RunWeeklyEfficiency(Request{Start: day(0), End: day(4)})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "4 full weeks")
}

func TestAddRollingFeatures(t *testing.T) {
	e := newTestEngine(syntheticStore(30, 58))
	df, err := e.AssembleDailyFeatures(day(0), day(29), "")
	require.NoError(t, err)

	out := e.AddRollingFeatures(df, []int{7}, 3)

	require.True(t, out.Has("sleep_score_roll7_mean"))
	require.True(t, out.Has("sleep_score_roll7_std"))
	require.True(t, out.Has("sleep_score_roll7_sum"))
	require.True(t, out.Has("total_study_minutes_lag7_mean"))

	// Full window at index 10: the rolling mean equals the trailing mean.
	want := 0.0
	raw := df.Column("sleep_score")
	for i := 4; i <= 10; i++ {
		want += raw[i]
	}
	want /= 7
	assert.InDelta(t, want, out.At("sleep_score_roll7_mean", 10), 1e-9)

	// The lagged mean is the rolling mean shifted by the window size.
	assert.InDelta(t,
		out.At("total_study_minutes_roll7_mean", 10),
		out.At("total_study_minutes_lag7_mean", 17), 1e-9)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Sleep Score", displayName("sleep_score"))
	assert.Equal(t, "Morning Walk", displayName("factor_morning_walk"))
	assert.Equal(t, "Monday", displayName("Monday"))
}

func TestDayDummies_DropsBaseline(t *testing.T) {
	dates := make([]time.Time, 14)
	for i := range dates {
		dates[i] = day(i)
	}
	names, cols := dayDummies(dates)

	// Seven weekdays present, alphabetical baseline (Friday) dropped.
	require.Len(t, names, 6)
	assert.NotContains(t, names, "Friday")
	for _, col := range cols {
		sum := 0.0
		for _, v := range col {
			sum += v
		}
		assert.Equal(t, 2.0, sum)
	}
}

func TestDayDummies_SingleWeekday(t *testing.T) {
	// Weekly frames index on Sundays only; no dummies should come back.
	dates := []time.Time{day(6), day(13), day(20)}
	require.Equal(t, time.Sunday, dates[0].Weekday())

	names, cols := dayDummies(dates)
	assert.Nil(t, names)
	assert.Nil(t, cols)
}
