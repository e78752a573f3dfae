package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/studyflow/internal/engine/frame"
	"github.com/aristath/studyflow/internal/store"
)

// AssembleDailyFeatures builds the dense daily feature frame for the
// inclusive date range. Every domain is joined onto the date index, never
// the reverse, so the frame has exactly one row per calendar day regardless
// of which domains have data. Empty domains contribute no columns or all-NaN
// columns; callers must tolerate absent columns.
func (e *Engine) AssembleDailyFeatures(start, end time.Time, category string) (*frame.Frame, error) {
	df := frame.NewDaily(start, end)

	if err := e.joinStudyMinutes(df, start, end, category); err != nil {
		return nil, err
	}
	if err := e.joinHealthMetrics(df, start, end); err != nil {
		return nil, err
	}
	if err := e.joinActivityAggregates(df, start, end); err != nil {
		return nil, err
	}
	if err := e.joinCustomFactors(df); err != nil {
		return nil, err
	}

	if df.Has(colSleepDurationSecs) {
		secs := df.Column(colSleepDurationSecs)
		hours := make([]float64, len(secs))
		for i, v := range secs {
			hours[i] = v / 3600
		}
		_ = df.Set(colSleepDurationHrs, hours)
	}
	return df, nil
}

// joinStudyMinutes adds the target column. Days strictly before the earliest
// ever recorded session are NaN, distinguishing "not tracking yet" from
// "tracked and did nothing"; on or after it, days without sessions are 0.
// The anchor is the global earliest session, not the earliest within the
// active category filter.
func (e *Engine) joinStudyMinutes(df *frame.Frame, start, end time.Time, category string) error {
	minutes, err := e.store.StudyMinutesByDay(start, end, category)
	if err != nil {
		return err
	}
	earliest, err := e.store.EarliestSessionDate()
	if err != nil {
		return err
	}

	values := make([]float64, df.Len())
	for i, d := range df.Dates() {
		if earliest == nil || d.Before(frame.Midnight(*earliest)) {
			values[i] = math.NaN()
			continue
		}
		values[i] = minutes[d.Format(store.DateFormat)]
	}
	return df.Set(TargetColumn, values)
}

// joinHealthMetrics left-joins the per-day health record onto the index.
// Days without a record leave every health column NaN.
func (e *Engine) joinHealthMetrics(df *frame.Frame, start, end time.Time) error {
	days, err := e.store.HealthByDay(start, end)
	if err != nil {
		return err
	}

	cols := []struct {
		name string
		get  func(store.HealthDay) *float64
	}{
		{colSleepScore, func(d store.HealthDay) *float64 { return d.SleepScore }},
		{colRestingHR, func(d store.HealthDay) *float64 { return d.RestingHR }},
		{colBodyBattery, func(d store.HealthDay) *float64 { return d.BodyBattery }},
		{colPulseOx, func(d store.HealthDay) *float64 { return d.PulseOx }},
		{colRespiration, func(d store.HealthDay) *float64 { return d.Respiration }},
		{colSleepDurationSecs, func(d store.HealthDay) *float64 { return d.SleepDurationSeconds }},
		{colAvgStress, func(d store.HealthDay) *float64 { return d.AvgStress }},
	}

	for _, c := range cols {
		byDate := make(map[time.Time]float64, len(days))
		for _, day := range days {
			if v := c.get(day); v != nil {
				byDate[frame.Midnight(day.Date)] = *v
			}
		}
		df.JoinByDate(c.name, byDate)
	}
	return nil
}

// joinActivityAggregates derives the per-day activity columns. When the
// range has no activities at all, the columns are entirely absent rather
// than all-NaN, matching how an empty domain behaves elsewhere.
func (e *Engine) joinActivityAggregates(df *frame.Frame, start, end time.Time) error {
	acts, err := e.store.ActivitiesBetween(start, end)
	if err != nil {
		return err
	}
	if len(acts) == 0 {
		return nil
	}

	type dayAgg struct {
		runningSecs   float64
		hasRunning    bool
		distance      float64
		count         int
		breathwork    int
		hasBreathwork bool
		totalSecs     float64
		totalCalories float64
	}
	byDay := make(map[time.Time]*dayAgg)
	for _, a := range acts {
		day := frame.Midnight(a.StartTime)
		agg, ok := byDay[day]
		if !ok {
			agg = &dayAgg{}
			byDay[day] = agg
		}
		agg.count++
		agg.totalSecs += a.DurationSeconds
		if a.Distance != nil {
			agg.distance += *a.Distance
		}
		if a.Calories != nil {
			agg.totalCalories += *a.Calories
		}
		lower := strings.ToLower(a.ActivityType)
		if strings.Contains(lower, "running") {
			agg.runningSecs += a.DurationSeconds
			agg.hasRunning = true
		}
		if strings.Contains(lower, "breathwork") {
			agg.breathwork++
			agg.hasBreathwork = true
		}
	}

	join := func(name string, value func(*dayAgg) (float64, bool)) {
		byDate := make(map[time.Time]float64, len(byDay))
		for day, agg := range byDay {
			if v, ok := value(agg); ok {
				byDate[day] = v
			}
		}
		df.JoinByDate(name, byDate)
	}

	// Running and breathwork columns only have values on days with matching
	// activities; other days stay NaN even when unrelated activities exist.
	join(colRunningMinutes, func(a *dayAgg) (float64, bool) { return a.runningSecs / 60, a.hasRunning })
	join(colDistance, func(a *dayAgg) (float64, bool) { return a.distance, true })
	join(colActivityCount, func(a *dayAgg) (float64, bool) { return float64(a.count), true })
	join(colBreathwork, func(a *dayAgg) (float64, bool) { return float64(a.breathwork), a.hasBreathwork })
	join(colTotalActivityMins, func(a *dayAgg) (float64, bool) { return a.totalSecs / 60, true })
	join(colTotalCalories, func(a *dayAgg) (float64, bool) { return a.totalCalories, true })
	join(colAvgActivityMins, func(a *dayAgg) (float64, bool) { return a.totalSecs / 60 / float64(a.count), true })
	return nil
}

// joinCustomFactors adds one column per registered factor. The sparse
// override log is forward-filled onto the index, with leading days before
// any log entry defaulting to 0.
func (e *Engine) joinCustomFactors(df *frame.Frame) error {
	names, err := e.store.FactorNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		col := FactorColumn(name)
		log, err := e.store.FactorLog(name)
		if err != nil {
			return err
		}
		if len(log) == 0 {
			df.SetConst(col, 0)
			continue
		}

		values := make([]float64, df.Len())
		j := 0
		current := 0.0
		for i, d := range df.Dates() {
			for j < len(log) && !frame.Midnight(log[j].Date).After(d) {
				current = log[j].Value
				j++
			}
			values[i] = current
		}
		_ = df.Set(col, values)
	}
	return nil
}

// FactorColumn maps a factor name to its frame column. Sanitization lives
// here and nowhere else so renaming rules stay in one place.
func FactorColumn(name string) string {
	return CustomFactorPrefix + strings.ReplaceAll(name, " ", "_")
}

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// dayDummies one-hot encodes the frame's dates by weekday name, dropping the
// alphabetically first category present as the baseline. Names and columns
// are aligned; a frame whose dates all share one weekday yields no dummies.
func dayDummies(dates []time.Time) ([]string, [][]float64) {
	present := make(map[string]bool)
	for _, d := range dates {
		present[d.Weekday().String()] = true
	}
	var names []string
	for name := range present {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) <= 1 {
		return nil, nil
	}
	names = names[1:] // baseline dropped

	cols := make([][]float64, len(names))
	for k, name := range names {
		col := make([]float64, len(dates))
		for i, d := range dates {
			if d.Weekday().String() == name {
				col[i] = 1
			}
		}
		cols[k] = col
	}
	return names, cols
}

// isDayOfWeek reports whether a design-matrix column is a weekday dummy.
// Dummies stay in every fit as controls but are filtered out of results.
func isDayOfWeek(name string) bool {
	for _, day := range dayNames {
		if name == day {
			return true
		}
	}
	return false
}

// displayName cleans a feature column name for presentation: the custom
// factor prefix is stripped, underscores become spaces, words are titled.
func displayName(factor string) string {
	s := strings.TrimPrefix(factor, CustomFactorPrefix)
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
