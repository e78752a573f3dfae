package engine

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/aristath/studyflow/internal/store"
)

// TrendsResult carries the chart-ready daily series: raw study minutes with
// an exponential moving average overlay, plus sleep score and sleep hours
// scaled by 10 so they share an axis with the score.
type TrendsResult struct {
	Dates                    []string  `json:"dates"`
	StudyMinutes             []float64 `json:"study_minutes"`
	StudyMinutesEMA          []float64 `json:"study_minutes_ema"`
	SleepScore               []float64 `json:"sleep_score"`
	SleepDurationHoursScaled []float64 `json:"sleep_duration_hours_scaled"`
}

// RunTrends assembles the daily frame and smooths the target with an EMA of
// the given period. Periods longer than the range fall back to the plain
// mean so short ranges still chart something.
func (e *Engine) RunTrends(start, end time.Time, category string, emaPeriod int) (*TrendsResult, error) {
	df, err := e.AssembleDailyFeatures(start, end, category)
	if err != nil {
		return nil, err
	}
	if emaPeriod <= 0 {
		emaPeriod = 7
	}

	res := &TrendsResult{}
	for _, d := range df.Dates() {
		res.Dates = append(res.Dates, d.Format(store.DateFormat))
	}
	res.StudyMinutes = df.ColumnCopy(TargetColumn)
	res.SleepScore = df.ColumnCopy(colSleepScore)

	hours := df.Column(colSleepDurationHrs)
	res.SleepDurationHoursScaled = make([]float64, df.Len())
	for i := range res.SleepDurationHoursScaled {
		if hours == nil {
			res.SleepDurationHoursScaled[i] = math.NaN()
		} else {
			res.SleepDurationHoursScaled[i] = hours[i] * 10
		}
	}

	res.StudyMinutesEMA = smoothEMA(res.StudyMinutes, emaPeriod)
	return res, nil
}

// smoothEMA runs talib's EMA over the series with missing values zeroed
// (pre-tracking days carry no signal worth smoothing). Short series get a
// constant mean line instead.
func smoothEMA(values []float64, period int) []float64 {
	clean := make([]float64, len(values))
	sum, n := 0.0, 0
	for i, v := range values {
		if math.IsNaN(v) {
			clean[i] = 0
		} else {
			clean[i] = v
			sum += v
			n++
		}
	}
	if len(clean) < period {
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		out := make([]float64, len(values))
		for i := range out {
			out[i] = mean
		}
		return out
	}
	return talib.Ema(clean, period)
}
