package engine

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ColumnSummary holds descriptive statistics for one feature column,
// computed over its non-missing values only. Moments that cannot be
// computed (empty column, single-observation std) are null in JSON.
type ColumnSummary struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

// RunSummaryStats assembles the daily feature frame and describes every
// column.
func (e *Engine) RunSummaryStats(start, end time.Time, category string) ([]ColumnSummary, error) {
	df, err := e.AssembleDailyFeatures(start, end, category)
	if err != nil {
		return nil, err
	}

	summaries := make([]ColumnSummary, 0, len(df.Columns()))
	for _, name := range df.Columns() {
		summaries = append(summaries, describeColumn(name, df.Column(name)))
	}
	return summaries, nil
}

func describeColumn(name string, values []float64) ColumnSummary {
	var valid []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	s := ColumnSummary{Name: name, Count: len(valid)}
	if len(valid) == 0 {
		return s
	}

	mean, std := stat.MeanStdDev(valid, nil)
	s.Mean = finiteOrNil(mean)
	s.Std = finiteOrNil(std)
	min, max := valid[0], valid[0]
	for _, v := range valid[1:] {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	s.Min = finiteOrNil(min)
	s.Max = finiteOrNil(max)
	return s
}

// finiteOrNil maps non-finite values to nil so the JSON layer never sees
// a NaN, which encoding/json refuses to marshal.
func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
