package frame

import (
	"math"
	"time"
)

// Agg selects the aggregation applied to a column during resampling.
type Agg int

const (
	// AggSum is used for flow quantities (study minutes, distance).
	// NaN values are skipped; an all-NaN bucket sums to 0.
	AggSum Agg = iota
	// AggMean is used for level quantities (sleep score, stress).
	// NaN values are skipped; an all-NaN bucket yields NaN.
	AggMean
)

// WeekEnding returns the Sunday that closes the calendar week containing d.
func WeekEnding(d time.Time) time.Time {
	d = Midnight(d)
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

// ResampleWeekly buckets the frame into weeks ending Sunday and aggregates
// each listed column. Columns not listed are dropped. Weeks where every
// aggregated column is missing are dropped; the returned frame is indexed by
// the week-ending Sunday.
func (f *Frame) ResampleWeekly(aggs map[string]Agg, order []string) *Frame {
	if f.Len() == 0 {
		return &Frame{cols: make(map[string][]float64)}
	}

	// Bucket row indices by week-ending date, preserving chronology.
	var weekDates []time.Time
	buckets := make(map[time.Time][]int)
	for i, d := range f.dates {
		wk := WeekEnding(d)
		if _, seen := buckets[wk]; !seen {
			weekDates = append(weekDates, wk)
		}
		buckets[wk] = append(buckets[wk], i)
	}

	// Aggregate only columns that exist, in the requested order.
	var cols []string
	for _, name := range order {
		if _, ok := aggs[name]; !ok {
			continue
		}
		if f.Has(name) {
			cols = append(cols, name)
		}
	}

	out := NewWithDates(weekDates)
	values := make(map[string][]float64, len(cols))
	for _, name := range cols {
		values[name] = make([]float64, len(weekDates))
	}

	for w, wk := range weekDates {
		for _, name := range cols {
			src := f.cols[name]
			sum, n := 0.0, 0
			for _, i := range buckets[wk] {
				if v := src[i]; !math.IsNaN(v) {
					sum += v
					n++
				}
			}
			switch aggs[name] {
			case AggSum:
				values[name][w] = sum
			case AggMean:
				if n == 0 {
					values[name][w] = math.NaN()
				} else {
					values[name][w] = sum / float64(n)
				}
			}
		}
	}
	for _, name := range cols {
		_ = out.Set(name, values[name])
	}

	// Drop weeks where every aggregated column is NaN.
	return out.FilterRows(func(i int) bool {
		if len(cols) == 0 {
			return true
		}
		for _, name := range cols {
			if !math.IsNaN(out.cols[name][i]) {
				return true
			}
		}
		return false
	})
}
