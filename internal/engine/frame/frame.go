// Package frame provides the in-memory columnar table the correlation engine
// is built on: float64 columns aligned to a dense, ascending date index, with
// NaN marking missing values. It supports the operations the engine needs —
// date-aligned joins, rolling windows, weekly resampling and row filtering —
// and nothing else.
package frame

import (
	"fmt"
	"math"
	"time"
)

// Frame is a column-oriented table indexed by calendar date. The index is
// dense (one entry per day, no gaps) and immutable after construction;
// columns are added and replaced freely.
type Frame struct {
	dates []time.Time
	cols  map[string][]float64
	order []string
}

// NewDaily builds an empty frame with one row per calendar day in the closed
// interval [start, end]. Times are normalized to midnight UTC.
func NewDaily(start, end time.Time) *Frame {
	start = Midnight(start)
	end = Midnight(end)
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return &Frame{dates: dates, cols: make(map[string][]float64)}
}

// NewWithDates builds an empty frame over an explicit ascending date index.
func NewWithDates(dates []time.Time) *Frame {
	idx := make([]time.Time, len(dates))
	for i, d := range dates {
		idx[i] = Midnight(d)
	}
	return &Frame{dates: idx, cols: make(map[string][]float64)}
}

// Midnight truncates a time to midnight UTC, the canonical day key.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.dates) }

// Dates returns the date index. Callers must not modify it.
func (f *Frame) Dates() []time.Time { return f.dates }

// Date returns the date of row i.
func (f *Frame) Date(i int) time.Time { return f.dates[i] }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Set adds or replaces a column. The slice is stored as-is.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.dates) {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), len(f.dates))
	}
	if _, exists := f.cols[name]; !exists {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
	return nil
}

// SetConst adds or replaces a column filled with a constant value.
func (f *Frame) SetConst(name string, value float64) {
	values := make([]float64, len(f.dates))
	for i := range values {
		values[i] = value
	}
	_ = f.Set(name, values)
}

// Column returns a column's values, or nil when absent. Callers must not
// modify the returned slice; use ColumnCopy for that.
func (f *Frame) Column(name string) []float64 {
	return f.cols[name]
}

// ColumnCopy returns a copy of a column's values, or nil when absent.
func (f *Frame) ColumnCopy(name string) []float64 {
	src, ok := f.cols[name]
	if !ok {
		return nil
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// At returns the value of a column at row i; NaN when the column is absent.
func (f *Frame) At(name string, i int) float64 {
	col, ok := f.cols[name]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	out := &Frame{
		dates: f.dates,
		cols:  make(map[string][]float64, len(f.cols)),
		order: append([]string(nil), f.order...),
	}
	for name, col := range f.cols {
		c := make([]float64, len(col))
		copy(c, col)
		out.cols[name] = c
	}
	return out
}

// NonMissingCount returns the number of non-NaN values in a column; 0 when
// the column is absent.
func (f *Frame) NonMissingCount(name string) int {
	col, ok := f.cols[name]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// ColumnMean returns the mean of a column's non-NaN values; NaN when the
// column is absent or entirely missing.
func (f *Frame) ColumnMean(name string) float64 {
	col, ok := f.cols[name]
	if !ok {
		return math.NaN()
	}
	sum, n := 0.0, 0
	for _, v := range col {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// FillColumnMean replaces a column's NaN values with the column mean. A
// column with no valid values is left untouched.
func (f *Frame) FillColumnMean(name string) {
	col, ok := f.cols[name]
	if !ok {
		return
	}
	mean := f.ColumnMean(name)
	if math.IsNaN(mean) {
		return
	}
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = mean
		}
	}
}

// FilterRows returns a new frame containing the rows for which keep is true,
// preserving column order.
func (f *Frame) FilterRows(keep func(i int) bool) *Frame {
	var idx []int
	for i := range f.dates {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	dates := make([]time.Time, len(idx))
	for j, i := range idx {
		dates[j] = f.dates[i]
	}
	out := &Frame{dates: dates, cols: make(map[string][]float64, len(f.cols))}
	for _, name := range f.order {
		src := f.cols[name]
		col := make([]float64, len(idx))
		for j, i := range idx {
			col[j] = src[i]
		}
		out.cols[name] = col
		out.order = append(out.order, name)
	}
	return out
}

// DropRowsMissing returns a new frame without the rows that have a NaN in
// any of the given columns. Absent columns count as all-missing, dropping
// every row; callers are expected to pass columns that exist.
func (f *Frame) DropRowsMissing(cols []string) *Frame {
	return f.FilterRows(func(i int) bool {
		for _, name := range cols {
			col, ok := f.cols[name]
			if !ok || math.IsNaN(col[i]) {
				return false
			}
		}
		return true
	})
}

// Select returns a new frame restricted to the given columns, in the given
// order. Absent columns are skipped.
func (f *Frame) Select(cols []string) *Frame {
	out := &Frame{dates: f.dates, cols: make(map[string][]float64)}
	for _, name := range cols {
		if col, ok := f.cols[name]; ok {
			c := make([]float64, len(col))
			copy(c, col)
			out.cols[name] = c
			out.order = append(out.order, name)
		}
	}
	return out
}

// JoinByDate adds a column from a date-keyed map, aligning on the frame's
// index. Dates absent from the map become NaN.
func (f *Frame) JoinByDate(name string, byDate map[time.Time]float64) {
	values := make([]float64, len(f.dates))
	for i, d := range f.dates {
		if v, ok := byDate[d]; ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}
	_ = f.Set(name, values)
}
