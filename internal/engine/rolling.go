package engine

import (
	"fmt"

	"github.com/aristath/studyflow/internal/engine/frame"
)

// AddRollingFeatures derives rolling mean, standard deviation and sum plus a
// window-lagged rolling mean for each rollable column present, over each
// window size. New columns are collected first and attached in one pass so
// column order stays stable: all of one window's columns before the next.
func (e *Engine) AddRollingFeatures(df *frame.Frame, windows []int, minPeriods int) *frame.Frame {
	out := df.Copy()

	type derived struct {
		name   string
		values []float64
	}
	var side []derived
	for _, w := range windows {
		for _, col := range e.cfg.RollableColumns {
			if !df.Has(col) {
				continue
			}
			values := df.Column(col)
			mean := frame.RollingMean(values, w, minPeriods)
			side = append(side,
				derived{fmt.Sprintf("%s_roll%d_mean", col, w), mean},
				derived{fmt.Sprintf("%s_roll%d_std", col, w), frame.RollingStd(values, w, minPeriods)},
				derived{fmt.Sprintf("%s_roll%d_sum", col, w), frame.RollingSum(values, w, minPeriods)},
				derived{fmt.Sprintf("%s_lag%d_mean", col, w), frame.Shift(mean, w)},
			)
		}
	}
	for _, d := range side {
		_ = out.Set(d.name, d.values)
	}
	return out
}
