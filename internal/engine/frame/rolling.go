package frame

import "math"

// Rolling statistics over slices with NaN-aware windows. A window at index i
// covers values[max(0, i-w+1) .. i]; the statistic is emitted only when the
// window holds at least minPeriods non-NaN observations, matching how the
// engine's partial leading windows are expected to behave.

// RollingMean computes the trailing rolling mean.
func RollingMean(values []float64, window, minPeriods int) []float64 {
	return rollingApply(values, window, minPeriods, func(win []float64, n int) float64 {
		sum := 0.0
		for _, v := range win {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		return sum / float64(n)
	})
}

// RollingSum computes the trailing rolling sum.
func RollingSum(values []float64, window, minPeriods int) []float64 {
	return rollingApply(values, window, minPeriods, func(win []float64, n int) float64 {
		sum := 0.0
		for _, v := range win {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		return sum
	})
}

// RollingStd computes the trailing rolling sample standard deviation.
// Windows with fewer than two observations yield NaN regardless of
// minPeriods, since the sample estimator is undefined there.
func RollingStd(values []float64, window, minPeriods int) []float64 {
	return rollingApply(values, window, minPeriods, func(win []float64, n int) float64 {
		if n < 2 {
			return math.NaN()
		}
		sum := 0.0
		for _, v := range win {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		mean := sum / float64(n)
		ss := 0.0
		for _, v := range win {
			if !math.IsNaN(v) {
				d := v - mean
				ss += d * d
			}
		}
		return math.Sqrt(ss / float64(n-1))
	})
}

// Shift moves values forward by k positions, filling the vacated leading
// entries with NaN. Shift(x, k)[i] == x[i-k].
func Shift(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = values[i-k]
		}
	}
	return out
}

func rollingApply(values []float64, window, minPeriods int, stat func(win []float64, n int) float64) []float64 {
	out := make([]float64, len(values))
	if minPeriods < 1 {
		minPeriods = 1
	}
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		win := values[lo : i+1]
		n := 0
		for _, v := range win {
			if !math.IsNaN(v) {
				n++
			}
		}
		if n < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat(win, n)
	}
	return out
}
