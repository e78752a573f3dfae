package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/studyflow/internal/engine/frame"
)

// minCCFOverlap is the fewest paired observations a lag needs before its
// correlation is trusted; below it the cell reports 0 so heatmaps render.
const minCCFOverlap = 3

// RunCCF computes the lagged Pearson correlation between each available
// feature and the target over a symmetric lag window. A positive lag means
// the feature leads the target by that many days.
func (e *Engine) RunCCF(start, end time.Time, category string) (*CCFResult, error) {
	df, err := e.AssembleDailyFeatures(start, end, category)
	if err != nil {
		return nil, err
	}

	features := e.availableFeatures(df)
	if len(features) == 0 {
		return &CCFResult{Error: fmt.Sprintf("No single factor had enough data points (min %d) in this period to run an analysis.", e.cfg.MinFeatureObservations)}, nil
	}

	target := df.Column(TargetColumn)
	res := &CCFResult{
		Features:     features,
		Correlations: make(map[string][]float64, len(features)),
	}
	for lag := -e.cfg.CCFMaxLag; lag <= e.cfg.CCFMaxLag; lag++ {
		res.Lags = append(res.Lags, lag)
	}

	for _, name := range features {
		col := df.Column(name)
		row := make([]float64, 0, len(res.Lags))
		for _, lag := range res.Lags {
			row = append(row, laggedCorrelation(target, col, lag))
		}
		res.Correlations[name] = row
	}
	return res, nil
}

// laggedCorrelation pairs target[t] with feature[t-lag] and returns their
// Pearson correlation over complete pairs, or 0 when the overlap is too
// small or either side is constant.
func laggedCorrelation(target, feature []float64, lag int) float64 {
	var xs, ys []float64
	for t := range target {
		src := t - lag
		if src < 0 || src >= len(feature) {
			continue
		}
		if math.IsNaN(target[t]) || math.IsNaN(feature[src]) {
			continue
		}
		xs = append(xs, feature[src])
		ys = append(ys, target[t])
	}
	if len(xs) < minCCFOverlap {
		return 0
	}
	r := pearson(xs, ys)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}

// ShockDirection selects which side of the baseline counts as an event.
type ShockDirection string

const (
	ShockDrop  ShockDirection = "drop"
	ShockSpike ShockDirection = "spike"
)

// EventStudyRequest describes one event-study invocation.
type EventStudyRequest struct {
	Start     time.Time
	End       time.Time
	Category  string
	Feature   string
	Window    int // baseline and offset window in days
	Threshold float64
	Direction ShockDirection
}

// RunEventStudy detects days where a feature deviates from its trailing
// rolling baseline beyond the signed threshold and aggregates the target at
// each relative offset across all events. Overlapping shocks are counted
// independently. One extra day past the window is included to observe
// recovery.
func (e *Engine) RunEventStudy(req EventStudyRequest) (*EventStudyResult, error) {
	df, err := e.AssembleDailyFeatures(req.Start, req.End, req.Category)
	if err != nil {
		return nil, err
	}
	if !df.Has(req.Feature) {
		return &EventStudyResult{Error: fmt.Sprintf("Feature %q has no data in this period.", req.Feature)}, nil
	}

	window := req.Window
	if window <= 0 {
		window = 7
	}

	col := df.Column(req.Feature)
	baseline := frame.RollingMean(col, window, 1)
	target := df.Column(TargetColumn)

	var events []int
	for i := range col {
		if math.IsNaN(col[i]) || math.IsNaN(baseline[i]) {
			continue
		}
		dev := col[i] - baseline[i]
		switch req.Direction {
		case ShockDrop:
			if dev <= -req.Threshold {
				events = append(events, i)
			}
		default:
			if dev >= req.Threshold {
				events = append(events, i)
			}
		}
	}
	if len(events) == 0 {
		return &EventStudyResult{Error: fmt.Sprintf("No qualifying %s events found for %q in this period.", directionLabel(req.Direction), req.Feature)}, nil
	}

	res := &EventStudyResult{Feature: req.Feature, Events: len(events)}
	for offset := -window; offset <= window+1; offset++ {
		var vals []float64
		for _, ev := range events {
			i := ev + offset
			if i < 0 || i >= len(target) || math.IsNaN(target[i]) {
				continue
			}
			vals = append(vals, target[i])
		}
		mean, se := meanAndStdErr(vals)
		res.Offsets = append(res.Offsets, offset)
		res.Mean = append(res.Mean, mean)
		res.StdErr = append(res.StdErr, se)
	}
	return res, nil
}

func directionLabel(d ShockDirection) string {
	if d == ShockDrop {
		return "drop"
	}
	return "spike"
}

func meanAndStdErr(vals []float64) (mean, se float64) {
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	if len(vals) < 2 {
		return mean, math.NaN()
	}
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss/float64(len(vals)-1)) / math.Sqrt(float64(len(vals)))
}
