package engine

import (
	"fmt"
	"math"

	"github.com/aristath/studyflow/internal/engine/frame"
)

// weeklyAggs maps each resampled column to its aggregation: sums for flow
// quantities, means for level quantities. Order fixes the weekly frame's
// column order.
func weeklyAggs() (map[string]frame.Agg, []string) {
	aggs := map[string]frame.Agg{
		TargetColumn:         frame.AggSum,
		colSleepScore:        frame.AggMean,
		colAvgStress:         frame.AggMean,
		colBodyBattery:       frame.AggMean,
		colSleepDurationHrs:  frame.AggMean,
		colRunningMinutes:    frame.AggSum,
		colDistance:          frame.AggSum,
		colTotalActivityMins: frame.AggSum,
		colTotalCalories:     frame.AggSum,
	}
	order := []string{
		TargetColumn, colSleepScore, colAvgStress, colBodyBattery,
		colSleepDurationHrs, colRunningMinutes, colDistance,
		colTotalActivityMins, colTotalCalories,
	}
	return aggs, order
}

// RunWeeklyAnalysis resamples the daily features into weeks ending Sunday,
// derives rolling features over week-sized windows, and runs the selected
// model with the row gate counted in weeks. Only the regression families
// apply at weekly granularity; the sequence models need daily resolution.
func (e *Engine) RunWeeklyAnalysis(req Request) (Result, error) {
	switch req.ModelType {
	case ModelStandard, ModelLasso, ModelPCA:
	default:
		return errResult(req.ModelType, "Weekly analysis supports the Standard, Lasso and PCA models only."), nil
	}

	daily, err := e.AssembleDailyFeatures(req.Start, req.End, req.Category)
	if err != nil {
		return nil, err
	}

	aggs, order := weeklyAggs()
	weekly := daily.ResampleWeekly(aggs, order)
	weekly = e.AddRollingFeatures(weekly, []int{1, 2, 4}, 1)

	// The week gate comes before the feature-availability gate here: a short
	// range should read as "not enough weeks", not as a feature complaint.
	features := e.availableFeatures(weekly)
	model := e.applyMissingPolicy(weekly, features, req.DataMethod)
	if model.Len() < e.cfg.MinWeeklyRows {
		return errResult(req.ModelType, fmt.Sprintf("Not enough weekly data for a meaningful analysis (need >=%d weeks).", e.cfg.MinWeeklyRows)), nil
	}
	if len(features) == 0 {
		return errResult(req.ModelType, e.noFeaturesMessage()), nil
	}

	e.log.Debug().
		Str("model", string(req.ModelType)).
		Int("weeks", model.Len()).
		Int("features", len(features)).
		Msg("Running weekly analysis")

	switch req.ModelType {
	case ModelStandard:
		return e.runStandardOLS(model, features), nil
	case ModelLasso:
		return e.runLasso(model, features), nil
	default:
		return e.runPCA(model, features), nil
	}
}

const (
	colStudyPerSleepHour = "study_per_sleep_hour"
	colEfficiencyScore   = "efficiency_score"
)

// RunWeeklyEfficiency summarizes the relationship between weekly sleep
// patterns and study efficiency: two derived ratios, their correlation
// matrix against the core health metrics, and a templated insight on the
// sleep-quality/efficiency link.
func (e *Engine) RunWeeklyEfficiency(req Request) (*WeeklyEfficiencyResult, error) {
	daily, err := e.AssembleDailyFeatures(req.Start, req.End, req.Category)
	if err != nil {
		return nil, err
	}

	aggs := map[string]frame.Agg{
		TargetColumn:        frame.AggSum,
		colSleepScore:       frame.AggMean,
		colAvgStress:        frame.AggMean,
		colBodyBattery:      frame.AggMean,
		colSleepDurationHrs: frame.AggMean,
	}
	order := []string{TargetColumn, colSleepScore, colAvgStress, colBodyBattery, colSleepDurationHrs}
	weekly := daily.ResampleWeekly(aggs, order)

	// Only weeks with actual study time count as full weeks.
	target := weekly.Column(TargetColumn)
	weekly = weekly.FilterRows(func(i int) bool { return target[i] > 0 })

	if weekly.Len() < e.cfg.MinWeeklyRows {
		return &WeeklyEfficiencyResult{
			ModelType: "Weekly Efficiency",
			Error:     fmt.Sprintf("Not enough data for a meaningful weekly analysis. Need at least %d full weeks, but found only %d.", e.cfg.MinWeeklyRows, weekly.Len()),
		}, nil
	}

	n := weekly.Len()
	perSleep := make([]float64, n)
	efficiency := make([]float64, n)
	for i := 0; i < n; i++ {
		perSleep[i] = weekly.At(TargetColumn, i) / weekly.At(colSleepDurationHrs, i)
		efficiency[i] = weekly.At(colSleepScore, i) / weekly.At(TargetColumn, i)
	}
	_ = weekly.Set(colStudyPerSleepHour, perSleep)
	_ = weekly.Set(colEfficiencyScore, efficiency)

	corrCols := []string{colStudyPerSleepHour, colEfficiencyScore, colSleepScore, colAvgStress, colBodyBattery}
	matrix := make(map[string]map[string]float64, len(corrCols))
	for _, a := range corrCols {
		matrix[a] = make(map[string]float64, len(corrCols))
		for _, b := range corrCols {
			matrix[a][b] = pairwiseCorrelation(weekly.Column(a), weekly.Column(b))
		}
	}

	res := &WeeklyEfficiencyResult{
		ModelType:         "Weekly Efficiency",
		Weeks:             n,
		CorrelationMatrix: matrix,
	}

	corrSleep := matrix[colStudyPerSleepHour][colSleepScore]
	switch {
	case corrSleep > 0.5:
		res.Insights = append(res.Insights, fmt.Sprintf("• There is a strong positive correlation (%.2f) between average sleep score and study minutes achieved per hour of sleep. Better sleep quality is linked to higher study efficiency.", corrSleep))
	case corrSleep < -0.5:
		res.Insights = append(res.Insights, fmt.Sprintf("• There is a strong negative correlation (%.2f) between average sleep score and study efficiency. This is unusual and might be worth investigating.", corrSleep))
	default:
		res.Insights = append(res.Insights, fmt.Sprintf("• The link between sleep score and study efficiency is moderate or weak (%.2f).", corrSleep))
	}
	return res, nil
}

// pairwiseCorrelation is the Pearson correlation over rows where both
// columns are finite; NaN when too little overlaps.
func pairwiseCorrelation(a, b []float64) float64 {
	var xs, ys []float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) || math.IsInf(a[i], 0) || math.IsInf(b[i], 0) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return pearson(xs, ys)
}
