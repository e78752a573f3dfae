package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aristath/studyflow/internal/engine/frame"
)

// runStandardOLS fits ordinary least squares with an intercept and
// partitions the non-control coefficients by significance at p < 0.05.
func (e *Engine) runStandardOLS(model *frame.Frame, features []string) *StandardResult {
	X, y, names := designMatrix(model, features)
	fit, err := fitOLS(withIntercept(X), y)
	if err != nil {
		return &StandardResult{
			ModelType: string(ModelStandard),
			Error:     fmt.Sprintf("Regression failed: %v.", err),
		}
	}

	res := &StandardResult{
		ModelType:            string(ModelStandard),
		ModelSummary:         olsSummary(names, fit),
		SignificantFactors:   []FactorEffect{},
		InsignificantFactors: []FactorEffect{},
	}
	for j, name := range names {
		if isDayOfWeek(name) {
			continue
		}
		coef := fit.Coef[j+1] // intercept occupies slot 0
		p := fit.PValues[j+1]
		effect := FactorEffect{
			Name:        displayName(name),
			Coefficient: coef,
			PValue:      p,
			Insight:     unitInsight(coef, "1-unit"),
		}
		if !math.IsNaN(p) && p < 0.05 {
			res.SignificantFactors = append(res.SignificantFactors, effect)
		} else {
			res.InsignificantFactors = append(res.InsignificantFactors, effect)
		}
	}
	sortByAbsCoefficient(res.SignificantFactors)
	return res
}

func unitInsight(coef float64, unit string) string {
	direction := "increase"
	if coef < 0 {
		direction = "decrease"
	}
	return fmt.Sprintf("A %s increase is associated with a %s of %.2f study minutes.", unit, direction, math.Abs(coef))
}

func sortByAbsCoefficient(effects []FactorEffect) {
	sort.SliceStable(effects, func(i, j int) bool {
		return math.Abs(effects[i].Coefficient) > math.Abs(effects[j].Coefficient)
	})
}

// olsSummary renders a compact coefficient table for the raw-output pane.
func olsSummary(names []string, fit *olsFit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-32s %12s %12s %10s\n", "variable", "coef", "std err", "p-value")
	rows := append([]string{"const"}, names...)
	for j, name := range rows {
		fmt.Fprintf(&b, "%-32s %12.4f %12.4f %10.4f\n", name, fit.Coef[j], fit.StdErr[j], fit.PValues[j])
	}
	fmt.Fprintf(&b, "\nobservations: %d, residual df: %d, RSS: %.2f\n", fit.DF+len(rows), fit.DF, fit.RSS)
	return b.String()
}
