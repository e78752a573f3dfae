package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/studyflow/internal/engine/frame"
)

const (
	quantileMaxIter = 200
	quantileTol     = 1e-6
	quantileEps     = 1e-6
)

// runQuantile fits linear quantile regressions at each configured quantile
// over the core health metrics only. One quantile's failure is recorded on
// its own fit and does not abort the others.
func (e *Engine) runQuantile(model *frame.Frame) *QuantileResult {
	var features []string
	for _, name := range e.cfg.CoreHealthMetrics {
		if model.Has(name) {
			features = append(features, name)
		}
	}
	if len(features) == 0 {
		return &QuantileResult{
			ModelType: string(ModelQuantile),
			Error:     "None of the core health metrics are available in this period.",
		}
	}

	complete := model.DropRowsMissing(append([]string{TargetColumn}, features...))
	if complete.Len() < e.cfg.MinQuantileRows {
		return &QuantileResult{
			ModelType: string(ModelQuantile),
			Error:     fmt.Sprintf("Quantile regression needs at least %d complete days, but found only %d.", e.cfg.MinQuantileRows, complete.Len()),
		}
	}

	X, y, names := designMatrix(complete, features)
	Xc := withIntercept(X)

	res := &QuantileResult{ModelType: string(ModelQuantile)}
	for _, tau := range e.cfg.Quantiles {
		fit := QuantileFit{Quantile: tau}
		coef, err := quantileIRLS(Xc, y, tau)
		if err != nil {
			fit.Error = fmt.Sprintf("Fit failed at quantile %.2f with %d rows and %d features: %v.", tau, complete.Len(), len(names), err)
		} else {
			for j, name := range names {
				if isDayOfWeek(name) {
					continue
				}
				fit.Coefficients = append(fit.Coefficients, FactorEffect{
					Name:        displayName(name),
					Coefficient: coef[j+1],
				})
			}
		}
		res.Fits = append(res.Fits, fit)
	}
	return res
}

// quantileIRLS minimizes the pinball loss at quantile tau by iteratively
// reweighted least squares. Residuals near zero get their weight clamped
// through quantileEps to keep the normal equations well conditioned.
func quantileIRLS(X *mat.Dense, y []float64, tau float64) ([]float64, error) {
	n, p := X.Dims()

	fit, err := fitOLS(X, y)
	if err != nil {
		return nil, err
	}
	coef := append([]float64(nil), fit.Coef...)

	w := make([]float64, n)
	for iter := 0; iter < quantileMaxIter; iter++ {
		for i := 0; i < n; i++ {
			resid := y[i]
			for j := 0; j < p; j++ {
				resid -= X.At(i, j) * coef[j]
			}
			q := tau
			if resid < 0 {
				q = 1 - tau
			}
			w[i] = q / math.Max(math.Abs(resid), quantileEps)
		}

		updated, err := weightedLeastSquares(X, y, w)
		if err != nil {
			return nil, err
		}

		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if d := math.Abs(updated[j] - coef[j]); d > maxDelta {
				maxDelta = d
			}
		}
		coef = updated
		if maxDelta < quantileTol {
			break
		}
	}
	return coef, nil
}

func weightedLeastSquares(X *mat.Dense, y, w []float64) ([]float64, error) {
	n, p := X.Dims()

	xtwx := mat.NewDense(p, p, nil)
	xtwy := make([]float64, p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xij := X.At(i, j) * w[i]
			xtwy[j] += xij * y[i]
			for k := 0; k < p; k++ {
				xtwx.Set(j, k, xtwx.At(j, k)+xij*X.At(i, k))
			}
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(xtwx); err != nil {
		return nil, fmt.Errorf("weighted design matrix is singular: %w", err)
	}
	var b mat.VecDense
	b.MulVec(&inv, mat.NewVecDense(p, xtwy))

	coef := make([]float64, p)
	for j := 0; j < p; j++ {
		coef[j] = b.AtVec(j)
	}
	return coef, nil
}
