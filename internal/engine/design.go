package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/studyflow/internal/engine/frame"
)

// designMatrix builds the regression inputs from a modeling table: the
// feature columns in order, then the weekday dummy columns (baseline
// dropped). Dummies act as controls in every family and are filtered out of
// displayed results by name.
func designMatrix(model *frame.Frame, features []string) (X *mat.Dense, y []float64, names []string) {
	dummyNames, dummyCols := dayDummies(model.Dates())
	names = append(append([]string(nil), features...), dummyNames...)

	n := model.Len()
	X = mat.NewDense(n, len(names), nil)
	for j, name := range features {
		col := model.Column(name)
		for i := 0; i < n; i++ {
			X.Set(i, j, col[i])
		}
	}
	for k, col := range dummyCols {
		for i := 0; i < n; i++ {
			X.Set(i, len(features)+k, col[i])
		}
	}
	return X, model.ColumnCopy(TargetColumn), names
}

// withIntercept prepends a column of ones.
func withIntercept(X *mat.Dense) *mat.Dense {
	n, p := X.Dims()
	out := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			out.Set(i, j+1, X.At(i, j))
		}
	}
	return out
}

// standardize scales each column to zero mean and unit variance in place,
// returning the means and scales used. Constant columns keep scale 1 so
// they zero out instead of dividing by zero.
func standardize(X *mat.Dense) (means, scales []float64) {
	n, p := X.Dims()
	means = make([]float64, p)
	scales = make([]float64, p)
	for j := 0; j < p; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += X.At(i, j)
		}
		mean := sum / float64(n)
		ss := 0.0
		for i := 0; i < n; i++ {
			d := X.At(i, j) - mean
			ss += d * d
		}
		scale := math.Sqrt(ss / float64(n))
		if scale == 0 {
			scale = 1
		}
		means[j] = mean
		scales[j] = scale
		for i := 0; i < n; i++ {
			X.Set(i, j, (X.At(i, j)-mean)/scale)
		}
	}
	return means, scales
}

// olsFit holds a least-squares fit with inference statistics.
type olsFit struct {
	Coef    []float64
	StdErr  []float64
	PValues []float64
	Resid   []float64
	RSS     float64
	DF      int
}

// fitOLS solves y = Xb by least squares and derives two-sided t-test
// p-values for each coefficient. Normal equations are tried first with an
// SVD solve as the fallback for singular designs; inference is skipped
// (p-values NaN) when the degrees of freedom run out.
func fitOLS(X *mat.Dense, y []float64) (*olsFit, error) {
	n, p := X.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("design has %d rows, response has %d", n, len(y))
	}
	yVec := mat.NewVecDense(n, y)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	coef := make([]float64, p)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err == nil {
		var xty mat.VecDense
		xty.MulVec(X.T(), yVec)
		var b mat.VecDense
		b.MulVec(&xtxInv, &xty)
		for j := 0; j < p; j++ {
			coef[j] = b.AtVec(j)
		}
	} else {
		var svd mat.SVD
		if !svd.Factorize(X, mat.SVDThin) {
			return nil, fmt.Errorf("design matrix is singular and SVD factorization failed (%d rows, %d columns)", n, p)
		}
		var b mat.Dense
		svd.SolveTo(&b, mat.NewDense(n, 1, y), svd.Rank(1e-12))
		for j := 0; j < p; j++ {
			coef[j] = b.At(j, 0)
		}
		// Pseudoinverse variances are not meaningful; refresh xtxInv with a
		// ridge nudge so std errors stay finite.
		for j := 0; j < p; j++ {
			xtx.Set(j, j, xtx.At(j, j)+1e-8)
		}
		if err := xtxInv.Inverse(&xtx); err != nil {
			return nil, fmt.Errorf("design matrix is not invertible (%d rows, %d columns)", n, p)
		}
	}

	fit := &olsFit{
		Coef:    coef,
		StdErr:  make([]float64, p),
		PValues: make([]float64, p),
		Resid:   make([]float64, n),
		DF:      n - p,
	}
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * coef[j]
		}
		fit.Resid[i] = y[i] - pred
		fit.RSS += fit.Resid[i] * fit.Resid[i]
	}

	if fit.DF <= 0 {
		for j := 0; j < p; j++ {
			fit.StdErr[j] = math.NaN()
			fit.PValues[j] = math.NaN()
		}
		return fit, nil
	}

	sigma2 := fit.RSS / float64(fit.DF)
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(fit.DF)}
	for j := 0; j < p; j++ {
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		fit.StdErr[j] = se
		if se == 0 {
			fit.PValues[j] = math.NaN()
			continue
		}
		t := coef[j] / se
		fit.PValues[j] = 2 * tDist.Survival(math.Abs(t))
	}
	return fit, nil
}
