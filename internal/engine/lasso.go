package engine

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/studyflow/internal/engine/frame"
)

const (
	lassoFolds    = 5
	lassoNumAlpha = 100
	lassoAlphaEps = 1e-3
	lassoMaxIter  = 10000
	lassoTol      = 1e-4
)

// runLasso standardizes the design, selects the L1 penalty by seeded 5-fold
// cross-validation over a log-spaced path, and reports which factors survive.
// Coefficients are per standard-deviation unit since inputs are standardized.
func (e *Engine) runLasso(model *frame.Frame, features []string) *LassoResult {
	X, y, names := designMatrix(model, features)
	standardize(X)
	yc, _ := centerResponse(y)

	alphas := alphaPath(X, yc)
	alpha := e.crossValidateAlpha(X, yc, alphas)
	coef := coordinateDescent(X, yc, alpha, nil)

	res := &LassoResult{
		ModelType:         string(ModelLasso),
		Alpha:             alpha,
		SelectedFactors:   []FactorEffect{},
		EliminatedFactors: []FactorEffect{},
	}
	for j, name := range names {
		if isDayOfWeek(name) {
			continue
		}
		effect := FactorEffect{
			Name:        displayName(name),
			Coefficient: coef[j],
			Insight:     unitInsight(coef[j], "1 standard deviation"),
		}
		if math.Abs(coef[j]) > 1e-6 {
			res.SelectedFactors = append(res.SelectedFactors, effect)
		} else {
			res.EliminatedFactors = append(res.EliminatedFactors, effect)
		}
	}
	sortByAbsCoefficient(res.SelectedFactors)
	return res
}

func centerResponse(y []float64) (centered []float64, mean float64) {
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	centered = make([]float64, len(y))
	for i, v := range y {
		centered[i] = v - mean
	}
	return centered, mean
}

// alphaPath builds the log-spaced penalty grid from the largest penalty that
// zeroes every coefficient down by three decades.
func alphaPath(X *mat.Dense, y []float64) []float64 {
	n, p := X.Dims()
	alphaMax := 0.0
	for j := 0; j < p; j++ {
		dot := 0.0
		for i := 0; i < n; i++ {
			dot += X.At(i, j) * y[i]
		}
		if a := math.Abs(dot) / float64(n); a > alphaMax {
			alphaMax = a
		}
	}
	if alphaMax == 0 {
		alphaMax = 1
	}
	alphas := make([]float64, lassoNumAlpha)
	ratio := math.Log(lassoAlphaEps) / float64(lassoNumAlpha-1)
	for k := range alphas {
		alphas[k] = alphaMax * math.Exp(ratio*float64(k))
	}
	return alphas
}

// crossValidateAlpha picks the penalty minimizing mean held-out squared
// error across seeded folds. Warm starts carry coefficients down the path.
func (e *Engine) crossValidateAlpha(X *mat.Dense, y []float64, alphas []float64) float64 {
	n, _ := X.Dims()
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	perm := rng.Perm(n)

	mse := make([]float64, len(alphas))
	for fold := 0; fold < lassoFolds; fold++ {
		testSet := make(map[int]bool)
		for i := fold; i < n; i += lassoFolds {
			testSet[perm[i]] = true
		}
		trainX, trainY, testX, testY := splitFold(X, y, testSet)
		if len(trainY) == 0 || len(testY) == 0 {
			continue
		}

		var warm []float64
		for k, alpha := range alphas {
			warm = coordinateDescent(trainX, trainY, alpha, warm)
			mse[k] += foldMSE(testX, testY, warm)
		}
	}

	best := 0
	for k := range alphas {
		if mse[k] < mse[best] {
			best = k
		}
	}
	return alphas[best]
}

func splitFold(X *mat.Dense, y []float64, testSet map[int]bool) (trainX *mat.Dense, trainY []float64, testX *mat.Dense, testY []float64) {
	n, p := X.Dims()
	var trainRows, testRows []int
	for i := 0; i < n; i++ {
		if testSet[i] {
			testRows = append(testRows, i)
		} else {
			trainRows = append(trainRows, i)
		}
	}
	take := func(rows []int) (*mat.Dense, []float64) {
		if len(rows) == 0 {
			return nil, nil
		}
		M := mat.NewDense(len(rows), p, nil)
		v := make([]float64, len(rows))
		for r, i := range rows {
			for j := 0; j < p; j++ {
				M.Set(r, j, X.At(i, j))
			}
			v[r] = y[i]
		}
		return M, v
	}
	trainX, trainY = take(trainRows)
	testX, testY = take(testRows)
	return trainX, trainY, testX, testY
}

func foldMSE(X *mat.Dense, y []float64, coef []float64) float64 {
	n, p := X.Dims()
	sum := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * coef[j]
		}
		d := y[i] - pred
		sum += d * d
	}
	return sum / float64(n)
}

// coordinateDescent minimizes (1/2n)||y-Xb||² + alpha·||b||₁ by cyclic
// soft-thresholding updates. warm seeds the iteration when non-nil.
func coordinateDescent(X *mat.Dense, y []float64, alpha float64, warm []float64) []float64 {
	n, p := X.Dims()
	coef := make([]float64, p)
	if warm != nil {
		copy(coef, warm)
	}

	// Per-column second moments; columns are standardized on the full data
	// but not within CV folds, so recompute here.
	colSq := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			v := X.At(i, j)
			colSq[j] += v * v
		}
		colSq[j] /= float64(n)
	}

	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < p; j++ {
			pred += X.At(i, j) * coef[j]
		}
		resid[i] = y[i] - pred
	}

	for iter := 0; iter < lassoMaxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if colSq[j] == 0 {
				continue
			}
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += X.At(i, j) * resid[i]
			}
			rho = rho/float64(n) + colSq[j]*coef[j]

			updated := softThreshold(rho, alpha) / colSq[j]
			if delta := updated - coef[j]; delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= X.At(i, j) * delta
				}
				if ad := math.Abs(delta); ad > maxDelta {
					maxDelta = ad
				}
				coef[j] = updated
			}
		}
		if maxDelta < lassoTol {
			break
		}
	}
	return coef
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}
