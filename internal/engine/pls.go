package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/studyflow/internal/engine/frame"
)

const plsTargetVarianceFloor = 1e-8

// runPLS fits a supervised partial-least-squares regression by NIPALS and
// derives Variable-Importance-in-Projection scores. Three data gates apply
// before fitting, each with its own message: row count, feature count and
// target variance.
func (e *Engine) runPLS(model *frame.Frame, features []string) *PLSResult {
	if model.Len() < e.cfg.MinPLSRows {
		return &PLSResult{
			ModelType: string(ModelPLS),
			Error:     fmt.Sprintf("PLS needs at least %d complete days, but found only %d.", e.cfg.MinPLSRows, model.Len()),
		}
	}
	if len(features) < 2 {
		return &PLSResult{
			ModelType: string(ModelPLS),
			Error:     fmt.Sprintf("PLS needs at least 2 usable features, but found only %d.", len(features)),
		}
	}
	if variance(model.Column(TargetColumn)) <= plsTargetVarianceFloor {
		return &PLSResult{
			ModelType: string(ModelPLS),
			Error:     "Study minutes have no variance over this period; there is nothing to model.",
		}
	}

	X, y, names := designMatrix(model, features)
	standardize(X)
	yc, _ := centerResponse(y)

	nComp := 5
	if len(names) < nComp {
		nComp = len(names)
	}
	if model.Len()-1 < nComp {
		nComp = model.Len() - 1
	}

	coef, vip, fitted := nipals(X, yc, nComp)
	if fitted == 0 {
		return &PLSResult{
			ModelType: string(ModelPLS),
			Error:     fmt.Sprintf("PLS fit collapsed with %d rows and %d features.", model.Len(), len(names)),
		}
	}

	res := &PLSResult{ModelType: string(ModelPLS), Components: fitted}
	for j, name := range names {
		if isDayOfWeek(name) {
			continue
		}
		res.Coefficients = append(res.Coefficients, FactorEffect{
			Name:        displayName(name),
			Coefficient: coef[j],
			Insight:     unitInsight(coef[j], "1 standard deviation"),
		})
		res.VIPScores = append(res.VIPScores, VIPScore{Name: displayName(name), Score: vip[j]})
	}
	sortByAbsCoefficient(res.Coefficients)
	return res
}

// nipals runs the PLS1 NIPALS iteration on standardized X and centered y,
// deflating both after each extracted component. Returns the regression
// coefficients in X's standardized units, the VIP score per column, and how
// many components were actually extracted before deflation exhausted the
// signal.
func nipals(X *mat.Dense, y []float64, nComp int) (coef, vip []float64, fitted int) {
	n, p := X.Dims()
	Xd := mat.DenseCopyOf(X)
	yd := append([]float64(nil), y...)

	weights := make([][]float64, 0, nComp)  // w_a, unit norm
	loadings := make([][]float64, 0, nComp) // p_a
	bs := make([]float64, 0, nComp)         // y-regression per score
	ssy := make([]float64, 0, nComp)        // y variance captured per component

	for a := 0; a < nComp; a++ {
		w := make([]float64, p)
		norm := 0.0
		for j := 0; j < p; j++ {
			dot := 0.0
			for i := 0; i < n; i++ {
				dot += Xd.At(i, j) * yd[i]
			}
			w[j] = dot
			norm += dot * dot
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			break
		}
		for j := range w {
			w[j] /= norm
		}

		t := make([]float64, n)
		tt := 0.0
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < p; j++ {
				s += Xd.At(i, j) * w[j]
			}
			t[i] = s
			tt += s * s
		}
		if tt < 1e-12 {
			break
		}

		pl := make([]float64, p)
		for j := 0; j < p; j++ {
			dot := 0.0
			for i := 0; i < n; i++ {
				dot += Xd.At(i, j) * t[i]
			}
			pl[j] = dot / tt
		}
		b := 0.0
		for i := 0; i < n; i++ {
			b += yd[i] * t[i]
		}
		b /= tt

		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				Xd.Set(i, j, Xd.At(i, j)-t[i]*pl[j])
			}
			yd[i] -= b * t[i]
		}

		weights = append(weights, w)
		loadings = append(loadings, pl)
		bs = append(bs, b)
		ssy = append(ssy, b*b*tt)
	}

	fitted = len(weights)
	coef = make([]float64, p)
	vip = make([]float64, p)
	if fitted == 0 {
		return coef, vip, 0
	}

	// B = W (P'W)^-1 b
	W := mat.NewDense(p, fitted, nil)
	P := mat.NewDense(p, fitted, nil)
	for a := 0; a < fitted; a++ {
		for j := 0; j < p; j++ {
			W.Set(j, a, weights[a][j])
			P.Set(j, a, loadings[a][j])
		}
	}
	var ptw mat.Dense
	ptw.Mul(P.T(), W)
	var ptwInv mat.Dense
	if err := ptwInv.Inverse(&ptw); err == nil {
		var rotation mat.Dense
		rotation.Mul(W, &ptwInv)
		bVec := mat.NewVecDense(fitted, bs)
		var cVec mat.VecDense
		cVec.MulVec(&rotation, bVec)
		for j := 0; j < p; j++ {
			coef[j] = cVec.AtVec(j)
		}
	} else {
		// Near-singular rotation: fall back to the first component alone.
		for j := 0; j < p; j++ {
			coef[j] = weights[0][j] * bs[0]
		}
	}

	totalSSY := 0.0
	for _, s := range ssy {
		totalSSY += s
	}
	if totalSSY > 0 {
		for j := 0; j < p; j++ {
			sum := 0.0
			for a := 0; a < fitted; a++ {
				sum += weights[a][j] * weights[a][j] * ssy[a]
			}
			vip[j] = math.Sqrt(float64(p) * sum / totalSSY)
		}
	}
	return coef, vip, fitted
}

// variance is the NaN-skipping population variance of a slice.
func variance(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	ss := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			d := v - mean
			ss += d * d
		}
	}
	return ss / float64(n)
}
