package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/studyflow/internal/engine/frame"
)

const (
	varFallbackLag    = 2
	varBootstrapReps  = 100
	varBandLowerQuant = 0.05
	varBandUpperQuant = 0.95
)

// varFit is a reduced-form vector autoregression with intercept:
// y_t = c + A_1 y_{t-1} + ... + A_p y_{t-p} + u_t.
type varFit struct {
	Lags   int
	A      []*mat.Dense // K x K per lag
	C      []float64    // intercept per equation
	SigmaU *mat.SymDense
	Resid  *mat.Dense // (T-p) x K
}

// runVAR estimates a VAR over the configured system variables, selecting the
// lag order by AIC up to the configured maximum, and traces the target's
// impulse responses to a Cholesky-orthogonalized shock in each variable.
// Lag selection and error-band computation degrade independently.
func (e *Engine) runVAR(model *frame.Frame) *VARResult {
	var variables []string
	for _, name := range e.cfg.VARVariables {
		if model.Has(name) {
			variables = append(variables, name)
		}
	}
	if len(variables) < 2 {
		return &VARResult{
			ModelType: string(ModelVAR),
			Error:     fmt.Sprintf("A VAR system needs at least 2 variables, but only %d are available.", len(variables)),
		}
	}

	complete := model.DropRowsMissing(variables)
	if complete.Len() < e.cfg.MinVARRows {
		return &VARResult{
			ModelType: string(ModelVAR),
			Error:     fmt.Sprintf("VAR needs at least %d complete days, but found only %d.", e.cfg.MinVARRows, complete.Len()),
		}
	}

	T := complete.Len()
	K := len(variables)
	Y := mat.NewDense(T, K, nil)
	for j, name := range variables {
		col := complete.Column(name)
		for i := 0; i < T; i++ {
			Y.Set(i, j, col[i])
		}
	}

	lag := e.selectLagAIC(Y)
	fit, err := estimateVAR(Y, lag)
	if err != nil {
		return &VARResult{
			ModelType: string(ModelVAR),
			Error:     fmt.Sprintf("VAR estimation failed with %d rows and %d variables: %v.", T, K, err),
		}
	}

	res := &VARResult{
		ModelType: string(ModelVAR),
		LagOrder:  lag,
		Variables: variables,
	}
	for shock := 0; shock < K; shock++ {
		irf, err := impulseResponse(fit, e.cfg.VARHorizon, shock)
		if err != nil {
			e.log.Warn().Err(err).Str("shock", variables[shock]).Msg("Impulse response failed")
			continue
		}
		// Response of the target (column 0 by construction) to this shock.
		response := make([]float64, e.cfg.VARHorizon)
		for h := 0; h < e.cfg.VARHorizon; h++ {
			response[h] = irf.At(h, 0)
		}
		ir := ImpulseResponse{Shock: variables[shock], Response: response}
		lower, upper := e.bootstrapBands(Y, fit, shock)
		ir.Lower, ir.Upper = lower, upper
		res.Responses = append(res.Responses, ir)
	}
	return res
}

// selectLagAIC picks the lag order minimizing AIC over 1..VARMaxLag, capped
// so at least as many observations as regressors remain. Falls back to a
// fixed small lag when no candidate can be estimated.
func (e *Engine) selectLagAIC(Y *mat.Dense) int {
	T, K := Y.Dims()
	bestLag, bestAIC := 0, math.Inf(1)
	for p := 1; p <= e.cfg.VARMaxLag; p++ {
		if T-p <= K*p+1 {
			break
		}
		fit, err := estimateVAR(Y, p)
		if err != nil {
			continue
		}
		aic, err := varAIC(fit, T-p, K)
		if err != nil {
			continue
		}
		if aic < bestAIC {
			bestAIC = aic
			bestLag = p
		}
	}
	if bestLag == 0 {
		return varFallbackLag
	}
	return bestLag
}

func varAIC(fit *varFit, effT, K int) (float64, error) {
	// AIC uses the MLE covariance (divisor T, not T-m).
	n, _ := fit.Resid.Dims()
	mle := mat.NewSymDense(K, nil)
	for i := 0; i < K; i++ {
		for j := i; j < K; j++ {
			sum := 0.0
			for t := 0; t < n; t++ {
				sum += fit.Resid.At(t, i) * fit.Resid.At(t, j)
			}
			mle.SetSym(i, j, sum/float64(n))
		}
	}
	var lu mat.LU
	lu.Factorize(mle)
	logDet, sign := lu.LogDet()
	if sign <= 0 {
		return 0, fmt.Errorf("residual covariance is not positive definite")
	}
	params := float64(K*K*fit.Lags + K)
	return logDet + 2*params/float64(effT), nil
}

// estimateVAR fits the system equation-by-equation via stacked least
// squares, trying normal equations first and an SVD solve for singular
// designs.
func estimateVAR(Y *mat.Dense, p int) (*varFit, error) {
	T, K := Y.Dims()
	if T <= p {
		return nil, fmt.Errorf("need more than %d observations for lag %d", p, p)
	}
	rows := T - p
	m := 1 + p*K

	X := mat.NewDense(rows, m, nil)
	Yreg := mat.NewDense(rows, K, nil)
	for t := 0; t < rows; t++ {
		X.Set(t, 0, 1)
		col := 1
		for lag := 1; lag <= p; lag++ {
			for k := 0; k < K; k++ {
				X.Set(t, col, Y.At(t+p-lag, k))
				col++
			}
		}
		for k := 0; k < K; k++ {
			Yreg.Set(t, k, Y.At(t+p, k))
		}
	}

	var B mat.Dense
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err == nil {
		var xty mat.Dense
		xty.Mul(X.T(), Yreg)
		B.Mul(&xtxInv, &xty)
	} else {
		var svd mat.SVD
		if !svd.Factorize(X, mat.SVDThin) {
			return nil, fmt.Errorf("design is singular and SVD factorization failed")
		}
		svd.SolveTo(&B, Yreg, svd.Rank(1e-12))
	}

	fit := &varFit{Lags: p, C: make([]float64, K)}
	for k := 0; k < K; k++ {
		fit.C[k] = B.At(0, k)
	}
	for lag := 0; lag < p; lag++ {
		A := mat.NewDense(K, K, nil)
		for eq := 0; eq < K; eq++ {
			for j := 0; j < K; j++ {
				A.Set(eq, j, B.At(1+lag*K+j, eq))
			}
		}
		fit.A = append(fit.A, A)
	}

	var Yhat mat.Dense
	Yhat.Mul(X, &B)
	resid := mat.NewDense(rows, K, nil)
	resid.Sub(Yreg, &Yhat)
	fit.Resid = resid

	df := float64(rows - m)
	if df <= 0 {
		df = float64(rows)
	}
	sigma := mat.NewSymDense(K, nil)
	for i := 0; i < K; i++ {
		for j := i; j < K; j++ {
			sum := 0.0
			for t := 0; t < rows; t++ {
				sum += resid.At(t, i) * resid.At(t, j)
			}
			sigma.SetSym(i, j, sum/df)
		}
	}
	fit.SigmaU = sigma
	return fit, nil
}

// impulseResponse computes the horizon x K orthogonalized responses to a
// one-standard-deviation shock in the given variable. The shock vector is
// the corresponding column of SigmaU's Cholesky factor, falling back to a
// unit shock when the covariance is not positive definite.
func impulseResponse(fit *varFit, horizon, shockIndex int) (*mat.Dense, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be > 0")
	}
	K, _ := fit.A[0].Dims()
	if shockIndex < 0 || shockIndex >= K {
		return nil, fmt.Errorf("shock index %d out of range", shockIndex)
	}

	shock := make([]float64, K)
	var chol mat.Cholesky
	if fit.SigmaU != nil && chol.Factorize(fit.SigmaU) {
		L := mat.NewTriDense(K, mat.Lower, nil)
		chol.LTo(L)
		for i := 0; i < K; i++ {
			shock[i] = L.At(i, shockIndex)
		}
	} else {
		shock[shockIndex] = 1
	}

	// Psi_0 = I; Psi_h = sum_{j=1..min(h,p)} A_j Psi_{h-j}.
	psi := make([]*mat.Dense, horizon)
	eye := mat.NewDense(K, K, nil)
	for i := 0; i < K; i++ {
		eye.Set(i, i, 1)
	}
	psi[0] = eye
	for h := 1; h < horizon; h++ {
		M := mat.NewDense(K, K, nil)
		maxLag := fit.Lags
		if h < maxLag {
			maxLag = h
		}
		for j := 1; j <= maxLag; j++ {
			var tmp mat.Dense
			tmp.Mul(fit.A[j-1], psi[h-j])
			M.Add(M, &tmp)
		}
		psi[h] = M
	}

	irf := mat.NewDense(horizon, K, nil)
	shockVec := mat.NewVecDense(K, shock)
	for h := 0; h < horizon; h++ {
		var resp mat.VecDense
		resp.MulVec(psi[h], shockVec)
		for i := 0; i < K; i++ {
			irf.Set(h, i, resp.AtVec(i))
		}
	}
	return irf, nil
}

// bootstrapBands builds seeded residual-bootstrap error bands for the
// target's response to one shock. Any replication that fails to re-estimate
// is skipped; too few survivors yields no bands rather than an error.
func (e *Engine) bootstrapBands(Y *mat.Dense, fit *varFit, shockIndex int) (lower, upper []float64) {
	T, K := Y.Dims()
	p := fit.Lags
	nResid, _ := fit.Resid.Dims()
	rng := rand.New(rand.NewSource(e.cfg.Seed))

	horizon := e.cfg.VARHorizon
	samples := make([][]float64, 0, varBootstrapReps)
	for rep := 0; rep < varBootstrapReps; rep++ {
		sim := mat.NewDense(T, K, nil)
		for t := 0; t < p; t++ {
			for k := 0; k < K; k++ {
				sim.Set(t, k, Y.At(t, k))
			}
		}
		for t := p; t < T; t++ {
			r := rng.Intn(nResid)
			for eq := 0; eq < K; eq++ {
				v := fit.C[eq] + fit.Resid.At(r, eq)
				for lag := 1; lag <= p; lag++ {
					for j := 0; j < K; j++ {
						v += fit.A[lag-1].At(eq, j) * sim.At(t-lag, j)
					}
				}
				sim.Set(t, eq, v)
			}
		}

		refit, err := estimateVAR(sim, p)
		if err != nil {
			continue
		}
		irf, err := impulseResponse(refit, horizon, shockIndex)
		if err != nil {
			continue
		}
		path := make([]float64, horizon)
		for h := 0; h < horizon; h++ {
			path[h] = irf.At(h, 0)
		}
		samples = append(samples, path)
	}
	if len(samples) < varBootstrapReps/2 {
		return nil, nil
	}

	lower = make([]float64, horizon)
	upper = make([]float64, horizon)
	vals := make([]float64, len(samples))
	for h := 0; h < horizon; h++ {
		for i, s := range samples {
			vals[i] = s[h]
		}
		sort.Float64s(vals)
		lower[h] = quantileOf(vals, varBandLowerQuant)
		upper[h] = quantileOf(vals, varBandUpperQuant)
	}
	return lower, upper
}

// quantileOf interpolates the q-th quantile of sorted values.
func quantileOf(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
