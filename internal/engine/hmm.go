package engine

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/aristath/studyflow/internal/engine/frame"
	"github.com/aristath/studyflow/internal/store"
)

const (
	hmmMaxIter  = 100
	hmmTol      = 1e-4
	hmmCovRidge = 1e-6
)

// runHMM discovers hidden day-regimes with a Gaussian hidden Markov model
// over the standardized target, sleep score and stress series. Emissions use
// full covariance; initialization is seeded so identical inputs reproduce
// identical state assignments.
func (e *Engine) runHMM(model *frame.Frame) *HMMResult {
	candidates := []string{TargetColumn, colSleepScore, colAvgStress}
	var variables []string
	for _, name := range candidates {
		if model.Has(name) {
			variables = append(variables, name)
		}
	}
	if len(variables) < 2 {
		return &HMMResult{
			ModelType: string(ModelHMM),
			Error:     "State discovery needs study minutes plus at least one of sleep score and stress.",
		}
	}

	complete := model.DropRowsMissing(variables)
	if complete.Len() < e.cfg.MinHMMRows {
		return &HMMResult{
			ModelType: string(ModelHMM),
			Error:     fmt.Sprintf("State discovery needs at least %d complete days, but found only %d.", e.cfg.MinHMMRows, complete.Len()),
		}
	}

	T := complete.Len()
	D := len(variables)
	obs := mat.NewDense(T, D, nil)
	for j, name := range variables {
		col := complete.Column(name)
		for i := 0; i < T; i++ {
			obs.Set(i, j, col[i])
		}
	}
	means, scales := standardize(obs)

	states, seq, err := fitGaussianHMM(obs, e.cfg.HMMStates, e.cfg.Seed)
	if err != nil {
		return &HMMResult{
			ModelType: string(ModelHMM),
			Error:     fmt.Sprintf("State discovery failed with %d rows and %d states: %v.", T, e.cfg.HMMStates, err),
		}
	}

	res := &HMMResult{ModelType: string(ModelHMM)}
	counts := make([]int, e.cfg.HMMStates)
	for _, s := range seq {
		counts[s]++
	}
	for s := 0; s < e.cfg.HMMStates; s++ {
		stateMeans := make(map[string]float64, D)
		for j, name := range variables {
			// Back to original units for display.
			stateMeans[name] = states[s][j]*scales[j] + means[j]
		}
		res.States = append(res.States, HMMState{State: s, Days: counts[s], Means: stateMeans})
	}
	res.StateSequence = seq
	for _, d := range complete.Dates() {
		res.Dates = append(res.Dates, d.Format(store.DateFormat))
	}
	return res
}

// fitGaussianHMM runs Baum-Welch EM with scaled forward-backward passes.
// Returns each state's mean vector (standardized units) and the posterior
// argmax state per observation.
func fitGaussianHMM(obs *mat.Dense, nStates int, seed int64) ([][]float64, []int, error) {
	T, D := obs.Dims()
	rng := rand.New(rand.NewSource(seed))

	// Seeded init: means from random distinct observations, identity
	// covariance, uniform start and transition probabilities.
	mu := make([][]float64, nStates)
	picks := rng.Perm(T)[:nStates]
	for s, i := range picks {
		row := make([]float64, D)
		for j := 0; j < D; j++ {
			row[j] = obs.At(i, j)
		}
		mu[s] = row
	}
	cov := make([]*mat.SymDense, nStates)
	for s := range cov {
		c := mat.NewSymDense(D, nil)
		for j := 0; j < D; j++ {
			c.SetSym(j, j, 1)
		}
		cov[s] = c
	}
	pi := make([]float64, nStates)
	trans := mat.NewDense(nStates, nStates, nil)
	for s := 0; s < nStates; s++ {
		pi[s] = 1 / float64(nStates)
		for q := 0; q < nStates; q++ {
			trans.Set(s, q, 1/float64(nStates))
		}
	}

	dens := mat.NewDense(T, nStates, nil)
	gamma := mat.NewDense(T, nStates, nil)
	xiSum := mat.NewDense(nStates, nStates, nil)
	prevLL := math.Inf(-1)

	var seq []int
	for iter := 0; iter < hmmMaxIter; iter++ {
		// Emission densities.
		for s := 0; s < nStates; s++ {
			normal, ok := distmv.NewNormal(mu[s], cov[s], nil)
			if !ok {
				return nil, nil, fmt.Errorf("state %d covariance became singular", s)
			}
			x := make([]float64, D)
			for t := 0; t < T; t++ {
				for j := 0; j < D; j++ {
					x[j] = obs.At(t, j)
				}
				dens.Set(t, s, math.Exp(normal.LogProb(x)))
			}
		}

		// Scaled forward pass.
		alpha := mat.NewDense(T, nStates, nil)
		scale := make([]float64, T)
		for s := 0; s < nStates; s++ {
			alpha.Set(0, s, pi[s]*dens.At(0, s))
			scale[0] += alpha.At(0, s)
		}
		if scale[0] == 0 {
			return nil, nil, fmt.Errorf("observation likelihood underflowed at t=0")
		}
		for s := 0; s < nStates; s++ {
			alpha.Set(0, s, alpha.At(0, s)/scale[0])
		}
		for t := 1; t < T; t++ {
			for s := 0; s < nStates; s++ {
				sum := 0.0
				for q := 0; q < nStates; q++ {
					sum += alpha.At(t-1, q) * trans.At(q, s)
				}
				alpha.Set(t, s, sum*dens.At(t, s))
				scale[t] += alpha.At(t, s)
			}
			if scale[t] == 0 {
				return nil, nil, fmt.Errorf("observation likelihood underflowed at t=%d", t)
			}
			for s := 0; s < nStates; s++ {
				alpha.Set(t, s, alpha.At(t, s)/scale[t])
			}
		}

		// Backward pass with the same scaling.
		beta := mat.NewDense(T, nStates, nil)
		for s := 0; s < nStates; s++ {
			beta.Set(T-1, s, 1)
		}
		for t := T - 2; t >= 0; t-- {
			for s := 0; s < nStates; s++ {
				sum := 0.0
				for q := 0; q < nStates; q++ {
					sum += trans.At(s, q) * dens.At(t+1, q) * beta.At(t+1, q)
				}
				beta.Set(t, s, sum/scale[t+1])
			}
		}

		// Posteriors.
		for t := 0; t < T; t++ {
			norm := 0.0
			for s := 0; s < nStates; s++ {
				g := alpha.At(t, s) * beta.At(t, s)
				gamma.Set(t, s, g)
				norm += g
			}
			if norm > 0 {
				for s := 0; s < nStates; s++ {
					gamma.Set(t, s, gamma.At(t, s)/norm)
				}
			}
		}
		xiSum.Zero()
		for t := 0; t < T-1; t++ {
			norm := 0.0
			for s := 0; s < nStates; s++ {
				for q := 0; q < nStates; q++ {
					norm += alpha.At(t, s) * trans.At(s, q) * dens.At(t+1, q) * beta.At(t+1, q)
				}
			}
			if norm == 0 {
				continue
			}
			for s := 0; s < nStates; s++ {
				for q := 0; q < nStates; q++ {
					xi := alpha.At(t, s) * trans.At(s, q) * dens.At(t+1, q) * beta.At(t+1, q) / norm
					xiSum.Set(s, q, xiSum.At(s, q)+xi)
				}
			}
		}

		// M step.
		for s := 0; s < nStates; s++ {
			pi[s] = gamma.At(0, s)
			gSum := 0.0
			for t := 0; t < T; t++ {
				gSum += gamma.At(t, s)
			}
			if gSum == 0 {
				continue
			}
			rowSum := 0.0
			for q := 0; q < nStates; q++ {
				rowSum += xiSum.At(s, q)
			}
			if rowSum > 0 {
				for q := 0; q < nStates; q++ {
					trans.Set(s, q, xiSum.At(s, q)/rowSum)
				}
			}
			for j := 0; j < D; j++ {
				m := 0.0
				for t := 0; t < T; t++ {
					m += gamma.At(t, s) * obs.At(t, j)
				}
				mu[s][j] = m / gSum
			}
			c := mat.NewSymDense(D, nil)
			for j := 0; j < D; j++ {
				for k := j; k < D; k++ {
					sum := 0.0
					for t := 0; t < T; t++ {
						sum += gamma.At(t, s) * (obs.At(t, j) - mu[s][j]) * (obs.At(t, k) - mu[s][k])
					}
					v := sum / gSum
					if j == k {
						v += hmmCovRidge
					}
					c.SetSym(j, k, v)
				}
			}
			cov[s] = c
		}

		ll := 0.0
		for t := 0; t < T; t++ {
			ll += math.Log(scale[t])
		}
		if ll-prevLL < hmmTol && iter > 0 {
			break
		}
		prevLL = ll
	}

	seq = make([]int, T)
	for t := 0; t < T; t++ {
		best := 0
		for s := 1; s < nStates; s++ {
			if gamma.At(t, s) > gamma.At(t, best) {
				best = s
			}
		}
		seq[t] = best
	}
	return mu, seq, nil
}
