package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/studyflow/internal/engine/frame"
)

const pcaVarianceTarget = 0.95

// runPCA standardizes the design, keeps the principal components explaining
// 95% of cumulative variance, and regresses the target on the component
// scores. Weekday dummies participate in the decomposition but are not
// reintroduced afterwards; the components already carry their variance.
func (e *Engine) runPCA(model *frame.Frame, features []string) *PCAResult {
	X, y, names := designMatrix(model, features)
	standardize(X)

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		n, p := X.Dims()
		return &PCAResult{
			ModelType: string(ModelPCA),
			Error:     fmt.Sprintf("Principal component decomposition failed (%d rows, %d features).", n, p),
		}
	}

	variances := pc.VarsTo(nil)
	total := 0.0
	for _, v := range variances {
		total += v
	}
	if total == 0 {
		return &PCAResult{
			ModelType: string(ModelPCA),
			Error:     "All features are constant over this period; nothing to decompose.",
		}
	}

	kept := 0
	cum := 0.0
	for _, v := range variances {
		kept++
		cum += v / total
		if cum >= pcaVarianceTarget {
			break
		}
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)
	n, p := X.Dims()
	loadings := vectors.Slice(0, p, 0, kept)

	scores := mat.NewDense(n, kept, nil)
	scores.Mul(X, loadings)

	fit, err := fitOLS(withIntercept(scores), y)
	if err != nil {
		return &PCAResult{
			ModelType: string(ModelPCA),
			Error:     fmt.Sprintf("Component regression failed: %v.", err),
		}
	}

	res := &PCAResult{ModelType: string(ModelPCA)}
	for c := 0; c < kept; c++ {
		share := variances[c] / total
		res.ExplainedVariance = append(res.ExplainedVariance, share)

		load := make(map[string]float64, len(names))
		for j, name := range names {
			load[name] = loadings.At(j, c)
		}
		comp := PrincipalComponent{
			Name:          fmt.Sprintf("PC_%d", c+1),
			VarianceShare: share,
			Coefficient:   fit.Coef[c+1],
			PValue:        fit.PValues[c+1],
			Loadings:      load,
		}
		res.Components = append(res.Components, comp)

		if !math.IsNaN(comp.PValue) && comp.PValue < 0.05 {
			res.AutomatedAnalysis = append(res.AutomatedAnalysis, componentInsight(comp, names))
		}
	}
	return res
}

// componentInsight names a significant component's top contributing features
// with the sign of their loading.
func componentInsight(comp PrincipalComponent, names []string) string {
	effect := "positive"
	if comp.Coefficient < 0 {
		effect = "negative"
	}

	ranked := append([]string(nil), names...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(comp.Loadings[ranked[i]]) > math.Abs(comp.Loadings[ranked[j]])
	})
	top := ranked
	if len(top) > 3 {
		top = top[:3]
	}

	var parts []string
	for _, name := range top {
		direction := "(+)"
		if comp.Loadings[name] < 0 {
			direction = "(-)"
		}
		parts = append(parts, fmt.Sprintf("%s %s", displayName(name), direction))
	}
	return fmt.Sprintf("• Component %s has a significant %s impact on study time. It is primarily driven by: %s.",
		comp.Name, effect, strings.Join(parts, ", "))
}
