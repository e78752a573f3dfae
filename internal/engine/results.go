package engine

// Result is implemented by every analysis result. Callers must check
// ErrMessage before reading family-specific fields; a non-empty message
// means no payload fields are populated.
type Result interface {
	ErrMessage() string
}

// FactorEffect is one feature's estimated effect on the target.
type FactorEffect struct {
	Name        string  `json:"name"`
	Coefficient float64 `json:"coefficient"`
	PValue      float64 `json:"p_value,omitempty"`
	Insight     string  `json:"insight,omitempty"`
}

// StandardResult is the OLS family payload.
type StandardResult struct {
	ModelType            string         `json:"model_type"`
	Error                string         `json:"error,omitempty"`
	ModelSummary         string         `json:"model_summary,omitempty"`
	SignificantFactors   []FactorEffect `json:"significant_factors"`
	InsignificantFactors []FactorEffect `json:"insignificant_factors"`
}

func (r *StandardResult) ErrMessage() string { return r.Error }

// LassoResult is the L1-regularized family payload. Coefficients are per
// standard-deviation unit since inputs are standardized before fitting.
type LassoResult struct {
	ModelType         string         `json:"model_type"`
	Error             string         `json:"error,omitempty"`
	Alpha             float64        `json:"alpha,omitempty"`
	SelectedFactors   []FactorEffect `json:"selected_factors"`
	EliminatedFactors []FactorEffect `json:"eliminated_factors"`
}

func (r *LassoResult) ErrMessage() string { return r.Error }

// PrincipalComponent is one extracted component with its regression fit.
type PrincipalComponent struct {
	Name          string             `json:"name"`
	VarianceShare float64            `json:"variance_share"`
	Coefficient   float64            `json:"coefficient"`
	PValue        float64            `json:"p_value"`
	Loadings      map[string]float64 `json:"loadings"`
}

// PCAResult is the principal-component family payload.
type PCAResult struct {
	ModelType         string               `json:"model_type"`
	Error             string               `json:"error,omitempty"`
	ExplainedVariance []float64            `json:"explained_variance,omitempty"`
	Components        []PrincipalComponent `json:"components,omitempty"`
	AutomatedAnalysis []string             `json:"automated_analysis,omitempty"`
}

func (r *PCAResult) ErrMessage() string { return r.Error }

// VIPScore is a feature's Variable-Importance-in-Projection score.
type VIPScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// PLSResult is the partial-least-squares family payload.
type PLSResult struct {
	ModelType    string         `json:"model_type"`
	Error        string         `json:"error,omitempty"`
	Components   int            `json:"components,omitempty"`
	Coefficients []FactorEffect `json:"coefficients,omitempty"`
	VIPScores    []VIPScore     `json:"vip_scores,omitempty"`
}

func (r *PLSResult) ErrMessage() string { return r.Error }

// QuantileFit is one quantile's regression outcome. A single quantile's
// failure is captured here without aborting its siblings.
type QuantileFit struct {
	Quantile     float64        `json:"quantile"`
	Error        string         `json:"error,omitempty"`
	Coefficients []FactorEffect `json:"coefficients,omitempty"`
}

// QuantileResult is the quantile-regression family payload.
type QuantileResult struct {
	ModelType string        `json:"model_type"`
	Error     string        `json:"error,omitempty"`
	Fits      []QuantileFit `json:"fits,omitempty"`
}

func (r *QuantileResult) ErrMessage() string { return r.Error }

// ImpulseResponse traces the target's response to a one-standard-deviation
// shock in one variable over the horizon. Lower/Upper are Monte Carlo error
// bands and are empty when band computation failed.
type ImpulseResponse struct {
	Shock    string    `json:"shock"`
	Response []float64 `json:"response"`
	Lower    []float64 `json:"lower,omitempty"`
	Upper    []float64 `json:"upper,omitempty"`
}

// VARResult is the vector-autoregression family payload.
type VARResult struct {
	ModelType string            `json:"model_type"`
	Error     string            `json:"error,omitempty"`
	LagOrder  int               `json:"lag_order,omitempty"`
	Variables []string          `json:"variables,omitempty"`
	Responses []ImpulseResponse `json:"impulse_responses,omitempty"`
}

func (r *VARResult) ErrMessage() string { return r.Error }

// HMMState is one discovered hidden state: its mean observation vector (in
// original units) and how many days were assigned to it.
type HMMState struct {
	State int                `json:"state"`
	Days  int                `json:"days"`
	Means map[string]float64 `json:"means"`
}

// HMMResult is the Gaussian hidden-Markov family payload.
type HMMResult struct {
	ModelType string     `json:"model_type"`
	Error     string     `json:"error,omitempty"`
	States    []HMMState `json:"states,omitempty"`
	// StateSequence assigns each usable day to a state, aligned with Dates.
	StateSequence []int    `json:"state_sequence,omitempty"`
	Dates         []string `json:"dates,omitempty"`
}

func (r *HMMResult) ErrMessage() string { return r.Error }

// CCFResult is the cross-correlation-by-lag payload. Correlations[feature]
// is aligned with Lags; pairs with insufficient overlap are reported as 0
// so the heatmap always renders.
type CCFResult struct {
	Error        string               `json:"error,omitempty"`
	Lags         []int                `json:"lags,omitempty"`
	Features     []string             `json:"features,omitempty"`
	Correlations map[string][]float64 `json:"correlations,omitempty"`
}

func (r *CCFResult) ErrMessage() string { return r.Error }

// EventStudyResult aggregates the target around detected metric shocks.
type EventStudyResult struct {
	Error   string    `json:"error,omitempty"`
	Feature string    `json:"feature,omitempty"`
	Events  int       `json:"events,omitempty"`
	Offsets []int     `json:"offsets,omitempty"`
	Mean    []float64 `json:"mean,omitempty"`
	StdErr  []float64 `json:"std_err,omitempty"`
}

func (r *EventStudyResult) ErrMessage() string { return r.Error }

// WeeklyEfficiencyResult is the weekly sleep/efficiency summary payload.
type WeeklyEfficiencyResult struct {
	ModelType         string                        `json:"model_type"`
	Error             string                        `json:"error,omitempty"`
	Weeks             int                           `json:"weeks,omitempty"`
	CorrelationMatrix map[string]map[string]float64 `json:"correlation_matrix,omitempty"`
	Insights          []string                      `json:"insights,omitempty"`
}

func (r *WeeklyEfficiencyResult) ErrMessage() string { return r.Error }
