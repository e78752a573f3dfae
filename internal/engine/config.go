package engine

// Column name constants shared across the engine.
const (
	TargetColumn       = "total_study_minutes"
	CustomFactorPrefix = "factor_"

	colSleepScore        = "sleep_score"
	colAvgStress         = "avg_stress"
	colBodyBattery       = "body_battery"
	colSleepDurationSecs = "sleep_duration_seconds"
	colSleepDurationHrs  = "sleep_duration_hours"
	colRestingHR         = "resting_hr"
	colPulseOx           = "pulse_ox"
	colRespiration       = "respiration"
	colRunningMinutes    = "running_minutes"
	colDistance          = "distance"
	colActivityCount     = "activity_count"
	colBreathwork        = "breathwork_sessions"
	colTotalActivityMins = "total_activity_minutes"
	colTotalCalories     = "total_calories"
	colAvgActivityMins   = "avg_activity_duration_minutes"
)

// Config is the engine's immutable configuration. It is constructed once at
// startup and threaded into every component so tests can override candidate
// lists and thresholds without touching globals.
type Config struct {
	// CandidateFeatures is the fixed list of built-in feature columns the
	// availability filter considers, in display order. Custom factor columns
	// are appended dynamically.
	CandidateFeatures []string

	// MinFeatureObservations is the minimum number of non-missing values a
	// candidate needs over the queried range to be modeled.
	MinFeatureObservations int

	// MinDailyRows / MinWeeklyRows gate the prepared modeling table.
	MinDailyRows  int
	MinWeeklyRows int

	// Per-family sample-size gates.
	MinPLSRows      int
	MinQuantileRows int
	MinVARRows      int
	MinHMMRows      int

	// RollableColumns are the columns eligible for rolling-window features.
	RollableColumns []string

	// Quantiles fitted by the quantile regression family.
	Quantiles []float64

	// CoreHealthMetrics is the reduced feature set used by the quantile
	// family and the weekly efficiency correlation matrix.
	CoreHealthMetrics []string

	// VARVariables are the candidates for the vector autoregression system,
	// intersected with the columns actually present.
	VARVariables []string

	// VARMaxLag bounds the AIC lag search; VARHorizon is the impulse
	// response horizon in days.
	VARMaxLag  int
	VARHorizon int

	// HMMStates is the number of hidden states discovered by the HMM family.
	HMMStates int

	// CCFMaxLag is the symmetric lag window of the cross-correlation scan.
	CCFMaxLag int

	// Seed fixes every stochastic component (CV folds, bootstrap, HMM
	// init) so identical inputs reproduce identical outputs.
	Seed int64
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		CandidateFeatures: []string{
			colSleepScore, colAvgStress, colBodyBattery, colSleepDurationSecs,
			colRestingHR, colPulseOx, colRespiration,
			colRunningMinutes, colDistance, colActivityCount, colBreathwork,
			colTotalActivityMins, colTotalCalories, colAvgActivityMins,
		},
		MinFeatureObservations: 10,
		MinDailyRows:           10,
		MinWeeklyRows:          4,
		MinPLSRows:             15,
		MinQuantileRows:        20,
		MinVARRows:             40,
		MinHMMRows:             50,
		RollableColumns: []string{
			colSleepScore, colRestingHR, colBodyBattery, colAvgStress,
			TargetColumn, colRunningMinutes, colDistance, colTotalActivityMins,
		},
		Quantiles:         []float64{0.25, 0.5, 0.75},
		CoreHealthMetrics: []string{colSleepScore, colAvgStress, colBodyBattery, colSleepDurationHrs},
		VARVariables:      []string{TargetColumn, colSleepScore, colAvgStress, colSleepDurationHrs},
		VARMaxLag:         7,
		VARHorizon:        10,
		HMMStates:         3,
		CCFMaxLag:         7,
		Seed:              42,
	}
}

// DataMethod selects the missing-data policy for model preparation.
type DataMethod string

const (
	// Strict drops any row missing the target or any available feature.
	Strict DataMethod = "Strict"
	// Imputed mean-fills feature gaps; the target is never imputed.
	Imputed DataMethod = "Imputed"
)

// ModelType identifies a model family.
type ModelType string

const (
	ModelStandard ModelType = "Standard"
	ModelLasso    ModelType = "Lasso"
	ModelPCA      ModelType = "PCA"
	ModelPLS      ModelType = "PLS"
	ModelQuantile ModelType = "Quantile"
	ModelVAR      ModelType = "VAR"
	ModelHMM      ModelType = "HMM"
)
