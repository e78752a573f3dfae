// Package engine assembles daily feature matrices from the study, health,
// activity and custom-factor stores and runs a battery of statistical models
// over them to surface associations between wellness signals and study
// productivity. Every analysis is a pure batch computation over a bounded
// date range; the engine holds no mutable state between calls.
package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/engine/frame"
	"github.com/aristath/studyflow/internal/store"
)

// DataStore is the read surface the engine needs. *store.Store satisfies it.
type DataStore interface {
	StudyMinutesByDay(start, end time.Time, category string) (map[string]float64, error)
	EarliestSessionDate() (*time.Time, error)
	HealthByDay(start, end time.Time) ([]store.HealthDay, error)
	ActivitiesBetween(start, end time.Time) ([]store.Activity, error)
	FactorNames() ([]string, error)
	FactorLog(name string) ([]store.FactorOverride, error)
}

// Engine runs correlation and modeling analyses against a DataStore.
type Engine struct {
	store DataStore
	cfg   Config
	log   zerolog.Logger
}

// New creates an engine with the given configuration.
func New(ds DataStore, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		store: ds,
		cfg:   cfg,
		log:   log.With().Str("component", "engine").Logger(),
	}
}

// Request describes one analysis invocation.
type Request struct {
	Start      time.Time
	End        time.Time
	Category   string // optional session category filter; empty means all
	DataMethod DataMethod
	ModelType  ModelType
}

// RunAnalysis assembles daily features for the requested range and runs the
// selected model family. Precondition failures (too few rows, no usable
// features) come back inside the result's Error field; only store failures
// are returned as a Go error.
func (e *Engine) RunAnalysis(req Request) (Result, error) {
	df, err := e.AssembleDailyFeatures(req.Start, req.End, req.Category)
	if err != nil {
		return nil, err
	}

	features := e.availableFeatures(df)
	model, prepErr := e.prepareModelData(df, features, req.DataMethod, e.cfg.MinDailyRows, "days")
	if prepErr != "" {
		return errResult(req.ModelType, prepErr), nil
	}

	e.log.Debug().
		Str("model", string(req.ModelType)).
		Int("rows", model.Len()).
		Int("features", len(features)).
		Msg("Running analysis")

	switch req.ModelType {
	case ModelStandard:
		return e.runStandardOLS(model, features), nil
	case ModelLasso:
		return e.runLasso(model, features), nil
	case ModelPCA:
		return e.runPCA(model, features), nil
	case ModelPLS:
		return e.runPLS(model, features), nil
	case ModelQuantile:
		return e.runQuantile(model), nil
	case ModelVAR:
		return e.runVAR(model), nil
	case ModelHMM:
		return e.runHMM(model), nil
	default:
		return errResult(req.ModelType, "Invalid model type selected."), nil
	}
}

// errResult builds the family-appropriate error-only payload so callers can
// keep dispatching on the concrete result type.
func errResult(model ModelType, msg string) Result {
	switch model {
	case ModelStandard:
		return &StandardResult{ModelType: string(model), Error: msg}
	case ModelLasso:
		return &LassoResult{ModelType: string(model), Error: msg}
	case ModelPCA:
		return &PCAResult{ModelType: string(model), Error: msg}
	case ModelPLS:
		return &PLSResult{ModelType: string(model), Error: msg}
	case ModelQuantile:
		return &QuantileResult{ModelType: string(model), Error: msg}
	case ModelVAR:
		return &VARResult{ModelType: string(model), Error: msg}
	case ModelHMM:
		return &HMMResult{ModelType: string(model), Error: msg}
	default:
		return &StandardResult{ModelType: string(model), Error: msg}
	}
}

// availableFeatures returns the candidate columns with enough non-missing
// coverage to be modeled: the fixed built-in list first, then custom factor
// columns in frame order. The ordering flows through to every result.
func (e *Engine) availableFeatures(df *frame.Frame) []string {
	candidates := append([]string(nil), e.cfg.CandidateFeatures...)
	for _, col := range df.Columns() {
		if hasFactorPrefix(col) {
			candidates = append(candidates, col)
		}
	}

	var available []string
	for _, name := range candidates {
		if df.Has(name) && df.NonMissingCount(name) >= e.cfg.MinFeatureObservations {
			available = append(available, name)
		}
	}
	return available
}

func hasFactorPrefix(name string) bool {
	return len(name) > len(CustomFactorPrefix) && name[:len(CustomFactorPrefix)] == CustomFactorPrefix
}

// prepareModelData restricts the frame to the modeling columns and applies
// the missing-data policy. The returned string is a user-facing error; empty
// means the table is usable.
func (e *Engine) prepareModelData(df *frame.Frame, features []string, method DataMethod, minRows int, unit string) (*frame.Frame, string) {
	if len(features) == 0 {
		return nil, e.noFeaturesMessage()
	}

	model := e.applyMissingPolicy(df, features, method)
	if model.Len() < minRows {
		return nil, fmt.Sprintf("Not enough overlapping data for a '%s' analysis. Need at least %d complete %s.", method, minRows, unit)
	}
	return model, ""
}

// applyMissingPolicy restricts the frame to the target plus features and
// applies the missing-data handling for the chosen method.
func (e *Engine) applyMissingPolicy(df *frame.Frame, features []string, method DataMethod) *frame.Frame {
	required := append([]string{TargetColumn}, features...)
	model := df.Select(required)

	if method == Imputed {
		for _, col := range features {
			model.FillColumnMean(col)
		}
		// The target is never imputed; fabricated productivity values would
		// poison every downstream fit.
		return model.DropRowsMissing([]string{TargetColumn})
	}
	return model.DropRowsMissing(required)
}

func (e *Engine) noFeaturesMessage() string {
	return fmt.Sprintf("No single factor had enough data points (min %d) in this period to run an analysis.", e.cfg.MinFeatureObservations)
}
