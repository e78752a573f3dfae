package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/engine"
	"github.com/aristath/studyflow/internal/store"
)

// AnalysisHandlers exposes the correlation engine over HTTP. Precondition
// failures come back as 200 responses carrying the result's error field, the
// same error-first contract the engine itself uses; only malformed requests
// and store failures map to HTTP error codes.
type AnalysisHandlers struct {
	engine *engine.Engine
	log    zerolog.Logger
}

// NewAnalysisHandlers creates new analysis handlers
func NewAnalysisHandlers(eng *engine.Engine, log zerolog.Logger) *AnalysisHandlers {
	return &AnalysisHandlers{
		engine: eng,
		log:    log.With().Str("component", "analysis_handlers").Logger(),
	}
}

// RegisterRoutes registers analysis routes
func (h *AnalysisHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Get("/run", h.HandleRunAnalysis)
		r.Get("/weekly", h.HandleRunWeeklyAnalysis)
		r.Get("/ccf", h.HandleRunCCF)
		r.Get("/event-study", h.HandleRunEventStudy)
		r.Get("/weekly-efficiency", h.HandleRunWeeklyEfficiency)
		r.Get("/trends", h.HandleRunTrends)
	})
	r.Get("/features/export", h.HandleExportFeatures)
	r.Get("/features/stats", h.HandleFeatureStats)
}

// HandleFeatureStats returns descriptive statistics for every assembled
// feature column
func (h *AnalysisHandlers) HandleFeatureStats(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.engine.RunSummaryStats(req.Start, req.End, req.Category)
	if err != nil {
		h.log.Error().Err(err).Msg("Summary stats failed")
		http.Error(w, "Summary stats failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// HandleExportFeatures streams the assembled daily feature frame in the
// requested format (json, csv or msgpack) for external tooling.
func (h *AnalysisHandlers) HandleExportFeatures(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	df, err := h.engine.AssembleDailyFeatures(req.Start, req.End, req.Category)
	if err != nil {
		h.log.Error().Err(err).Msg("Feature assembly failed")
		http.Error(w, "Feature assembly failed", http.StatusInternalServerError)
		return
	}
	export := engine.NewFrameExport(df)
	exportID := uuid.NewString()

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=features-%s.csv", exportID))
		if err := export.WriteCSV(w); err != nil {
			h.log.Error().Err(err).Msg("CSV export failed")
		}
	case "msgpack":
		data, err := export.MarshalMsgpack()
		if err != nil {
			h.log.Error().Err(err).Msg("Msgpack export failed")
			http.Error(w, "Export failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=features-%s.msgpack", exportID))
		_, _ = w.Write(data)
	default:
		writeJSON(w, export)
	}
}

// analysisRequest pulls the shared query parameters.
func analysisRequest(r *http.Request) (engine.Request, error) {
	q := r.URL.Query()
	start, err := time.Parse(store.DateFormat, q.Get("start"))
	if err != nil {
		return engine.Request{}, fmt.Errorf("invalid start date %q, want YYYY-MM-DD", q.Get("start"))
	}
	end, err := time.Parse(store.DateFormat, q.Get("end"))
	if err != nil {
		return engine.Request{}, fmt.Errorf("invalid end date %q, want YYYY-MM-DD", q.Get("end"))
	}
	if end.Before(start) {
		return engine.Request{}, fmt.Errorf("end date precedes start date")
	}

	req := engine.Request{
		Start:      start,
		End:        end,
		Category:   q.Get("category"),
		DataMethod: engine.Strict,
		ModelType:  engine.ModelLasso,
	}
	if m := q.Get("method"); m != "" {
		req.DataMethod = engine.DataMethod(m)
	}
	if m := q.Get("model"); m != "" {
		req.ModelType = engine.ModelType(m)
	}
	return req, nil
}

// HandleRunAnalysis runs a daily analysis with the selected model family
func (h *AnalysisHandlers) HandleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.RunAnalysis(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Analysis failed")
		http.Error(w, "Analysis failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

// HandleRunWeeklyAnalysis runs a weekly-granularity analysis
func (h *AnalysisHandlers) HandleRunWeeklyAnalysis(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.RunWeeklyAnalysis(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Weekly analysis failed")
		http.Error(w, "Weekly analysis failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

// HandleRunCCF computes lagged cross-correlations for the heatmap
func (h *AnalysisHandlers) HandleRunCCF(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.RunCCF(req.Start, req.End, req.Category)
	if err != nil {
		h.log.Error().Err(err).Msg("CCF analysis failed")
		http.Error(w, "CCF analysis failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

// HandleRunEventStudy aggregates study minutes around metric shocks
func (h *AnalysisHandlers) HandleRunEventStudy(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	feature := q.Get("feature")
	if feature == "" {
		http.Error(w, "feature parameter is required", http.StatusBadRequest)
		return
	}
	threshold, err := strconv.ParseFloat(q.Get("threshold"), 64)
	if err != nil || threshold <= 0 {
		http.Error(w, "threshold must be a positive number", http.StatusBadRequest)
		return
	}
	window, _ := strconv.Atoi(q.Get("window"))

	res, err := h.engine.RunEventStudy(engine.EventStudyRequest{
		Start:     req.Start,
		End:       req.End,
		Category:  req.Category,
		Feature:   feature,
		Window:    window,
		Threshold: threshold,
		Direction: engine.ShockDirection(q.Get("direction")),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Event study failed")
		http.Error(w, "Event study failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

// HandleRunWeeklyEfficiency summarizes weekly sleep/efficiency correlations
func (h *AnalysisHandlers) HandleRunWeeklyEfficiency(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.engine.RunWeeklyEfficiency(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Weekly efficiency analysis failed")
		http.Error(w, "Weekly efficiency analysis failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

// HandleRunTrends returns the chart-ready smoothed daily series
func (h *AnalysisHandlers) HandleRunTrends(w http.ResponseWriter, r *http.Request) {
	req, err := analysisRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	emaPeriod, _ := strconv.Atoi(r.URL.Query().Get("ema_period"))

	res, err := h.engine.RunTrends(req.Start, req.End, req.Category, emaPeriod)
	if err != nil {
		h.log.Error().Err(err).Msg("Trends computation failed")
		http.Error(w, "Trends computation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
