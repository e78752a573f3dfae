package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/studyflow/internal/store"
)

// DataHandlers records study sessions, health days, activities and custom
// factors into the store.
type DataHandlers struct {
	store *store.Store
	log   zerolog.Logger
}

// NewDataHandlers creates new data handlers
func NewDataHandlers(st *store.Store, log zerolog.Logger) *DataHandlers {
	return &DataHandlers{
		store: st,
		log:   log.With().Str("component", "data_handlers").Logger(),
	}
}

// RegisterRoutes registers data routes
func (h *DataHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/data", func(r chi.Router) {
		r.Post("/sessions", h.HandleAddSession)
		r.Post("/tags", h.HandleAddTag)
		r.Post("/categories", h.HandleAddCategory)
		r.Get("/categories", h.HandleListCategories)
		r.Post("/health", h.HandleUpsertHealth)
		r.Post("/activities", h.HandleAddActivity)
		r.Get("/factors", h.HandleListFactors)
		r.Post("/factors", h.HandleAddFactor)
		r.Put("/factors/{name}/log", h.HandleSetFactorValue)
		r.Delete("/factors/{name}", h.HandleDeleteFactor)
	})
}

type addSessionRequest struct {
	Tag   string `json:"tag"`
	Start string `json:"start"`
	End   string `json:"end"`
	Notes string `json:"notes"`
}

// HandleAddSession records one completed study session
func (h *DataHandlers) HandleAddSession(w http.ResponseWriter, r *http.Request) {
	var req addSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Tag == "" {
		http.Error(w, "tag is required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(store.TimeFormat, req.Start)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid start time %q", req.Start), http.StatusBadRequest)
		return
	}
	end, err := time.Parse(store.TimeFormat, req.End)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid end time %q", req.End), http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end time must be after start time", http.StatusBadRequest)
		return
	}

	id, err := h.store.Sessions.Add(req.Tag, start, end, int64(end.Sub(start).Seconds()), req.Notes)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to add session")
		http.Error(w, "Failed to add session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]int64{"id": id})
}

type addTagRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// HandleAddTag registers a study tag under a category
func (h *DataHandlers) HandleAddTag(w http.ResponseWriter, r *http.Request) {
	var req addTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if err := h.store.Sessions.AddTag(req.Name, req.Category); err != nil {
		h.log.Error().Err(err).Msg("Failed to add tag")
		http.Error(w, "Failed to add tag", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleAddCategory registers a new study category
func (h *DataHandlers) HandleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if err := h.store.Sessions.AddCategory(req.Name); err != nil {
		h.log.Error().Err(err).Msg("Failed to add category")
		http.Error(w, "Failed to add category", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleListCategories lists the known study categories
func (h *DataHandlers) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Sessions.Categories()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		http.Error(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string][]string{"categories": categories})
}

type upsertHealthRequest struct {
	Date                 string   `json:"date"`
	SleepScore           *float64 `json:"sleep_score"`
	RestingHR            *float64 `json:"resting_hr"`
	BodyBattery          *float64 `json:"body_battery"`
	PulseOx              *float64 `json:"pulse_ox"`
	Respiration          *float64 `json:"respiration"`
	SleepDurationSeconds *float64 `json:"sleep_duration_seconds"`
	AvgStress            *float64 `json:"avg_stress"`
}

// HandleUpsertHealth writes one day's health metrics, replacing any
// existing record for that date
func (h *DataHandlers) HandleUpsertHealth(w http.ResponseWriter, r *http.Request) {
	var req upsertHealthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(store.DateFormat, req.Date)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", req.Date), http.StatusBadRequest)
		return
	}

	day := store.HealthDay{
		Date:                 date,
		SleepScore:           req.SleepScore,
		RestingHR:            req.RestingHR,
		BodyBattery:          req.BodyBattery,
		PulseOx:              req.PulseOx,
		Respiration:          req.Respiration,
		SleepDurationSeconds: req.SleepDurationSeconds,
		AvgStress:            req.AvgStress,
	}
	if err := h.store.Health.Upsert(day); err != nil {
		h.log.Error().Err(err).Msg("Failed to upsert health day")
		http.Error(w, "Failed to save health data", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addActivityRequest struct {
	ActivityType    string   `json:"activity_type"`
	Start           string   `json:"start"`
	DurationSeconds float64  `json:"duration_seconds"`
	Distance        *float64 `json:"distance"`
	Calories        *float64 `json:"calories"`
}

// HandleAddActivity records one physical activity
func (h *DataHandlers) HandleAddActivity(w http.ResponseWriter, r *http.Request) {
	var req addActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActivityType == "" {
		http.Error(w, "activity_type is required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(store.TimeFormat, req.Start)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid start time %q", req.Start), http.StatusBadRequest)
		return
	}
	if req.DurationSeconds <= 0 {
		http.Error(w, "duration_seconds must be positive", http.StatusBadRequest)
		return
	}

	if err := h.store.Activities.Add(req.ActivityType, start, req.DurationSeconds, req.Distance, req.Calories); err != nil {
		h.log.Error().Err(err).Msg("Failed to add activity")
		http.Error(w, "Failed to add activity", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleListFactors lists the custom factor names
func (h *DataHandlers) HandleListFactors(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.Factors.Names()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list factors")
		http.Error(w, "Failed to list factors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string][]string{"factors": names})
}

type addFactorRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
}

// HandleAddFactor creates a new custom factor starting at the given date
func (h *DataHandlers) HandleAddFactor(w http.ResponseWriter, r *http.Request) {
	var req addFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	startDate, err := time.Parse(store.DateFormat, req.StartDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid start_date %q, want YYYY-MM-DD", req.StartDate), http.StatusBadRequest)
		return
	}
	if err := h.store.Factors.Add(req.Name, startDate); err != nil {
		h.log.Error().Err(err).Msg("Failed to add factor")
		http.Error(w, "Failed to add factor", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type setFactorValueRequest struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// HandleSetFactorValue appends a value change to a factor's log. The value
// carries forward until the next logged change.
func (h *DataHandlers) HandleSetFactorValue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req setFactorValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(store.DateFormat, req.Date)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", req.Date), http.StatusBadRequest)
		return
	}
	if err := h.store.Factors.SetOverride(name, date, req.Value); err != nil {
		h.log.Error().Err(err).Msg("Failed to set factor value")
		http.Error(w, "Failed to set factor value", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteFactor removes a factor and its change log
func (h *DataHandlers) HandleDeleteFactor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.store.Factors.Delete(name); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete factor")
		http.Error(w, "Failed to delete factor", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
