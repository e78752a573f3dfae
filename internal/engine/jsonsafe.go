package engine

import (
	"encoding/json"
	"math"
)

// nanNull is a float64 that serializes NaN and infinities as JSON null.
// encoding/json refuses to marshal non-finite floats, and several payloads
// legitimately carry them: p-values without enough degrees of freedom,
// pre-tracking days in chart series, correlations with too little overlap.
type nanNull float64

func (v nanNull) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func nanNullSlice(vals []float64) []nanNull {
	if vals == nil {
		return nil
	}
	out := make([]nanNull, len(vals))
	for i, v := range vals {
		out[i] = nanNull(v)
	}
	return out
}

// MarshalJSON keeps factor effects JSON-safe: a NaN p-value (inference not
// possible) comes through as null rather than failing the whole response.
func (f FactorEffect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string  `json:"name"`
		Coefficient nanNull `json:"coefficient"`
		PValue      nanNull `json:"p_value"`
		Insight     string  `json:"insight,omitempty"`
	}{f.Name, nanNull(f.Coefficient), nanNull(f.PValue), f.Insight})
}

func (c PrincipalComponent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name          string             `json:"name"`
		VarianceShare float64            `json:"variance_share"`
		Coefficient   nanNull            `json:"coefficient"`
		PValue        nanNull            `json:"p_value"`
		Loadings      map[string]float64 `json:"loadings"`
	}{c.Name, c.VarianceShare, nanNull(c.Coefficient), nanNull(c.PValue), c.Loadings})
}

func (r *TrendsResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Dates                    []string  `json:"dates"`
		StudyMinutes             []nanNull `json:"study_minutes"`
		StudyMinutesEMA          []nanNull `json:"study_minutes_ema"`
		SleepScore               []nanNull `json:"sleep_score"`
		SleepDurationHoursScaled []nanNull `json:"sleep_duration_hours_scaled"`
	}{
		r.Dates,
		nanNullSlice(r.StudyMinutes),
		nanNullSlice(r.StudyMinutesEMA),
		nanNullSlice(r.SleepScore),
		nanNullSlice(r.SleepDurationHoursScaled),
	})
}

func (r *EventStudyResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error   string    `json:"error,omitempty"`
		Feature string    `json:"feature,omitempty"`
		Events  int       `json:"events,omitempty"`
		Offsets []int     `json:"offsets,omitempty"`
		Mean    []nanNull `json:"mean,omitempty"`
		StdErr  []nanNull `json:"std_err,omitempty"`
	}{r.Error, r.Feature, r.Events, r.Offsets, nanNullSlice(r.Mean), nanNullSlice(r.StdErr)})
}

func (r *WeeklyEfficiencyResult) MarshalJSON() ([]byte, error) {
	var matrix map[string]map[string]nanNull
	if r.CorrelationMatrix != nil {
		matrix = make(map[string]map[string]nanNull, len(r.CorrelationMatrix))
		for a, row := range r.CorrelationMatrix {
			matrix[a] = make(map[string]nanNull, len(row))
			for b, v := range row {
				matrix[a][b] = nanNull(v)
			}
		}
	}
	return json.Marshal(struct {
		ModelType         string                        `json:"model_type"`
		Error             string                        `json:"error,omitempty"`
		Weeks             int                           `json:"weeks,omitempty"`
		CorrelationMatrix map[string]map[string]nanNull `json:"correlation_matrix,omitempty"`
		Insights          []string                      `json:"insights,omitempty"`
	}{r.ModelType, r.Error, r.Weeks, matrix, r.Insights})
}

// MarshalJSON covers the json export format; missing cells become null, the
// same convention the CSV writer uses with empty cells. The msgpack format
// carries NaN natively and is unaffected.
func (f *FrameExport) MarshalJSON() ([]byte, error) {
	data := make(map[string][]nanNull, len(f.Data))
	for name, vals := range f.Data {
		data[name] = nanNullSlice(vals)
	}
	return json.Marshal(struct {
		Dates   []string             `json:"dates"`
		Columns []string             `json:"columns"`
		Data    map[string][]nanNull `json:"data"`
	}{f.Dates, f.Columns, data})
}
