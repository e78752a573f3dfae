package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorEffectMarshalsNaNPValueAsNull(t *testing.T) {
	data, err := json.Marshal(FactorEffect{
		Name:        "sleep_score",
		Coefficient: 1.5,
		PValue:      math.NaN(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"sleep_score","coefficient":1.5,"p_value":null}`, string(data))
}

func TestTrendsResultMarshalsMissingDaysAsNull(t *testing.T) {
	res := &TrendsResult{
		Dates:                    []string{"2025-09-01", "2025-09-02"},
		StudyMinutes:             []float64{math.NaN(), 30},
		StudyMinutesEMA:          []float64{15, 15},
		SleepScore:               []float64{80, math.NaN()},
		SleepDurationHoursScaled: []float64{75, math.NaN()},
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	minutes := decoded["study_minutes"].([]any)
	assert.Nil(t, minutes[0])
	assert.Equal(t, 30.0, minutes[1])
}

func TestWeeklyEfficiencyResultMarshalsNaNCorrelationAsNull(t *testing.T) {
	res := &WeeklyEfficiencyResult{
		ModelType: "Weekly Efficiency",
		Weeks:     4,
		CorrelationMatrix: map[string]map[string]float64{
			"sleep_score": {"efficiency_score": math.NaN(), "sleep_score": 1},
		},
	}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"efficiency_score":null`)
}

func TestFrameExportJSONMarshalsNaNAsNull(t *testing.T) {
	export := &FrameExport{
		Dates:   []string{"2025-09-01"},
		Columns: []string{"sleep_score"},
		Data:    map[string][]float64{"sleep_score": {math.NaN()}},
	}
	data, err := json.Marshal(export)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sleep_score":[null]`)
}
