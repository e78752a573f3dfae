package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/studyflow/internal/engine/frame"
)

func exportFixture(t *testing.T) *FrameExport {
	t.Helper()
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	df := frame.NewDaily(start, start.AddDate(0, 0, 2))
	require.NoError(t, df.Set("study_minutes", []float64{30, 0, 45.5}))
	require.NoError(t, df.Set("sleep_score", []float64{80, math.NaN(), 91}))
	return NewFrameExport(df)
}

func TestWriteCSV(t *testing.T) {
	export := exportFixture(t)

	var sb strings.Builder
	require.NoError(t, export.WriteCSV(&sb))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,study_minutes,sleep_score", lines[0])
	assert.Equal(t, "2025-09-01,30,80", lines[1])
	// NaN becomes an empty cell, not a literal "NaN".
	assert.Equal(t, "2025-09-02,0,", lines[2])
	assert.Equal(t, "2025-09-03,45.5,91", lines[3])
}

func TestMarshalMsgpackRoundTrip(t *testing.T) {
	export := exportFixture(t)

	data, err := export.MarshalMsgpack()
	require.NoError(t, err)

	var decoded FrameExport
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	assert.Equal(t, export.Dates, decoded.Dates)
	assert.Equal(t, export.Columns, decoded.Columns)
	assert.Equal(t, export.Data["study_minutes"], decoded.Data["study_minutes"])
}
