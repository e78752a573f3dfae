package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/studyflow/internal/engine/frame"
	"github.com/aristath/studyflow/internal/store"
)

// FrameExport is the wire shape of an assembled feature frame, used by the
// export endpoints so external tools can rerun their own analyses.
type FrameExport struct {
	Dates   []string             `msgpack:"dates" json:"dates"`
	Columns []string             `msgpack:"columns" json:"columns"`
	Data    map[string][]float64 `msgpack:"data" json:"data"`
}

// NewFrameExport snapshots a frame into its export shape.
func NewFrameExport(df *frame.Frame) *FrameExport {
	out := &FrameExport{
		Columns: df.Columns(),
		Data:    make(map[string][]float64, len(df.Columns())),
	}
	for _, d := range df.Dates() {
		out.Dates = append(out.Dates, d.Format(store.DateFormat))
	}
	for _, name := range out.Columns {
		out.Data[name] = df.ColumnCopy(name)
	}
	return out
}

// frameExportWire strips FrameExport's methods so the encoder walks the
// struct fields. Marshaling *FrameExport directly would re-enter
// MarshalMsgpack through the msgpack.Marshaler interface and never return.
type frameExportWire FrameExport

// MarshalMsgpack encodes the export compactly for programmatic consumers.
func (f *FrameExport) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal((*frameExportWire)(f))
}

// WriteCSV writes the export as a date-indexed CSV table. Missing values
// become empty cells.
func (f *FrameExport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date"}, f.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(header))
	for i, date := range f.Dates {
		row[0] = date
		for j, name := range f.Columns {
			v := f.Data[name][i]
			if math.IsNaN(v) {
				row[j+1] = ""
			} else {
				row[j+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
