package render

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"salesdash/internal/engine"
)

// arrowBatchRows bounds the rows per IPC record batch.
const arrowBatchRows = 64 * 1024

// ArrowSchema is the export schema for cs: one utf8 field per dimension
// followed by one float64 field per measure present in the source.
func ArrowSchema(cs *engine.ColumnStore) *arrow.Schema {
	fields := make([]arrow.Field, 0, engine.NumDimensions+engine.NumMeasures)
	for _, d := range engine.Dimensions() {
		fields = append(fields, arrow.Field{Name: d.Column(), Type: arrow.BinaryTypes.String})
	}
	for _, m := range engine.Measures() {
		if cs.Has(m) {
			fields = append(fields, arrow.Field{Name: m.Column(), Type: arrow.PrimitiveTypes.Float64})
		}
	}
	return arrow.NewSchema(fields, nil)
}

// WriteArrow streams the rows of v to w in the Arrow IPC stream format.
// An empty view still writes the schema.
func WriteArrow(w io.Writer, v *engine.View) error {
	cs := v.Store()
	mem := memory.NewGoAllocator()
	schema := ArrowSchema(cs)

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))

	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()

	rows := v.Rows()
	for start := 0; ; start += arrowBatchRows {
		end := min(start+arrowBatchRows, len(rows))

		// 1. Fill the builders for this batch
		col := 0
		for _, d := range engine.Dimensions() {
			b := rb.Field(col).(*array.StringBuilder)
			b.Reserve(end - start)
			for _, r := range rows[start:end] {
				b.Append(cs.Value(d, r))
			}
			col++
		}
		for _, m := range engine.Measures() {
			if !cs.Has(m) {
				continue
			}
			b := rb.Field(col).(*array.Float64Builder)
			b.Reserve(end - start)
			for _, r := range rows[start:end] {
				b.Append(cs.Amount(m, r))
			}
			col++
		}

		// 2. Flush
		rec := rb.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("write arrow batch: %w", err)
		}
		if end >= len(rows) {
			break
		}
	}
	return writer.Close()
}
