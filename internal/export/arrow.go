// Package export writes run histories as Arrow IPC files, the interchange
// format consumed by the notebook post-processing tooling. Records are
// flattened to one row per (iteration, zone) pair so the table can be
// filtered and plotted without unnesting.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/karthik11135/tardis/internal/models"
)

// Schema returns the flat iteration/zone table schema.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "run_id", Type: arrow.BinaryTypes.String},
		{Name: "iteration", Type: arrow.PrimitiveTypes.Int32},
		{Name: "zone", Type: arrow.PrimitiveTypes.Int32},
		{Name: "t_rad", Type: arrow.PrimitiveTypes.Float64},
		{Name: "t_rad_estimate", Type: arrow.PrimitiveTypes.Float64},
		{Name: "w", Type: arrow.PrimitiveTypes.Float64},
		{Name: "w_estimate", Type: arrow.PrimitiveTypes.Float64},
		{Name: "t_inner", Type: arrow.PrimitiveTypes.Float64},
		{Name: "t_inner_estimate", Type: arrow.PrimitiveTypes.Float64},
		{Name: "next_t_inner", Type: arrow.PrimitiveTypes.Float64},
		{Name: "emitted_luminosity", Type: arrow.PrimitiveTypes.Float64},
		{Name: "requested_luminosity", Type: arrow.PrimitiveTypes.Float64},
		{Name: "residual_luminosity", Type: arrow.PrimitiveTypes.Float64},
		{Name: "converged", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "hold_count", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
}

// WriteFile writes a run's iteration records to an Arrow IPC file at path.
func WriteFile(path string, run models.RunSummary, recs []models.IterationRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	if err := Write(f, run, recs); err != nil {
		return err
	}
	return f.Close()
}

// Write streams the flattened table to w in Arrow IPC file format.
func Write(w io.WriteSeeker, run models.RunSummary, recs []models.IterationRecord) error {
	mem := memory.NewGoAllocator()
	schema := Schema()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, rec := range recs {
		appendRecord(b, run.ID, rec)
	}

	arrRec := b.NewRecord()
	defer arrRec.Release()

	if err := fw.Write(arrRec); err != nil {
		fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}
	return nil
}

// appendRecord flattens one iteration into per-zone rows. Scalar columns
// repeat across the iteration's zones.
func appendRecord(b *array.RecordBuilder, runID string, rec models.IterationRecord) {
	obs := rec.Observables
	for zone := 0; zone < obs.Zones(); zone++ {
		b.Field(0).(*array.StringBuilder).Append(runID)
		b.Field(1).(*array.Int32Builder).Append(int32(rec.Index))
		b.Field(2).(*array.Int32Builder).Append(int32(zone))
		b.Field(3).(*array.Float64Builder).Append(obs.TRad[zone])
		b.Field(4).(*array.Float64Builder).Append(at(rec.TRadEstimate, zone))
		b.Field(5).(*array.Float64Builder).Append(obs.W[zone])
		b.Field(6).(*array.Float64Builder).Append(at(rec.WEstimate, zone))
		b.Field(7).(*array.Float64Builder).Append(obs.TInner)
		b.Field(8).(*array.Float64Builder).Append(rec.TInnerEstimate)
		b.Field(9).(*array.Float64Builder).Append(rec.NextTInner)
		b.Field(10).(*array.Float64Builder).Append(obs.EmittedLuminosity)
		b.Field(11).(*array.Float64Builder).Append(obs.RequestedLuminosity)
		b.Field(12).(*array.Float64Builder).Append(obs.ResidualLuminosity())
		b.Field(13).(*array.BooleanBuilder).Append(rec.ConvergedNow)
		b.Field(14).(*array.Int32Builder).Append(int32(rec.HoldCount))
	}
}

func at(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}
