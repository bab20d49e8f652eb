package gridappend

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/errs"
	"gridappend/store"
)

const day = int64(24 * time.Hour)

func days(ordinals ...int64) []int64 {
	out := make([]int64, len(ordinals))
	for i, d := range ordinals {
		out[i] = d * day
	}

	return out
}

// series builds a 1-D dataset with a "time" ordering coordinate and a
// "temp" data variable.
func series(t *testing.T, times []int64, temps []float64) *dataset.Dataset {
	t.Helper()

	ds := dataset.New()
	require.NoError(t, ds.AddCoord(&dataset.Variable{
		Name:  "time",
		Dims:  []string{"time"},
		Shape: []int{len(times)},
		Data:  dataset.Int64Array(times),
	}))
	require.NoError(t, ds.AddVar(&dataset.Variable{
		Name:  "temp",
		Dims:  []string{"time"},
		Shape: []int{len(times)},
		Data:  dataset.Float64Array(temps),
	}))

	return ds
}

func mustCoord(t *testing.T, ds *dataset.Dataset, name string) *dataset.Variable {
	t.Helper()

	v, ok := ds.Coord(name)
	require.True(t, ok, "coordinate %s missing", name)

	return v
}

func mustVar(t *testing.T, ds *dataset.Dataset, name string) *dataset.Variable {
	t.Helper()

	v, ok := ds.Var(name)
	require.True(t, ok, "variable %s missing", name)

	return v
}

func TestRun_SortsFirstIngest(t *testing.T) {
	incoming := series(t, days(3, 1, 2), []float64{30, 10, 20})

	encoded, report, err := Run(nil, incoming, "time")
	require.NoError(t, err)
	require.Equal(t, 3, report.Samples)
	require.Empty(t, report.DroppedDuplicates)
	require.Zero(t, report.TrimmedPrefix)

	ds := encoded.Dataset
	require.Equal(t, days(1, 2, 3), mustCoord(t, ds, "time").Data.Int64s())

	temp := mustVar(t, ds, "temp")
	require.Equal(t, []float64{10, 20, 30}, temp.Data.Float64s())
	require.Equal(t, []int{5}, temp.Chunks)
	require.NotNil(t, temp.Compressor)
	require.Equal(t, compress.DefaultSpec(), *temp.Compressor)
	require.Equal(t, compress.DefaultSpec(), encoded.Compression)
}

func TestRun_KeepsFirstOnOverlap(t *testing.T) {
	existing := series(t, days(1, 2, 3), []float64{10, 20, 30})
	incoming := series(t, days(3, 4, 5), []float64{31, 40, 50})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	encoded, report, err := Run(existing, incoming, "time", WithLogger(logger))
	require.NoError(t, err)
	require.Equal(t, 5, report.Samples)
	require.Equal(t, []int{3}, report.DroppedDuplicates)
	require.Zero(t, report.TrimmedPrefix)

	ds := encoded.Dataset
	require.Equal(t, days(1, 2, 3, 4, 5), mustCoord(t, ds, "time").Data.Int64s())
	require.Equal(t, []float64{10, 20, 30, 40, 50}, mustVar(t, ds, "temp").Data.Float64s())

	require.Contains(t, buf.String(), "dropped duplicate steps")
	require.Contains(t, buf.String(), "count=1")
}

func TestRun_TrimsRetentionWindow(t *testing.T) {
	incoming := series(t, days(1, 2, 3, 4, 5), []float64{10, 20, 30, 40, 50})

	encoded, report, err := Run(nil, incoming, "time", WithMaxDuration(48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, report.Samples)
	require.Equal(t, 2, report.TrimmedPrefix)

	ds := encoded.Dataset
	require.Equal(t, days(3, 4, 5), mustCoord(t, ds, "time").Data.Int64s())
	require.Equal(t, []float64{30, 40, 50}, mustVar(t, ds, "temp").Data.Float64s())
}

func TestRun_AppliesChunkPlanAndCodec(t *testing.T) {
	incoming := series(t, days(1, 2, 3), []float64{10, 20, 30})
	spec := compress.Spec{Type: compress.TypeLZ4, Level: 3}

	encoded, _, err := Run(nil, incoming, "time", WithChunkShape(2), WithCodec(spec))
	require.NoError(t, err)
	require.Equal(t, spec, encoded.Compression)

	temp := mustVar(t, encoded.Dataset, "temp")
	require.Equal(t, []int{2}, temp.Chunks)
	require.Equal(t, spec, *temp.Compressor)
}

func TestRun_SelectsVariables(t *testing.T) {
	build := func(times []int64, temps, winds []float64) *dataset.Dataset {
		ds := series(t, times, temps)
		require.NoError(t, ds.AddVar(&dataset.Variable{
			Name:  "wind",
			Dims:  []string{"time"},
			Shape: []int{len(times)},
			Data:  dataset.Float64Array(winds),
		}))

		return ds
	}

	t.Run("explicit selection", func(t *testing.T) {
		existing := build(days(1, 2), []float64{10, 20}, []float64{1, 2})
		incoming := build(days(3), []float64{30}, []float64{3})

		encoded, _, err := Run(existing, incoming, "time", WithVariables("wind"))
		require.NoError(t, err)

		ds := encoded.Dataset
		require.Equal(t, []string{"wind"}, ds.VarNames())
		require.Equal(t, []float64{1, 2, 3}, mustVar(t, ds, "wind").Data.Float64s())
	})

	t.Run("first run defaults to the first variable", func(t *testing.T) {
		incoming := build(days(1, 2), []float64{10, 20}, []float64{1, 2})

		encoded, _, err := Run(nil, incoming, "time")
		require.NoError(t, err)
		require.Equal(t, []string{"temp"}, encoded.Dataset.VarNames())
	})

	t.Run("append defaults to the stored variables", func(t *testing.T) {
		existing := build(days(1), []float64{10}, []float64{1})
		incoming := build(days(2), []float64{20}, []float64{2})

		encoded, _, err := Run(existing, incoming, "time")
		require.NoError(t, err)
		require.Equal(t, []string{"temp", "wind"}, encoded.Dataset.VarNames())
	})
}

func TestRun_Errors(t *testing.T) {
	t.Run("nil incoming", func(t *testing.T) {
		_, _, err := Run(nil, nil, "time")
		require.ErrorIs(t, err, errs.ErrEmptyDataset)
	})

	t.Run("no ordering coordinate", func(t *testing.T) {
		ds := dataset.New()
		require.NoError(t, ds.AddVar(&dataset.Variable{
			Name:  "temp",
			Dims:  []string{"time"},
			Shape: []int{2},
			Data:  dataset.Float64Array([]float64{1, 2}),
		}))

		_, _, err := Run(nil, ds, "time")
		require.ErrorIs(t, err, errs.ErrNoOrderingCoordinate)
	})

	t.Run("unknown variable", func(t *testing.T) {
		incoming := series(t, days(1), []float64{10})

		_, _, err := Run(nil, incoming, "time", WithVariables("humidity"))
		require.ErrorIs(t, err, errs.ErrVariableNotFound)
	})

	t.Run("invalid codec", func(t *testing.T) {
		incoming := series(t, days(1), []float64{10})

		_, _, err := Run(nil, incoming, "time",
			WithCodec(compress.Spec{Type: compress.TypeZstd, Level: 99}))
		require.ErrorContains(t, err, "out of range")
	})

	t.Run("invalid chunk plan", func(t *testing.T) {
		incoming := series(t, days(1), []float64{10})

		_, _, err := Run(nil, incoming, "time", WithChunkShape(0))
		require.ErrorIs(t, err, errs.ErrChunkPlan)
	})
}

// TestRun_StoreRoundTrip drives the full append workflow twice against a
// directory store: first ingest, reopen, overlapping append, reopen.
func TestRun_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	locator := filepath.Join(t.TempDir(), "series.zarr")

	_, err := store.Open(ctx, locator)
	require.ErrorIs(t, err, errs.ErrStoreMissing)

	first := series(t, days(1, 2), []float64{10, 20})
	encoded, report, err := Run(nil, first, "time")
	require.NoError(t, err)
	require.Equal(t, 2, report.Samples)
	require.NoError(t, store.Write(ctx, encoded, locator, store.CreateExclusive))

	existing, err := store.Open(ctx, locator)
	require.NoError(t, err)

	second := series(t, days(2, 3), []float64{21, 30})
	encoded, report, err = Run(existing, second, "time")
	require.NoError(t, err)
	require.Equal(t, 3, report.Samples)
	require.Equal(t, []int{2}, report.DroppedDuplicates)
	require.NoError(t, store.Write(ctx, encoded, locator, store.CreateOverwrite))

	final, err := store.Open(ctx, locator)
	require.NoError(t, err)
	require.Equal(t, days(1, 2, 3), mustCoord(t, final, "time").Data.Int64s())
	require.Equal(t, []float64{10, 20, 30}, mustVar(t, final, "temp").Data.Float64s())
}
