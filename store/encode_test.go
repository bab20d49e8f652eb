package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/endian"
	"gridappend/errs"
)

func plannedSeries(t *testing.T, times []int64, values []float64) *dataset.Dataset {
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
		Shape: []int{len(values)},
		Data:  dataset.Float64Array(values),
	}))

	planned, err := dataset.PlanChunks(ds, "time", []int{2})
	require.NoError(t, err)

	return planned
}

func TestNewEncoder_Defaults(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	require.Equal(t, compress.DefaultSpec(), enc.compression)
	require.Equal(t, endian.Little(), enc.engine)
	require.False(t, enc.writeEmptyChunks)
}

func TestNewEncoder_RejectsInvalidCompression(t *testing.T) {
	_, err := NewEncoder(WithCompression(compress.Spec{Type: compress.TypeZstd, Level: 99}))
	require.Error(t, err)
}

func TestEncoder_Encode(t *testing.T) {
	times := []int64{1, 2, 3}
	values := []float64{1.5, 2.5, 3.5}

	t.Run("binds compressor to every array", func(t *testing.T) {
		spec := compress.Spec{Type: compress.TypeLZ4, Level: 3}
		enc, err := NewEncoder(WithCompression(spec))
		require.NoError(t, err)

		encoded, err := enc.Encode(plannedSeries(t, times, values))
		require.NoError(t, err)
		require.Equal(t, spec, encoded.Compression)
		for _, v := range append(encoded.Dataset.Coords(), encoded.Dataset.Vars()...) {
			require.NotNil(t, v.Compressor, "array %s", v.Name)
			require.Equal(t, spec, *v.Compressor, "array %s", v.Name)
		}
	})

	t.Run("leaves the input unbound", func(t *testing.T) {
		ds := plannedSeries(t, times, values)
		enc, err := NewEncoder()
		require.NoError(t, err)

		_, err = enc.Encode(ds)
		require.NoError(t, err)
		temp, ok := ds.Var("temp")
		require.True(t, ok)
		require.Nil(t, temp.Compressor)
	})

	t.Run("requires a chunk plan", func(t *testing.T) {
		ds := dataset.New()
		require.NoError(t, ds.AddCoord(&dataset.Variable{
			Name:  "time",
			Dims:  []string{"time"},
			Shape: []int{3},
			Data:  dataset.Int64Array(times),
		}))

		enc, err := NewEncoder()
		require.NoError(t, err)

		_, err = enc.Encode(ds)
		require.ErrorIs(t, err, errs.ErrChunkPlan)
	})

	t.Run("rejects empty dataset", func(t *testing.T) {
		enc, err := NewEncoder()
		require.NoError(t, err)

		_, err = enc.Encode(nil)
		require.ErrorIs(t, err, errs.ErrEmptyDataset)

		_, err = enc.Encode(dataset.New())
		require.ErrorIs(t, err, errs.ErrEmptyDataset)
	})

	t.Run("carries byte order and suppression flag", func(t *testing.T) {
		enc, err := NewEncoder(WithBigEndian(), WithWriteEmptyChunks(true))
		require.NoError(t, err)

		encoded, err := enc.Encode(plannedSeries(t, times, values))
		require.NoError(t, err)
		require.Equal(t, endian.Big(), encoded.ByteOrder)
		require.True(t, encoded.WriteEmptyChunks)
	})
}
