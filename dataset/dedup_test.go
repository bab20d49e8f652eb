package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gridappend/errs"
)

func TestDuplicateIndices(t *testing.T) {
	tests := []struct {
		name  string
		coord []int64
		want  []int
	}{
		{name: "no duplicates", coord: []int64{1, 2, 3}, want: nil},
		{name: "single run", coord: []int64{10, 10, 10, 20}, want: []int{1, 2}},
		{name: "two runs", coord: []int64{1, 1, 2, 3, 3}, want: []int{1, 4}},
		{name: "all equal", coord: []int64{7, 7, 7}, want: []int{1, 2}},
		{name: "empty", coord: nil, want: nil},
		{name: "single sample", coord: []int64{5}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DuplicateIndices(tt.coord))
		})
	}
}

func TestDedup_KeepFirst(t *testing.T) {
	// Coordinate [10,10,10,20] with payloads [a,b,c,d] keeps [a,d].
	ds := tsDataset(t, []int64{10, 10, 10, 20}, varDef{name: "temp", values: []float64{1, 2, 3, 4}})

	out, dropped, err := Dedup(ds, "time")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, dropped)
	require.Equal(t, []int64{10, 20}, coordValues(t, out, "time"))
	require.Equal(t, []float64{1, 4}, varValues(t, out, "temp"))

	// The input dataset is untouched.
	require.Equal(t, []int64{10, 10, 10, 20}, coordValues(t, ds, "time"))
}

func TestDedup_Idempotent(t *testing.T) {
	ds := tsDataset(t, []int64{1, 1, 2, 3, 3, 3}, varDef{name: "temp", values: ramp(6)})

	once, dropped, err := Dedup(ds, "time")
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 5}, dropped)

	twice, dropped, err := Dedup(once, "time")
	require.NoError(t, err)
	require.Empty(t, dropped)
	require.Same(t, once, twice, "a clean dataset passes through unchanged")
	require.Equal(t, []int64{1, 2, 3}, coordValues(t, twice, "time"))
}

func TestDedup_GridBlocks(t *testing.T) {
	// Duplicate time steps drop their whole 2x2 block.
	ds := gridDataset(t, []int64{1, 1, 2}, 2, 2, "temp",
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	out, dropped, err := Dedup(ds, "time")
	require.NoError(t, err)
	require.Equal(t, []int{1}, dropped)
	require.Equal(t, []int64{1, 2}, coordValues(t, out, "time"))
	require.Equal(t, []float64{1, 2, 3, 4, 9, 10, 11, 12}, varValues(t, out, "temp"))

	temp, ok := out.Var("temp")
	require.True(t, ok)
	require.Equal(t, []int{2, 2, 2}, temp.Shape)
}

func TestDedup_RequiresOrderingCoordinate(t *testing.T) {
	ds := New()
	require.NoError(t, ds.AddVar(&Variable{
		Name: "temp", Dims: []string{"time"}, Shape: []int{1}, Data: Float64Array([]float64{1}),
	}))

	_, _, err := Dedup(ds, "time")
	require.ErrorIs(t, err, errs.ErrNoOrderingCoordinate)
}
