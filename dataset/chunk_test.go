package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gridappend/errs"
)

func TestPlanChunks_DefaultShape(t *testing.T) {
	ds := gridDataset(t, make([]int64, 7), 120, 80, "temp", make([]float64, 7*120*80))

	out, err := PlanChunks(ds, "time", nil)
	require.NoError(t, err)

	temp, ok := out.Var("temp")
	require.True(t, ok)
	require.Equal(t, []int{5, 50, 50}, temp.Chunks)

	timeCoord, ok := out.Coord("time")
	require.True(t, ok)
	require.Equal(t, []int{5}, timeCoord.Chunks)

	// Positional clipping: 1-D spatial coordinates take the leading block.
	y, ok := out.Coord("y")
	require.True(t, ok)
	require.Equal(t, []int{5}, y.Chunks)

	// The input dataset keeps its unplanned metadata.
	orig, ok := ds.Var("temp")
	require.True(t, ok)
	require.Nil(t, orig.Chunks)
}

func TestPlanChunks_AxesBeyondPlanKeepFullExtent(t *testing.T) {
	ds := New()
	require.NoError(t, ds.AddCoord(&Variable{
		Name: "time", Dims: []string{"time"}, Shape: []int{7}, Data: Int64Array(make([]int64, 7)),
	}))
	require.NoError(t, ds.AddVar(&Variable{
		Name:  "temp",
		Dims:  []string{"time", "y", "x", "level"},
		Shape: []int{7, 60, 40, 4},
		Data:  Float64Array(make([]float64, 7*60*40*4)),
	}))

	out, err := PlanChunks(ds, "time", []int{5, 50, 50})
	require.NoError(t, err)

	temp, ok := out.Var("temp")
	require.True(t, ok)
	require.Equal(t, []int{5, 50, 50, 4}, temp.Chunks)
}

func TestPlanChunks_RebindsExistingGeometry(t *testing.T) {
	ds := tsDataset(t, make([]int64, 10), varDef{name: "temp", values: make([]float64, 10)})
	temp, ok := ds.Var("temp")
	require.True(t, ok)
	temp.Chunks = []int{2}

	out, err := PlanChunks(ds, "time", []int{5})
	require.NoError(t, err)

	planned, ok := out.Var("temp")
	require.True(t, ok)
	require.Equal(t, []int{5}, planned.Chunks)
	require.Equal(t, temp.Data.Float64s(), planned.Data.Float64s(), "planning moves no data")
}

func TestPlanChunks_OrderingDimUniformity(t *testing.T) {
	// A variable carrying the ordering dimension in a non-leading position
	// would receive a different block size along it: the plan must refuse.
	ds := New()
	require.NoError(t, ds.AddCoord(&Variable{
		Name: "time", Dims: []string{"time"}, Shape: []int{6}, Data: Int64Array(make([]int64, 6)),
	}))
	require.NoError(t, ds.AddVar(&Variable{
		Name: "temp", Dims: []string{"time", "y"}, Shape: []int{6, 4}, Data: Float64Array(make([]float64, 24)),
	}))
	require.NoError(t, ds.AddVar(&Variable{
		Name: "transposed", Dims: []string{"y", "time"}, Shape: []int{4, 6}, Data: Float64Array(make([]float64, 24)),
	}))

	_, err := PlanChunks(ds, "time", []int{5, 50})
	require.ErrorIs(t, err, errs.ErrChunkPlan)
}

func TestPlanChunks_RejectsNonPositiveBlocks(t *testing.T) {
	ds := tsDataset(t, make([]int64, 3), varDef{name: "temp", values: make([]float64, 3)})

	_, err := PlanChunks(ds, "time", []int{0, 50})
	require.ErrorIs(t, err, errs.ErrChunkPlan)

	_, err = PlanChunks(ds, "time", []int{5, -1})
	require.ErrorIs(t, err, errs.ErrChunkPlan)
}
