package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(n int64) int64 {
	return n * int64(24*time.Hour)
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func TestTrim_DurationScenario(t *testing.T) {
	// Times 1..5 days with a two-day window keep days 3..5.
	ds := tsDataset(t, []int64{day(1), day(2), day(3), day(4), day(5)},
		varDef{name: "temp", values: []float64{1, 2, 3, 4, 5}})

	out, dropped, err := Trim(ds, "time", durationPtr(48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, dropped)
	require.Equal(t, []int64{day(3), day(4), day(5)}, coordValues(t, out, "time"))
	require.Equal(t, []float64{3, 4, 5}, varValues(t, out, "temp"))
}

func TestTrim_WindowBound(t *testing.T) {
	times := []int64{day(1), day(2), day(4), day(7), day(11)}

	tests := []struct {
		name        string
		max         time.Duration
		wantDropped int
	}{
		{name: "covers whole span", max: 10 * 24 * time.Hour, wantDropped: 0},
		{name: "seven days", max: 7 * 24 * time.Hour, wantDropped: 2},
		{name: "four days", max: 4 * 24 * time.Hour, wantDropped: 3},
		{name: "zero keeps newest", max: 0, wantDropped: 4},
		{name: "negative keeps newest", max: -time.Hour, wantDropped: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := tsDataset(t, times, varDef{name: "temp", values: ramp(len(times))})

			out, dropped, err := Trim(ds, "time", durationPtr(tt.max))
			require.NoError(t, err)
			require.Equal(t, tt.wantDropped, dropped)

			values := coordValues(t, out, "time")
			require.NotEmpty(t, values, "trim never empties a non-empty dataset")
			span := values[len(values)-1] - values[0]
			if tt.max >= 0 {
				require.LessOrEqual(t, span, int64(tt.max))
			}

			// Minimality: keeping one more sample would break the bound.
			if dropped > 0 {
				wider := times[len(times)-1] - times[dropped-1]
				require.Greater(t, wider, int64(tt.max))
			}
		})
	}
}

func TestTrim_NoOps(t *testing.T) {
	ds := tsDataset(t, []int64{day(1), day(3)}, varDef{name: "temp", values: []float64{1, 3}})

	t.Run("nil duration", func(t *testing.T) {
		out, dropped, err := Trim(ds, "time", nil)
		require.NoError(t, err)
		require.Zero(t, dropped)
		require.Same(t, ds, out)
	})

	t.Run("span inside bound", func(t *testing.T) {
		out, dropped, err := Trim(ds, "time", durationPtr(3*24*time.Hour))
		require.NoError(t, err)
		require.Zero(t, dropped)
		require.Same(t, ds, out)
	})

	t.Run("single sample", func(t *testing.T) {
		one := tsDataset(t, []int64{day(9)}, varDef{name: "temp", values: []float64{9}})
		out, dropped, err := Trim(one, "time", durationPtr(time.Hour))
		require.NoError(t, err)
		require.Zero(t, dropped)
		require.Equal(t, []int64{day(9)}, coordValues(t, out, "time"))
	})

	t.Run("empty dataset", func(t *testing.T) {
		empty := tsDataset(t, nil)
		out, dropped, err := Trim(empty, "time", durationPtr(time.Hour))
		require.NoError(t, err)
		require.Zero(t, dropped)
		require.Same(t, empty, out)
	})
}

func TestTrim_GridBlocks(t *testing.T) {
	// Trimming drops whole leading blocks and leaves spatial dims alone.
	ds := gridDataset(t, []int64{day(1), day(2), day(3)}, 2, 2, "temp",
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	out, dropped, err := Trim(ds, "time", durationPtr(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Equal(t, []int64{day(2), day(3)}, coordValues(t, out, "time"))
	require.Equal(t, []float64{5, 6, 7, 8, 9, 10, 11, 12}, varValues(t, out, "temp"))

	y, ok := out.Coord("y")
	require.True(t, ok)
	require.Equal(t, []float64{0, 0.5}, y.Data.Float64s())
}
