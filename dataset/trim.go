package dataset

import (
	"sort"
	"time"
)

// Trim enforces a maximum span along dim by dropping the oldest contiguous
// prefix. A nil maxDuration means unbounded retention and is a no-op, as is
// any dataset already inside the bound. Otherwise the smallest index whose
// distance to the newest sample fits the bound becomes the new start; the
// count of dropped leading samples is returned for operator visibility.
//
// The ordering coordinate holds nanosecond ordinals, so the duration
// converts directly. A zero or negative duration trims to the minimal
// suffix — a non-empty dataset never trims to empty.
func Trim(ds *Dataset, dim string, maxDuration *time.Duration) (*Dataset, int, error) {
	if maxDuration == nil {
		return ds, 0, nil
	}

	coord, err := ds.OrderingCoordinate(dim)
	if err != nil {
		return nil, 0, err
	}

	values := coord.Data.Int64s()
	n := len(values)
	if n == 0 {
		return ds, 0, nil
	}

	limit := int64(*maxDuration)
	last := values[n-1]
	if last-values[0] <= limit {
		return ds, 0, nil
	}

	// values is monotonic, so last-values[i] only shrinks as i grows and
	// the predicate flips exactly once.
	idx := sort.Search(n, func(i int) bool {
		return last-values[i] <= limit
	})
	if idx >= n {
		// Unsatisfiable bound (negative duration): keep the newest sample.
		idx = n - 1
	}

	keep := make([]int, n-idx)
	for i := range keep {
		keep[i] = idx + i
	}

	out, err := takeAlongDim(ds, dim, keep)
	if err != nil {
		return nil, 0, err
	}

	return out, idx, nil
}
