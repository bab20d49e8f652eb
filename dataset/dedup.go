package dataset

// DuplicateIndices scans a non-decreasing ordering coordinate and returns
// the positions dropped under the keep-first policy: for every run of equal
// ordinals, every index after the first. Equality is exact ordinal equality.
// The result is ascending; nil when all values are distinct. Detection is
// pure so callers decide whether to log, abort, or apply the drop.
func DuplicateIndices(coord []int64) []int {
	var dropped []int
	for i := 1; i < len(coord); i++ {
		if coord[i] == coord[i-1] {
			dropped = append(dropped, i)
		}
	}

	return dropped
}

// Dedup removes duplicate positions along dim under keep-first and reports
// the indices dropped, for the caller to surface as an operational warning.
// The input must already be sorted along dim; afterwards the ordering
// coordinate is strictly increasing. A dataset with no duplicates returns
// unchanged, which makes Dedup idempotent.
func Dedup(ds *Dataset, dim string) (*Dataset, []int, error) {
	coord, err := ds.OrderingCoordinate(dim)
	if err != nil {
		return nil, nil, err
	}

	dropped := DuplicateIndices(coord.Data.Int64s())
	if len(dropped) == 0 {
		return ds, nil, nil
	}

	n := coord.Data.Len()
	keep := make([]int, 0, n-len(dropped))
	next := 0
	for i := range n {
		if next < len(dropped) && dropped[next] == i {
			next++
			continue
		}
		keep = append(keep, i)
	}

	out, err := takeAlongDim(ds, dim, keep)
	if err != nil {
		return nil, nil, err
	}

	return out, dropped, nil
}
