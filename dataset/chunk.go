package dataset

import (
	"fmt"

	"gridappend/errs"
)

// DefaultChunkShape returns the fixed positional chunk layout applied when
// the caller supplies none: 5 steps along the leading (ordering) dimension
// and 50x50 blocks across the two trailing spatial dimensions.
func DefaultChunkShape() []int {
	return []int{5, 50, 50}
}

// PlanChunks rebinds every array's chunk geometry to the positional plan:
// entry i of shape is the block size along axis i, clipped to each array's
// own dimensionality, and axes beyond the plan keep their full extent as a
// single block. Chunk geometry is a storage-layout hint; no values move.
//
// A fixed plan keeps appends aligned to existing chunk boundaries across
// runs, which requires every array spanning dim to share one block size
// along it. A plan violating that is a chunk-plan error, as is any
// non-positive block size.
func PlanChunks(ds *Dataset, dim string, shape []int) (*Dataset, error) {
	if len(shape) == 0 {
		shape = DefaultChunkShape()
	}
	for i, block := range shape {
		if block <= 0 {
			return nil, fmt.Errorf("%w: block size %d at position %d", errs.ErrChunkPlan, block, i)
		}
	}

	out := New()
	orderingBlock := 0

	apply := func(v *Variable, add func(*Variable) error) error {
		next := v.clone()
		next.Chunks = clipPlan(v, shape)

		if axis, ok := v.Axis(dim); ok {
			block := next.Chunks[axis]
			switch {
			case orderingBlock == 0:
				orderingBlock = block
			case block != orderingBlock:
				return fmt.Errorf("%w: %q gets block %d along %q where the plan already fixed %d",
					errs.ErrChunkPlan, v.Name, block, dim, orderingBlock)
			}
		}

		return add(next)
	}

	for _, c := range ds.coords {
		if err := apply(c, out.AddCoord); err != nil {
			return nil, err
		}
	}
	for _, v := range ds.vars {
		if err := apply(v, out.AddVar); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// clipPlan maps the positional plan onto one variable's axes.
func clipPlan(v *Variable, shape []int) []int {
	chunks := make([]int, len(v.Shape))
	for i := range chunks {
		if i < len(shape) {
			chunks[i] = shape[i]
		} else {
			chunks[i] = max(v.Shape[i], 1)
		}
	}

	return chunks
}
