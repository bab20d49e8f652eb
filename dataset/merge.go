package dataset

import (
	"cmp"
	"fmt"
	"slices"

	"gridappend/errs"
)

// DefaultVariables returns the variable selection applied when the caller
// requests none: the existing dataset's full variable set when it has one,
// otherwise the first-declared data variable of incoming. The choice is a
// pure function of its inputs; an incoming dataset with no data variables
// yields nil.
func DefaultVariables(existing, incoming *Dataset) []string {
	if existing != nil && len(existing.vars) > 0 {
		return existing.VarNames()
	}
	if incoming == nil || len(incoming.vars) == 0 {
		return nil
	}

	return []string{incoming.vars[0].Name}
}

// Select returns a dataset holding the named data variables in the requested
// order plus every coordinate whose dimensions those variables span.
// Repeated names collapse to one selection. A name with no data variable
// behind it is a selection error.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	out := New()
	used := make(map[string]bool)

	for _, name := range names {
		if _, ok := out.Var(name); ok {
			continue
		}
		v, ok := d.Var(name)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q not in dataset", errs.ErrVariableNotFound, name)
		}
		if err := out.AddVar(v.clone()); err != nil {
			return nil, err
		}
		for _, dim := range v.Dims {
			used[dim] = true
		}
	}

	for _, c := range d.coords {
		spanned := true
		for _, dim := range c.Dims {
			if !used[dim] {
				spanned = false
				break
			}
		}
		if !spanned {
			continue
		}
		if err := out.AddCoord(c.clone()); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Merge reconciles an optional existing dataset with a newly ingested one
// along the ordering dimension dim. The requested variables are selected
// from incoming (empty selection applies DefaultVariables); when existing is
// present both sides are concatenated existing-first along dim. The result
// is sorted ascending by the ordering coordinate with a stable sort, so
// fully equal ordinals keep concatenation order — the property the
// keep-first deduplication tie-break rests on.
//
// Neither input is mutated. Existing and incoming disagreeing on a shared
// variable's dimensions, dtype or off-axis shape is an axis mismatch.
func Merge(existing, incoming *Dataset, variables []string, dim string) (*Dataset, error) {
	if incoming == nil {
		return nil, fmt.Errorf("%w: no incoming dataset", errs.ErrEmptyDataset)
	}
	if len(variables) == 0 {
		variables = DefaultVariables(existing, incoming)
		if len(variables) == 0 {
			return nil, fmt.Errorf("%w: incoming dataset has no data variables", errs.ErrEmptyDataset)
		}
	}

	selected, err := incoming.Select(variables)
	if err != nil {
		return nil, err
	}

	merged := selected
	if existing != nil {
		merged, err = concat(existing, selected, dim)
		if err != nil {
			return nil, err
		}
	}

	return sortAlong(merged, dim)
}

// concat joins existing and incoming along dim. Output variables follow
// incoming's selected order; every one must be present on both sides.
// Coordinates and variables that do not span dim must agree exactly between
// the two sides and carry through once.
func concat(existing, incoming *Dataset, dim string) (*Dataset, error) {
	exCoord, err := existing.OrderingCoordinate(dim)
	if err != nil {
		return nil, err
	}
	inCoord, err := incoming.OrderingCoordinate(dim)
	if err != nil {
		return nil, err
	}
	if exCoord.Name != inCoord.Name {
		return nil, fmt.Errorf("%w: ordering coordinate is %q in the store but %q in the input",
			errs.ErrAxisMismatch, exCoord.Name, inCoord.Name)
	}

	out := New()

	for _, c := range incoming.coords {
		ec, ok := existing.Coord(c.Name)
		if !ok {
			// Coordinate new in this ingest; carried as-is.
			if err := out.AddCoord(c.clone()); err != nil {
				return nil, err
			}
			continue
		}
		joined, err := concatVariable(ec, c, dim)
		if err != nil {
			return nil, err
		}
		if err := out.AddCoord(joined); err != nil {
			return nil, err
		}
	}

	for _, v := range incoming.vars {
		ev, ok := existing.Var(v.Name)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q not in existing dataset",
				errs.ErrVariableNotFound, v.Name)
		}
		joined, err := concatVariable(ev, v, dim)
		if err != nil {
			return nil, err
		}
		if err := out.AddVar(joined); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// concatVariable appends b after a along dim. Arrays that do not span dim
// cannot grow; both sides must match exactly and a's copy is carried.
func concatVariable(a, b *Variable, dim string) (*Variable, error) {
	if !slices.Equal(a.Dims, b.Dims) {
		return nil, fmt.Errorf("%w: variable %q spans %v in the store but %v in the input",
			errs.ErrAxisMismatch, a.Name, a.Dims, b.Dims)
	}
	if a.Data.DType() != b.Data.DType() {
		return nil, fmt.Errorf("%w: variable %q is %s in the store but %s in the input",
			errs.ErrAxisMismatch, a.Name, a.Data.DType(), b.Data.DType())
	}

	axis, ok := a.Axis(dim)
	if !ok {
		if !slices.Equal(a.Shape, b.Shape) || !a.Data.Equal(b.Data) {
			return nil, fmt.Errorf("%w: variable %q does not span %q and differs between store and input",
				errs.ErrAxisMismatch, a.Name, dim)
		}

		return a.clone(), nil
	}

	for i := range a.Shape {
		if i != axis && a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("%w: variable %q is %v in the store but %v in the input",
				errs.ErrAxisMismatch, a.Name, a.Shape, b.Shape)
		}
	}

	outer, inner := a.axisStrides(axis)
	out := a.clone()
	out.Shape[axis] = a.Shape[axis] + b.Shape[axis]
	out.Data = concatArrays(a.Data, b.Data, outer, a.Shape[axis], b.Shape[axis], inner)

	return out, nil
}

// sortAlong orders ds ascending by its ordering coordinate. The sort is
// stable, so ties keep input order. Already-sorted datasets pass through
// untouched.
func sortAlong(ds *Dataset, dim string) (*Dataset, error) {
	coord, err := ds.OrderingCoordinate(dim)
	if err != nil {
		return nil, err
	}

	values := coord.Data.Int64s()
	if slices.IsSorted(values) {
		return ds, nil
	}

	perm := make([]int, len(values))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(i, j int) int {
		return cmp.Compare(values[i], values[j])
	})

	return takeAlongDim(ds, dim, perm)
}

// takeAlongDim rebuilds ds keeping the given positions along dim, in the
// given order. Arrays that do not span dim carry through unchanged.
func takeAlongDim(ds *Dataset, dim string, indices []int) (*Dataset, error) {
	out := New()

	for _, c := range ds.coords {
		next := c.clone()
		if axis, ok := c.Axis(dim); ok {
			next = c.takeAlong(axis, indices)
		}
		if err := out.AddCoord(next); err != nil {
			return nil, err
		}
	}
	for _, v := range ds.vars {
		next := v.clone()
		if axis, ok := v.Axis(dim); ok {
			next = v.takeAlong(axis, indices)
		}
		if err := out.AddVar(next); err != nil {
			return nil, err
		}
	}

	return out, nil
}
