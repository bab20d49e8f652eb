package dataset

import (
	"fmt"
	"slices"

	"gridappend/compress"
	"gridappend/errs"
)

// Variable is one named N-dimensional array. Dims names each axis in storage
// order and Shape holds the extent along each; Data is the dense row-major
// payload. Chunks and Compressor carry storage-layout metadata: nil means
// unplanned/unbound, datasets loaded from a store carry what their manifest
// recorded.
type Variable struct {
	Name       string
	Dims       []string
	Shape      []int
	Data       Array
	Chunks     []int
	Compressor *compress.Spec
}

// Axis returns the position dim occupies in the variable's dimension list.
func (v *Variable) Axis(dim string) (int, bool) {
	for i, d := range v.Dims {
		if d == dim {
			return i, true
		}
	}

	return 0, false
}

// Size returns the total element count implied by Shape.
func (v *Variable) Size() int {
	n := 1
	for _, length := range v.Shape {
		n *= length
	}

	return n
}

// clone copies the variable struct and its metadata slices. The data array
// is shared; array contents are immutable by package convention.
func (v *Variable) clone() *Variable {
	c := *v
	c.Dims = slices.Clone(v.Dims)
	c.Shape = slices.Clone(v.Shape)
	c.Chunks = slices.Clone(v.Chunks)
	if v.Compressor != nil {
		spec := *v.Compressor
		c.Compressor = &spec
	}

	return &c
}

// axisStrides returns the element products of the axes before and after the
// given one.
func (v *Variable) axisStrides(axis int) (outer, inner int) {
	outer, inner = 1, 1
	for _, length := range v.Shape[:axis] {
		outer *= length
	}
	for _, length := range v.Shape[axis+1:] {
		inner *= length
	}

	return outer, inner
}

// takeAlong returns a copy keeping only the given positions along one axis,
// in the given order. Positions may repeat.
func (v *Variable) takeAlong(axis int, indices []int) *Variable {
	outer, inner := v.axisStrides(axis)
	out := v.clone()
	out.Shape[axis] = len(indices)
	out.Data = v.Data.gather(outer, v.Shape[axis], inner, indices)

	return out
}

// Dataset is an ordered collection of coordinates and data variables sharing
// one dimension namespace. Declaration order is preserved and observable:
// the default variable selection rule picks the first-declared data
// variable. Coordinates label dimension positions; a dimension coordinate
// has exactly one dimension, named after itself.
//
// Operations in this package never mutate a dataset they receive. They
// return fresh Variable structs which may share array payloads with their
// inputs, so a dataset handed to an operation must not have its array
// contents modified afterwards.
type Dataset struct {
	coords []*Variable
	vars   []*Variable
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{}
}

func (d *Dataset) add(v *Variable, coord bool) error {
	if v.Name == "" {
		return fmt.Errorf("variable name must not be empty")
	}
	if existing := d.lookup(v.Name); existing != nil {
		return fmt.Errorf("duplicate variable name %q", v.Name)
	}
	if len(v.Dims) != len(v.Shape) {
		return fmt.Errorf("%w: variable %q names %d dims for %d shape entries",
			errs.ErrAxisMismatch, v.Name, len(v.Dims), len(v.Shape))
	}
	if v.Data.Len() != v.Size() {
		return fmt.Errorf("%w: variable %q carries %d elements for shape %v",
			errs.ErrAxisMismatch, v.Name, v.Data.Len(), v.Shape)
	}

	if coord {
		d.coords = append(d.coords, v)
	} else {
		d.vars = append(d.vars, v)
	}

	return nil
}

// AddCoord registers a coordinate. Names are unique across coordinates and
// data variables.
func (d *Dataset) AddCoord(v *Variable) error {
	return d.add(v, true)
}

// AddVar registers a data variable. Names are unique across coordinates and
// data variables.
func (d *Dataset) AddVar(v *Variable) error {
	return d.add(v, false)
}

func (d *Dataset) lookup(name string) *Variable {
	for _, c := range d.coords {
		if c.Name == name {
			return c
		}
	}
	for _, v := range d.vars {
		if v.Name == name {
			return v
		}
	}

	return nil
}

// Coords returns the coordinates in declaration order. The slice is shared;
// callers must not modify it.
func (d *Dataset) Coords() []*Variable {
	return d.coords
}

// Vars returns the data variables in declaration order. The slice is shared;
// callers must not modify it.
func (d *Dataset) Vars() []*Variable {
	return d.vars
}

// Coord returns the coordinate with the given name.
func (d *Dataset) Coord(name string) (*Variable, bool) {
	for _, c := range d.coords {
		if c.Name == name {
			return c, true
		}
	}

	return nil, false
}

// Var returns the data variable with the given name.
func (d *Dataset) Var(name string) (*Variable, bool) {
	for _, v := range d.vars {
		if v.Name == name {
			return v, true
		}
	}

	return nil, false
}

// VarNames returns the data variable names in declaration order.
func (d *Dataset) VarNames() []string {
	names := make([]string, len(d.vars))
	for i, v := range d.vars {
		names[i] = v.Name
	}

	return names
}

// Dims derives the dimension-name to extent mapping across every coordinate
// and data variable. Two arrays disagreeing on a shared dimension's extent
// is an axis mismatch.
func (d *Dataset) Dims() (map[string]int, error) {
	dims := make(map[string]int)

	record := func(v *Variable) error {
		for i, name := range v.Dims {
			if have, ok := dims[name]; ok && have != v.Shape[i] {
				return fmt.Errorf("%w: dimension %q is %d in %q but %d elsewhere",
					errs.ErrAxisMismatch, name, v.Shape[i], v.Name, have)
			}
			dims[name] = v.Shape[i]
		}

		return nil
	}

	for _, c := range d.coords {
		if err := record(c); err != nil {
			return nil, err
		}
	}
	for _, v := range d.vars {
		if err := record(v); err != nil {
			return nil, err
		}
	}

	return dims, nil
}

// OrderingCoordinate finds the coordinate whose sole dimension is dim: the
// axis samples are sorted, deduplicated and windowed by. The match must be
// unique, and must hold int64 ordinals.
func (d *Dataset) OrderingCoordinate(dim string) (*Variable, error) {
	var found *Variable
	for _, c := range d.coords {
		if len(c.Dims) != 1 || c.Dims[0] != dim {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: coordinates %q and %q both span dimension %q alone",
				errs.ErrNoOrderingCoordinate, found.Name, c.Name, dim)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no coordinate spans dimension %q alone",
			errs.ErrNoOrderingCoordinate, dim)
	}
	if found.Data.DType() != DTypeInt64 {
		return nil, fmt.Errorf("%w: coordinate %q holds %s, ordering needs int64 ordinals",
			errs.ErrNoOrderingCoordinate, found.Name, found.Data.DType())
	}

	return found, nil
}
