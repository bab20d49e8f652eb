package dataset

import "math"

// DType identifies the element type of an Array payload.
type DType uint8

const (
	// DTypeInt64 holds signed 64-bit integers, the required dtype for
	// ordering coordinates: ordinal nanoseconds compare exactly where
	// float64 rounds above 2^53.
	DTypeInt64 DType = iota + 1
	// DTypeFloat64 holds IEEE 754 doubles, the usual dtype for physical
	// data variables.
	DTypeFloat64
)

func (t DType) String() string {
	switch t {
	case DTypeInt64:
		return "int64"
	case DTypeFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// ItemSize returns the element width in bytes.
func (t DType) ItemSize() int {
	switch t {
	case DTypeInt64, DTypeFloat64:
		return 8
	default:
		return 0
	}
}

// Array is a dense, row-major payload of one element type. Contents are
// treated as immutable once constructed: operations that reorder or subset
// data allocate fresh arrays and leave their inputs alone. The zero Array is
// empty and typeless.
type Array struct {
	dtype  DType
	ints   []int64
	floats []float64
}

// Int64Array wraps values as an int64 array. The slice is adopted, not
// copied; the caller hands over ownership.
func Int64Array(values []int64) Array {
	return Array{dtype: DTypeInt64, ints: values}
}

// Float64Array wraps values as a float64 array. The slice is adopted, not
// copied; the caller hands over ownership.
func Float64Array(values []float64) Array {
	return Array{dtype: DTypeFloat64, floats: values}
}

func (a Array) DType() DType {
	return a.dtype
}

// Len returns the number of elements.
func (a Array) Len() int {
	switch a.dtype {
	case DTypeInt64:
		return len(a.ints)
	case DTypeFloat64:
		return len(a.floats)
	default:
		return 0
	}
}

// Int64s returns the backing slice of an int64 array, nil for any other
// dtype. The contents must not be modified.
func (a Array) Int64s() []int64 {
	if a.dtype != DTypeInt64 {
		return nil
	}

	return a.ints
}

// Float64s returns the backing slice of a float64 array, nil for any other
// dtype. The contents must not be modified.
func (a Array) Float64s() []float64 {
	if a.dtype != DTypeFloat64 {
		return nil
	}

	return a.floats
}

// Equal reports whether b has the same dtype, length and element values.
// Float64 NaN elements compare equal to each other so fill values survive
// round trips.
func (a Array) Equal(b Array) bool {
	if a.dtype != b.dtype || a.Len() != b.Len() {
		return false
	}

	switch a.dtype {
	case DTypeInt64:
		for i, v := range a.ints {
			if v != b.ints[i] {
				return false
			}
		}
	case DTypeFloat64:
		for i, v := range a.floats {
			w := b.floats[i]
			if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
				return false
			}
		}
	}

	return true
}

// gather copies the blocks named by indices along one axis into a fresh
// array. outer is the element product of the axes before the gathered one,
// length the source extent along it, inner the product of the axes after it.
func (a Array) gather(outer, length, inner int, indices []int) Array {
	switch a.dtype {
	case DTypeInt64:
		return Int64Array(gatherAxis(a.ints, outer, length, inner, indices))
	case DTypeFloat64:
		return Float64Array(gatherAxis(a.floats, outer, length, inner, indices))
	default:
		return Array{}
	}
}

// concatArrays joins two same-dtype arrays along one axis. aLen and bLen are
// the extents of a and b along that axis; outer and inner as in gather.
func concatArrays(a, b Array, outer, aLen, bLen, inner int) Array {
	switch a.dtype {
	case DTypeInt64:
		return Int64Array(concatAxis(a.ints, b.ints, outer, aLen, bLen, inner))
	case DTypeFloat64:
		return Float64Array(concatAxis(a.floats, b.floats, outer, aLen, bLen, inner))
	default:
		return Array{}
	}
}

func gatherAxis[T int64 | float64](src []T, outer, length, inner int, indices []int) []T {
	dst := make([]T, outer*len(indices)*inner)
	for o := range outer {
		srcBase := o * length * inner
		dstBase := o * len(indices) * inner
		for j, idx := range indices {
			copy(dst[dstBase+j*inner:dstBase+(j+1)*inner], src[srcBase+idx*inner:srcBase+(idx+1)*inner])
		}
	}

	return dst
}

func concatAxis[T int64 | float64](a, b []T, outer, aLen, bLen, inner int) []T {
	dst := make([]T, 0, len(a)+len(b))
	for o := range outer {
		dst = append(dst, a[o*aLen*inner:(o+1)*aLen*inner]...)
		dst = append(dst, b[o*bLen*inner:(o+1)*bLen*inner]...)
	}

	return dst
}
