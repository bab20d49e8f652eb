package store

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"gridappend/dataset"
)

// chunkGrid returns the chunk count along each axis: ceiling division of
// shape by chunks. Zero-dimensional arrays get an empty grid (one chunk).
func chunkGrid(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
		if grid[i] == 0 {
			grid[i] = 1
		}
	}

	return grid
}

// gridCoords enumerates every chunk coordinate of a grid in C order.
func gridCoords(grid []int) [][]int {
	total := 1
	for _, g := range grid {
		total *= g
	}

	coords := make([][]int, 0, total)
	cur := make([]int, len(grid))
	for range total {
		coords = append(coords, slices.Clone(cur))
		for axis := len(grid) - 1; axis >= 0; axis-- {
			cur[axis]++
			if cur[axis] < grid[axis] {
				break
			}
			cur[axis] = 0
		}
	}

	return coords
}

// chunkKey renders grid coordinates as the object key suffix, "i.j.k" in C
// order. A zero-dimensional array stores its single chunk as "0".
func chunkKey(coord []int) string {
	if len(coord) == 0 {
		return "0"
	}

	parts := make([]string, len(coord))
	for i, c := range coord {
		parts[i] = strconv.Itoa(c)
	}

	return strings.Join(parts, ".")
}

// chunkBox returns the start offset and extent of one chunk clipped to the
// array bounds. Edge chunks are stored unpadded, so the extent along an axis
// can be smaller than the chunk size.
func chunkBox(shape, chunks, coord []int) (start, extent []int) {
	start = make([]int, len(shape))
	extent = make([]int, len(shape))
	for i := range shape {
		start[i] = coord[i] * chunks[i]
		extent[i] = min(chunks[i], shape[i]-start[i])
	}

	return start, extent
}

// boxRows iterates the contiguous rows of an N-D box inside a row-major
// array of the given shape, calling fn with each row's flat start offset and
// length. A zero-dimensional box is one row of one element.
func boxRows(shape, start, extent []int, fn func(offset, length int)) {
	ndim := len(shape)
	if ndim == 0 {
		fn(0, 1)
		return
	}

	for _, e := range extent {
		if e == 0 {
			return
		}
	}

	strides := make([]int, ndim)
	stride := 1
	for i := ndim - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	rowLen := extent[ndim-1]
	counter := make([]int, max(ndim-1, 0))
	for {
		offset := start[ndim-1]
		for i := range counter {
			offset += (start[i] + counter[i]) * strides[i]
		}
		fn(offset, rowLen)

		axis := ndim - 2
		for ; axis >= 0; axis-- {
			counter[axis]++
			if counter[axis] < extent[axis] {
				break
			}
			counter[axis] = 0
		}
		if axis < 0 {
			break
		}
	}
}

func extractBlock[T int64 | float64](src []T, shape, start, extent []int) []T {
	total := 1
	for _, e := range extent {
		total *= e
	}

	dst := make([]T, 0, total)
	boxRows(shape, start, extent, func(offset, length int) {
		dst = append(dst, src[offset:offset+length]...)
	})

	return dst
}

func insertBlock[T int64 | float64](dst []T, shape, start, extent []int, payload []T) {
	pos := 0
	boxRows(shape, start, extent, func(offset, length int) {
		copy(dst[offset:offset+length], payload[pos:pos+length])
		pos += length
	})
}

// extractChunk pulls one unpadded chunk payload out of a full array.
func extractChunk(a dataset.Array, shape, start, extent []int) dataset.Array {
	switch a.DType() {
	case dataset.DTypeInt64:
		return dataset.Int64Array(extractBlock(a.Int64s(), shape, start, extent))
	case dataset.DTypeFloat64:
		return dataset.Float64Array(extractBlock(a.Float64s(), shape, start, extent))
	default:
		return dataset.Array{}
	}
}

// chunkIsFill reports whether a chunk payload is entirely the dtype's fill
// value, the condition for suppressing the chunk object.
func chunkIsFill(a dataset.Array) bool {
	switch a.DType() {
	case dataset.DTypeInt64:
		for _, v := range a.Int64s() {
			if v != 0 {
				return false
			}
		}

		return true
	case dataset.DTypeFloat64:
		for _, v := range a.Float64s() {
			if !math.IsNaN(v) {
				return false
			}
		}

		return true
	default:
		return false
	}
}
