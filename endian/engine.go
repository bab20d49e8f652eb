// Package endian provides byte-order engines and typed-slice conversions for
// array payloads.
//
// Store arrays and granule payloads are dense rows of fixed-width numbers.
// Their on-disk byte order is declared per array (the dtype string "<f8",
// ">i8", ...), so every conversion routine takes an EndianEngine rather than
// assuming the host order. Little-endian is the write default; big-endian
// exists for reading stores produced on big-endian writers.
package endian

import (
	"encoding/binary"
	"math"
)

// EndianEngine combines the ByteOrder and AppendByteOrder interfaces from
// encoding/binary. binary.LittleEndian and binary.BigEndian both satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Little returns the little-endian engine, the default for written stores.
func Little() EndianEngine {
	return binary.LittleEndian
}

// Big returns the big-endian engine.
func Big() EndianEngine {
	return binary.BigEndian
}

// AppendFloat64s appends the IEEE-754 bytes of each value to dst and returns
// the extended slice.
func AppendFloat64s(engine EndianEngine, dst []byte, values []float64) []byte {
	for _, v := range values {
		dst = engine.AppendUint64(dst, math.Float64bits(v))
	}

	return dst
}

// AppendInt64s appends the two's-complement bytes of each value to dst and
// returns the extended slice.
func AppendInt64s(engine EndianEngine, dst []byte, values []int64) []byte {
	for _, v := range values {
		dst = engine.AppendUint64(dst, uint64(v))
	}

	return dst
}

// Float64s decodes len(data)/8 float64 values from data. The caller must
// supply a payload whose length is a multiple of 8.
func Float64s(engine EndianEngine, data []byte) []float64 {
	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(engine.Uint64(data[i*8:]))
	}

	return out
}

// Int64s decodes len(data)/8 int64 values from data. The caller must supply
// a payload whose length is a multiple of 8.
func Int64s(engine EndianEngine, data []byte) []int64 {
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = int64(engine.Uint64(data[i*8:]))
	}

	return out
}
