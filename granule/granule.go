// Package granule reads and writes the single-file container for staged
// input slabs.
//
// A granule is one msgpack envelope: magic, format version, dimension sizes,
// then the coordinate and data arrays. Array payloads are raw little-endian
// bytes, except the ordering coordinate, whose int64 values are stored as
// varint-encoded deltas; consecutive timestamps are near-constant spaced, so
// deltas collapse to a few bytes each.
package granule

import (
	"encoding/binary"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"gridappend/dataset"
	"gridappend/endian"
	"gridappend/errs"
)

const (
	granuleMagic   = "GRNL"
	granuleVersion = 1

	encodingRaw   = "raw"
	encodingDelta = "delta"
)

type envelope struct {
	Magic   string      `msgpack:"magic"`
	Version int         `msgpack:"version"`
	Dims    []dimension `msgpack:"dims"`
	Coords  []record    `msgpack:"coords"`
	Vars    []record    `msgpack:"vars"`
}

type dimension struct {
	Name string `msgpack:"name"`
	Size int    `msgpack:"size"`
}

type record struct {
	Name     string   `msgpack:"name"`
	Dims     []string `msgpack:"dims"`
	Shape    []int    `msgpack:"shape"`
	DType    string   `msgpack:"dtype"`
	Encoding string   `msgpack:"encoding"`
	Payload  []byte   `msgpack:"payload"`
}

// Write stores ds as one granule file at path. The dataset must carry an
// ordering coordinate for dim; its values become the delta-encoded payload.
func Write(path string, ds *dataset.Dataset, dim string) error {
	if ds == nil || (len(ds.Coords()) == 0 && len(ds.Vars()) == 0) {
		return fmt.Errorf("%w: nothing to write", errs.ErrEmptyDataset)
	}
	ordering, err := ds.OrderingCoordinate(dim)
	if err != nil {
		return err
	}
	sizes, err := ds.Dims()
	if err != nil {
		return err
	}

	env := envelope{Magic: granuleMagic, Version: granuleVersion}
	for _, name := range slices.Sorted(maps.Keys(sizes)) {
		env.Dims = append(env.Dims, dimension{Name: name, Size: sizes[name]})
	}
	for _, c := range ds.Coords() {
		rec, err := encodeRecord(c, c.Name == ordering.Name)
		if err != nil {
			return err
		}
		env.Coords = append(env.Coords, rec)
	}
	for _, v := range ds.Vars() {
		rec, err := encodeRecord(v, false)
		if err != nil {
			return err
		}
		env.Vars = append(env.Vars, rec)
	}

	data, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("marshal granule: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Read loads one granule file back into a dataset.
func Read(path string) (*dataset.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: decode granule: %w", path, err)
	}
	if env.Magic != granuleMagic {
		return nil, fmt.Errorf("%s: not a granule file", path)
	}
	if env.Version != granuleVersion {
		return nil, fmt.Errorf("%s: unsupported granule version %d", path, env.Version)
	}

	sizes := make(map[string]int, len(env.Dims))
	for _, d := range env.Dims {
		sizes[d.Name] = d.Size
	}

	ds := dataset.New()
	for _, rec := range env.Coords {
		v, err := decodeRecord(rec, sizes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := ds.AddCoord(v); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, rec := range env.Vars {
		v, err := decodeRecord(rec, sizes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := ds.AddVar(v); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return ds, nil
}

func encodeRecord(v *dataset.Variable, delta bool) (record, error) {
	rec := record{Name: v.Name, Dims: v.Dims, Shape: v.Shape}

	switch v.Data.DType() {
	case dataset.DTypeInt64:
		values := v.Data.Int64s()
		rec.DType = "i8"
		if delta {
			rec.Encoding = encodingDelta
			rec.Payload = appendDeltas(make([]byte, 0, len(values)), values)
		} else {
			rec.Encoding = encodingRaw
			rec.Payload = endian.AppendInt64s(endian.Little(), make([]byte, 0, len(values)*8), values)
		}
	case dataset.DTypeFloat64:
		values := v.Data.Float64s()
		rec.DType = "f8"
		rec.Encoding = encodingRaw
		rec.Payload = endian.AppendFloat64s(endian.Little(), make([]byte, 0, len(values)*8), values)
	default:
		return record{}, fmt.Errorf("array %s: unsupported dtype", v.Name)
	}

	return rec, nil
}

func decodeRecord(rec record, sizes map[string]int) (*dataset.Variable, error) {
	if len(rec.Dims) != len(rec.Shape) {
		return nil, fmt.Errorf("array %s labels %d of %d axes", rec.Name, len(rec.Dims), len(rec.Shape))
	}

	size := 1
	for i, d := range rec.Dims {
		if rec.Shape[i] < 0 {
			return nil, fmt.Errorf("array %s has negative extent along %s", rec.Name, d)
		}
		if want, ok := sizes[d]; ok && want != rec.Shape[i] {
			return nil, fmt.Errorf("array %s spans %d along %s, envelope declares %d",
				rec.Name, rec.Shape[i], d, want)
		}
		size *= rec.Shape[i]
	}

	var data dataset.Array
	switch {
	case rec.DType == "i8" && rec.Encoding == encodingDelta:
		values, err := decodeDeltas(rec.Payload, size)
		if err != nil {
			return nil, fmt.Errorf("array %s: %w", rec.Name, err)
		}
		data = dataset.Int64Array(values)
	case rec.DType == "i8" && rec.Encoding == encodingRaw:
		if len(rec.Payload) != size*8 {
			return nil, fmt.Errorf("array %s payload holds %d bytes, want %d", rec.Name, len(rec.Payload), size*8)
		}
		data = dataset.Int64Array(endian.Int64s(endian.Little(), rec.Payload))
	case rec.DType == "f8" && rec.Encoding == encodingRaw:
		if len(rec.Payload) != size*8 {
			return nil, fmt.Errorf("array %s payload holds %d bytes, want %d", rec.Name, len(rec.Payload), size*8)
		}
		data = dataset.Float64Array(endian.Float64s(endian.Little(), rec.Payload))
	default:
		return nil, fmt.Errorf("array %s: unsupported encoding %s/%s", rec.Name, rec.Encoding, rec.DType)
	}

	return &dataset.Variable{Name: rec.Name, Dims: rec.Dims, Shape: rec.Shape, Data: data}, nil
}

func appendDeltas(dst []byte, values []int64) []byte {
	prev := int64(0)
	for _, v := range values {
		dst = binary.AppendVarint(dst, v-prev)
		prev = v
	}

	return dst
}

func decodeDeltas(data []byte, count int) ([]int64, error) {
	values := make([]int64, count)
	prev := int64(0)
	for i := range values {
		delta, n := binary.Varint(data)
		if n <= 0 {
			return nil, fmt.Errorf("truncated delta payload at value %d", i)
		}
		data = data[n:]
		prev += delta
		values[i] = prev
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after delta payload", len(data))
	}

	return values, nil
}
