package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/endian"
	"gridappend/errs"
)

// Open reads a whole store back into a dataset. A locator with nothing
// behind it reports ErrStoreMissing; a store whose metadata or chunks cannot
// be decoded, or whose chunk digests do not match, reports ErrCorruptStore.
//
// Chunks absent from the backend are suppressed empties and materialize as
// the array's fill value. Members are assembled in name order; an array is
// classified as a coordinate when it is named after one of its own
// dimensions or referenced by a data variable's "coordinates" attribute.
func Open(ctx context.Context, locator string) (*dataset.Dataset, error) {
	backend, err := openBackend(locator)
	if err != nil {
		return nil, err
	}
	defer backend.Close()

	doc, err := backend.Get(ctx, manifestKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no consolidated metadata", errs.ErrCorruptStore, locator)
		}

		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(doc, &manifest); err != nil {
		return nil, fmt.Errorf("%w: consolidated metadata: %v", errs.ErrCorruptStore, err)
	}

	names := manifest.arrayNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s holds no arrays", errs.ErrCorruptStore, locator)
	}

	r := &storeReader{
		backend:  backend,
		manifest: &manifest,
		codecs:   make(map[compress.Spec]compress.Codec),
	}

	metas := make(map[string]ArrayMeta, len(names))
	attrs := make(map[string]ArrayAttrs, len(names))
	coordNames := make(map[string]bool)
	for _, name := range names {
		meta, attr, err := manifest.array(name)
		if err != nil {
			return nil, err
		}
		metas[name] = meta
		attrs[name] = attr

		if slices.Contains(attr.Dimensions, name) {
			coordNames[name] = true
		}
		for _, aux := range strings.Fields(attr.Coordinates) {
			coordNames[aux] = true
		}
	}

	ds := dataset.New()
	for _, name := range names {
		v, err := r.readArray(ctx, name, metas[name], attrs[name])
		if err != nil {
			return nil, err
		}

		if coordNames[name] {
			err = ds.AddCoord(v)
		} else {
			err = ds.AddVar(v)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: array %q: %v", errs.ErrCorruptStore, name, err)
		}
	}

	return ds, nil
}

type storeReader struct {
	backend  Backend
	manifest *Manifest
	codecs   map[compress.Spec]compress.Codec
}

func (r *storeReader) codec(spec compress.Spec) (compress.Codec, error) {
	if c, ok := r.codecs[spec]; ok {
		return c, nil
	}
	c, err := compress.NewCodec(spec)
	if err != nil {
		return nil, err
	}
	r.codecs[spec] = c

	return c, nil
}

func (r *storeReader) readArray(ctx context.Context, name string, meta ArrayMeta, attr ArrayAttrs) (*dataset.Variable, error) {
	dtype, engine, err := parseDtype(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("%w: array %q: %v", errs.ErrCorruptStore, name, err)
	}
	spec, err := parseCompressor(meta.Compressor)
	if err != nil {
		return nil, fmt.Errorf("%w: array %q: %v", errs.ErrCorruptStore, name, err)
	}
	codec, err := r.codec(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: array %q: %v", errs.ErrCorruptStore, name, err)
	}
	for i, c := range meta.Chunks {
		if c <= 0 {
			return nil, fmt.Errorf("%w: array %q chunk size %d on axis %d", errs.ErrCorruptStore, name, c, i)
		}
	}
	if len(meta.Chunks) != len(meta.Shape) {
		return nil, fmt.Errorf("%w: array %q plans %d of %d axes", errs.ErrCorruptStore, name, len(meta.Chunks), len(meta.Shape))
	}

	size := 1
	for _, n := range meta.Shape {
		if n < 0 {
			return nil, fmt.Errorf("%w: array %q has negative extent", errs.ErrCorruptStore, name)
		}
		size *= n
	}

	var ints []int64
	var floats []float64
	switch dtype {
	case dataset.DTypeInt64:
		ints = make([]int64, size)
		if fill := decodeFillInt(meta.FillValue); fill != 0 {
			for i := range ints {
				ints[i] = fill
			}
		}
	case dataset.DTypeFloat64:
		floats = make([]float64, size)
		fill := decodeFillFloat(meta.FillValue)
		for i := range floats {
			floats[i] = fill
		}
	}

	for _, coord := range gridCoords(chunkGrid(meta.Shape, meta.Chunks)) {
		key := name + "/" + chunkKey(coord)
		data, err := r.backend.Get(ctx, key)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", key, err)
		}

		if want, ok := r.manifest.ChunkDigests[key]; ok {
			if got := fmt.Sprintf("%016x", xxhash.Sum64(data)); got != want {
				return nil, fmt.Errorf("%w: chunk %s digest %s, manifest records %s",
					errs.ErrCorruptStore, key, got, want)
			}
		}

		raw, err := codec.Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %v", errs.ErrCorruptStore, key, err)
		}

		start, extent := chunkBox(meta.Shape, meta.Chunks, coord)
		count := 1
		for _, e := range extent {
			count *= e
		}
		if len(raw) != count*dtype.ItemSize() {
			return nil, fmt.Errorf("%w: chunk %s holds %d bytes, want %d",
				errs.ErrCorruptStore, key, len(raw), count*dtype.ItemSize())
		}

		switch dtype {
		case dataset.DTypeInt64:
			insertBlock(ints, meta.Shape, start, extent, endian.Int64s(engine, raw))
		case dataset.DTypeFloat64:
			insertBlock(floats, meta.Shape, start, extent, endian.Float64s(engine, raw))
		}
	}

	var data dataset.Array
	switch dtype {
	case dataset.DTypeInt64:
		data = dataset.Int64Array(ints)
	case dataset.DTypeFloat64:
		data = dataset.Float64Array(floats)
	}

	return &dataset.Variable{
		Name:       name,
		Dims:       attr.Dimensions,
		Shape:      meta.Shape,
		Data:       data,
		Chunks:     meta.Chunks,
		Compressor: &spec,
	}, nil
}
