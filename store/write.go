package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cespare/xxhash/v2"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/endian"
	"gridappend/errs"
	"gridappend/internal/options"
)

type writeConfig struct {
	logger *slog.Logger
}

// WriteOption represents a functional option for configuring Write.
type WriteOption = options.Option[*writeConfig]

// WithLogger routes the writer's progress records through the given logger.
func WithLogger(logger *slog.Logger) WriteOption {
	return options.NoError(func(c *writeConfig) {
		c.logger = logger
	})
}

// Write persists an encoded dataset at locator. The store is built in full
// at a temporary sibling path and renamed into place, so a failed run never
// leaves a partial store behind and never damages an existing one.
//
// A locator ending in .sqlite or .db selects the single-file SQLite backend;
// anything else becomes a directory tree. In CreateExclusive mode an
// occupied destination fails with ErrStoreExists before any byte is staged.
func Write(ctx context.Context, enc *EncodedDataset, locator string, mode CreateMode, opts ...WriteOption) error {
	if enc == nil || enc.Dataset == nil ||
		(len(enc.Dataset.Coords()) == 0 && len(enc.Dataset.Vars()) == 0) {
		return fmt.Errorf("%w: nothing to write", errs.ErrEmptyDataset)
	}

	cfg := &writeConfig{logger: slog.Default()}
	if err := options.Apply(cfg, opts...); err != nil {
		return err
	}

	if mode == CreateExclusive {
		ok, err := Exists(locator)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", errs.ErrStoreExists, locator)
		}
	}

	backend, staged, err := stageBackend(locator)
	if err != nil {
		return err
	}

	if err := writeObjects(ctx, backend, enc, cfg.logger); err != nil {
		backend.Close()
		discardStage(staged)

		return err
	}
	if err := backend.Close(); err != nil {
		discardStage(staged)
		return err
	}
	if err := commitStage(staged, locator, mode); err != nil {
		discardStage(staged)
		return err
	}

	cfg.logger.Debug("store committed", "locator", locator, "mode", mode)

	return nil
}

func writeObjects(ctx context.Context, backend Backend, enc *EncodedDataset, logger *slog.Logger) error {
	engine := enc.ByteOrder
	if engine == nil {
		engine = endian.Little()
	}

	w := &storeWriter{
		backend:    backend,
		engine:     engine,
		writeEmpty: enc.WriteEmptyChunks,
		manifest:   newManifest(),
		codecs:     make(map[compress.Spec]compress.Codec),
		logger:     logger,
	}

	if err := backend.Put(ctx, groupKey, w.manifest.Metadata[groupKey]); err != nil {
		return fmt.Errorf("write group object: %w", err)
	}

	ds := enc.Dataset
	for _, v := range ds.Coords() {
		if err := w.writeArray(ctx, v, nil); err != nil {
			return err
		}
	}
	for _, v := range ds.Vars() {
		if err := w.writeArray(ctx, v, auxCoordinates(v, ds.Coords())); err != nil {
			return err
		}
	}

	doc, err := json.MarshalIndent(w.manifest, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := backend.Put(ctx, manifestKey, doc); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// auxCoordinates lists the coordinates a data variable should reference in
// its "coordinates" attribute: those not named after a dimension of the
// variable but laid out entirely on the variable's dimensions.
func auxCoordinates(v *dataset.Variable, coords []*dataset.Variable) []string {
	var names []string
	for _, c := range coords {
		if _, isDim := v.Axis(c.Name); isDim {
			continue
		}
		spanned := true
		for _, d := range c.Dims {
			if _, ok := v.Axis(d); !ok {
				spanned = false
				break
			}
		}
		if spanned {
			names = append(names, c.Name)
		}
	}

	return names
}

type storeWriter struct {
	backend    Backend
	engine     endian.EndianEngine
	writeEmpty bool
	manifest   *Manifest
	codecs     map[compress.Spec]compress.Codec
	logger     *slog.Logger
}

func (w *storeWriter) codec(spec compress.Spec) (compress.Codec, error) {
	if c, ok := w.codecs[spec]; ok {
		return c, nil
	}
	c, err := compress.NewCodec(spec)
	if err != nil {
		return nil, err
	}
	w.codecs[spec] = c

	return c, nil
}

func (w *storeWriter) writeArray(ctx context.Context, v *dataset.Variable, coordinates []string) error {
	dtype, err := dtypeString(v.Data.DType(), w.engine)
	if err != nil {
		return fmt.Errorf("array %s: %w", v.Name, err)
	}

	spec := compress.DefaultSpec()
	if v.Compressor != nil {
		spec = *v.Compressor
	}
	codec, err := w.codec(spec)
	if err != nil {
		return fmt.Errorf("array %s: %w", v.Name, err)
	}

	meta := ArrayMeta{
		ZarrFormat: zarrFormat,
		Shape:      v.Shape,
		Chunks:     v.Chunks,
		DType:      dtype,
		Compressor: compressorMeta(spec),
		FillValue:  fillValueFor(v.Data.DType()),
		Order:      "C",
	}
	if meta.Shape == nil {
		meta.Shape = []int{}
	}
	if meta.Chunks == nil {
		meta.Chunks = []int{}
	}

	attrs := ArrayAttrs{Dimensions: v.Dims}
	if attrs.Dimensions == nil {
		attrs.Dimensions = []string{}
	}
	if len(coordinates) > 0 {
		attrs.Coordinates = strings.Join(coordinates, " ")
	}

	if err := w.manifest.setArray(v.Name, meta, attrs); err != nil {
		return err
	}
	for _, key := range []string{v.Name + "/.zarray", v.Name + "/.zattrs"} {
		if err := w.backend.Put(ctx, key, w.manifest.Metadata[key]); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}

	written, suppressed := 0, 0
	for _, coord := range gridCoords(chunkGrid(v.Shape, v.Chunks)) {
		start, extent := chunkBox(v.Shape, v.Chunks, coord)
		payload := extractChunk(v.Data, v.Shape, start, extent)
		if !w.writeEmpty && chunkIsFill(payload) {
			suppressed++
			continue
		}

		data, err := codec.Compress(encodeValues(w.engine, payload))
		if err != nil {
			return fmt.Errorf("compress chunk %s/%s: %w", v.Name, chunkKey(coord), err)
		}
		key := v.Name + "/" + chunkKey(coord)
		if err := w.backend.Put(ctx, key, data); err != nil {
			return fmt.Errorf("write chunk %s: %w", key, err)
		}
		w.manifest.ChunkDigests[key] = fmt.Sprintf("%016x", xxhash.Sum64(data))
		written++
	}

	w.logger.Debug("wrote array", "array", v.Name, "chunks", written, "suppressed", suppressed)

	return nil
}

func encodeValues(engine endian.EndianEngine, a dataset.Array) []byte {
	switch a.DType() {
	case dataset.DTypeInt64:
		values := a.Int64s()
		return endian.AppendInt64s(engine, make([]byte, 0, len(values)*8), values)
	case dataset.DTypeFloat64:
		values := a.Float64s()
		return endian.AppendFloat64s(engine, make([]byte, 0, len(values)*8), values)
	default:
		return nil
	}
}
