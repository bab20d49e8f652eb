// Package gridappend merges labeled N-dimensional array data into an
// existing dataset along one ordering dimension and prepares the result
// for storage as a chunked, compressed array store.
//
// An append run takes the dataset already in the store (nil on the first
// run), the incoming slab, and the name of the ordering dimension. The
// pipeline concatenates the two along that dimension, sorts by the
// ordering coordinate, drops duplicate steps keeping the earliest-loaded
// value, optionally trims steps that fall outside a retention window
// anchored at the newest step, plans the chunk layout, and binds the
// compression codec to every array. The caller hands the result to the
// store writer.
//
// # Basic Usage
//
// Appending granule files to a store:
//
//	incoming, _ := granule.OpenPattern("updates/*.grn", "time")
//
//	existing, err := store.Open(ctx, "weather.zarr")
//	if errors.Is(err, errs.ErrStoreMissing) {
//	    existing = nil // first run
//	}
//
//	encoded, report, _ := gridappend.Run(existing, incoming, "time",
//	    gridappend.WithMaxDuration(30*24*time.Hour),
//	    gridappend.WithChunkShape(168, 50, 50),
//	)
//	fmt.Printf("kept %d steps, dropped %d duplicates\n",
//	    report.Samples, len(report.DroppedDuplicates))
//
//	_ = store.Write(ctx, encoded, "weather.zarr", store.CreateOverwrite)
//
// # Package Structure
//
// This package wires the dataset pipeline end to end. The pieces are
// usable on their own: dataset holds the merge, dedup, trim and chunk
// planning primitives, granule reads the incoming slab format, store
// encodes, writes and reads the on-disk layout, and staging localizes
// remote inputs.
package gridappend

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/internal/options"
	"gridappend/store"
)

type runConfig struct {
	variables        []string
	maxDuration      *time.Duration
	chunkShape       []int
	compression      compress.Spec
	writeEmptyChunks bool
	logger           *slog.Logger
}

// RunOption configures a single Run invocation.
type RunOption = options.Option[*runConfig]

// WithVariables restricts the merge to the named data variables. Every
// name must exist in both datasets. Without it, the run keeps the
// variables of the existing dataset, or of the incoming one on a first
// run.
func WithVariables(names ...string) RunOption {
	return options.NoError(func(cfg *runConfig) {
		cfg.variables = slices.Clone(names)
	})
}

// WithMaxDuration trims steps older than d relative to the newest step
// of the merged ordering coordinate. Without it, nothing is trimmed.
func WithMaxDuration(d time.Duration) RunOption {
	return options.NoError(func(cfg *runConfig) {
		cfg.maxDuration = &d
	})
}

// WithChunkShape sets the positional chunk plan: entry i is the block
// size along axis i of each array, clipped to the array's own rank.
// Without it, the run applies dataset.DefaultChunkShape.
func WithChunkShape(shape ...int) RunOption {
	return options.NoError(func(cfg *runConfig) {
		cfg.chunkShape = slices.Clone(shape)
	})
}

// WithCodec selects the compression applied to every chunk.
//
// The default is compress.DefaultSpec, zstd at its highest level.
func WithCodec(spec compress.Spec) RunOption {
	return options.New(func(cfg *runConfig) error {
		if err := spec.Validate(); err != nil {
			return err
		}
		cfg.compression = spec

		return nil
	})
}

// WithWriteEmptyChunks keeps chunks holding only the fill value instead
// of suppressing them. Suppressed chunks read back as fill.
func WithWriteEmptyChunks(enabled bool) RunOption {
	return options.NoError(func(cfg *runConfig) {
		cfg.writeEmptyChunks = enabled
	})
}

// WithLogger routes pipeline observations, such as dropped duplicates,
// to the given logger instead of slog.Default.
func WithLogger(logger *slog.Logger) RunOption {
	return options.NoError(func(cfg *runConfig) {
		cfg.logger = logger
	})
}

// Report summarizes what one run did to the data.
type Report struct {
	// Samples is the length of the ordering dimension in the result.
	Samples int

	// DroppedDuplicates holds the positions, in the merged and sorted
	// sequence, of the steps dropped because an earlier-loaded step
	// carried the same ordering value.
	DroppedDuplicates []int

	// TrimmedPrefix is the number of leading steps dropped for falling
	// outside the retention window.
	TrimmedPrefix int
}

// Run merges incoming into existing along orderingDim and returns the
// result ready for store.Write. existing may be nil on a first run; the
// incoming dataset alone is then sorted and encoded.
//
// Duplicate ordering values are resolved keep-first: the value already
// in existing wins over a re-delivered incoming step. Duplicates are an
// observation, not an error; Run logs them as a warning and lists them
// in the report.
func Run(existing, incoming *dataset.Dataset, orderingDim string, opts ...RunOption) (*store.EncodedDataset, Report, error) {
	var report Report

	cfg := &runConfig{
		compression: compress.DefaultSpec(),
		logger:      slog.Default(),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, report, err
	}

	merged, err := dataset.Merge(existing, incoming, cfg.variables, orderingDim)
	if err != nil {
		return nil, report, fmt.Errorf("merge: %w", err)
	}

	deduped, dropped, err := dataset.Dedup(merged, orderingDim)
	if err != nil {
		return nil, report, fmt.Errorf("dedup: %w", err)
	}
	report.DroppedDuplicates = dropped
	if len(dropped) > 0 {
		cfg.logger.Warn("dropped duplicate steps",
			"dim", orderingDim,
			"count", len(dropped),
			"indices", dropped,
		)
	}

	trimmed, cut, err := dataset.Trim(deduped, orderingDim, cfg.maxDuration)
	if err != nil {
		return nil, report, fmt.Errorf("trim: %w", err)
	}
	report.TrimmedPrefix = cut
	if cut > 0 {
		cfg.logger.Info("trimmed steps outside the retention window",
			"dim", orderingDim,
			"count", cut,
		)
	}

	ordering, err := trimmed.OrderingCoordinate(orderingDim)
	if err != nil {
		return nil, report, err
	}
	report.Samples = ordering.Data.Len()

	planned, err := dataset.PlanChunks(trimmed, orderingDim, cfg.chunkShape)
	if err != nil {
		return nil, report, fmt.Errorf("plan chunks: %w", err)
	}

	encoder, err := store.NewEncoder(
		store.WithCompression(cfg.compression),
		store.WithWriteEmptyChunks(cfg.writeEmptyChunks),
	)
	if err != nil {
		return nil, report, err
	}

	encoded, err := encoder.Encode(planned)
	if err != nil {
		return nil, report, fmt.Errorf("encode: %w", err)
	}

	return encoded, report, nil
}
