package store

import (
	"fmt"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/endian"
	"gridappend/errs"
	"gridappend/internal/options"
)

// CreateMode controls what Write does when the destination locator is
// already occupied.
type CreateMode uint8

const (
	// CreateExclusive fails with ErrStoreExists instead of touching an
	// occupied destination. It is the default.
	CreateExclusive CreateMode = iota
	// CreateOverwrite replaces whatever occupies the destination.
	CreateOverwrite
)

func (m CreateMode) String() string {
	switch m {
	case CreateExclusive:
		return "exclusive"
	case CreateOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Encoder fixes the storage parameters of a dataset: which codec compresses
// chunk payloads, the byte order of the raw values, and whether chunks that
// hold nothing but fill values still get written.
type Encoder struct {
	compression      compress.Spec
	engine           endian.EndianEngine
	writeEmptyChunks bool
}

// EncoderOption represents a functional option for configuring an Encoder.
type EncoderOption = options.Option[*Encoder]

// WithCompression sets the codec applied to every chunk payload.
func WithCompression(spec compress.Spec) EncoderOption {
	return options.New(func(e *Encoder) error {
		if err := spec.Validate(); err != nil {
			return err
		}
		e.compression = spec

		return nil
	})
}

// WithWriteEmptyChunks disables the fill-value suppression pass when set to
// true, forcing every chunk to be written.
func WithWriteEmptyChunks(enabled bool) EncoderOption {
	return options.NoError(func(e *Encoder) {
		e.writeEmptyChunks = enabled
	})
}

// WithLittleEndian stores raw values in little-endian byte order.
// It is the default option.
func WithLittleEndian() EncoderOption {
	return options.NoError(func(e *Encoder) {
		e.engine = endian.Little()
	})
}

// WithBigEndian stores raw values in big-endian byte order.
func WithBigEndian() EncoderOption {
	return options.NoError(func(e *Encoder) {
		e.engine = endian.Big()
	})
}

// NewEncoder creates an encoder with zstd compression at the default level,
// little-endian byte order, and empty-chunk suppression enabled.
func NewEncoder(opts ...EncoderOption) (*Encoder, error) {
	enc := &Encoder{
		compression: compress.DefaultSpec(),
		engine:      endian.Little(),
	}
	if err := options.Apply(enc, opts...); err != nil {
		return nil, err
	}

	return enc, nil
}

// EncodedDataset is a dataset bound to concrete storage parameters, ready
// for Write. Every variable in it carries a chunk plan and a compressor.
type EncodedDataset struct {
	Dataset          *dataset.Dataset
	Compression      compress.Spec
	ByteOrder        endian.EndianEngine
	WriteEmptyChunks bool
}

// Encode binds the encoder's parameters to ds. The dataset must have at
// least one variable and every variable must already carry a chunk plan;
// run PlanChunks before encoding.
func (e *Encoder) Encode(ds *dataset.Dataset) (*EncodedDataset, error) {
	if ds == nil || (len(ds.Coords()) == 0 && len(ds.Vars()) == 0) {
		return nil, fmt.Errorf("%w: nothing to encode", errs.ErrEmptyDataset)
	}
	if _, err := ds.Dims(); err != nil {
		return nil, err
	}

	bound := dataset.New()
	for _, v := range ds.Coords() {
		bv, err := e.bind(v)
		if err != nil {
			return nil, err
		}
		if err := bound.AddCoord(bv); err != nil {
			return nil, err
		}
	}
	for _, v := range ds.Vars() {
		bv, err := e.bind(v)
		if err != nil {
			return nil, err
		}
		if err := bound.AddVar(bv); err != nil {
			return nil, err
		}
	}

	return &EncodedDataset{
		Dataset:          bound,
		Compression:      e.compression,
		ByteOrder:        e.engine,
		WriteEmptyChunks: e.writeEmptyChunks,
	}, nil
}

func (e *Encoder) bind(v *dataset.Variable) (*dataset.Variable, error) {
	if len(v.Chunks) != len(v.Shape) {
		return nil, fmt.Errorf("%w: variable %s has no chunk plan", errs.ErrChunkPlan, v.Name)
	}

	spec := e.compression
	bound := *v
	bound.Compressor = &spec

	return &bound, nil
}
