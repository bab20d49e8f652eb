//go:build !gozstd

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoderPool pools zstd decoders for reuse. The klauspost decoder is
// designed to operate without allocations after warmup, so keeping instances
// around beats constructing one per chunk.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(false),
		)
		if err != nil {
			// Only possible with invalid options.
			panic(fmt.Sprintf("create pooled zstd decoder: %v", err))
		}

		return decoder
	},
}

// ZstdCodec compresses chunk payloads with Zstandard. The default build uses
// the pure Go implementation; compile with the gozstd tag to swap in the C
// bindings at the same levels.
type ZstdCodec struct {
	encoder *zstd.Encoder
}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a zstd codec. Level 0 selects the library default;
// levels 1-22 are mapped from the reference zstd scale onto the nearest
// supported encoder speed.
func NewZstdCodec(level int) (*ZstdCodec, error) {
	opts := []zstd.EOption{zstd.WithEncoderCRC(false)}
	if level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}

	encoder, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &ZstdCodec{encoder: encoder}, nil
}

// Compress compresses data with the codec's configured level.
// EncodeAll is stateless, so a single encoder serves concurrent callers.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

// Decompress inflates zstd-compressed data. It fails on corrupt input or
// payloads produced by a different algorithm.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	decompressed, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return decompressed, nil
}
