//go:build gozstd

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"
)

// ZstdCodec compresses chunk payloads with Zstandard through the libzstd C
// bindings. This variant honors every native level exactly; the default
// pure Go build rounds levels to the nearest supported encoder speed.
type ZstdCodec struct {
	level int
}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a zstd codec. Level 0 selects the library default;
// levels 1-22 follow the reference zstd scale.
func NewZstdCodec(level int) (*ZstdCodec, error) {
	if level == 0 {
		level = gozstd.DefaultCompressionLevel
	}

	return &ZstdCodec{level: level}, nil
}

// Compress compresses data with the codec's configured level.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, c.level), nil
}

// Decompress inflates zstd-compressed data. It fails on corrupt input or
// payloads produced by a different algorithm.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decompressed, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return decompressed, nil
}
