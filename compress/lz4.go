package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools fast-mode lz4.Compressor instances, which keep
// internal hash tables worth reusing across chunks.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec compresses chunk payloads as raw LZ4 blocks. Level 0 uses the
// fast compressor; levels 1-9 use the high-compression variant at increasing
// search depth.
type LZ4Codec struct {
	level lz4.CompressionLevel
}

var _ Codec = LZ4Codec{}

// NewLZ4Codec creates an LZ4 codec at the given level.
func NewLZ4Codec(level int) LZ4Codec {
	c := LZ4Codec{level: lz4.Fast}
	if level > 0 {
		// The library encodes HC levels as 1<<(8+n) for n in 1..9.
		c.level = lz4.CompressionLevel(1 << (8 + level))
	}

	return c
}

// Compress compresses the input data as a single LZ4 block.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	if c.level == lz4.Fast {
		lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
		defer lz4CompressorPool.Put(lc)

		n, err := lc.CompressBlock(data, dst)
		if err != nil {
			return nil, err
		}

		return dst[:n], nil
	}

	hc := lz4.CompressorHC{Level: c.level}
	n, err := hc.CompressBlock(data, dst)
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

// Decompress inflates an LZ4 block of unknown decompressed size. It starts
// with a buffer 4x the compressed size and doubles on short-buffer errors,
// bailing out at 128MB to keep corrupt length fields from exhausting memory.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bufSize := len(data) * 4
	const maxSize = 128 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}

			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}

		return buf[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}
