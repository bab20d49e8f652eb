package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCodec compresses chunk payloads with Brotli. Levels 1-11 follow the
// native quality scale; level 0 selects the library default.
type BrotliCodec struct {
	level int
}

var _ Codec = BrotliCodec{}

// NewBrotliCodec creates a Brotli codec at the given quality level.
func NewBrotliCodec(level int) BrotliCodec {
	if level == 0 {
		level = brotli.DefaultCompression
	}

	return BrotliCodec{level: level}
}

// Compress compresses the input data at the codec's quality level.
func (c BrotliCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.level)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("brotli compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a Brotli stream.
func (c BrotliCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("brotli decompression failed: %w", err)
	}

	return decompressed, nil
}
