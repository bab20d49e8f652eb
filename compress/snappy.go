package compress

import (
	"fmt"

	"github.com/golang/snappy"
)

// SnappyCodec compresses chunk payloads in Snappy block format. Snappy has
// no level knob; it trades ratio for very cheap round trips.
type SnappyCodec struct{}

var _ Codec = SnappyCodec{}

// Compress compresses the input data as a Snappy block.
func (SnappyCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return snappy.Encode(nil, data), nil
}

// Decompress inflates a Snappy block.
func (SnappyCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompression failed: %w", err)
	}

	return decompressed, nil
}
