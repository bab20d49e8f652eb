package compress

import "github.com/klauspost/compress/s2"

// S2Codec compresses chunk payloads with S2, the Snappy-compatible format
// tuned for throughput. Levels: 1 fast (default), 2 better, 3 best.
type S2Codec struct {
	level int
}

var _ Codec = S2Codec{}

// NewS2Codec creates an S2 codec at the given level. Level 0 selects the
// default fast mode.
func NewS2Codec(level int) S2Codec {
	return S2Codec{level: level}
}

// Compress compresses the input data using S2 compression.
func (c S2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	switch c.level {
	case 2:
		return s2.EncodeBetter(nil, data), nil
	case 3:
		return s2.EncodeBest(nil, data), nil
	default:
		return s2.Encode(nil, data), nil
	}
}

// Decompress decompresses the input data using S2 decompression.
// All three encoding modes produce the same stream format.
func (c S2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(nil, data)
}
