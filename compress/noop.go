package compress

// NoOpCodec stores payloads verbatim. Useful when chunk contents are already
// dense noise (encrypted or pre-compressed upstream) and CPU matters more
// than bytes.
type NoOpCodec struct{}

var _ Codec = NoOpCodec{}

func (NoOpCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

func (NoOpCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}
