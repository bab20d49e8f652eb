package compress

import "fmt"

// Type identifies a compression algorithm. The zero value is TypeNone.
type Type uint8

const (
	TypeNone Type = iota
	TypeZstd
	TypeS2
	TypeLZ4
	TypeSnappy
	TypeBrotli
)

// typeNames maps each Type to the identifier written into store manifests.
var typeNames = map[Type]string{
	TypeNone:   "none",
	TypeZstd:   "zstd",
	TypeS2:     "s2",
	TypeLZ4:    "lz4",
	TypeSnappy: "snappy",
	TypeBrotli: "brotli",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return "unknown"
}

// ParseType maps a manifest identifier back to its Type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}

	return TypeNone, fmt.Errorf("unknown compression type: %q", name)
}

// Spec selects a codec and its level. Level 0 selects the codec's default;
// otherwise the level is on the codec's native scale (zstd 1-22, s2 1-3,
// lz4 1-9, brotli 1-11; none and snappy have no levels).
type Spec struct {
	Type  Type
	Level int
}

// MaxZstdLevel is the highest practical zstd level and the level bound to
// every variable by default. It plays the role the original pipeline gave
// its byte codec's maximum setting.
const MaxZstdLevel = 19

// DefaultSpec returns the write default: zstd at maximum level.
func DefaultSpec() Spec {
	return Spec{Type: TypeZstd, Level: MaxZstdLevel}
}

func (s Spec) String() string {
	if s.Level == 0 {
		return s.Type.String()
	}

	return fmt.Sprintf("%s@%d", s.Type, s.Level)
}

// maxLevels holds the top of each codec's native level scale. Codecs absent
// from the map accept only level 0.
var maxLevels = map[Type]int{
	TypeZstd:   22,
	TypeS2:     3,
	TypeLZ4:    9,
	TypeBrotli: 11,
}

// Validate reports whether the spec names a known codec with a level inside
// its native scale.
func (s Spec) Validate() error {
	if _, ok := typeNames[s.Type]; !ok {
		return fmt.Errorf("unknown compression type: %d", s.Type)
	}
	if s.Level == 0 {
		return nil
	}
	maxLevel := maxLevels[s.Type]
	if s.Level < 0 || s.Level > maxLevel {
		return fmt.Errorf("%s: level %d out of range [0, %d]", s.Type, s.Level, maxLevel)
	}

	return nil
}

// Compressor compresses one chunk payload into a newly allocated slice.
// The input is never modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses Compressor.Compress. Implementations validate the
// payload and fail on corrupt or foreign data rather than guessing.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. All codecs in this package are safe for
// concurrent use.
type Codec interface {
	Compressor
	Decompressor
}

// NewCodec builds the codec described by spec.
func NewCodec(spec Spec) (Codec, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch spec.Type {
	case TypeNone:
		return NoOpCodec{}, nil
	case TypeZstd:
		codec, err := NewZstdCodec(spec.Level)
		if err != nil {
			return nil, err
		}

		return codec, nil
	case TypeS2:
		return NewS2Codec(spec.Level), nil
	case TypeLZ4:
		return NewLZ4Codec(spec.Level), nil
	case TypeSnappy:
		return SnappyCodec{}, nil
	case TypeBrotli:
		return NewBrotliCodec(spec.Level), nil
	default:
		return nil, fmt.Errorf("no codec for type %d", spec.Type)
	}
}
