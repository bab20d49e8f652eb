package store

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"gridappend/compress"
	"gridappend/dataset"
	"gridappend/endian"
	"gridappend/errs"
)

const (
	zarrFormat         = 2
	consolidatedFormat = 1

	groupKey    = ".zgroup"
	manifestKey = ".zmetadata"
)

// ArrayMeta is one array's metadata document (<name>/.zarray).
type ArrayMeta struct {
	ZarrFormat int             `json:"zarr_format"`
	Shape      []int           `json:"shape"`
	Chunks     []int           `json:"chunks"`
	DType      string          `json:"dtype"`
	Compressor *CompressorMeta `json:"compressor"`
	FillValue  any             `json:"fill_value"`
	Order      string          `json:"order"`
	Filters    any             `json:"filters"`
}

// CompressorMeta names the codec and level an array's chunks were written
// with. A nil CompressorMeta means raw payloads.
type CompressorMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

// ArrayAttrs is one array's attribute document (<name>/.zattrs).
// Dimensions carries the axis labels; Coordinates lists auxiliary
// coordinates (those not named after their own dimension) space-separated
// on each data variable, matching the convention the reader classifies by.
type ArrayAttrs struct {
	Dimensions  []string `json:"_ARRAY_DIMENSIONS"`
	Coordinates string   `json:"coordinates,omitempty"`
}

// Manifest is the consolidated metadata document stored at .zmetadata. It
// embeds every per-array document plus the chunk digest index, so opening a
// store costs one object read before chunk fetches begin.
type Manifest struct {
	ConsolidatedFormat int                        `json:"zarr_consolidated_format"`
	Metadata           map[string]json.RawMessage `json:"metadata"`
	ChunkDigests       map[string]string          `json:"chunk_digests,omitempty"`
}

func newManifest() *Manifest {
	m := &Manifest{
		ConsolidatedFormat: consolidatedFormat,
		Metadata:           make(map[string]json.RawMessage),
		ChunkDigests:       make(map[string]string),
	}
	m.Metadata[groupKey], _ = json.Marshal(map[string]int{"zarr_format": zarrFormat})

	return m
}

func (m *Manifest) setArray(name string, meta ArrayMeta, attrs ArrayAttrs) error {
	metaDoc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal %s/.zarray: %w", name, err)
	}
	attrsDoc, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal %s/.zattrs: %w", name, err)
	}
	m.Metadata[name+"/.zarray"] = metaDoc
	m.Metadata[name+"/.zattrs"] = attrsDoc

	return nil
}

// arrayNames returns every array in the manifest, sorted. Stores round-trip
// with deterministic member order; declaration order is not persisted.
func (m *Manifest) arrayNames() []string {
	var names []string
	for key := range m.Metadata {
		if name, ok := strings.CutSuffix(key, "/.zarray"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	return names
}

func (m *Manifest) array(name string) (ArrayMeta, ArrayAttrs, error) {
	var meta ArrayMeta
	var attrs ArrayAttrs

	doc, ok := m.Metadata[name+"/.zarray"]
	if !ok {
		return meta, attrs, fmt.Errorf("%w: array %q has no metadata document", errs.ErrCorruptStore, name)
	}
	if err := json.Unmarshal(doc, &meta); err != nil {
		return meta, attrs, fmt.Errorf("%w: array %q metadata: %v", errs.ErrCorruptStore, name, err)
	}

	doc, ok = m.Metadata[name+"/.zattrs"]
	if !ok {
		return meta, attrs, fmt.Errorf("%w: array %q has no attribute document", errs.ErrCorruptStore, name)
	}
	if err := json.Unmarshal(doc, &attrs); err != nil {
		return meta, attrs, fmt.Errorf("%w: array %q attributes: %v", errs.ErrCorruptStore, name, err)
	}
	if len(attrs.Dimensions) != len(meta.Shape) {
		return meta, attrs, fmt.Errorf("%w: array %q labels %d of %d axes",
			errs.ErrCorruptStore, name, len(attrs.Dimensions), len(meta.Shape))
	}

	return meta, attrs, nil
}

// dtypeString renders the numpy-style dtype tag: byte order then kind and
// width, e.g. "<f8" for little-endian float64.
func dtypeString(t dataset.DType, engine endian.EndianEngine) (string, error) {
	order := "<"
	if engine == endian.Big() {
		order = ">"
	}
	switch t {
	case dataset.DTypeInt64:
		return order + "i8", nil
	case dataset.DTypeFloat64:
		return order + "f8", nil
	default:
		return "", fmt.Errorf("no dtype tag for %s", t)
	}
}

func parseDtype(tag string) (dataset.DType, endian.EndianEngine, error) {
	if len(tag) != 3 {
		return 0, nil, fmt.Errorf("unsupported dtype %q", tag)
	}

	var engine endian.EndianEngine
	switch tag[0] {
	case '<':
		engine = endian.Little()
	case '>':
		engine = endian.Big()
	default:
		return 0, nil, fmt.Errorf("unsupported byte order in dtype %q", tag)
	}

	switch tag[1:] {
	case "i8":
		return dataset.DTypeInt64, engine, nil
	case "f8":
		return dataset.DTypeFloat64, engine, nil
	default:
		return 0, nil, fmt.Errorf("unsupported dtype %q", tag)
	}
}

// compressorMeta maps a codec spec onto its manifest form; no compression
// stores as a null compressor.
func compressorMeta(spec compress.Spec) *CompressorMeta {
	if spec.Type == compress.TypeNone {
		return nil
	}

	return &CompressorMeta{ID: spec.Type.String(), Level: spec.Level}
}

func parseCompressor(meta *CompressorMeta) (compress.Spec, error) {
	if meta == nil {
		return compress.Spec{Type: compress.TypeNone}, nil
	}
	typ, err := compress.ParseType(meta.ID)
	if err != nil {
		return compress.Spec{}, err
	}
	spec := compress.Spec{Type: typ, Level: meta.Level}
	if err := spec.Validate(); err != nil {
		return compress.Spec{}, err
	}

	return spec, nil
}

// fillValueFor returns the manifest form of a dtype's fill value. Float
// non-finites follow the string encoding JSON requires.
func fillValueFor(t dataset.DType) any {
	switch t {
	case dataset.DTypeFloat64:
		return "NaN"
	case dataset.DTypeInt64:
		return 0
	default:
		return nil
	}
}

// decodeFillFloat interprets a manifest fill_value for a float array. A null
// fill means undefined and defaults to NaN.
func decodeFillFloat(v any) float64 {
	switch fill := v.(type) {
	case string:
		switch fill {
		case "Infinity":
			return math.Inf(1)
		case "-Infinity":
			return math.Inf(-1)
		}

		return math.NaN()
	case float64:
		return fill
	default:
		return math.NaN()
	}
}

// decodeFillInt interprets a manifest fill_value for an int array. A null
// fill defaults to zero.
func decodeFillInt(v any) int64 {
	if fill, ok := v.(float64); ok {
		return int64(fill)
	}

	return 0
}
