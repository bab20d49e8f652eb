// Package compress provides the byte-oriented compression codecs applied to
// store chunk payloads.
//
// A chunk is compressed as one independent payload: no framing is shared
// between chunks, so any chunk can be read back without touching its
// neighbors. The codec and its level are recorded per array in the store
// manifest and must round-trip exactly.
//
// Supported algorithms:
//   - None: payload stored verbatim
//   - Zstd: best ratio, the write default (pure-Go by default; the gozstd
//     build tag swaps in the cgo libzstd binding)
//   - S2: fast Snappy-superset, levels 1-3 (fast/better/best)
//   - LZ4: block format, HC levels 1-9
//   - Snappy: legacy block format, kept for stores produced by older writers
//   - Brotli: levels 1-11
//
// Level 0 always selects the codec's own default level.
package compress
