// Package assetstore holds the canonical asset table (C6), the
// upload/batch lifecycle that feeds it (C5), and the certification
// engine that keeps the two Merkle trees in sync with it (C7). It
// mirrors original_source's State: one process-wide struct guarded by
// a single mutex standing in for the canister runtime's single-message
// scheduling guarantee (spec.md §5).
package assetstore

import (
	"certassets.dev/internal/host"
	"certassets.dev/internal/rcbytes"
)

// Principal is re-exported so callers don't need to import host
// directly just to name a caller.
type Principal = host.Principal

// EncodingPriority is the fixed order the certification engine and
// the resolver's certificate-header chunk lookup both use to pick a
// winning encoding among those present on an asset.
var EncodingPriority = []string{"identity", "gzip", "compress", "deflate", "br"}

// IndexFallbackPath is the SPA fallback target the HTTP resolver
// serves when the requested path has no asset-hash entry.
const IndexFallbackPath = "/index.html"

// HTTPAssetsLabel is the ASCII label the certified root is published
// under, and the label the resolver's "tree" witness is nested under.
const HTTPAssetsLabel = "http_assets"

// BatchExpiry is how long an idle batch survives before the next
// create_batch call sweeps it and its chunks.
const BatchExpiry = 300_000_000_000 // ns, spec.md §6 Constants

// ContentChunk is one immutable segment of an assembled encoding. Its
// content is a cheaply-cloneable rcbytes.Bytes rather than a raw
// []byte: the same chunk is read by Get/GetChunk/StreamingCallback and
// by every concurrent caller of those, without each copying it (spec.md
// §3/§4.1).
type ContentChunk struct {
	StartByte uint64
	Content   rcbytes.Bytes
	Sha256    [32]byte
}

// EndByte is the inclusive last byte offset this chunk covers.
func (c ContentChunk) EndByte() uint64 {
	return c.StartByte + uint64(c.Content.Len()) - 1
}

// AssetEncoding is one content representation of an Asset.
type AssetEncoding struct {
	ContentChunks []ContentChunk
	TotalLength   uint64
	Modified      int64
	Certified     bool
	Sha256        [32]byte
}

// Asset is the canonical per-path record: a content type and at most
// one AssetEncoding per encoding name.
type Asset struct {
	ContentType string
	Encodings   map[string]*AssetEncoding
}

// AssetEncodingDetails is one entry of list()'s per-asset encoding
// descriptor.
type AssetEncodingDetails struct {
	ContentEncoding string
	Sha256          [32]byte
	Length          uint64
	Modified        int64
}

// AssetDetails is one entry of list()'s result.
type AssetDetails struct {
	Key         string
	ContentType string
	Encodings   []AssetEncodingDetails
}

// EncodedAsset is get()'s result: the first matching encoding's
// leading chunk plus enough metadata to request the rest via
// get_chunk.
type EncodedAsset struct {
	Content         rcbytes.Bytes
	ContentType     string
	ContentEncoding string
	TotalLength     uint64
	Sha256          [32]byte
}

// ChunkInfo is one entry of get_chunks_info's chunk descriptor list.
type ChunkInfo struct {
	Index  int
	Length uint64
}

// Batch is a transient upload context.
type Batch struct {
	ExpiresAt int64
}

// Chunk is transient pre-commit storage, owned by exactly one Batch
// until it's consumed by a commit or dropped by batch expiry.
type Chunk struct {
	BatchID uint64
	Content rcbytes.Bytes
	Sha256  [32]byte
}
