// Package coreerr defines the sentinel errors every asset-store trap
// condition wraps. A canister has no process boundary to fail across —
// a failed call just traps and the host discards the call's mutations
// — so here each trap condition becomes a plain Go error returned up
// to the HTTP layer, which decides what status code and body it earns.
package coreerr

import "errors"

// NotFound-kind.
var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrNoIdentityEncoding  = errors.New("no identity encoding")
	ErrNoSuchEncoding      = errors.New("no such encoding")
	ErrBatchNotFound       = errors.New("batch not found")
	ErrAssetNotInChunkTree = errors.New("asset not found in chunks map")
)

// InvariantViolation-kind.
var (
	ErrAssetTooLarge         = errors.New("Asset too large. Use get() and get_chunk() instead.")
	ErrEncodingNeedsChunk    = errors.New("encoding must have at least one chunk")
	ErrChunkIndexOutOfBounds = errors.New("chunk index out of bounds")
	ErrContentTypeMismatch   = errors.New("create_asset: content type mismatch")
	ErrChunkAlreadyConsumed  = errors.New("commit_batch: chunk id reused or already consumed")
)

// Integrity-kind.
var (
	ErrSha256Mismatch        = errors.New("sha256 mismatch")
	ErrInconsistentHashes    = errors.New("merge_hash_trees: inconsistent hashes")
	ErrInconsistentLabels    = errors.New("merge_hash_trees: inconsistent labels")
	ErrInconsistentLeaves    = errors.New("merge_hash_trees: inconsistent leaves")
	ErrInconsistentStructure = errors.New("merge_hash_trees: inconsistent tree structure")
)

// Authorization-kind.
var ErrNotAuthorized = errors.New("Caller is not authorized")

// Certificate-kind.
var ErrNoDataCertificate = errors.New("no data certificate available")
