package assetstore

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"certassets.dev/internal/coreerr"
	"certassets.dev/internal/hashtree"
	"certassets.dev/internal/host"
	"certassets.dev/internal/rcbytes"
)

// Store is the single process-wide handle every update/query entry
// point borrows, standing in for original_source's top-level State.
// One mutex covers all of it: the host only ever runs one message at
// a time against a canister, so a single critical section per call is
// enough to preserve every invariant spec.md §5 and §8 name.
type Store struct {
	mu sync.Mutex

	host host.Host

	assets     map[string]*Asset
	assetTree  *hashtree.Tree
	chunkTrees map[string]*hashtree.Tree

	batches     map[uint64]*Batch
	chunks      map[uint64]*Chunk
	nextBatchID uint64
	nextChunkID uint64

	authorized     map[Principal]bool
	authorizedList []Principal
}

// New returns an empty store bound to h, ready for init()/Bootstrap or
// for LoadSnapshot to populate it from persisted state.
func New(h host.Host) *Store {
	return &Store{
		host:        h,
		assets:      make(map[string]*Asset),
		assetTree:   hashtree.New(),
		chunkTrees:  make(map[string]*hashtree.Tree),
		batches:     make(map[uint64]*Batch),
		chunks:      make(map[uint64]*Chunk),
		nextBatchID: 1,
		nextChunkID: 1,
		authorized:  make(map[Principal]bool),
	}
}

// CreateAsset inserts an empty asset at key, or no-ops if one already
// exists with the same content type.
func (s *Store) CreateAsset(key, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAssetLocked(key, contentType)
}

func (s *Store) createAssetLocked(key, contentType string) error {
	if existing, ok := s.assets[key]; ok {
		if existing.ContentType != contentType {
			return coreerr.ErrContentTypeMismatch
		}
		return nil
	}
	s.assets[key] = &Asset{ContentType: contentType, Encodings: make(map[string]*AssetEncoding)}
	return nil
}

// SetAssetContentArgs is set_asset_content's argument record.
type SetAssetContentArgs struct {
	Key             string
	ContentEncoding string
	ChunkIDs        []uint64
	Sha256          *[32]byte
}

// SetAssetContent assembles the chunk_ids (each consumed from the
// chunk table) into a new AssetEncoding, then triggers certification.
func (s *Store) SetAssetContent(args SetAssetContentArgs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAssetContentLocked(args)
}

func (s *Store) setAssetContentLocked(args SetAssetContentArgs) error {
	if len(args.ChunkIDs) == 0 {
		return coreerr.ErrEncodingNeedsChunk
	}
	asset, ok := s.assets[args.Key]
	if !ok {
		return coreerr.ErrAssetNotFound
	}

	chunks := make([]ContentChunk, 0, len(args.ChunkIDs))
	var startByte uint64
	for _, id := range args.ChunkIDs {
		c, ok := s.chunks[id]
		if !ok {
			return coreerr.ErrChunkAlreadyConsumed
		}
		delete(s.chunks, id)
		chunks = append(chunks, ContentChunk{
			StartByte: startByte,
			Content:   c.Content,
			Sha256:    c.Sha256,
		})
		startByte += uint64(c.Content.Len())
	}

	encoding := &AssetEncoding{
		ContentChunks: chunks,
		TotalLength:   startByte,
		Modified:      s.host.Time(),
		Certified:     false,
	}

	chunkTree := hashtree.New()
	for i, c := range chunks {
		chunkTree.Insert([]byte(fmt.Sprintf("%d", i)), c.Sha256)
	}

	if args.Sha256 != nil {
		encoding.Sha256 = *args.Sha256
	} else {
		encoding.Sha256 = chunkTree.RootHash()
	}

	asset.Encodings[args.ContentEncoding] = encoding
	s.chunkTrees[args.Key] = chunkTree

	s.onAssetChangeLocked(args.Key)
	return nil
}

// UnsetAssetContent removes encoding from key's asset, re-certifying
// if it existed.
func (s *Store) UnsetAssetContent(key, encoding string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsetAssetContentLocked(key, encoding)
}

func (s *Store) unsetAssetContentLocked(key, encoding string) error {
	asset, ok := s.assets[key]
	if !ok {
		return coreerr.ErrAssetNotFound
	}
	if _, ok := asset.Encodings[encoding]; !ok {
		return nil
	}
	delete(asset.Encodings, encoding)
	s.onAssetChangeLocked(key)
	return nil
}

// DeleteAsset removes key entirely, including its chunk-hash tree and
// asset-hash entry.
func (s *Store) DeleteAsset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAssetLocked(key)
}

func (s *Store) deleteAssetLocked(key string) error {
	delete(s.assets, key)
	delete(s.chunkTrees, key)
	s.assetTree.Delete([]byte(key))
	s.publishRootLocked()
	return nil
}

// Clear empties assets, chunks, and batches and resets both id
// counters to 1. The authorization list survives.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Store) clearLocked() error {
	for key := range s.assets {
		s.assetTree.Delete([]byte(key))
	}
	s.assets = make(map[string]*Asset)
	s.chunkTrees = make(map[string]*hashtree.Tree)
	s.batches = make(map[uint64]*Batch)
	s.chunks = make(map[uint64]*Chunk)
	s.nextBatchID = 1
	s.nextChunkID = 1

	s.publishRootLocked()
	return nil
}

// StoreArgs is store()'s argument record.
type StoreArgs struct {
	Key             string
	ContentType     string
	ContentEncoding string
	Content         []byte
	Sha256          *[32]byte
}

// Store is the single-call upload path: it creates/updates key with a
// one-chunk encoding and runs certification on the asset, which
// certifies the new encoding only if it is the highest-priority one
// present.
func (s *Store) Store(args StoreArgs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := sha256.Sum256(args.Content)
	if args.Sha256 != nil && *args.Sha256 != digest {
		return coreerr.ErrSha256Mismatch
	}

	if err := s.createAssetLocked(args.Key, args.ContentType); err != nil {
		return err
	}

	chunkID := s.nextChunkID
	s.nextChunkID++
	s.chunks[chunkID] = &Chunk{Content: rcbytes.New(args.Content), Sha256: digest}

	return s.setAssetContentLocked(SetAssetContentArgs{
		Key:             args.Key,
		ContentEncoding: args.ContentEncoding,
		ChunkIDs:        []uint64{chunkID},
		Sha256:          &digest,
	})
}

// Retrieve returns the identity encoding's single chunk, erroring if
// the asset is missing, identity is missing, or identity spans more
// than one chunk.
func (s *Store) Retrieve(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[key]
	if !ok {
		return nil, coreerr.ErrAssetNotFound
	}
	encoding, ok := asset.Encodings["identity"]
	if !ok {
		return nil, coreerr.ErrNoIdentityEncoding
	}
	if len(encoding.ContentChunks) != 1 {
		return nil, coreerr.ErrAssetTooLarge
	}
	return encoding.ContentChunks[0].Content.Bytes(), nil
}

// Get returns the first encoding present among acceptEncodings, in
// caller-supplied order.
func (s *Store) Get(key string, acceptEncodings []string) (EncodedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[key]
	if !ok {
		return EncodedAsset{}, coreerr.ErrAssetNotFound
	}

	for _, name := range acceptEncodings {
		encoding, ok := asset.Encodings[name]
		if !ok {
			continue
		}
		var first rcbytes.Bytes
		if len(encoding.ContentChunks) > 0 {
			first = encoding.ContentChunks[0].Content
		}
		return EncodedAsset{
			Content:         first,
			ContentType:     asset.ContentType,
			ContentEncoding: name,
			TotalLength:     encoding.TotalLength,
			Sha256:          encoding.Sha256,
		}, nil
	}
	return EncodedAsset{}, coreerr.ErrNoSuchEncoding
}

// GetChunk returns the index-th chunk's content, optionally verifying
// sha256 against the whole-encoding digest (not a per-chunk digest).
func (s *Store) GetChunk(key, encodingName string, index int, expected *[32]byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[key]
	if !ok {
		return nil, coreerr.ErrAssetNotFound
	}
	encoding, ok := asset.Encodings[encodingName]
	if !ok {
		return nil, coreerr.ErrNoSuchEncoding
	}
	if expected != nil && *expected != encoding.Sha256 {
		return nil, coreerr.ErrSha256Mismatch
	}
	if index < 0 || index >= len(encoding.ContentChunks) {
		return nil, coreerr.ErrChunkIndexOutOfBounds
	}
	return encoding.ContentChunks[index].Content.Bytes(), nil
}

// GetChunksInfo enumerates encodingName's chunk descriptors, returning
// an empty list (not an error) if the encoding is absent — preserving
// the asymmetry original_source has relative to GetChunk/Retrieve.
func (s *Store) GetChunksInfo(key, encodingName string) (totalLength uint64, chunks []ChunkInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[key]
	if !ok {
		return 0, nil, coreerr.ErrAssetNotFound
	}
	encoding, ok := asset.Encodings[encodingName]
	if !ok {
		return 0, nil, nil
	}
	out := make([]ChunkInfo, len(encoding.ContentChunks))
	for i, c := range encoding.ContentChunks {
		out[i] = ChunkInfo{Index: i, Length: uint64(c.Content.Len())}
	}
	return encoding.TotalLength, out, nil
}

// List returns every asset's descriptor, each encoding sorted by name.
func (s *Store) List() []AssetDetails {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.assets))
	for k := range s.assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]AssetDetails, 0, len(keys))
	for _, key := range keys {
		asset := s.assets[key]
		names := make([]string, 0, len(asset.Encodings))
		for name := range asset.Encodings {
			names = append(names, name)
		}
		sort.Strings(names)

		details := make([]AssetEncodingDetails, 0, len(names))
		for _, name := range names {
			enc := asset.Encodings[name]
			details = append(details, AssetEncodingDetails{
				ContentEncoding: name,
				Sha256:          enc.Sha256,
				Length:          enc.TotalLength,
				Modified:        enc.Modified,
			})
		}
		out = append(out, AssetDetails{Key: key, ContentType: asset.ContentType, Encodings: details})
	}
	return out
}

// lookupAsset is a read-only helper for the HTTP resolver, which needs
// direct map access that doesn't fit the public mutation-shaped API.
func (s *Store) lookupAsset(key string) (*Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[key]
	return a, ok
}
