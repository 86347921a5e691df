package assetstore

import (
	"context"
	"encoding/json"
	"fmt"

	"certassets.dev/internal/hashtree"
	"certassets.dev/internal/rcbytes"
)

// snapshotContentChunk, snapshotEncoding, snapshotAsset, and
// snapshot mirror the persisted state layout spec.md §6 names
// ({authorized, stable_assets}), using []byte instead of [32]byte so
// encoding/json renders digests as base64 rather than arrays of
// numbers.
type snapshotContentChunk struct {
	StartByte uint64 `json:"start_byte"`
	Content   []byte `json:"content"`
	Sha256    []byte `json:"sha256"`
}

type snapshotEncoding struct {
	Modified      int64                   `json:"modified"`
	ContentChunks []snapshotContentChunk  `json:"content_chunks"`
	TotalLength   uint64                  `json:"total_length"`
	Certified     bool                    `json:"certified"`
	Sha256        []byte                  `json:"sha256"`
}

type snapshotAsset struct {
	ContentType string                      `json:"content_type"`
	Encodings   map[string]snapshotEncoding `json:"encodings"`
}

type snapshot struct {
	Authorized   []string                 `json:"authorized"`
	StableAssets map[string]snapshotAsset `json:"stable_assets"`
}

// SaveSnapshot serializes the store's persisted state (assets and the
// authorization list; batches and chunks are intentionally dropped,
// matching spec.md's "in-flight uploads are lost across upgrades")
// and writes it to storage under key.
func (s *Store) SaveSnapshot(ctx context.Context, storage Storage, key string) error {
	s.mu.Lock()
	snap := s.buildSnapshotLocked()
	s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("assetstore: marshal snapshot: %w", err)
	}
	return storage.Set(ctx, key, data)
}

func (s *Store) buildSnapshotLocked() snapshot {
	snap := snapshot{
		Authorized:   make([]string, len(s.authorizedList)),
		StableAssets: make(map[string]snapshotAsset, len(s.assets)),
	}
	for i, p := range s.authorizedList {
		snap.Authorized[i] = string(p)
	}
	for key, asset := range s.assets {
		encodings := make(map[string]snapshotEncoding, len(asset.Encodings))
		for name, enc := range asset.Encodings {
			chunks := make([]snapshotContentChunk, len(enc.ContentChunks))
			for i, c := range enc.ContentChunks {
				chunks[i] = snapshotContentChunk{
					StartByte: c.StartByte,
					Content:   c.Content.Bytes(),
					Sha256:    c.Sha256[:],
				}
			}
			encodings[name] = snapshotEncoding{
				Modified:      enc.Modified,
				ContentChunks: chunks,
				TotalLength:   enc.TotalLength,
				Certified:     enc.Certified,
				Sha256:        enc.Sha256[:],
			}
		}
		snap.StableAssets[key] = snapshotAsset{ContentType: asset.ContentType, Encodings: encodings}
	}
	return snap
}

// LoadSnapshot restores state previously written by SaveSnapshot, then
// clears every certified flag and re-runs certification on each asset
// so the Merkle trees and the host-published root are rebuilt
// deterministically rather than trusted from the snapshot (spec.md
// §4.9 post_upgrade).
func (s *Store) LoadSnapshot(ctx context.Context, storage Storage, key string) error {
	exists, err := storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("assetstore: check snapshot existence: %w", err)
	}
	if !exists {
		return nil
	}

	data, err := storage.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("assetstore: read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("assetstore: unmarshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.authorized = make(map[Principal]bool, len(snap.Authorized))
	s.authorizedList = make([]Principal, len(snap.Authorized))
	for i, p := range snap.Authorized {
		principal := Principal(p)
		s.authorized[principal] = true
		s.authorizedList[i] = principal
	}

	s.assets = make(map[string]*Asset, len(snap.StableAssets))
	s.chunkTrees = make(map[string]*hashtree.Tree)
	s.assetTree = hashtree.New()
	for key, sa := range snap.StableAssets {
		encodings := make(map[string]*AssetEncoding, len(sa.Encodings))
		for name, se := range sa.Encodings {
			chunks := make([]ContentChunk, len(se.ContentChunks))
			for i, sc := range se.ContentChunks {
				var digest [32]byte
				copy(digest[:], sc.Sha256)
				chunks[i] = ContentChunk{StartByte: sc.StartByte, Content: rcbytes.New(sc.Content), Sha256: digest}
			}
			var encDigest [32]byte
			copy(encDigest[:], se.Sha256)
			encodings[name] = &AssetEncoding{
				ContentChunks: chunks,
				TotalLength:   se.TotalLength,
				Modified:      se.Modified,
				Certified:     false,
				Sha256:        encDigest,
			}
		}
		s.assets[key] = &Asset{ContentType: sa.ContentType, Encodings: encodings}
	}

	for key, asset := range s.assets {
		for _, enc := range asset.Encodings {
			s.setChunksToTreeLocked(key, enc.ContentChunks)
		}
		s.onAssetChangeLocked(key)
	}
	return nil
}
