package assetstore

import (
	"fmt"

	"certassets.dev/internal/hashtree"
)

// onAssetChangeLocked is the certification engine (C7), run after
// every asset mutation while s.mu is already held. It mirrors
// original_source's on_asset_change function, including its exact
// early-return shape: the loop below only inspects the
// highest-priority *present* encoding, not every encoding, so a
// lower-priority encoding arriving after a higher-priority one is
// already certified is silently left uncertified (spec.md §4.7,
// scenario 5).
func (s *Store) onAssetChangeLocked(key string) {
	asset, ok := s.assets[key]
	if !ok {
		return
	}

	for _, name := range EncodingPriority {
		enc, present := asset.Encodings[name]
		if !present {
			continue
		}
		if enc.Certified {
			return
		}
		break
	}

	if len(asset.Encodings) == 0 {
		delete(s.chunkTrees, key)
		s.assetTree.Delete([]byte(key))
		s.publishRootLocked()
		return
	}

	for _, enc := range asset.Encodings {
		enc.Certified = false
	}

	for _, name := range EncodingPriority {
		enc, present := asset.Encodings[name]
		if !present {
			continue
		}
		s.certifyEncodingLocked(key, enc)
		return
	}

	// No known encoding name matched; fall back to an arbitrary one.
	// Go map iteration order is randomized, same unpredictability the
	// teacher's Rust HashMap iteration has here.
	for _, enc := range asset.Encodings {
		s.certifyEncodingLocked(key, enc)
		return
	}
}

func (s *Store) certifyEncodingLocked(key string, enc *AssetEncoding) {
	s.assetTree.Insert([]byte(key), enc.Sha256)
	s.publishRootLocked()
	enc.Certified = true
	s.setChunksToTreeLocked(key, enc.ContentChunks)
}

func (s *Store) publishRootLocked() {
	root := s.assetTree.RootHash()
	s.host.SetCertifiedData(hashtree.LabeledHash([]byte(HTTPAssetsLabel), root))
}

// setChunksToTreeLocked populates key's chunk-hash tree with
// (decimal(i) -> chunk.sha256) for every chunk, creating the tree on
// first use and preserving any entries already present.
func (s *Store) setChunksToTreeLocked(key string, chunks []ContentChunk) {
	tree, ok := s.chunkTrees[key]
	if !ok {
		tree = hashtree.New()
		s.chunkTrees[key] = tree
	}
	for i, c := range chunks {
		tree.Insert([]byte(fmt.Sprintf("%d", i)), c.Sha256)
	}
}
