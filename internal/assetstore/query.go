package assetstore

import (
	"fmt"

	"certassets.dev/internal/hashtree"
)

// LookupAsset exposes read-only access to a single asset for the HTTP
// resolver, which needs the raw encodings map rather than the
// mutation-shaped public API.
func (s *Store) LookupAsset(key string) (*Asset, bool) {
	return s.lookupAsset(key)
}

// AssetHashEntry reports whether key has a certified entry in the
// asset-hash tree and, if so, its digest.
func (s *Store) AssetHashEntry(key string) ([32]byte, bool) {
	return s.assetTree.Get([]byte(key))
}

// AssetWitness returns a pruned proof of presence or absence of key in
// the asset-hash tree.
func (s *Store) AssetWitness(key string) *hashtree.Node {
	return s.assetTree.Witness([]byte(key))
}

// ChunkWitness returns a pruned proof for chunk index of key's
// chunk-hash tree. The second return is false if key has no
// chunk-hash tree at all (spec.md's "asset not found in chunks map").
func (s *Store) ChunkWitness(key string, index int) (*hashtree.Node, bool) {
	s.mu.Lock()
	tree, ok := s.chunkTrees[key]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return tree.Witness([]byte(fmt.Sprintf("%d", index))), true
}
