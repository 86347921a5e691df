package hashtree

import (
	"bytes"

	"certassets.dev/internal/coreerr"
)

// Merge combines two pruned witnesses of the same underlying tree into
// one, keeping whichever side reveals more detail at each position.
// This is how the resolver builds the SPA-fallback certificate: an
// absence witness for the requested path merged with a presence
// witness for "/index.html" (spec.md, build_http_response).
func Merge(a, b *Node) (*Node, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	if a.Kind == KindPruned {
		return merged(a, b)
	}
	if b.Kind == KindPruned {
		return merged(b, a)
	}

	if a.Kind != b.Kind {
		return nil, coreerr.ErrInconsistentStructure
	}

	switch a.Kind {
	case KindEmpty:
		return a, nil
	case KindLeaf:
		if !bytes.Equal(a.Data, b.Data) {
			return nil, coreerr.ErrInconsistentLeaves
		}
		return a, nil
	case KindLabeled:
		if !bytes.Equal(a.Label, b.Label) {
			return nil, coreerr.ErrInconsistentLabels
		}
		sub, err := Merge(a.Sub, b.Sub)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindLabeled, Label: a.Label, Sub: sub, Hash: a.Hash}, nil
	case KindFork:
		left, err := Merge(a.Left, b.Left)
		if err != nil {
			return nil, err
		}
		right, err := Merge(a.Right, b.Right)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindFork, Left: left, Right: right, Hash: a.Hash}, nil
	default:
		return nil, coreerr.ErrInconsistentStructure
	}
}

// merged picks the detailed side once it's confirmed to agree with the
// pruned side's recorded digest.
func merged(pruned, detailed *Node) (*Node, error) {
	if pruned.Hash != detailed.Hash {
		return nil, coreerr.ErrInconsistentHashes
	}
	return detailed, nil
}
