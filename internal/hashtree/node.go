// Package hashtree implements the ordered key -> digest map and pruned
// Merkle witness structure spec.md's hash-tree façade (C4) wraps: the
// "red-black Merkle-tree library" spec.md treats as an abstract,
// out-of-scope ordered map with witness/root_hash. No library in the
// retrieval pack offers that shape (see DESIGN.md), so it is
// implemented here directly, following the node-variant structure of
// dfinity's certified-map HashTree (Empty/Fork/Labeled/Leaf/Pruned).
package hashtree

import "crypto/sha256"

// Kind tags which of the five HashTree variants a Node holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindFork
	KindLabeled
	KindLeaf
	KindPruned
)

// Node is one variant of the pruned Merkle witness tree. Only the
// fields relevant to Kind are populated.
type Node struct {
	Kind  Kind
	Label []byte // KindLabeled
	Left  *Node  // KindFork
	Right *Node  // KindFork
	Sub   *Node  // KindLabeled
	Data  []byte // KindLeaf
	Hash  [32]byte
}

// Domain-separation prefixes from the IC hash-tree specification. Each
// variant hashes a distinct tag so a Leaf digest can never collide
// with a Fork digest of the same bytes.
var (
	tagEmpty   = []byte("ic-hashtree-empty")
	tagFork    = []byte("ic-hashtree-fork")
	tagLabeled = []byte("ic-hashtree-labeled")
	tagLeaf    = []byte("ic-hashtree-leaf")
)

func hashEmpty() [32]byte {
	return sha256.Sum256(tagEmpty)
}

func hashFork(l, r [32]byte) [32]byte {
	h := sha256.New()
	h.Write(tagFork)
	h.Write(l[:])
	h.Write(r[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashLabeled(label []byte, sub [32]byte) [32]byte {
	h := sha256.New()
	h.Write(tagLabeled)
	h.Write(label)
	h.Write(sub[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashLeaf(data []byte) [32]byte {
	h := sha256.New()
	h.Write(tagLeaf)
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func newEmpty() *Node {
	return &Node{Kind: KindEmpty, Hash: hashEmpty()}
}

func newLeaf(data []byte) *Node {
	return &Node{Kind: KindLeaf, Data: data, Hash: hashLeaf(data)}
}

func newLabeled(label []byte, sub *Node) *Node {
	return &Node{Kind: KindLabeled, Label: label, Sub: sub, Hash: hashLabeled(label, sub.Hash)}
}

func newFork(l, r *Node) *Node {
	return &Node{Kind: KindFork, Left: l, Right: r, Hash: hashFork(l.Hash, r.Hash)}
}

func newPruned(h [32]byte) *Node {
	return &Node{Kind: KindPruned, Hash: h}
}
