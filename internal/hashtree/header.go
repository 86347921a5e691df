package hashtree

// HTTPAssetsLabel wraps a witness in the "http_assets" labeled node the
// IC-Certificate header's "tree" field expects, so a verifier checking
// the witness against the canister's published root hashes the same
// domain-separated structure the asset-hash tree was certified under.
func HTTPAssetsLabel(witness *Node) *Node {
	return newLabeled([]byte("http_assets"), witness)
}

// LabeledHash computes the digest of a Labeled(label, Pruned(sub))
// node without building the node itself — the certification engine
// publishes this value directly as certified data, rather than a full
// witness, the same way original_source's labeled_hash helper does.
func LabeledHash(label []byte, sub [32]byte) [32]byte {
	return hashLabeled(label, sub)
}
