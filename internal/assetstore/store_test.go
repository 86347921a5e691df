package assetstore

import (
	"crypto/sha256"
	"errors"
	"testing"

	"certassets.dev/internal/coreerr"
)

func TestSingleShotStore(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	if err := s.Store(StoreArgs{Key: "/a.txt", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("hello")}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	body, err := s.Retrieve("/a.txt")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("Retrieve = %q, want hello", body)
	}

	list := s.List()
	if len(list) != 1 || len(list[0].Encodings) != 1 || list[0].Encodings[0].Length != 5 {
		t.Fatalf("List = %+v", list)
	}

	if h.setCount != 1 {
		t.Fatalf("expected the asset-hash tree root to change exactly once, got %d publishes", h.setCount)
	}
}

func TestChunkedUpload(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	batch := s.CreateBatch()
	c1, err := s.CreateChunk(CreateChunkArgs{BatchID: batch, Content: []byte("AAAA")})
	if err != nil {
		t.Fatalf("CreateChunk: %v", err)
	}
	c2, err := s.CreateChunk(CreateChunkArgs{BatchID: batch, Content: []byte("BBBB")})
	if err != nil {
		t.Fatalf("CreateChunk: %v", err)
	}

	err = s.CommitBatch(batch, []Operation{
		CreateAssetOp{Key: "/x", ContentType: "application/octet-stream"},
		SetAssetContentOp{Args: SetAssetContentArgs{Key: "/x", ContentEncoding: "identity", ChunkIDs: []uint64{c1, c2}}},
	})
	if err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	b0, err := s.GetChunk("/x", "identity", 0, nil)
	if err != nil || string(b0) != "AAAA" {
		t.Fatalf("GetChunk(0) = %q, %v", b0, err)
	}
	b1, err := s.GetChunk("/x", "identity", 1, nil)
	if err != nil || string(b1) != "BBBB" {
		t.Fatalf("GetChunk(1) = %q, %v", b1, err)
	}

	asset, _ := s.lookupAsset("/x")
	enc := asset.Encodings["identity"]
	tree, ok := s.chunkTrees["/x"]
	if !ok {
		t.Fatalf("expected a chunk-hash tree for /x")
	}
	if enc.Sha256 != tree.RootHash() {
		t.Fatalf("encoding digest must equal the chunk-hash tree root")
	}
}

func TestEncodingPriority(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	if err := s.Store(StoreArgs{Key: "/y", ContentType: "text/plain", ContentEncoding: "gzip", Content: []byte("gz")}); err != nil {
		t.Fatalf("Store gzip: %v", err)
	}
	if err := s.Store(StoreArgs{Key: "/y", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("id")}); err != nil {
		t.Fatalf("Store identity: %v", err)
	}

	asset, _ := s.lookupAsset("/y")
	if !asset.Encodings["identity"].Certified {
		t.Fatalf("identity must be certified after both encodings are set")
	}
	if asset.Encodings["gzip"].Certified {
		t.Fatalf("gzip must not remain certified once identity is present")
	}
}

func TestAuthorization(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	s.Bootstrap(h.principal)

	if !s.IsAuthorized(h.principal) {
		t.Fatalf("bootstrap principal must be authorized")
	}
	if s.IsAuthorized("someone-else") {
		t.Fatalf("unrelated principal must not be authorized")
	}

	if err := s.Authorize(h.principal, "someone-else"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !s.IsAuthorized("someone-else") {
		t.Fatalf("newly authorized principal must be authorized")
	}

	if err := s.Authorize("someone-else-entirely", "nobody"); !errors.Is(err, coreerr.ErrNotAuthorized) {
		t.Fatalf("Authorize from unauthorized caller = %v, want ErrNotAuthorized", err)
	}
}

func TestBatchExpiryGC(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	batch := s.CreateBatch()
	if _, err := s.CreateChunk(CreateChunkArgs{BatchID: batch, Content: []byte("x")}); err != nil {
		t.Fatalf("CreateChunk: %v", err)
	}

	h.advance(301_000_000_000)
	_ = s.CreateBatch() // drives the GC sweep

	if err := s.CommitBatch(batch, nil); !errors.Is(err, coreerr.ErrBatchNotFound) {
		t.Fatalf("CommitBatch on expired batch = %v, want ErrBatchNotFound", err)
	}
}

func TestSetAssetContentEmptyChunkListAborts(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	if err := s.CreateAsset("/z", "text/plain"); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	err := s.SetAssetContent(SetAssetContentArgs{Key: "/z", ContentEncoding: "identity"})
	if !errors.Is(err, coreerr.ErrEncodingNeedsChunk) {
		t.Fatalf("SetAssetContent with empty chunk list = %v, want ErrEncodingNeedsChunk", err)
	}
}

func TestCommitBatchReusedChunkIDAborts(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	batch := s.CreateBatch()
	c1, err := s.CreateChunk(CreateChunkArgs{BatchID: batch, Content: []byte("only-once")})
	if err != nil {
		t.Fatalf("CreateChunk: %v", err)
	}

	err = s.CommitBatch(batch, []Operation{
		CreateAssetOp{Key: "/reuse", ContentType: "text/plain"},
		SetAssetContentOp{Args: SetAssetContentArgs{Key: "/reuse", ContentEncoding: "identity", ChunkIDs: []uint64{c1}}},
		SetAssetContentOp{Args: SetAssetContentArgs{Key: "/reuse", ContentEncoding: "gzip", ChunkIDs: []uint64{c1}}},
	})
	if !errors.Is(err, coreerr.ErrChunkAlreadyConsumed) {
		t.Fatalf("CommitBatch reusing a chunk id = %v, want ErrChunkAlreadyConsumed", err)
	}
}

func TestGetChunksInfoAbsentEncodingReturnsEmpty(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	if err := s.CreateAsset("/empty", "text/plain"); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}

	total, chunks, err := s.GetChunksInfo("/empty", "identity")
	if err != nil {
		t.Fatalf("GetChunksInfo on absent encoding must not error, got %v", err)
	}
	if total != 0 || len(chunks) != 0 {
		t.Fatalf("GetChunksInfo on absent encoding = %d, %v, want 0, []", total, chunks)
	}
}

func TestStoreSha256Mismatch(t *testing.T) {
	h := newFakeHost()
	s := New(h)

	wrong := sha256.Sum256([]byte("not the content"))
	err := s.Store(StoreArgs{Key: "/m", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("real content"), Sha256: &wrong})
	if !errors.Is(err, coreerr.ErrSha256Mismatch) {
		t.Fatalf("Store with wrong sha256 = %v, want ErrSha256Mismatch", err)
	}
}

func TestClearPreservesAuthorizationList(t *testing.T) {
	h := newFakeHost()
	s := New(h)
	s.Bootstrap(h.principal)

	if err := s.Store(StoreArgs{Key: "/a", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("x")}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if !s.IsAuthorized(h.principal) {
		t.Fatalf("Clear must not remove authorized principals")
	}
	if len(s.List()) != 0 {
		t.Fatalf("Clear must remove all assets")
	}
	if _, err := s.Retrieve("/a"); !errors.Is(err, coreerr.ErrAssetNotFound) {
		t.Fatalf("Retrieve after Clear = %v, want ErrAssetNotFound", err)
	}
}
