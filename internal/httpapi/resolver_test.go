package httpapi

import (
	"strings"
	"testing"

	"certassets.dev/internal/assetstore"
	"certassets.dev/internal/urlpath"
)

func newTestServer(t *testing.T) (*Server, *assetstore.Store, *fakeHost) {
	t.Helper()
	h := newFakeHost()
	store := assetstore.New(h)
	store.Bootstrap(h.principal)
	srv := New(store, h, "")
	return srv, store, h
}

func headerValue(resp Response, name string) (string, bool) {
	for _, h := range resp.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

func TestResolveIdentityFullContent(t *testing.T) {
	srv, store, _ := newTestServer(t)
	if err := store.Store(assetstore.StoreArgs{Key: "/a.txt", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("hello world")}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	resp := srv.Resolve("/a.txt", []string{"gzip"}, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Body.String() != "hello world" {
		t.Fatalf("Body = %q", resp.Body.String())
	}
	if _, ok := headerValue(resp, "Content-Encoding"); ok {
		t.Fatalf("identity responses must not set Content-Encoding")
	}
	if _, ok := headerValue(resp, "IC-Certificate"); !ok {
		t.Fatalf("expected an IC-Certificate header")
	}
}

func TestResolveRangeRequest(t *testing.T) {
	srv, store, _ := newTestServer(t)
	batch := store.CreateBatch()
	c1, _ := store.CreateChunk(assetstore.CreateChunkArgs{BatchID: batch, Content: []byte("AAAA")})
	c2, _ := store.CreateChunk(assetstore.CreateChunkArgs{BatchID: batch, Content: []byte("BBBB")})
	if err := store.CommitBatch(batch, []assetstore.Operation{
		assetstore.CreateAssetOp{Key: "/big", ContentType: "application/octet-stream"},
		assetstore.SetAssetContentOp{Args: assetstore.SetAssetContentArgs{Key: "/big", ContentEncoding: "identity", ChunkIDs: []uint64{c1, c2}}},
	}); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	rng, ok := urlpath.First("bytes=4-7")
	if !ok {
		t.Fatalf("First failed to parse range")
	}
	resp := srv.Resolve("/big", []string{"identity"}, &rng)
	if resp.StatusCode != 206 {
		t.Fatalf("StatusCode = %d, want 206", resp.StatusCode)
	}
	if resp.Body.String() != "BBBB" {
		t.Fatalf("Body = %q, want BBBB", resp.Body.String())
	}
	cr, ok := headerValue(resp, "Content-Range")
	if !ok || !strings.HasPrefix(cr, "bytes 4-7/8") {
		t.Fatalf("Content-Range = %q", cr)
	}
	if _, ok := headerValue(resp, "Accept-Ranges"); !ok {
		t.Fatalf("expected Accept-Ranges on a 206")
	}
}

func TestResolveSPAFallback(t *testing.T) {
	srv, store, _ := newTestServer(t)
	if err := store.Store(assetstore.StoreArgs{Key: assetstore.IndexFallbackPath, ContentType: "text/html", ContentEncoding: "identity", Content: []byte("<html>app</html>")}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	resp := srv.Resolve("/some/client/route", []string{"identity"}, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Body.String() != "<html>app</html>" {
		t.Fatalf("Body = %q", resp.Body.String())
	}
}

func TestResolveEncodingMismatchFallback(t *testing.T) {
	srv, store, _ := newTestServer(t)
	if err := store.Store(assetstore.StoreArgs{Key: "/y", ContentType: "text/plain", ContentEncoding: "gzip", Content: []byte("gz-bytes")}); err != nil {
		t.Fatalf("Store gzip: %v", err)
	}
	if err := store.Store(assetstore.StoreArgs{Key: "/y", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("id-bytes")}); err != nil {
		t.Fatalf("Store identity: %v", err)
	}

	resp := srv.Resolve("/y", []string{"gzip"}, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	label, _ := headerValue(resp, "Content-Encoding")
	if label != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip (mislabeled per the preserved quirk)", label)
	}
	if resp.Body.String() != "id-bytes" {
		t.Fatalf("Body = %q, want id-bytes (identity bytes served under the gzip label)", resp.Body.String())
	}
}

func TestResolveNotFound(t *testing.T) {
	srv, store, _ := newTestServer(t)
	if err := store.Store(assetstore.StoreArgs{Key: "/exists", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("x")}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	resp := srv.Resolve("/does/not/exist", []string{"identity"}, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if _, ok := headerValue(resp, "IC-Certificate"); !ok {
		t.Fatalf("a 404 must still carry a certified absence witness")
	}
}

func TestResolveDecodeError(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := srv.Resolve("/bad%", []string{"identity"}, nil)
	if resp.StatusCode != 400 {
		t.Fatalf("StatusCode = %d, want 400", resp.StatusCode)
	}
}
