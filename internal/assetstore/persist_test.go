package assetstore

import (
	"context"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost()
	s := New(h)
	s.Bootstrap(h.principal)

	if err := s.Store(StoreArgs{Key: "/a.txt", ContentType: "text/plain", ContentEncoding: "identity", Content: []byte("hello")}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	dir := t.TempDir()
	storage := NewFsStorage(dir)

	if err := s.SaveSnapshot(ctx, storage, "snapshot.json"); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored := New(h)
	if err := restored.LoadSnapshot(ctx, storage, "snapshot.json"); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if !restored.IsAuthorized(h.principal) {
		t.Fatalf("restored store must preserve the authorization list")
	}

	body, err := restored.Retrieve("/a.txt")
	if err != nil {
		t.Fatalf("Retrieve after restore: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("Retrieve after restore = %q, want hello", body)
	}

	list := restored.List()
	if len(list) != 1 {
		t.Fatalf("List after restore = %+v", list)
	}
}

func TestLoadSnapshotMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newFakeHost()
	s := New(h)
	storage := NewFsStorage(t.TempDir())

	if err := s.LoadSnapshot(ctx, storage, "does-not-exist.json"); err != nil {
		t.Fatalf("LoadSnapshot on missing key: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("expected empty store after loading a missing snapshot")
	}
}
