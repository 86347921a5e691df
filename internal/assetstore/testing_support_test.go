package assetstore

import (
	"net/http"
	"sync/atomic"
)

// fakeHost is a minimal host.Host for tests: deterministic clock,
// no-op certified data (captured for assertions), fixed caller.
type fakeHost struct {
	now       int64
	principal Principal

	lastRoot [32]byte
	setCount int32
}

func newFakeHost() *fakeHost {
	return &fakeHost{now: 1_000_000_000, principal: "test-principal"}
}

func (f *fakeHost) Time() int64 { return f.now }

func (f *fakeHost) advance(ns int64) { f.now += ns }

func (f *fakeHost) Caller(r *http.Request) (Principal, error) {
	return f.principal, nil
}

func (f *fakeHost) SetCertifiedData(root [32]byte) {
	f.lastRoot = root
	atomic.AddInt32(&f.setCount, 1)
}

func (f *fakeHost) DataCertificate() ([]byte, bool) {
	return []byte("fake-certificate"), true
}

func (f *fakeHost) Principal() Principal { return f.principal }
