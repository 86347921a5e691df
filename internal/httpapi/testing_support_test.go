package httpapi

import (
	"net/http"

	"certassets.dev/internal/host"
)

// fakeHost is a minimal host.Host for tests: deterministic clock, a
// fixed caller unless overridden by the X-Principal header, and a
// certificate that's always available once at least one
// SetCertifiedData call has happened.
type fakeHost struct {
	now       int64
	principal host.Principal
	hasCert   bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{now: 1_000_000_000, principal: "test-principal"}
}

func (f *fakeHost) Time() int64 { return f.now }

func (f *fakeHost) Caller(r *http.Request) (host.Principal, error) {
	if v := r.Header.Get("X-Principal"); v != "" {
		return host.Principal(v), nil
	}
	return "2vxsx-fae", nil
}

func (f *fakeHost) SetCertifiedData(root [32]byte) {
	f.hasCert = true
}

func (f *fakeHost) DataCertificate() ([]byte, bool) {
	if !f.hasCert {
		return nil, false
	}
	return []byte("fake-certificate"), true
}

func (f *fakeHost) Principal() host.Principal { return f.principal }
