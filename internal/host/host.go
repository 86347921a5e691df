// Package host stands in for the system API a canister gets for free
// from its runtime: wall-clock time, caller identity, and the
// certified-data/data-certificate pair the platform signs over. A
// plain HTTP server has no such runtime underneath it, so this package
// gives the asset store Go-native equivalents, grounded in the
// teacher's own signing idiom (internal/sunlight's ecdsa.PrivateKey
// tree-head signatures) rather than pulling in the IC's SDK.
package host

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/cryptobyte"
)

// Principal identifies a caller. It has no further structure here;
// spec.md treats principals as opaque values authorize() compares.
type Principal string

const anonymousPrincipal Principal = "2vxsx-fae" // IC's well-known anonymous principal, reused as a recognizable sentinel.

// Host is the abstraction the asset store's update/query handlers
// consult instead of talking to a canister runtime directly.
type Host interface {
	// Time returns the current time as nanoseconds since the epoch.
	Time() int64
	// Caller extracts the calling principal from an inbound request.
	Caller(r *http.Request) (Principal, error)
	// SetCertifiedData publishes root as the 32-byte value the next
	// certificate will attest to. Valid to call at any time; only its
	// effect on the next DataCertificate matters.
	SetCertifiedData(root [32]byte)
	// DataCertificate returns the most recently issued certificate and
	// whether one is available at all. A fresh Host with no prior
	// SetCertifiedData call reports false, mirroring the IC's "no data
	// certificate available" condition outside of query calls.
	DataCertificate() ([]byte, bool)
	// Principal returns this host's own identity, used to construct
	// streaming-callback references that name "the canister".
	Principal() Principal
}

// SigningHost implements Host by ECDSA-signing a (timestamp,
// certified_data) pair on every SetCertifiedData call. The resulting
// certificate is an opaque blob from the caller's point of view, just
// as spec.md's data_certificate() is: the resolver base64-encodes it
// into the IC-Certificate header without otherwise interpreting it.
type SigningHost struct {
	key       *ecdsa.PrivateKey
	principal Principal

	mu          sync.RWMutex
	certificate []byte
	hasCert     bool
}

// LoadSigningHost reads a PEM-encoded EC private key the same way the
// teacher's config loader does (config.go's LoadLog) and derives this
// host's principal from the SHA-256 digest of its DER public key.
func LoadSigningHost(keyPEM []byte) (*SigningHost, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("host: no PEM block found in key material")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("host: parse EC private key: %w", err)
	}

	pkix, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, fmt.Errorf("host: marshal public key: %w", err)
	}
	digest := sha256.Sum256(pkix)
	principal := Principal(base64.RawURLEncoding.EncodeToString(digest[:]))

	return &SigningHost{key: key, principal: principal}, nil
}

func (h *SigningHost) Time() int64 {
	return time.Now().UnixNano()
}

// Caller trusts an "X-Principal" header set by a reverse proxy that
// has already authenticated the client, falling back to the anonymous
// principal. Verifying client identity end to end is out of scope
// here the same way spec.md treats caller() as an external fact.
func (h *SigningHost) Caller(r *http.Request) (Principal, error) {
	if v := r.Header.Get("X-Principal"); v != "" {
		return Principal(v), nil
	}
	return anonymousPrincipal, nil
}

func (h *SigningHost) Principal() Principal {
	return h.principal
}

// SetCertifiedData signs (timestamp, root) and stores the result as
// the current certificate. This is the one Host call that mutates
// state, corresponding to set_certified_data's update-call-only
// restriction; callers invoke it only from the certification engine,
// which itself only runs on the write path.
func (h *SigningHost) SetCertifiedData(root [32]byte) {
	timestamp := h.Time()

	digest := sha256.New()
	var tsBytes [8]byte
	for i := 0; i < 8; i++ {
		tsBytes[i] = byte(timestamp >> (8 * (7 - i)))
	}
	digest.Write(tsBytes[:])
	digest.Write(root[:])
	sum := digest.Sum(nil)

	sig, err := ecdsa.SignASN1(rand.Reader, h.key, sum)
	if err != nil {
		// SetCertifiedData has no error return in spec.md (it traps on
		// failure inside the host); a signing failure here can only
		// come from a broken entropy source, which we can't recover
		// from either.
		panic(fmt.Sprintf("host: sign certified data: %v", err))
	}

	builder := cryptobyte.NewBuilder(nil)
	builder.AddUint64(uint64(timestamp))
	builder.AddBytes(root[:])
	builder.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(sig)
	})
	cert := builder.BytesOrPanic()

	h.mu.Lock()
	h.certificate = cert
	h.hasCert = true
	h.mu.Unlock()
}

func (h *SigningHost) DataCertificate() ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.hasCert {
		return nil, false
	}
	return h.certificate, true
}

// VerifyCertificate checks a certificate produced by SetCertifiedData
// against this host's public key, recovering the certified root. It
// exists for tests and for any future peer that needs to verify a
// certificate out of band; the live resolver never needs to verify
// its own signatures.
func (h *SigningHost) VerifyCertificate(cert []byte) (timestamp int64, root [32]byte, err error) {
	s := cryptobyte.String(cert)
	var ts uint64
	if !s.ReadUint64(&ts) {
		return 0, root, fmt.Errorf("host: malformed certificate")
	}
	var rootBytes cryptobyte.String
	if !s.ReadBytes(&rootBytes, 32) {
		return 0, root, fmt.Errorf("host: malformed certificate root")
	}
	var sig cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&sig) || !s.Empty() {
		return 0, root, fmt.Errorf("host: malformed certificate signature")
	}
	copy(root[:], rootBytes)

	digest := sha256.New()
	var tsBytes [8]byte
	for i := 0; i < 8; i++ {
		tsBytes[i] = byte(ts >> (8 * (7 - i)))
	}
	digest.Write(tsBytes[:])
	digest.Write(root[:])

	if !ecdsa.VerifyASN1(&h.key.PublicKey, digest.Sum(nil), sig) {
		return 0, root, fmt.Errorf("host: signature verification failed")
	}
	return int64(ts), root, nil
}
