package host

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

func TestDataCertificateAbsentUntilSet(t *testing.T) {
	h, err := LoadSigningHost(testKeyPEM(t))
	if err != nil {
		t.Fatalf("LoadSigningHost: %v", err)
	}
	if _, ok := h.DataCertificate(); ok {
		t.Fatalf("expected no certificate before SetCertifiedData")
	}
}

func TestSetCertifiedDataRoundTrip(t *testing.T) {
	h, err := LoadSigningHost(testKeyPEM(t))
	if err != nil {
		t.Fatalf("LoadSigningHost: %v", err)
	}

	root := sha256.Sum256([]byte("asset tree root"))
	h.SetCertifiedData(root)

	cert, ok := h.DataCertificate()
	if !ok {
		t.Fatalf("expected a certificate after SetCertifiedData")
	}

	_, verifiedRoot, err := h.VerifyCertificate(cert)
	if err != nil {
		t.Fatalf("VerifyCertificate: %v", err)
	}
	if verifiedRoot != root {
		t.Fatalf("verified root %x != published root %x", verifiedRoot, root)
	}
}

func TestCallerHeaderAndAnonymousFallback(t *testing.T) {
	h, err := LoadSigningHost(testKeyPEM(t))
	if err != nil {
		t.Fatalf("LoadSigningHost: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	principal, err := h.Caller(r)
	if err != nil {
		t.Fatalf("Caller: %v", err)
	}
	if principal != anonymousPrincipal {
		t.Fatalf("Caller without X-Principal = %q, want anonymous", principal)
	}

	r.Header.Set("X-Principal", "aaaaa-bbbbb")
	principal, err = h.Caller(r)
	if err != nil {
		t.Fatalf("Caller: %v", err)
	}
	if principal != "aaaaa-bbbbb" {
		t.Fatalf("Caller with X-Principal = %q, want aaaaa-bbbbb", principal)
	}
}
