// Package rcbytes provides a cheaply-cloneable handle over an immutable
// byte slice, shared across response bodies, streaming continuations,
// and hash-tree witnesses without copying the underlying bytes.
package rcbytes

import (
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// Bytes is a reference-counted immutable byte buffer. The zero value is
// an empty buffer. Cloning is cheap: the underlying array is shared and
// only the Go runtime's own GC reclaims it once every reference is gone,
// so there is no explicit refcount to manage or leak.
type Bytes struct {
	data []byte
}

// New wraps b without copying. Callers must not mutate b afterwards.
func New(b []byte) Bytes {
	return Bytes{data: b}
}

// FromString wraps s's bytes without copying the string header further
// than Go already requires.
func FromString(s string) Bytes {
	return Bytes{data: []byte(s)}
}

// Clone returns a handle sharing the same backing array.
func (b Bytes) Clone() Bytes {
	return b
}

func (b Bytes) Len() int {
	return len(b.data)
}

// Bytes returns the raw backing slice. Callers must treat it as
// read-only; content_chunks are immutable once stored.
func (b Bytes) Bytes() []byte {
	return b.data
}

func (b Bytes) String() string {
	return string(b.data)
}

// Slice returns a new Bytes over [start:end) of the same backing array.
func (b Bytes) Slice(start, end int) Bytes {
	return Bytes{data: b.data[start:end]}
}

// MarshalJSON renders the same base64 string encoding/json already
// produces for a bare []byte, so a Bytes field is wire-compatible with
// the []byte field it replaces.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.data)
}

// UnmarshalJSON accepts the base64 string MarshalJSON produces.
func (b *Bytes) UnmarshalJSON(raw []byte) error {
	var data []byte
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	b.data = data
	return nil
}

// Marshal produces a length-prefixed wire encoding: a uint32 big-endian
// length followed by the raw bytes.
func (b Bytes) Marshal() []byte {
	builder := cryptobyte.NewBuilder(nil)
	builder.AddUint32LengthPrefixed(func(inner *cryptobyte.Builder) {
		inner.AddBytes(b.data)
	})
	return builder.BytesOrPanic()
}

// Unmarshal decodes the format produced by Marshal, byte-exact.
func Unmarshal(wire []byte) (Bytes, error) {
	s := cryptobyte.String(wire)
	var content cryptobyte.String
	if !s.ReadUint32LengthPrefixed(&content) || !s.Empty() {
		return Bytes{}, fmt.Errorf("rcbytes: malformed length-prefixed buffer")
	}
	// Copy out of the cryptobyte.String so the returned Bytes doesn't
	// alias the caller's wire slice.
	data := make([]byte, len(content))
	copy(data, content)
	return Bytes{data: data}, nil
}
