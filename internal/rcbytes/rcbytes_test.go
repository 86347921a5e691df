package rcbytes

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	want := New([]byte("hello, certified world"))

	wire := want.Marshal()
	got, err := Unmarshal(wire)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.String() != want.String() {
		t.Fatalf("round trip = %q, want %q", got.String(), want.String())
	}
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	wire := append(New([]byte("x")).Marshal(), 0xff)
	if _, err := Unmarshal(wire); err == nil {
		t.Fatalf("expected error for wire data with trailing bytes")
	}
}

func TestCloneSharesBackingArray(t *testing.T) {
	orig := New([]byte("shared"))
	clone := orig.Clone()
	if clone.Len() != orig.Len() || clone.String() != orig.String() {
		t.Fatalf("clone diverged from original")
	}
	if &clone.Bytes()[0] != &orig.Bytes()[0] {
		t.Fatalf("clone must share the original's backing array")
	}
}

func TestSlice(t *testing.T) {
	b := New([]byte("0123456789"))
	s := b.Slice(2, 5)
	if s.String() != "234" {
		t.Fatalf("Slice(2,5) = %q, want %q", s.String(), "234")
	}
}
