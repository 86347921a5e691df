package urlpath

import "testing"

func TestDecode(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "/%", wantErr: true},
		{in: "/%%", want: "/%"},
		{in: "/%20a", want: "/ a"},
		{in: "/%%+a%20+%@", wantErr: true},
		{in: "/has%percent.txt", wantErr: true},
		{in: "/%e6", want: "/æ"},
	}

	for _, tc := range cases {
		got, err := Decode([]byte(tc.in))
		if tc.wantErr {
			if err == nil {
				t.Errorf("Decode(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Decode(%q) returned error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Decode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripQuery(t *testing.T) {
	if got := StripQuery("/a/b?x=1"); got != "/a/b" {
		t.Errorf("StripQuery = %q, want /a/b", got)
	}
	if got := StripQuery("/a/b"); got != "/a/b" {
		t.Errorf("StripQuery = %q, want /a/b", got)
	}
}
