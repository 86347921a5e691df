// Package urlpath implements the percent-decoding and Range-header
// parsing the HTTP resolver needs to turn a raw request URL and Range
// header into a lookup key and a byte interval.
package urlpath

import (
	"fmt"
	"strings"
)

// ErrInvalidPercentEncoding is returned by Decode on a lone "%", a "%"
// followed by fewer than two characters, or non-hex characters in the
// two positions after "%". The "%%" case takes precedence over all of
// these, matching original_source's UrlDecode iterator.
var ErrInvalidPercentEncoding = fmt.Errorf("invalid percent encoding")

// Decode percent-decodes raw per spec.md C2: "%HH" decodes to byte HH,
// "%%" decodes to a single "%", "+" decodes to space, any other byte
// passes through. Every resulting byte value, whether percent-decoded
// or passed through raw, is reinterpreted as a Latin-1 code point and
// re-encoded as UTF-8 rather than copied verbatim — this is what lets
// "%e6" decode to "æ" (U+00E6) instead of a dangling continuation
// byte, matching original_source's `char::from(u8)` semantics. Raw
// multi-byte UTF-8 sequences that weren't percent-encoded are mangled
// by the same rule; that's inherited behavior, not a Go-side bug.
func Decode(raw []byte) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '%':
			if i+1 < len(raw) && raw[i+1] == '%' {
				b.WriteRune(rune('%'))
				i++
				continue
			}
			if i+2 >= len(raw) {
				return "", ErrInvalidPercentEncoding
			}
			hi, ok1 := hexDigit(raw[i+1])
			lo, ok2 := hexDigit(raw[i+2])
			if !ok1 || !ok2 {
				return "", ErrInvalidPercentEncoding
			}
			b.WriteRune(rune(hi<<4 | lo))
			i += 2
		case '+':
			b.WriteRune(rune(' '))
		default:
			b.WriteRune(rune(c))
		}
	}
	return b.String(), nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// StripQuery removes a trailing "?..." query string, mirroring
// http_request's `req.url.find('?')` handling.
func StripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
