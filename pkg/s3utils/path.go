package s3utils

import (
	"net/url"
	"sort"
	"strings"
)

// EncodePath percent-encodes a full path (bucket + object) per RFC 3986's
// unreserved set, segment by segment so that '/' separators survive
// untouched. Leading and trailing slashes are preserved exactly as given.
func EncodePath(pathName string) string {
	if pathName == "" {
		return pathName
	}
	segments := strings.Split(pathName, "/")
	for i, s := range segments {
		segments[i] = encodeSegment(s)
	}
	return strings.Join(segments, "/")
}

// EncodeSegment percent-encodes a single path segment or query key/value
// per the unreserved-character set, with no special handling of '/'.
func EncodeSegment(s string) string { return encodeSegment(s) }

func encodeSegment(s string) string {
	var b strings.Builder
	for _, r := range []byte(s) {
		if isUnreserved(r) {
			b.WriteByte(r)
		} else {
			b.WriteByte('%')
			b.WriteByte(hexDigit(r >> 4))
			b.WriteByte(hexDigit(r & 0x0f))
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}

func hexDigit(b byte) byte {
	const hex = "0123456789ABCDEF"
	return hex[b&0x0f]
}

// QueryEncode encodes url.Values per the same unreserved-character rule
// rather than Go's default (which percent-encodes ' ' as '+'); pairs are
// sorted by key and joined with '&', matching S3's canonical query-string
// convention.
func QueryEncode(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(encodeSegment(k))
			b.WriteByte('=')
			b.WriteString(encodeSegment(val))
		}
	}
	return b.String()
}
