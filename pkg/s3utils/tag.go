package s3utils

import (
	"net/url"
	"sort"
	"strings"
)

// TagEncode renders a tag map as the query-string form S3 expects for the
// x-amz-tagging header: percent-encoded "k=v" pairs joined with '&', in key
// order for determinism.
func TagEncode(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range SortedKeys(tags) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(tags[k]))
	}
	return b.String()
}

// SortedKeys returns m's keys in lexicographic order, for deterministic
// iteration when building wire bodies from maps.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
