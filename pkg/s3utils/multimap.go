package s3utils

import (
	"sort"
	"strings"
)

// Multimap holds header-like key -> ordered multi-value data, alongside a
// case-insensitive index so callers can do case-insensitive lookups while
// the canonicalizers below still see (and preserve) original casing on the
// wire.
type Multimap struct {
	values map[string][]string
	lower  map[string][]string // lowercased key -> original keys seen, insertion order
}

// NewMultimap returns an empty Multimap ready to use.
func NewMultimap() *Multimap {
	return &Multimap{values: map[string][]string{}, lower: map[string][]string{}}
}

// Add appends a value under key, preserving the case of key as given and
// recording it in the lowercase index if not already present.
func (m *Multimap) Add(key, value string) {
	m.values[key] = append(m.values[key], value)
	lk := strings.ToLower(key)
	for _, k := range m.lower[lk] {
		if k == key {
			return
		}
	}
	m.lower[lk] = append(m.lower[lk], key)
}

// Keys returns the lowercased key set, sorted lexicographically — the
// iteration order signing and header canonicalization rely on.
func (m *Multimap) Keys() []string {
	return m.signableNamesIncludingReserved()
}

func (m *Multimap) signableNamesIncludingReserved() []string {
	names := make([]string, 0, len(m.lower))
	for lk := range m.lower {
		names = append(names, lk)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether key exists under any casing.
func (m *Multimap) Contains(key string) bool {
	_, ok := m.lower[strings.ToLower(key)]
	return ok
}

// Get returns all values stored under key, across every casing variant
// seen, in insertion order of the casing variants themselves.
func (m *Multimap) Get(key string) []string {
	var out []string
	for _, k := range m.lower[strings.ToLower(key)] {
		out = append(out, m.values[k]...)
	}
	return out
}

// GetFront returns the first value stored under key, or "" if absent.
func (m *Multimap) GetFront(key string) string {
	v := m.Get(key)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// SignedHeaders returns the lowercased, sorted, ';'-joined list of header
// names eligible for SigV4 signing (excluding Authorization and
// User-Agent).
func (m *Multimap) SignedHeaders() string {
	names := m.signableNames()
	return strings.Join(names, ";")
}

// CanonicalHeaders returns the SigV4 canonical-headers block: for each
// signed name, "name:value\n" with runs of spaces collapsed to one and
// multiple values for the same name comma-joined in insertion order.
func (m *Multimap) CanonicalHeaders() string {
	names := m.signableNames()
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		vals := m.Get(name)
		for i, v := range vals {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(collapseSpaces(v))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Multimap) signableNames() []string {
	var names []string
	for lk := range m.lower {
		if lk == "authorization" || lk == "user-agent" {
			continue
		}
		names = append(names, lk)
	}
	sort.Strings(names)
	return names
}

func collapseSpaces(v string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range v {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
