package s3utils

import "testing"

func TestMultimapCaseInsensitiveLookup(t *testing.T) {
	m := NewMultimap()
	m.Add("X-Amz-Date", "20200101T000000Z")
	if !m.Contains("x-amz-date") {
		t.Fatal("expected case-insensitive Contains to find key")
	}
	if got := m.GetFront("X-AMZ-DATE"); got != "20200101T000000Z" {
		t.Errorf("got %q", got)
	}
}

func TestMultimapSignedHeadersExcludesAuthAndUA(t *testing.T) {
	m := NewMultimap()
	m.Add("Host", "s3.amazonaws.com")
	m.Add("X-Amz-Date", "x")
	m.Add("Authorization", "should-not-appear")
	m.Add("User-Agent", "should-not-appear")
	got := m.SignedHeaders()
	want := "host;x-amz-date"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestMultimapCanonicalHeadersCollapsesSpaces(t *testing.T) {
	m := NewMultimap()
	m.Add("X-Amz-Meta-Foo", "a   b")
	got := m.CanonicalHeaders()
	want := "x-amz-meta-foo:a b\n"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestMultimapMultipleValuesCommaJoined(t *testing.T) {
	m := NewMultimap()
	m.Add("X-Amz-Meta-Tag", "a")
	m.Add("x-amz-meta-tag", "b")
	got := m.CanonicalHeaders()
	want := "x-amz-meta-tag:a,b\n"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
