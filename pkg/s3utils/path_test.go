package s3utils

import (
	"net/url"
	"testing"
)

func TestEncodePathPreservesSlashes(t *testing.T) {
	got := EncodePath("a folder/file name.txt")
	want := "a%20folder/file%20name.txt"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestEncodePathLeadingTrailingSlash(t *testing.T) {
	got := EncodePath("/a/b/")
	want := "/a/b/"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestQueryEncodeSortedAndEscaped(t *testing.T) {
	v := url.Values{}
	v.Set("b", "2")
	v.Set("a", "1 1")
	got := QueryEncode(v)
	want := "a=1%201&b=2"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
