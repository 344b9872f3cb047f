package signer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// TestSignV4AuthorizationShape signs one request and checks the shape of
// the resulting Authorization header: the AWS4-HMAC-SHA256 algorithm, the
// access key, the us-east-1/s3 credential scope, and the SignedHeaders and
// Signature components. The signature value itself is not pinned, since it
// depends on the wall-clock signing time.
func TestSignV4AuthorizationShape(t *testing.T) {
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "https://examplebucket.s3.amazonaws.com/test.txt?versions", nil)
		req.Header.Set("X-Amz-Content-Sha256", EmptySHA256)
		return req
	}

	req1 := newReq()
	SignV4(req1, "AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", "", "us-east-1")
	auth1 := req1.Header.Get("Authorization")
	if !strings.HasPrefix(auth1, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") {
		t.Fatalf("unexpected authorization header: %s", auth1)
	}
	if !strings.Contains(auth1, "/us-east-1/s3/aws4_request") {
		t.Fatalf("missing scope in authorization header: %s", auth1)
	}
	if !strings.Contains(auth1, "SignedHeaders=") || !strings.Contains(auth1, "Signature=") {
		t.Fatalf("authorization header missing expected components: %s", auth1)
	}
}

func TestSignV4OmittedWithoutCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	SignV4(req, "", "", "", "us-east-1")
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("expected no Authorization header without credentials")
	}
}

func TestPresignV4MovesSignatureToQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://examplebucket.s3.amazonaws.com/test.txt", nil)
	PresignV4(req, "AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY", "", "us-east-1", 3600e9)

	q := req.URL.Query()
	for _, key := range []string{"X-Amz-Algorithm", "X-Amz-Credential", "X-Amz-Date", "X-Amz-Expires", "X-Amz-SignedHeaders", "X-Amz-Signature"} {
		if q.Get(key) == "" {
			t.Fatalf("expected query parameter %s to be set", key)
		}
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("presigned request must not carry an Authorization header")
	}
}

func TestCanonicalRequestHashIsDeterministic(t *testing.T) {
	headers := s3utils.NewMultimap()
	headers.Add("Host", "examplebucket.s3.amazonaws.com")
	cr := CanonicalRequest{
		Method:           "GET",
		URI:              "/test.txt",
		RawQuery:         "",
		Headers:          headers,
		ContentSHA256Hex: EmptySHA256,
	}
	h1 := cr.hash()
	h2 := cr.hash()
	if h1 != h2 {
		t.Fatalf("canonical request hash must be deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}
