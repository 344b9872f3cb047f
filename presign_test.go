package s3lite

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudcentry/s3lite/pkg/credentials"
)

func newOfflineClient(t *testing.T) *Client {
	t.Helper()
	c, err := New("play.min.io", Options{
		Secure: true,
		Creds:  credentials.NewStatic("Q3AM3UQ867SPQQA43P2F", "zuf+tfteSlswRu7BJ86wekitnifILbZam1KYY3TG", "", credentials.SignatureV4),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return c
}

func TestPresignedGetObjectQueryParameters(t *testing.T) {
	c := newOfflineClient(t)

	u, err := c.PresignedGetObject(context.Background(), "test-42", "obj", time.Hour, nil)
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "AWS4-HMAC-SHA256", q.Get("X-Amz-Algorithm"))
	require.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "Q3AM3UQ867SPQQA43P2F/"))
	require.Contains(t, q.Get("X-Amz-Credential"), "/us-east-1/s3/aws4_request")
	require.NotEmpty(t, q.Get("X-Amz-Date"))
	require.Equal(t, "3600", q.Get("X-Amz-Expires"))
	require.NotEmpty(t, q.Get("X-Amz-SignedHeaders"))
	require.NotEmpty(t, q.Get("X-Amz-Signature"))
}

func TestPresignedURLClampsExpiry(t *testing.T) {
	c := newOfflineClient(t)

	u, err := c.PresignedURL(context.Background(), http.MethodGet, "test-42", "obj", 30*24*time.Hour, nil)
	require.NoError(t, err)
	require.Equal(t, "604800", u.Query().Get("X-Amz-Expires"))

	u, err = c.PresignedURL(context.Background(), http.MethodGet, "test-42", "obj", 0, nil)
	require.NoError(t, err)
	require.Equal(t, "1", u.Query().Get("X-Amz-Expires"))
}

func TestPresignedURLAnonymousFails(t *testing.T) {
	c, err := New("play.min.io", Options{Secure: true, Region: "us-east-1"})
	require.NoError(t, err)

	_, err = c.PresignedGetObject(context.Background(), "test-42", "obj", time.Hour, nil)
	require.Error(t, err)
}

func TestPresignedPostPolicyFormFields(t *testing.T) {
	c := newOfflineClient(t)

	// A zoned expiration must still land in the policy document as
	// millisecond-precision UTC with a trailing Z.
	zone := time.FixedZone("UTC+5", 5*60*60)
	expires := time.Date(2026, 9, 1, 17, 30, 0, 0, zone)

	p := NewPostPolicy()
	require.NoError(t, p.SetBucket("test-42"))
	require.NoError(t, p.SetKey("uploads/pic.png"))
	require.NoError(t, p.SetContentType("image/png"))
	require.NoError(t, p.SetContentLengthRange(1, 10*1024*1024))
	require.NoError(t, p.SetExpires(expires))

	u, form, err := c.PresignedPostPolicy(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "/test-42", u.Path)

	require.Equal(t, "test-42", form["bucket"])
	require.Equal(t, "uploads/pic.png", form["key"])
	require.Equal(t, "image/png", form["Content-Type"])
	require.NotEmpty(t, form["policy"])
	require.Equal(t, "AWS4-HMAC-SHA256", form["x-amz-algorithm"])
	require.Contains(t, form["x-amz-credential"], "/us-east-1/s3/aws4_request")
	require.NotEmpty(t, form["x-amz-date"])
	require.Len(t, form["x-amz-signature"], 64)

	docBytes, err := base64.StdEncoding.DecodeString(form["policy"])
	require.NoError(t, err)
	var doc struct {
		Expiration string `json:"expiration"`
	}
	require.NoError(t, json.Unmarshal(docBytes, &doc))
	require.Equal(t, "2026-09-01T12:30:00.000Z", doc.Expiration)
}

func TestPostPolicyValidation(t *testing.T) {
	p := NewPostPolicy()
	require.Error(t, p.SetExpires(time.Time{}))
	require.Error(t, p.SetBucket("x"))
	require.Error(t, p.SetKeyStartsWith(""))
	require.Error(t, p.SetContentLengthRange(10, 1))
	require.Error(t, p.SetContentLengthRange(-1, 1))
}
