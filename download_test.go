package s3lite

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fileServerFor(t *testing.T, body string, failAfter int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("ETag", `"abc123"`)
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			if failAfter > 0 && failAfter < len(body) {
				w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
				w.Write([]byte(body[:failAfter]))
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
				panic(http.ErrAbortHandler)
			}
			w.Header().Set("ETag", `"abc123"`)
			w.Write([]byte(body))
		}
	})
}

func TestDownloadObjectWritesViaTempThenRenames(t *testing.T) {
	c := newTestClient(t, fileServerFor(t, "the object body", 0))

	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")

	info, err := c.DownloadObject(context.Background(), "test-42", "obj", dst, GetObjectOptions{})
	require.NoError(t, err)
	require.Equal(t, "abc123", info.ETag)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "the object body", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away, not left beside the result")
}

func TestDownloadObjectLeavesTempOnFailure(t *testing.T) {
	c := newTestClient(t, fileServerFor(t, "the object body", 4))

	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")

	_, err := c.DownloadObject(context.Background(), "test-42", "obj", dst, GetObjectOptions{})
	require.Error(t, err)

	_, statErr := os.Stat(dst)
	require.True(t, os.IsNotExist(statErr), "no partial file may appear at the final path")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the .part.minio temp file stays behind after a failed download")
	require.Contains(t, entries[0].Name(), ".part.minio")
}

func TestDownloadObjectRejectsDirectoryTarget(t *testing.T) {
	c := newTestClient(t, fileServerFor(t, "x", 0))

	dir := t.TempDir()
	_, err := c.DownloadObject(context.Background(), "test-42", "obj", dir, GetObjectOptions{})
	require.Error(t, err)
}

func TestUploadObjectFromFile(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.Header().Set("ETag", `"up-etag"`)
		w.WriteHeader(http.StatusOK)
	}))

	src := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(src, []byte("<html></html>"), 0o600))

	info, err := c.UploadObject(context.Background(), "test-42", "page.html", src, PutObjectOptions{})
	require.NoError(t, err)
	require.Equal(t, "up-etag", info.ETag)
	require.Equal(t, "<html></html>", string(gotBody))
	require.Contains(t, gotContentType, "text/html")
}

func TestUploadObjectRejectsDirectory(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not reach the server")
	}))
	_, err := c.UploadObject(context.Background(), "test-42", "obj", t.TempDir(), PutObjectOptions{})
	require.Error(t, err)
}
