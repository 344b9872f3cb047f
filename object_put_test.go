package s3lite

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPartKnownBoundaries(t *testing.T) {
	src := bytes.Repeat([]byte{'x'}, 10)
	r := bytes.NewReader(src)
	var carry []byte

	data, isLast, err := readPart(r, 4, &carry)
	require.NoError(t, err)
	require.Len(t, data, 4)
	require.False(t, isLast)
	require.Len(t, carry, 1, "exactly one look-ahead byte carries forward")

	data, isLast, err = readPart(r, 4, &carry)
	require.NoError(t, err)
	require.Len(t, data, 4)
	require.False(t, isLast)

	data, isLast, err = readPart(r, 4, &carry)
	require.NoError(t, err)
	require.Len(t, data, 2, "final short part")
	require.True(t, isLast)
}

func TestReadPartExactMultiple(t *testing.T) {
	r := bytes.NewReader(bytes.Repeat([]byte{'y'}, 8))
	var carry []byte

	data, isLast, err := readPart(r, 4, &carry)
	require.NoError(t, err)
	require.Len(t, data, 4)
	require.False(t, isLast)

	data, isLast, err = readPart(r, 4, &carry)
	require.NoError(t, err)
	require.Len(t, data, 4)
	require.True(t, isLast, "carry byte plus 3 read bytes is a short read")

	data, isLast, err = readPart(r, 4, &carry)
	require.NoError(t, err)
	require.Empty(t, data)
	require.True(t, isLast)
}

func TestReadPartReassemblesExactly(t *testing.T) {
	src := make([]byte, 23)
	for i := range src {
		src[i] = byte(i)
	}
	r := bytes.NewReader(src)
	var carry []byte
	var got []byte
	for {
		data, isLast, err := readPart(r, 5, &carry)
		require.NoError(t, err)
		got = append(got, data...)
		if isLast {
			break
		}
	}
	require.Equal(t, src, got)
}

const testPartSize = 5 * 1024 * 1024

// multipartRecorder is the httptest handler backing the multipart upload
// tests: it records uploaded parts in order and replays the multipart
// wire protocol (initiate, upload, complete, abort).
type multipartRecorder struct {
	mu        sync.Mutex
	uploadID  string
	parts     map[int][]byte
	completed bool
	aborted   bool
	failPart  int // part number to reject with 403, 0 for none
}

func (m *multipartRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := r.URL.Query()
	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		m.uploadID = "upload-123"
		m.parts = map[int][]byte{}
		w.Header().Set("Content-Type", "application/xml")
		xml.NewEncoder(w).Encode(initiateMultipartUploadResult{UploadID: m.uploadID})

	case r.Method == http.MethodPut && q.Get("partNumber") != "":
		var n int
		fmt.Sscanf(q.Get("partNumber"), "%d", &n)
		if m.failPart != 0 && n == m.failPart {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		data, _ := io.ReadAll(r.Body)
		m.parts[n] = data
		w.Header().Set("ETag", fmt.Sprintf(`"etag-part-%d"`, n))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && q.Get("uploadId") != "":
		m.completed = true
		w.Header().Set("Content-Type", "application/xml")
		xml.NewEncoder(w).Encode(completeMultipartUploadResult{ETag: `"final-etag-3"`})

	case r.Method == http.MethodDelete && q.Get("uploadId") != "":
		m.aborted = true
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestPutObjectMultipartSequencesParts(t *testing.T) {
	rec := &multipartRecorder{}
	c := newTestClient(t, rec)

	size := int64(testPartSize*2 + 1024)
	src := bytes.Repeat([]byte{'z'}, int(size))

	info, err := c.PutObject(context.Background(), "test-42", "big", bytes.NewReader(src), size, PutObjectOptions{})
	require.NoError(t, err)
	require.Equal(t, "final-etag-3", info.ETag)
	require.Equal(t, size, info.Size)

	require.True(t, rec.completed)
	require.False(t, rec.aborted)
	require.Len(t, rec.parts, 3)
	require.Len(t, rec.parts[1], testPartSize)
	require.Len(t, rec.parts[2], testPartSize)
	require.Len(t, rec.parts[3], 1024)

	var reassembled []byte
	for n := 1; n <= 3; n++ {
		reassembled = append(reassembled, rec.parts[n]...)
	}
	require.Equal(t, src, reassembled)
}

func TestPutObjectUnknownSizeUsesLookAhead(t *testing.T) {
	rec := &multipartRecorder{}
	c := newTestClient(t, rec)

	size := int64(testPartSize + 10)
	src := bytes.Repeat([]byte{'q'}, int(size))

	// objectSize -1: the look-ahead byte decides where the stream ends.
	info, err := c.PutObject(context.Background(), "test-42", "streamed", bytes.NewReader(src), -1,
		PutObjectOptions{PartSize: testPartSize})
	require.NoError(t, err)
	require.Equal(t, size, info.Size)
	require.Len(t, rec.parts, 2)
	require.Len(t, rec.parts[1], testPartSize)
	require.Len(t, rec.parts[2], 10)
}

func TestPutObjectAbortsOnPartFailure(t *testing.T) {
	rec := &multipartRecorder{failPart: 2}
	c := newTestClient(t, rec)

	size := int64(testPartSize * 3)
	_, err := c.PutObject(context.Background(), "test-42", "doomed", bytes.NewReader(bytes.Repeat([]byte{'a'}, int(size))), size, PutObjectOptions{})
	require.Error(t, err)

	er, ok := err.(ErrorResponse)
	require.True(t, ok, "original upload error must surface, got %T", err)
	require.Equal(t, "AccessDenied", er.Code)
	require.True(t, rec.aborted, "AbortMultipartUpload must be attempted on failure")
	require.False(t, rec.completed)
}

func TestPutObjectZeroBytesIsSinglePut(t *testing.T) {
	var sawPut bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Empty(t, r.URL.Query().Get("partNumber"))
		sawPut = true
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))

	info, err := c.PutObject(context.Background(), "test-42", "empty", strings.NewReader(""), 0, PutObjectOptions{})
	require.NoError(t, err)
	require.True(t, sawPut)
	require.EqualValues(t, 0, info.Size)
}

func TestPutObjectRejectsInvalidMetadataHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not reach the server")
	}))

	_, err := c.PutObject(context.Background(), "test-42", "obj", strings.NewReader("x"), 1, PutObjectOptions{
		UserMetadata: map[string]string{"bad\nkey": "v"},
	})
	require.Error(t, err)
	var invalid ErrInvalidArgument
	require.ErrorAs(t, err, &invalid)
}
