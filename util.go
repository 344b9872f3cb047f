package s3lite

import "bytes"

// newBytesReader wraps an in-memory XML/JSON body as the io.ReadSeeker the
// request builder and executeMethod's retry logic expect.
func newBytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
