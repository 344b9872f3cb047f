package s3lite

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/xid"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// DownloadObject streams bucketName/objectName into a new file at
// filePath, the way the minio-go "FGetObject" family does it: StatObject
// first so the caller gets an early, cheap not-found error, then the body
// is written to a sibling temp file named
// "<filePath>.<url-escaped-etag>.part.minio" and renamed into place only
// once the full body has landed — so a crash or cancellation mid-download
// never leaves a half-written file at filePath itself, and a retried
// download of the same version reuses the same temp name instead of
// colliding with an unrelated one. A retry always fetches the whole body
// again and writes it over the temp file from the start.
func (c *Client) DownloadObject(ctx context.Context, bucketName, objectName, filePath string, opts GetObjectOptions) (ObjectInfo, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return ObjectInfo{}, err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return ObjectInfo{}, err
	}

	info, err := c.StatObject(ctx, bucketName, objectName, StatObjectOptions{
		VersionID:            opts.VersionID,
		ServerSideEncryption: opts.ServerSideEncryption,
	})
	if err != nil {
		return ObjectInfo{}, err
	}

	if st, serr := os.Stat(filePath); serr == nil && st.IsDir() {
		return ObjectInfo{}, ErrInvalidArgument(fmt.Sprintf("s3lite: %s is a directory", filePath))
	}

	// A server that returns no ETag (some gateways do this for SSE-C
	// objects) would collapse every download to the same temp name; a
	// fresh xid keeps those from clobbering each other at the cost of a
	// new temp name on every attempt.
	etagTag := url.QueryEscape(info.ETag)
	if etagTag == "" {
		etagTag = xid.New().String()
	}
	tempFilePath := filePath + "." + etagTag + ".part.minio"
	if err := os.MkdirAll(filepath.Dir(tempFilePath), 0o755); err != nil {
		return ObjectInfo{}, err
	}

	out, err := os.OpenFile(tempFilePath, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return ObjectInfo{}, err
	}

	var werr error
	_, gerr := c.GetObject(ctx, bucketName, objectName, opts, func(chunk []byte) bool {
		if _, err := out.Write(chunk); err != nil {
			werr = err
			return false
		}
		return true
	})
	if werr == nil {
		werr = gerr
	}
	if cerr := out.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		// The partial temp file is deliberately left behind for the
		// caller to inspect; a later call with the same ETag overwrites
		// it with a fresh full download.
		return ObjectInfo{}, werr
	}

	if err := os.Rename(tempFilePath, filePath); err != nil {
		return ObjectInfo{}, err
	}
	return info, nil
}
