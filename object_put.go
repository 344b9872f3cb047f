package s3lite

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// UploadInfo is returned by PutObject/UploadObject/ComposeObject/CopyObject
// on success.
type UploadInfo struct {
	Bucket     string
	Key        string
	ETag       string
	Size       int64
	VersionID  string
}

// PutObject uploads reader as bucketName/objectName, dispatching to a
// single PUT or a multipart sequence. objectSize of -1
// means the size is unknown ahead of time (pure streaming), in which case
// the part-size look-ahead algorithm determines the final part by reading
// one byte past each part boundary and carrying that single byte forward
// to the next read.
func (c *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts PutObjectOptions) (UploadInfo, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return UploadInfo{}, err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return UploadInfo{}, err
	}
	if opts.ServerSideEncryption != nil && opts.ServerSideEncryption.TLSRequired() && c.baseURL.Scheme != "https" {
		return UploadInfo{}, ErrInvalidArgument("s3lite: SSE-C requires an https endpoint")
	}

	partCount, partSize, _, err := s3utils.OptimalPartInfo(objectSize, opts.PartSize)
	if err != nil {
		return UploadInfo{}, err
	}

	if partCount == 1 {
		data, rerr := io.ReadAll(io.LimitReader(reader, objectSize))
		if rerr != nil {
			return UploadInfo{}, rerr
		}
		return c.putObjectSingle(ctx, bucketName, objectName, data, opts)
	}

	return c.putObjectMultipart(ctx, bucketName, objectName, reader, objectSize, partSize, opts)
}

func (c *Client) putObjectSingle(ctx context.Context, bucketName, objectName string, data []byte, opts PutObjectOptions) (UploadInfo, error) {
	headers, err := opts.headers()
	if err != nil {
		return UploadInfo{}, err
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:       bucketName,
		objectName:       objectName,
		customHeader:     headers,
		contentBody:      bytes.NewReader(data),
		contentLength:    int64(len(data)),
		contentMD5Base64: md5Base64(data),
		contentSHA256Hex: sha256Hex(data),
	})
	if err != nil {
		return UploadInfo{}, err
	}
	defer resp.Body.Close()

	return UploadInfo{
		Bucket:    bucketName,
		Key:       objectName,
		ETag:      stripQuotes(resp.Header.Get("ETag")),
		Size:      int64(len(data)),
		VersionID: resp.Header.Get("X-Amz-Version-Id"),
	}, nil
}

// putObjectMultipart runs the multipart sequence:
// sequential part upload with strict ascending numbering, abort-on-failure,
// and — for unknown-size streams — the one-byte-look-ahead final-part
// detection.
func (c *Client) putObjectMultipart(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, partSize int64, opts PutObjectOptions) (UploadInfo, error) {
	uploadID, err := c.CreateMultipartUpload(ctx, bucketName, objectName, opts)
	if err != nil {
		return UploadInfo{}, err
	}

	var parts []ObjectPart
	var totalSize int64
	var carry []byte // the one look-ahead byte read_part's contract keeps for the next iteration

	fail := func(cause error) (UploadInfo, error) {
		c.abortMultipartUploadBestEffort(ctx, bucketName, objectName, uploadID)
		return UploadInfo{}, cause
	}

	for partNumber := 1; ; partNumber++ {
		data, isLast, rerr := readPart(reader, partSize, &carry)
		if rerr != nil {
			return fail(rerr)
		}
		if len(data) == 0 && partNumber > 1 {
			break
		}

		etag, uerr := c.UploadPart(ctx, bucketName, objectName, uploadID, partNumber, data, opts.ServerSideEncryption)
		if uerr != nil {
			return fail(uerr)
		}
		parts = append(parts, ObjectPart{PartNumber: partNumber, ETag: etag, Size: int64(len(data))})
		totalSize += int64(len(data))

		if isLast {
			break
		}
		if objectSize >= 0 && totalSize >= objectSize {
			break
		}
	}

	etag, cerr := c.CompleteMultipartUpload(ctx, bucketName, objectName, uploadID, parts)
	if cerr != nil {
		return fail(cerr)
	}

	return UploadInfo{Bucket: bucketName, Key: objectName, ETag: etag, Size: totalSize}, nil
}

// readPart reads up to partSize+1 bytes (counting the carried byte) from
// r, whether or not the object size is known, so that a short read marks
// the final part. carry holds
// the single look-ahead byte between calls: only that one byte survives
// a boundary probe, and the next call must start from it.
func readPart(r io.Reader, partSize int64, carry *[]byte) (data []byte, isLast bool, err error) {
	buf := make([]byte, 0, partSize+1)
	buf = append(buf, *carry...)
	*carry = nil

	need := partSize + 1 - int64(len(buf))
	if need > 0 {
		chunk := make([]byte, need)
		n, rerr := io.ReadFull(r, chunk)
		buf = append(buf, chunk[:n]...)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return nil, false, rerr
		}
	}

	if int64(len(buf)) <= partSize {
		// Short read: this is the final part, in full.
		return buf, true, nil
	}

	// Got partSize+1 bytes: this part is exactly partSize, and the extra
	// byte carries forward as next call's look-ahead.
	*carry = []byte{buf[partSize]}
	return buf[:partSize], false, nil
}
