package s3lite

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cloudcentry/s3lite/pkg/encrypt"
	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// ObjectPart is one completed part of an in-flight multipart upload:
// number and server-returned ETag, in transmission order.
type ObjectPart struct {
	PartNumber int
	ETag       string
	Size       int64
}

// PutObjectOptions configures PutObject/CreateMultipartUpload/UploadPart.
type PutObjectOptions struct {
	ContentType          string
	UserMetadata         map[string]string
	ServerSideEncryption encrypt.ServerSide
	Tags                 map[string]string
	PartSize             uint64 // 0 lets the client pick
}

func (o PutObjectOptions) headers() (http.Header, error) {
	h := http.Header{}
	if o.ContentType != "" {
		h.Set("Content-Type", o.ContentType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	for k, v := range o.UserMetadata {
		if err := validateMetadataHeader(k, v); err != nil {
			return nil, err
		}
		h.Set("X-Amz-Meta-"+k, v)
	}
	if o.ServerSideEncryption != nil {
		for k, v := range o.ServerSideEncryption.Headers() {
			h.Set(k, v)
		}
	}
	if len(o.Tags) > 0 {
		h.Set("X-Amz-Tagging", s3utils.TagEncode(o.Tags))
	}
	return h, nil
}

// CreateMultipartUpload issues POST ?uploads and returns the new upload ID.
func (c *Client) CreateMultipartUpload(ctx context.Context, bucketName, objectName string, opts PutObjectOptions) (string, error) {
	headers, err := opts.headers()
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("uploads", "")

	resp, err := c.executeMethod(ctx, http.MethodPost, requestInput{
		bucketName:   bucketName,
		objectName:   objectName,
		queryValues:  query,
		customHeader: headers,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result initiateMultipartUploadResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.UploadID, nil
}

// UploadPart uploads one part of size len(data) and returns its ETag.
func (c *Client) UploadPart(ctx context.Context, bucketName, objectName, uploadID string, partNumber int, data []byte, sse encrypt.ServerSide) (string, error) {
	if partNumber < 1 || partNumber > s3utils.MaxPartsCount {
		return "", ErrInvalidArgument(fmt.Sprintf("s3lite: part number %d out of range [1, %d]", partNumber, s3utils.MaxPartsCount))
	}

	query := url.Values{}
	query.Set("partNumber", strconv.Itoa(partNumber))
	query.Set("uploadId", uploadID)

	headers := http.Header{}
	if sse != nil {
		for k, v := range sse.Headers() {
			headers.Set(k, v)
		}
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      query,
		customHeader:     headers,
		contentBody:      newBytesReader(data),
		contentLength:    int64(len(data)),
		contentMD5Base64: md5Base64(data),
		contentSHA256Hex: sha256Hex(data),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return stripQuotes(resp.Header.Get("ETag")), nil
}

// CompleteMultipartUpload finalizes uploadID with the given parts, which
// must already be in ascending PartNumber order.
func (c *Client) CompleteMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string, parts []ObjectPart) (string, error) {
	body := completeMultipartUploadRequest{}
	for _, p := range parts {
		body.Parts = append(body.Parts, completeMultipartUploadPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	data, err := xml.Marshal(body)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("uploadId", uploadID)

	resp, err := c.executeMethod(ctx, http.MethodPost, requestInput{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      query,
		contentBody:      newBytesReader(data),
		contentLength:    int64(len(data)),
		contentMD5Base64: md5Base64(data),
		contentSHA256Hex: sha256Hex(data),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result completeMultipartUploadResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return stripQuotes(result.ETag), nil
}

// AbortMultipartUpload discards an in-flight multipart upload. After
// any failed multipart sequence the best-effort wrapper below runs this
// and only logs its error, so callers propagate the original failure.
func (c *Client) AbortMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string) error {
	query := url.Values{}
	query.Set("uploadId", uploadID)

	resp, err := c.executeMethod(ctx, http.MethodDelete, requestInput{
		bucketName:  bucketName,
		objectName:  objectName,
		queryValues: query,
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) abortMultipartUploadBestEffort(ctx context.Context, bucketName, objectName, uploadID string) {
	if err := c.AbortMultipartUpload(ctx, bucketName, objectName, uploadID); err != nil {
		c.log.WithFields(logFieldsAbort(bucketName, objectName, uploadID)).WithError(err).Warn("s3lite: best-effort AbortMultipartUpload failed")
	}
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func validateMetadataHeader(key, value string) error {
	if key == "" {
		return ErrInvalidArgument("s3lite: user metadata key cannot be empty")
	}
	if !httpTokenValid(key) {
		return ErrInvalidArgument(fmt.Sprintf("s3lite: invalid user metadata header name %q", key))
	}
	if !httpFieldValueValid(value) {
		return ErrInvalidArgument(fmt.Sprintf("s3lite: invalid user metadata header value for %q", key))
	}
	return nil
}
