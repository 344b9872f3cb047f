package s3lite

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudcentry/s3lite/pkg/encrypt"
	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// StatObjectOptions configures StatObject/GetObject's HEAD/GET preflight.
type StatObjectOptions struct {
	VersionID    string
	ServerSideEncryption encrypt.ServerSide
	Headers      http.Header // e.g. If-Match, Range
}

func (o StatObjectOptions) headers() http.Header {
	h := http.Header{}
	for k, v := range o.Headers {
		h[k] = v
	}
	if o.ServerSideEncryption != nil {
		for k, v := range o.ServerSideEncryption.Headers() {
			h.Set(k, v)
		}
	}
	return h
}

func (o StatObjectOptions) query() url.Values {
	q := url.Values{}
	if o.VersionID != "" {
		q.Set("versionId", o.VersionID)
	}
	return q
}

// StatObject returns metadata for bucketName/objectName without fetching
// the body.
func (c *Client) StatObject(ctx context.Context, bucketName, objectName string, opts StatObjectOptions) (ObjectInfo, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return ObjectInfo{}, err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return ObjectInfo{}, err
	}

	resp, err := c.executeMethod(ctx, http.MethodHead, requestInput{
		bucketName:   bucketName,
		objectName:   objectName,
		queryValues:  opts.query(),
		customHeader: opts.headers(),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	defer resp.Body.Close()
	return objectInfoFromHeaders(objectName, resp.Header), nil
}

func objectInfoFromHeaders(objectName string, h http.Header) ObjectInfo {
	size, _ := strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	lastModified, _ := time.Parse(http.TimeFormat, h.Get("Last-Modified"))
	expires, _ := time.Parse(http.TimeFormat, h.Get("Expires"))

	meta := map[string]string{}
	for k, v := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-amz-meta-") {
			meta[k[len("X-Amz-Meta-"):]] = v[0]
		}
	}

	return ObjectInfo{
		Key:          objectName,
		ETag:         strings.Trim(h.Get("ETag"), `"`),
		Size:         size,
		ContentType:  h.Get("Content-Type"),
		LastModified: lastModified,
		Expires:      expires,
		Metadata:     meta,
		VersionID:    h.Get("X-Amz-Version-Id"),
		StorageClass: h.Get("X-Amz-Storage-Class"),
	}
}

// RemoveObjectOptions configures RemoveObject.
type RemoveObjectOptions struct {
	VersionID        string
	GovernanceBypass bool
}

// RemoveObject deletes a single object (or a specific version of it).
func (c *Client) RemoveObject(ctx context.Context, bucketName, objectName string, opts RemoveObjectOptions) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return err
	}

	query := url.Values{}
	if opts.VersionID != "" {
		query.Set("versionId", opts.VersionID)
	}
	headers := http.Header{}
	if opts.GovernanceBypass {
		headers.Set("X-Amz-Bypass-Governance-Retention", "true")
	}

	resp, err := c.executeMethod(ctx, http.MethodDelete, requestInput{
		bucketName:   bucketName,
		objectName:   objectName,
		queryValues:  query,
		customHeader: headers,
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetObjectOptions configures GetObject.
type GetObjectOptions struct {
	VersionID            string
	RangeStart, RangeEnd int64 // both zero means "whole object"
	ServerSideEncryption encrypt.ServerSide
	Headers              http.Header
}

func (o GetObjectOptions) headers() http.Header {
	h := http.Header{}
	for k, v := range o.Headers {
		h[k] = v
	}
	if o.RangeStart != 0 || o.RangeEnd != 0 {
		spec := "bytes=" + strconv.FormatInt(o.RangeStart, 10) + "-"
		if o.RangeEnd > 0 {
			spec += strconv.FormatInt(o.RangeEnd, 10)
		}
		h.Set("Range", spec)
	}
	if o.ServerSideEncryption != nil {
		for k, v := range o.ServerSideEncryption.Headers() {
			h.Set(k, v)
		}
	}
	return h
}

// DataFunc is the GetObject streaming callback: invoked with
// successive chunks in order on the transport's execution context.
// Returning false aborts the download.
type DataFunc func(chunk []byte) bool

// GetObject streams bucketName/objectName's body to fn, chunk by chunk, in
// a fixed-size buffer. It returns once the body is exhausted, fn returns
// false, or a transport error occurs.
func (c *Client) GetObject(ctx context.Context, bucketName, objectName string, opts GetObjectOptions, fn DataFunc) (ObjectInfo, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return ObjectInfo{}, err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return ObjectInfo{}, err
	}
	if opts.ServerSideEncryption != nil && opts.ServerSideEncryption.TLSRequired() && c.baseURL.Scheme != "https" {
		return ObjectInfo{}, ErrInvalidArgument("s3lite: SSE-C requires an https endpoint")
	}

	query := url.Values{}
	if opts.VersionID != "" {
		query.Set("versionId", opts.VersionID)
	}

	resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{
		bucketName:   bucketName,
		objectName:   objectName,
		queryValues:  query,
		customHeader: opts.headers(),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	defer resp.Body.Close()

	info := objectInfoFromHeaders(objectName, resp.Header)

	buf := make([]byte, 64*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if !fn(buf[:n]) {
				return info, nil
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return info, nil
			}
			return info, rerr
		}
	}
}
