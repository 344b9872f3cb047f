package s3lite

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// MakeBucketOptions configures MakeBucket.
type MakeBucketOptions struct {
	Region        string
	ObjectLocking bool
}

type createBucketConfiguration struct {
	XMLName            xml.Name `xml:"CreateBucketConfiguration"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

// MakeBucket creates bucketName in the given (or client-default) region.
// Bucket creation is always a path-style, strictly-validated request.
func (c *Client) MakeBucket(ctx context.Context, bucketName string, opts MakeBucketOptions) error {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return err
	}

	region := opts.Region
	if region == "" {
		region = c.baseURL.Region
	}
	if region == "" {
		region = "us-east-1"
	}

	var body []byte
	if region != "us-east-1" {
		cfg := createBucketConfiguration{LocationConstraint: region}
		data, err := xml.Marshal(cfg)
		if err != nil {
			return err
		}
		body = data
	}

	headers := http.Header{}
	if opts.ObjectLocking {
		headers.Set("X-Amz-Bucket-Object-Lock-Enabled", "true")
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:       bucketName,
		bucketLocation:   region,
		customHeader:     headers,
		contentBody:      newBytesReader(body),
		contentLength:    int64(len(body)),
		contentMD5Base64: md5Base64(body),
		contentSHA256Hex: sha256Hex(body),
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.setCachedRegion(bucketName, region)
	return nil
}

// RemoveBucket deletes an empty bucket.
func (c *Client) RemoveBucket(ctx context.Context, bucketName string) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	resp, err := c.executeMethod(ctx, http.MethodDelete, requestInput{bucketName: bucketName})
	if err != nil {
		return err
	}
	resp.Body.Close()
	c.evictCachedRegion(bucketName)
	return nil
}

// BucketExists reports whether bucketName exists and is accessible,
// collapsing NoSuchBucket/AccessDenied into (false, nil) rather than
// surfacing them as errors, matching how every corpus client treats this
// check.
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return false, err
	}
	resp, err := c.executeMethod(ctx, http.MethodHead, requestInput{bucketName: bucketName})
	if err == nil {
		resp.Body.Close()
		return true, nil
	}
	if er, ok := err.(ErrorResponse); ok {
		switch er.Code {
		case "NoSuchBucket", "AccessDenied", "ResourceNotFound":
			return false, nil
		}
	}
	return false, err
}

// ListBuckets lists every bucket owned by the caller.
func (c *Client) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ListBucketsResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Buckets, nil
}

// GetBucketLocation returns the resolved region of bucketName, using the
// cache when possible.
func (c *Client) GetBucketLocation(ctx context.Context, bucketName string) (string, error) {
	return c.getRegion(bucketName, "")
}

func bucketQuery(key string) url.Values {
	v := url.Values{}
	v.Set(key, "")
	return v
}
