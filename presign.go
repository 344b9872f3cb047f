package s3lite

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
	"github.com/cloudcentry/s3lite/pkg/signer"
)

const (
	minExpirySeconds = 1
	maxExpirySeconds = 7 * 24 * 60 * 60
)

// PresignedURL returns a query-string-signed URL for method against
// bucketName/objectName, valid for expires (clamped to S3's [1s, 7d]
// window). The URL can be handed to any HTTP client — curl, a browser
// form action, a redirect target — without that caller ever holding a
// credential.
func (c *Client) PresignedURL(ctx context.Context, method, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return nil, err
	}
	if objectName != "" {
		if err := s3utils.CheckValidObjectName(objectName); err != nil {
			return nil, err
		}
	}
	if expires < minExpirySeconds*time.Second {
		expires = minExpirySeconds * time.Second
	}
	if expires > maxExpirySeconds*time.Second {
		expires = maxExpirySeconds * time.Second
	}

	location, err := c.getRegion(bucketName, "")
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(method, requestInput{
		presignURL:     true,
		expires:        expires,
		bucketName:     bucketName,
		objectName:     objectName,
		queryValues:    reqParams,
		bucketLocation: location,
	})
	if err != nil {
		return nil, err
	}
	return req.URL, nil
}

// PresignedGetObject is PresignedURL specialized for GET.
func (c *Client) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	return c.PresignedURL(ctx, http.MethodGet, bucketName, objectName, expires, reqParams)
}

// PresignedPutObject is PresignedURL specialized for PUT, the single-shot
// (non-multipart) upload case only.
func (c *Client) PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
	return c.PresignedURL(ctx, http.MethodPut, bucketName, objectName, expires, nil)
}

// PresignedHeadObject is PresignedURL specialized for HEAD.
func (c *Client) PresignedHeadObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	return c.PresignedURL(ctx, http.MethodHead, bucketName, objectName, expires, reqParams)
}

// PostPolicy builds a browser-uploadable POST policy document: a set of
// conditions the server enforces on a direct-from-browser multipart/form
// upload, so the caller's secret key never has to reach client-side code.
type PostPolicy struct {
	expiration time.Time
	conditions []interface{}
	formData   map[string]string
}

// NewPostPolicy returns an empty PostPolicy with no conditions set.
func NewPostPolicy() *PostPolicy {
	return &PostPolicy{formData: map[string]string{}}
}

// SetExpires sets the policy's expiration instant.
func (p *PostPolicy) SetExpires(t time.Time) error {
	if t.IsZero() {
		return ErrInvalidArgument("s3lite: post-policy expiration cannot be zero")
	}
	p.expiration = t.UTC()
	return nil
}

// SetBucket pins the upload to exactly bucketName.
func (p *PostPolicy) SetBucket(bucketName string) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	p.conditions = append(p.conditions, []string{"eq", "$bucket", bucketName})
	p.formData["bucket"] = bucketName
	return nil
}

// SetKey pins the upload to exactly this object key.
func (p *PostPolicy) SetKey(key string) error {
	if err := s3utils.CheckValidObjectName(key); err != nil {
		return err
	}
	p.conditions = append(p.conditions, []string{"eq", "$key", key})
	p.formData["key"] = key
	return nil
}

// SetKeyStartsWith restricts the upload to keys sharing prefix.
func (p *PostPolicy) SetKeyStartsWith(prefix string) error {
	if prefix == "" {
		return ErrInvalidArgument("s3lite: post-policy key prefix cannot be empty")
	}
	p.conditions = append(p.conditions, []string{"starts-with", "$key", prefix})
	p.formData["key"] = prefix
	return nil
}

// SetContentType restricts the upload's Content-Type.
func (p *PostPolicy) SetContentType(contentType string) error {
	if contentType == "" {
		return ErrInvalidArgument("s3lite: post-policy content type cannot be empty")
	}
	p.conditions = append(p.conditions, []string{"eq", "$Content-Type", contentType})
	p.formData["Content-Type"] = contentType
	return nil
}

// SetContentLengthRange bounds the upload body size in bytes.
func (p *PostPolicy) SetContentLengthRange(min, max int64) error {
	if min > max {
		return ErrInvalidArgument("s3lite: post-policy content-length-range min must be <= max")
	}
	if min < 0 {
		return ErrInvalidArgument("s3lite: post-policy content-length-range min cannot be negative")
	}
	p.conditions = append(p.conditions, []interface{}{"content-length-range", min, max})
	return nil
}

// SetUserMetadata adds an x-amz-meta-<key> match condition.
func (p *PostPolicy) SetUserMetadata(key, value string) error {
	if key == "" {
		return ErrInvalidArgument("s3lite: post-policy metadata key cannot be empty")
	}
	header := "x-amz-meta-" + key
	p.conditions = append(p.conditions, []string{"eq", "$" + header, value})
	p.formData[header] = value
	return nil
}

type postPolicyDocument struct {
	Expiration string        `json:"expiration"`
	Conditions []interface{} `json:"conditions"`
}

// PresignedPostPolicy turns p into a signed form-field set: the caller
// POSTs a multipart/form-data request with these fields (plus "file" last)
// directly to the bucket's endpoint.
func (c *Client) PresignedPostPolicy(ctx context.Context, p *PostPolicy) (*url.URL, map[string]string, error) {
	bucketName, ok := p.formData["bucket"]
	if !ok {
		return nil, nil, ErrInvalidArgument("s3lite: post-policy requires SetBucket")
	}
	if p.expiration.IsZero() {
		return nil, nil, ErrInvalidArgument("s3lite: post-policy requires SetExpires")
	}

	location, err := c.getRegion(bucketName, "")
	if err != nil {
		return nil, nil, err
	}

	value, err := c.credsProvider.Get()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	date := s3utils.FormatSignerDate(now)
	amzDate := s3utils.FormatAmzDate(now)
	scopeStr := fmt.Sprintf("%s/%s/s3/aws4_request", date, location)

	conditions := append([]interface{}{}, p.conditions...)
	conditions = append(conditions,
		[]string{"eq", "$x-amz-date", amzDate},
		[]string{"eq", "$x-amz-algorithm", "AWS4-HMAC-SHA256"},
		[]string{"eq", "$x-amz-credential", value.AccessKeyID + "/" + scopeStr},
	)
	if value.SessionToken != "" {
		conditions = append(conditions, []string{"eq", "$x-amz-security-token", value.SessionToken})
	}

	doc := postPolicyDocument{
		Expiration: s3utils.FormatISO8601(p.expiration),
		Conditions: conditions,
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	policyBase64 := base64.StdEncoding.EncodeToString(docBytes)

	signature := signer.PostPresignSignature(policyBase64, value.SecretAccessKey, date, location, "s3")

	formData := map[string]string{}
	for k, v := range p.formData {
		formData[k] = v
	}
	formData["policy"] = policyBase64
	formData["x-amz-algorithm"] = "AWS4-HMAC-SHA256"
	formData["x-amz-credential"] = value.AccessKeyID + "/" + scopeStr
	formData["x-amz-date"] = amzDate
	formData["x-amz-signature"] = signature
	if value.SessionToken != "" {
		formData["x-amz-security-token"] = value.SessionToken
	}

	return c.regionalBaseURL(location).bucketURL(bucketName), formData, nil
}
