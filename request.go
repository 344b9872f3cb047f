package s3lite

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	md5simd "github.com/minio/md5-simd"
	sha256simd "github.com/minio/sha256-simd"

	"github.com/cloudcentry/s3lite/pkg/signer"
)

// requestInput is the container every outgoing request is built from:
// caller-supplied bucket/object/query/headers/body, plus whatever the
// client fills in (region, content hash).
type requestInput struct {
	presignURL bool
	expires    time.Duration

	bucketName   string
	objectName   string
	queryValues  url.Values
	customHeader http.Header

	bucketLocation string

	contentBody      io.Reader
	contentLength    int64
	contentMD5Base64 string
	contentSHA256Hex string
}

var md5Server = md5simd.NewServer()

func md5Base64(data []byte) string {
	h := md5Server.NewHash()
	defer h.Close()
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func sha256Hex(data []byte) string {
	h := sha256simd.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// newRequest builds and signs a *http.Request from metadata: host
// rewriting and URL assembly happen here, then the mandatory header
// ordering, then the signer, or the presign variant
// when metadata.presignURL is set.
func (c *Client) newRequest(method string, metadata requestInput) (*http.Request, error) {
	if method == "" {
		method = http.MethodPost
	}

	location := metadata.bucketLocation
	if location == "" {
		var err error
		location, err = c.getRegion(metadata.bucketName, "")
		if err != nil {
			return nil, err
		}
	}

	isMakeBucket := metadata.objectName == "" && method == http.MethodPut && len(metadata.queryValues) == 0
	forcePathStyle := isMakeBucket || c.lookup == BucketLookupPath

	targetURL, err := buildURL(c.regionalBaseURL(location), metadata.bucketName, metadata.objectName, metadata.queryValues, forcePathStyle)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, targetURL.String(), nil)
	if err != nil {
		return nil, err
	}

	value, err := c.credsProvider.Get()
	if err != nil {
		return nil, err
	}
	anonymous := value.SignerType.IsAnonymous() || (value.AccessKeyID == "" && value.SecretAccessKey == "")

	if metadata.presignURL {
		if anonymous {
			return nil, ErrInvalidArgument("s3lite: presigned URLs cannot be generated with anonymous credentials")
		}
		expires := metadata.expires
		if expires <= 0 {
			expires = 7 * 24 * time.Hour
		}
		signer.PresignV4(req, value.AccessKeyID, value.SecretAccessKey, value.SessionToken, location, expires)
		return req, nil
	}

	c.setUserAgent(req)
	for k, v := range metadata.customHeader {
		if len(v) > 0 {
			req.Header.Set(k, v[0])
		}
	}

	if metadata.contentLength == 0 {
		req.Body = nil
	} else {
		req.Body = io.NopCloser(metadata.contentBody)
	}
	req.ContentLength = metadata.contentLength
	if req.ContentLength < 0 {
		req.TransferEncoding = []string{"chunked"}
	}

	if metadata.contentMD5Base64 != "" {
		req.Header.Set("Content-MD5", metadata.contentMD5Base64)
	}

	if anonymous {
		return req, nil
	}

	shaHeader := signer.EmptySHA256
	switch {
	case metadata.contentSHA256Hex != "":
		shaHeader = metadata.contentSHA256Hex
	case metadata.contentLength < 0:
		shaHeader = "UNSIGNED-PAYLOAD"
	}
	req.Header.Set("X-Amz-Content-Sha256", shaHeader)

	signer.SignV4(req, value.AccessKeyID, value.SecretAccessKey, value.SessionToken, location)
	return req, nil
}

// regionalBaseURL returns a copy of the client's BaseURL with Region set to
// the resolved region for this call; the original (endpoint-classification)
// fields are preserved.
func (c *Client) regionalBaseURL(region string) *BaseURL {
	copy := *c.baseURL
	copy.Region = region
	return &copy
}

func (c *Client) setUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent())
}

// do executes req, optionally dumping the wire exchange to c.traceOutput.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if c.traceOutput != nil {
		c.dumpHTTP(req, resp, err)
	}
	return resp, err
}

func (c *Client) dumpHTTP(req *http.Request, resp *http.Response, err error) {
	if err != nil {
		fmt.Fprintf(c.traceOutput, "---------START-HTTP---------\n%s %s -> error: %v\n----------END-HTTP----------\n", req.Method, req.URL, err)
		return
	}
	if c.traceErrorsOnly && resp.StatusCode < 400 {
		return
	}
	fmt.Fprintf(c.traceOutput, "---------START-HTTP---------\n%s %s -> %d\n----------END-HTTP----------\n", req.Method, req.URL, resp.StatusCode)
}

// executeMethod builds (via newRequest), signs, and sends a request,
// applying the retry/redirect policy: a seekable body is
// retried on transport errors up to MaxRetry times; a HEAD request that
// comes back as the RetryHead sentinel is retried exactly once against the
// region the server told us via x-amz-bucket-region.
func (c *Client) executeMethod(ctx context.Context, method string, metadata requestInput) (*http.Response, error) {
	bodySeeker, isRetryable := metadata.contentBody.(io.Seeker)
	maxRetry := 1
	if isRetryable {
		maxRetry = MaxRetry
	}

	var lastErr error
	retriedHead := false
	for attempt := 0; attempt < maxRetry; attempt++ {
		if attempt > 0 && bodySeeker != nil {
			if _, err := bodySeeker.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(method, metadata)
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		resp, err := c.do(req)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
			continue
		}

		if isSuccessStatus(resp.StatusCode) {
			return resp, nil
		}

		classified := c.httpRespToErrorResponse(resp, metadata.bucketName, metadata.objectName)
		resp.Body.Close()

		if er, ok := classified.(ErrorResponse); ok && er.Code == retryHeadSentinel && method == http.MethodHead {
			c.evictCachedRegion(metadata.bucketName)
			if retriedHead {
				er.Code = "BadRequest"
				er.Message = "Bad Request, bucket is in region " + er.Region
				return nil, er
			}
			retriedHead = true
			maxRetry++
			metadata.bucketLocation = er.Region
			lastErr = classified
			continue
		}

		c.evictRegionOnError(metadata.bucketName, classified)
		return nil, classified
	}
	return nil, lastErr
}

func isSuccessStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusNoContent || code == http.StatusPartialContent
}

func retryBackoff(attempt int) time.Duration {
	d := time.Duration(attempt*attempt) * 200 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
