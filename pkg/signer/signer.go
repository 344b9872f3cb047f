// Package signer implements AWS Signature Version 4 request signing for the
// S3 and STS services, plus the presigned-URL and POST-policy variants.
package signer

import (
	"crypto/hmac"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	sha256simd "github.com/minio/sha256-simd"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// ServiceType names the SigV4 scope's service component. S3 and STS differ
// only in this value and in which endpoint ends up signed.
type ServiceType string

const (
	ServiceTypeS3  ServiceType = "s3"
	ServiceTypeSTS ServiceType = "sts"
)

const (
	signAlgorithm     = "AWS4-HMAC-SHA256"
	iso8601DateFormat = "20060102T150405Z"
	yyyymmdd          = "20060102"

	unsignedPayload = "UNSIGNED-PAYLOAD"
)

// EmptySHA256 is the hex SHA-256 digest of the empty string, used as
// x-amz-content-sha256 for bodyless requests.
const EmptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func sum256(data []byte) []byte {
	h := sha256simd.New()
	h.Write(data)
	return h.Sum(nil)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256simd.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// signingKey derives the four-level SigV4 signing key.
func signingKey(secretKey, date, region string, service ServiceType) []byte {
	dateKey := hmacSHA256([]byte("AWS4"+secretKey), date)
	regionKey := hmacSHA256(dateKey, region)
	serviceKey := hmacSHA256(regionKey, string(service))
	return hmacSHA256(serviceKey, "aws4_request")
}

func scope(date, region string, service ServiceType) string {
	return strings.Join([]string{date, region, string(service), "aws4_request"}, "/")
}

func stringToSign(amzDate, scopeStr, canonicalRequestHash string) string {
	return strings.Join([]string{signAlgorithm, amzDate, scopeStr, canonicalRequestHash}, "\n")
}

// CanonicalRequest holds the already-derived pieces of a SigV4 canonical
// request; callers (the request builder) assemble these from a concrete
// *http.Request plus out-of-band bucket/object state.
type CanonicalRequest struct {
	Method           string
	URI              string // already segment-encoded, leading '/'
	Query            *s3utils.Multimap
	RawQuery         string // pre-encoded canonical query string, used when Query is nil
	Headers          *s3utils.Multimap
	SignedHeaders    string
	ContentSHA256Hex string
}

func (c CanonicalRequest) canonicalQuery() string {
	if c.Query != nil {
		return canonicalQueryFromMultimap(c.Query)
	}
	return c.RawQuery
}

func canonicalQueryFromMultimap(m *s3utils.Multimap) string {
	type pair struct{ k, v string }
	var pairs []pair
	for _, k := range m.Keys() {
		for _, v := range m.Get(k) {
			pairs = append(pairs, pair{k, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(s3utils.EncodeSegment(p.k))
		b.WriteByte('=')
		b.WriteString(s3utils.EncodeSegment(p.v))
	}
	return b.String()
}

func (c CanonicalRequest) hash() string {
	signedHeaders := c.SignedHeaders
	if signedHeaders == "" {
		signedHeaders = c.Headers.SignedHeaders()
	}
	raw := strings.Join([]string{
		c.Method,
		c.URI,
		c.canonicalQuery(),
		c.Headers.CanonicalHeaders(),
		signedHeaders,
		c.ContentSHA256Hex,
	}, "\n")
	return hex.EncodeToString(sum256([]byte(raw)))
}

// SignV4 signs req in place for S3, adding Authorization and the
// x-amz-date/X-Amz-Security-Token headers. The payload hash is read from
// the X-Amz-Content-Sha256 header, which the caller sets beforehand (the
// empty-body hash, the UNSIGNED-PAYLOAD literal, or a real digest); when
// that header is absent the empty-body hash is signed and no header is
// added.
func SignV4(req *http.Request, accessKey, secretKey, sessionToken, region string) {
	signV4(req, accessKey, secretKey, sessionToken, region, ServiceTypeS3)
}

// SignV4STS is the STS-scoped variant of SignV4.
func SignV4STS(req *http.Request, accessKey, secretKey, sessionToken, region string) {
	signV4(req, accessKey, secretKey, sessionToken, region, ServiceTypeSTS)
}

func signV4(req *http.Request, accessKey, secretKey, sessionToken, region string, service ServiceType) {
	if accessKey == "" || secretKey == "" {
		return
	}
	now := time.Now().UTC()
	amzDate := now.Format(iso8601DateFormat)
	date := now.Format(yyyymmdd)

	req.Header.Set("X-Amz-Date", amzDate)
	if sessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", sessionToken)
	}

	headers := headersFromRequest(req)
	contentSHA256 := req.Header.Get("X-Amz-Content-Sha256")
	if contentSHA256 == "" {
		contentSHA256 = EmptySHA256
	}

	cr := CanonicalRequest{
		Method:           req.Method,
		URI:              s3utils.EncodePath(req.URL.Path),
		RawQuery:         canonicalQueryFromMultimap(queryMultimap(req)),
		Headers:          headers,
		ContentSHA256Hex: contentSHA256,
	}
	if cr.URI == "" {
		cr.URI = "/"
	}

	scopeStr := scope(date, region, service)
	sts := stringToSign(amzDate, scopeStr, cr.hash())
	key := signingKey(secretKey, date, region, service)
	signature := hex.EncodeToString(hmacSHA256(key, sts))

	auth := signAlgorithm + " Credential=" + accessKey + "/" + scopeStr +
		", SignedHeaders=" + headers.SignedHeaders() +
		", Signature=" + signature
	req.Header.Set("Authorization", auth)
}

func headersFromRequest(req *http.Request) *s3utils.Multimap {
	m := s3utils.NewMultimap()
	for k, vs := range req.Header {
		for _, v := range vs {
			m.Add(k, v)
		}
	}
	m.Add("Host", req.Host)
	return m
}

func queryMultimap(req *http.Request) *s3utils.Multimap {
	m := s3utils.NewMultimap()
	for k, vs := range req.URL.Query() {
		for _, v := range vs {
			m.Add(k, v)
		}
	}
	return m
}

// PresignV4 signs req for query-string (presigned URL) use: the signature
// and credential are moved into the query string instead of the
// Authorization header, and the content hash is always UNSIGNED-PAYLOAD.
// expires is clamped by the caller to [1, 604800] seconds before this is
// called.
func PresignV4(req *http.Request, accessKey, secretKey, sessionToken, region string, expires time.Duration) {
	if accessKey == "" || secretKey == "" {
		return
	}
	now := time.Now().UTC()
	amzDate := now.Format(iso8601DateFormat)
	date := now.Format(yyyymmdd)
	scopeStr := scope(date, region, ServiceTypeS3)

	q := req.URL.Query()
	q.Set("X-Amz-Algorithm", signAlgorithm)
	q.Set("X-Amz-Credential", accessKey+"/"+scopeStr)
	q.Set("X-Amz-Date", amzDate)
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(expires/time.Second), 10))
	if sessionToken != "" {
		q.Set("X-Amz-Security-Token", sessionToken)
	}

	headers := s3utils.NewMultimap()
	headers.Add("Host", req.Host)
	q.Set("X-Amz-SignedHeaders", headers.SignedHeaders())
	req.URL.RawQuery = q.Encode()

	cr := CanonicalRequest{
		Method:           req.Method,
		URI:              s3utils.EncodePath(req.URL.Path),
		RawQuery:         canonicalQueryFromMultimap(queryMultimapRaw(req.URL.Query())),
		Headers:          headers,
		ContentSHA256Hex: unsignedPayload,
	}
	if cr.URI == "" {
		cr.URI = "/"
	}

	sts := stringToSign(amzDate, scopeStr, cr.hash())
	key := signingKey(secretKey, date, region, ServiceTypeS3)
	signature := hex.EncodeToString(hmacSHA256(key, sts))

	q = req.URL.Query()
	q.Set("X-Amz-Signature", signature)
	req.URL.RawQuery = q.Encode()
}

func queryMultimapRaw(v map[string][]string) *s3utils.Multimap {
	m := s3utils.NewMultimap()
	for k, vs := range v {
		for _, vv := range vs {
			m.Add(k, vv)
		}
	}
	return m
}

// PostPresignSignature signs a base64-encoded POST policy document,
// returning the hex signature to place alongside the form fields.
func PostPresignSignature(policyBase64, secretKey, date, region string, service ServiceType) string {
	key := signingKey(secretKey, date, region, service)
	return hex.EncodeToString(hmacSHA256(key, policyBase64))
}
