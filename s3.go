// Package s3lite implements a client for the S3 object-storage wire
// protocol: request signing, endpoint addressing, streaming uploads and
// downloads, multipart orchestration, and the SELECT event-stream decoder,
// against AWS S3 and S3-compatible services such as MinIO.
package s3lite

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"github.com/cloudcentry/s3lite/pkg/credentials"
)

const (
	libraryName    = "s3lite"
	libraryVersion = "v1.0.0"
)

var libraryUserAgent = "MinIO (" + runtime.GOOS + "; " + runtime.GOARCH + ") " + libraryName + "/" + libraryVersion

// MaxRetry is the maximum number of times executeMethod retries a
// seekable-body request before surfacing the last error.
const MaxRetry = 10

// Options configures a new Client. Every field has a usable zero value: a
// nil Creds means anonymous access, and the endpoint itself is New's first
// argument rather than a field here.
type Options struct {
	Creds  *credentials.Credentials
	Secure bool
	Region string

	Transport http.RoundTripper

	// Trace, when non-nil, receives one summary block per exchange (method,
	// URL, and status code or transport error) plus the client's debug log;
	// intended for debugging, not production use.
	Trace io.Writer
	// TraceErrorsOnly restricts Trace's exchange summaries to transport
	// errors and responses with a status of 400 or above.
	TraceErrorsOnly bool

	AppName    string
	AppVersion string

	// BucketLookup overrides the auto-detected virtual-host-vs-path-style
	// addressing choice.
	BucketLookup BucketLookupType
}

// BucketLookupType selects how a Client addresses buckets on the wire.
type BucketLookupType int

const (
	BucketLookupAuto BucketLookupType = iota
	BucketLookupDNS
	BucketLookupPath
)

// Client is the base S3 client: one method per S3 API, argument
// validation, region resolution, request construction/signing, and
// response parsing. High-level orchestration (multipart PUT, compose,
// download-to-file, pagination) lives in the methods defined across the
// other files in this package but hangs off the same type.
type Client struct {
	baseURL *BaseURL

	credsProvider *credentials.Credentials

	appName    string
	appVersion string

	httpClient *http.Client

	regionMu    sync.RWMutex
	regionCache map[string]string

	traceOutput     io.Writer
	traceErrorsOnly bool

	lookup BucketLookupType

	log *logrus.Logger
}

// New constructs a Client against endpoint (host[:port], no scheme) using
// the given Options. Region, when empty, is resolved lazily per bucket via
// GetBucketLocation and cached.
func New(endpoint string, opts Options) (*Client, error) {
	scheme := "https"
	if !opts.Secure {
		scheme = "http"
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	baseURL, err := NewBaseURL(scheme, endpoint, opts.Region)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	creds := opts.Creds
	if creds == nil {
		creds = credentials.NewAnonymous()
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	c := &Client{
		baseURL:         baseURL,
		credsProvider:   creds,
		appName:         opts.AppName,
		appVersion:      opts.AppVersion,
		regionCache:     make(map[string]string),
		traceOutput:     opts.Trace,
		traceErrorsOnly: opts.TraceErrorsOnly,
		lookup:          opts.BucketLookup,
		log:             logger,
	}
	c.httpClient = &http.Client{
		Jar:           jar,
		Transport:     transport,
		CheckRedirect: c.onRedirect,
	}
	if opts.Trace != nil {
		c.log.SetOutput(opts.Trace)
		c.log.SetLevel(logrus.DebugLevel)
	}
	return c, nil
}

// userAgent renders "<lib-default> [<app-name>/<app-version>]".
func (c *Client) userAgent() string {
	if c.appName != "" && c.appVersion != "" {
		return libraryUserAgent + " " + c.appName + "/" + c.appVersion
	}
	return libraryUserAgent
}

// onRedirect copies onto a redirected request every header of the previous
// request that it does not already carry, dropping Authorization when the
// host changes; it does not re-sign. After five redirects the last response
// is returned as is.
func (c *Client) onRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 5 {
		return http.ErrUseLastResponse
	}
	if len(via) == 0 {
		return nil
	}
	last := via[len(via)-1]
	for k, v := range last.Header {
		if k == "Authorization" && req.Host != last.Host {
			continue
		}
		if _, ok := req.Header[k]; !ok {
			req.Header[k] = v
		}
	}
	return nil
}
