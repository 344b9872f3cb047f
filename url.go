package s3lite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// BaseURL is the immutable, classified view of the endpoint a Client talks
// to. It is derived once at construction time from the raw endpoint the
// caller supplied and never mutated afterwards; every outgoing request
// builds its own target URL from a copy of these fields.
type BaseURL struct {
	Scheme   string
	Host     string
	Port     string
	Region   string

	IsAWSHost        bool
	IsFIPSHost       bool
	IsAccelerateHost bool
	IsDualstackHost  bool
	IsVirtualStyle   bool
}

// NewBaseURL classifies a scheme+host(:port) endpoint: AWS hosts are
// recognized by the "s3." / "s3-accelerate." prefix and ".amazonaws.com" /
// ".amazonaws.com.cn" suffix; the "dualstack." infix sets the dualstack
// flag; ".cn" endpoints require a region; Aliyun OSS hosts force
// virtual-host style.
func NewBaseURL(scheme, hostport, region string) (*BaseURL, error) {
	host, port := hostport, ""
	if h, p, ok := splitHostPort(hostport); ok {
		host, port = h, p
	}

	u := url.URL{Scheme: scheme, Host: host}
	b := &BaseURL{
		Scheme:           scheme,
		Host:             host,
		Port:             port,
		Region:           region,
		IsAWSHost:        s3utils.IsAmazonEndpoint(u),
		IsFIPSHost:       s3utils.IsAmazonFIPSEndpoint(u),
		IsAccelerateHost: s3utils.IsAmazonAccelerateEndpoint(u),
		IsDualstackHost:  s3utils.IsAmazonDualStackEndpoint(u),
		IsVirtualStyle:   s3utils.IsAliyunOSSEndpoint(u),
	}
	if s3utils.IsAmazonChinaEndpoint(u) && region == "" {
		return nil, fmt.Errorf("s3lite: region is required for endpoint %q", host)
	}
	return b, nil
}

func splitHostPort(hostport string) (host, port string, ok bool) {
	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return hostport, "", false
	}
	// Guard against bare IPv6 literals without a port (e.g. "::1").
	if strings.Contains(hostport[i+1:], "]") {
		return hostport, "", false
	}
	return hostport[:i], hostport[i+1:], true
}

func (b *BaseURL) hostport() string {
	if b.Port == "" {
		return b.Host
	}
	return b.Host + ":" + b.Port
}

// enforcePathStyle covers the addressing cases that must not use
// virtual-host style: location queries, and dotted bucket names over HTTPS
// where the wildcard certificate cannot match a multi-label prefix. Bucket
// creation is the caller's call to make (the forcePathStyle parameter of
// buildURL), since only it can see the object name.
func enforcePathStyle(scheme, bucketName string, query url.Values) bool {
	if bucketName == "" {
		return false
	}
	if _, ok := query["location"]; ok {
		return true
	}
	if strings.Contains(bucketName, ".") && scheme == "https" {
		return true
	}
	return false
}

// buildURL assembles the target URL: host classification
// and rewriting, bucket/object path assembly, and object-name encoding.
func buildURL(base *BaseURL, bucketName, objectName string, query url.Values, forcePathStyle bool) (*url.URL, error) {
	if bucketName != "" {
		if err := s3utils.CheckValidBucketName(bucketName); err != nil {
			return nil, err
		}
	}

	scheme := base.Scheme
	host := base.hostport()
	region := base.Region

	if bucketName == "" && objectName == "" {
		u := &url.URL{Scheme: scheme, Host: host}
		if base.IsAWSHost && !base.IsFIPSHost {
			u.Host = "s3." + regionOrDefault(region) + "." + stripAWSPrefix(base.Host)
		}
		if len(query) > 0 {
			u.RawQuery = s3utils.QueryEncode(query)
		}
		return u, nil
	}

	pathStyle := forcePathStyle || enforcePathStyle(scheme, bucketName, query) || base.Port != ""
	virtualStyle := !pathStyle && (base.IsVirtualStyle || s3utils.IsVirtualHostSupported(url.URL{Scheme: scheme, Host: host}, bucketName))

	// FIPS endpoints are pinned: the host the caller configured is the
	// host that must appear on the wire, never a region-substituted one.
	if base.IsAWSHost && !base.IsFIPSHost {
		domain, err := awsS3Domain(base, bucketName, pathStyle)
		if err != nil {
			return nil, err
		}
		host = domain + stripAWSPrefix(base.Host)
		if base.Port != "" {
			host += ":" + base.Port
		}
	}

	u := &url.URL{Scheme: scheme, Host: host}

	if pathStyle || !virtualStyle {
		u.Path = "/" + bucketName
	} else {
		u.Host = bucketName + "." + u.Host
	}

	if objectName != "" {
		name := objectName
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		// Path stays decoded; RawPath carries the segment-encoded form so
		// url.URL serializes exactly what the signer canonicalized.
		u.Path += name
		u.RawPath = s3utils.EncodePath(u.Path)
		if u.RawPath == u.Path {
			u.RawPath = ""
		}
	}

	if len(query) > 0 {
		u.RawQuery = s3utils.QueryEncode(query)
	}
	return u, nil
}

// bucketURL is the path-style bucket root a POST-policy form targets.
func (b *BaseURL) bucketURL(bucketName string) *url.URL {
	return &url.URL{Scheme: b.Scheme, Host: b.hostport(), Path: "/" + bucketName}
}

func regionOrDefault(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}

// stripAWSPrefix removes a leading "s3." or "s3-accelerate." (with or
// without a "dualstack." infix), and the region label that follows it, from
// an AWS host so the domain can be rebuilt with the correct
// prefix/region/dualstack combination.
func stripAWSPrefix(host string) string {
	for _, prefix := range []string{"s3-accelerate.dualstack.", "s3.dualstack.", "s3-accelerate.", "s3."} {
		if strings.HasPrefix(host, prefix) {
			rest := host[len(prefix):]
			if !strings.HasPrefix(rest, "amazonaws.") {
				if i := strings.Index(rest, "."); i >= 0 {
					rest = rest[i+1:]
				}
			}
			return rest
		}
	}
	return host
}

// awsS3Domain assembles the "s3[-accelerate].[dualstack.][region.]" prefix.
func awsS3Domain(base *BaseURL, bucketName string, pathStyle bool) (string, error) {
	var b strings.Builder
	b.WriteString("s3.")

	if base.IsAccelerateHost {
		if strings.Contains(bucketName, ".") {
			return "", fmt.Errorf("s3lite: bucket name %q is not compatible with the accelerate endpoint (contains '.')", bucketName)
		}
		if !pathStyle {
			b.Reset()
			b.WriteString("s3-accelerate.")
		}
	}

	if base.IsDualstackHost {
		b.WriteString("dualstack.")
	}

	if pathStyle || !base.IsAccelerateHost {
		b.WriteString(regionOrDefault(base.Region))
		b.WriteByte('.')
	}
	return b.String(), nil
}
