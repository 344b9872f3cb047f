package s3utils

import (
	"net/url"
	"strings"
)

// IsAmazonEndpoint reports whether u addresses AWS S3 itself (as opposed to
// a compatible third-party endpoint such as MinIO).
func IsAmazonEndpoint(u url.URL) bool {
	host := u.Hostname()
	if host == "s3.amazonaws.com" {
		return true
	}
	return (strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-accelerate.") || strings.HasPrefix(host, "s3-fips.")) &&
		(strings.HasSuffix(host, ".amazonaws.com") || strings.HasSuffix(host, ".amazonaws.com.cn"))
}

// IsAmazonFIPSEndpoint reports whether u is one of the AWS FIPS-compliant
// endpoints, which must not be rewritten by bucket-location-based host
// substitution.
func IsAmazonFIPSEndpoint(u url.URL) bool {
	return strings.Contains(u.Hostname(), "s3-fips")
}

// IsAmazonAccelerateEndpoint reports whether u is the S3 transfer
// acceleration endpoint.
func IsAmazonAccelerateEndpoint(u url.URL) bool {
	return u.Hostname() == "s3-accelerate.amazonaws.com"
}

// IsAmazonDualStackEndpoint reports whether u carries the ".dualstack."
// infix.
func IsAmazonDualStackEndpoint(u url.URL) bool {
	return strings.Contains(u.Hostname(), ".dualstack.")
}

// IsAmazonChinaEndpoint reports whether u is in the aws-cn partition (a host
// ending in ".amazonaws.com.cn"), where a region must always be specified
// explicitly.
func IsAmazonChinaEndpoint(u url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".amazonaws.com.cn")
}

// IsGoogleEndpoint reports whether u addresses Google Cloud Storage's
// S3-interop endpoint, which only supports SigV2 and never streaming
// signatures.
func IsGoogleEndpoint(u url.URL) bool {
	return u.Hostname() == "storage.googleapis.com"
}

// IsAliyunOSSEndpoint reports whether u addresses an Alibaba Cloud OSS
// endpoint, which forces virtual-host style addressing.
func IsAliyunOSSEndpoint(u url.URL) bool {
	return strings.HasSuffix(u.Hostname(), "aliyuncs.com")
}

// IsVirtualHostSupported reports whether bucketName can be safely used as a
// DNS label against host u: always for Aliyun OSS; for AWS (accelerate
// included) and Google Cloud Storage unless the bucket name contains a dot
// and the scheme is https; everything else defaults to path style.
func IsVirtualHostSupported(u url.URL, bucketName string) bool {
	if bucketName == "" {
		return false
	}
	if IsAliyunOSSEndpoint(u) {
		return true
	}
	if !IsAmazonEndpoint(u) && !IsGoogleEndpoint(u) {
		return false
	}
	// Bucket names with dots break TLS SNI/SAN matching against the
	// wildcard certificate used for virtual-host style over HTTPS.
	if strings.Contains(bucketName, ".") && u.Scheme == "https" {
		return false
	}
	return true
}

// GetRegionFromURL extracts a region token from an AWS-style host, e.g.
// "s3.eu-west-1.amazonaws.com" -> "eu-west-1". Returns "" when the host
// carries no region component (global endpoint, or non-AWS host).
func GetRegionFromURL(u url.URL) string {
	host := u.Hostname()
	if !strings.HasSuffix(host, ".amazonaws.com") && !strings.HasSuffix(host, ".amazonaws.com.cn") {
		return ""
	}
	parts := strings.Split(host, ".")
	for _, p := range parts {
		if p == "s3" || p == "dualstack" || p == "amazonaws" || p == "com" || p == "cn" || p == "s3-accelerate" || p == "s3-fips" {
			continue
		}
		return p
	}
	return ""
}
