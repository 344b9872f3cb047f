// Package s3utils implements the small, mostly stateless helpers shared by
// the signer, the URL builder and the base client: bucket-name validation,
// path/query percent-encoding, part-size arithmetic and canonical time
// formats.
package s3utils

import (
	"net"
	"regexp"
	"strings"
)

var (
	// validBucketName is the strict RFC-ish rule used by MakeBucket and any
	// call that creates or addresses a bucket by a brand-new name.
	validBucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]{1,61}[a-z0-9]$`)

	// validBucketNameLoose is the loose rule accepted when merely
	// addressing an existing bucket (historical servers allow underscores
	// and colons in names created before stricter validation existed).
	validBucketNameLoose = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\._:\-]{1,61}[a-zA-Z0-9]$`)

	ipAddress = regexp.MustCompile(`^(\d+\.){3}\d+$`)
)

// CheckValidBucketNameStrict checks the bucket name against the stricter
// pattern required for bucket creation.
func CheckValidBucketNameStrict(bucketName string) error {
	if err := checkBucketNameCommon(bucketName, validBucketName); err != nil {
		return err
	}
	if ipAddress.MatchString(bucketName) {
		return ErrInvalidBucketName("Bucket name cannot be an ip address")
	}
	if strings.Contains(bucketName, "..") || strings.Contains(bucketName, ".-") || strings.Contains(bucketName, "-.") {
		return ErrInvalidBucketName("Bucket name cannot have successive periods, or periods adjacent to hyphens")
	}
	return nil
}

// CheckValidBucketName checks the bucket name against the looser pattern
// used for addressing existing buckets.
func CheckValidBucketName(bucketName string) error {
	return checkBucketNameCommon(bucketName, validBucketNameLoose)
}

func checkBucketNameCommon(bucketName string, pattern *regexp.Regexp) error {
	if strings.TrimSpace(bucketName) == "" {
		return ErrInvalidBucketName("Bucket name cannot be empty")
	}
	if len(bucketName) < 3 {
		return ErrInvalidBucketName("Bucket name cannot be shorter than 3 characters")
	}
	if len(bucketName) > 63 {
		return ErrInvalidBucketName("Bucket name cannot be longer than 63 characters")
	}
	if !pattern.MatchString(bucketName) {
		return ErrInvalidBucketName("Bucket name contains invalid characters")
	}
	return nil
}

// IsValidIP reports whether host is a literal IP address.
func IsValidIP(host string) bool {
	return net.ParseIP(host) != nil
}

// CheckValidObjectName validates an object key is non-empty and at most
// 1024 bytes long; no other constraint on object names is checked here.
func CheckValidObjectName(objectName string) error {
	if strings.TrimSpace(objectName) == "" {
		return ErrInvalidObjectName("Object name cannot be empty")
	}
	return CheckValidObjectNamePrefix(objectName)
}

// CheckValidObjectNamePrefix validates an object-name prefix (used by
// listing calls), which unlike a full object name may legitimately be
// empty.
func CheckValidObjectNamePrefix(objectName string) error {
	if len(objectName) > 1024 {
		return ErrInvalidObjectName("Object name cannot be greater than 1024 characters")
	}
	return nil
}

// ErrInvalidBucketName and ErrInvalidObjectName are thin string-carrying
// errors; kept distinct types so callers can type-switch on validation
// failures without parsing messages.
type ErrInvalidBucketName string

func (e ErrInvalidBucketName) Error() string { return string(e) }

type ErrInvalidObjectName string

func (e ErrInvalidObjectName) Error() string { return string(e) }
