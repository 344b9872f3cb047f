package s3utils

import "time"

// Canonical time layouts used across signing and response parsing.
const (
	SignerDateFormat = "20060102"
	AmzDateFormat    = "20060102T150405Z"
	HTTPDateFormat   = "Mon, 02 Jan 2006 15:04:05 GMT"
	ISO8601Format    = "2006-01-02T15:04:05.000Z"
)

// FormatSignerDate returns the YYYYMMDD scope-date component.
func FormatSignerDate(t time.Time) string { return t.UTC().Format(SignerDateFormat) }

// FormatAmzDate returns the x-amz-date header value.
func FormatAmzDate(t time.Time) string { return t.UTC().Format(AmzDateFormat) }

// FormatHTTPDate returns an RFC-1123-ish Date header value as S3 expects it.
func FormatHTTPDate(t time.Time) string { return t.UTC().Format(HTTPDateFormat) }

// FormatISO8601 returns a millisecond-precision ISO-8601 UTC timestamp, the
// format POST-policy documents and several XML response bodies use.
func FormatISO8601(t time.Time) string { return t.UTC().Format(ISO8601Format) }
