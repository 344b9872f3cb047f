package s3lite

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// ListObjectsOptions configures ListObjects. Recursive controls whether a
// "/" Delimiter is sent: recursive listings flatten the whole keyspace,
// non-recursive ones fold deeper keys into CommonPrefixes entries the
// iterator surfaces as synthetic ObjectInfo values with IsPrefix set.
type ListObjectsOptions struct {
	Prefix       string
	Recursive    bool
	WithVersions bool
	MaxKeys      int
	StartAfter   string
	UseV1        bool // force the legacy ListObjectsV1 API instead of V2
}

func (o ListObjectsOptions) delimiter() string {
	if o.Recursive {
		return ""
	}
	return "/"
}

func (o ListObjectsOptions) maxKeys() string {
	if o.MaxKeys > 0 {
		return strconv.Itoa(o.MaxKeys)
	}
	return ""
}

// ListObjects returns a channel of ObjectInfo lazily paginated from the
// server: each receive may trigger another List request once the current
// page is drained. The channel is closed when the listing is exhausted,
// the context is cancelled, or a request fails — in the last case a final
// ObjectInfo carrying a non-nil Err is sent before the channel closes.
func (c *Client) ListObjects(ctx context.Context, bucketName string, opts ListObjectsOptions) <-chan ObjectInfo {
	out := make(chan ObjectInfo, 100)

	go func() {
		defer close(out)
		if err := s3utils.CheckValidBucketName(bucketName); err != nil {
			sendErr(ctx, out, err)
			return
		}

		switch {
		case opts.WithVersions:
			c.listObjectVersions(ctx, bucketName, opts, out)
		case opts.UseV1:
			c.listObjectsV1(ctx, bucketName, opts, out)
		default:
			c.listObjectsV2(ctx, bucketName, opts, out)
		}
	}()

	return out
}

func sendErr(ctx context.Context, out chan<- ObjectInfo, err error) {
	select {
	case out <- ObjectInfo{Err: err}:
	case <-ctx.Done():
	}
}

func sendInfo(ctx context.Context, out chan<- ObjectInfo, info ObjectInfo) bool {
	select {
	case out <- info:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) listObjectsV2(ctx context.Context, bucketName string, opts ListObjectsOptions, out chan<- ObjectInfo) {
	continuationToken := ""
	for {
		query := url.Values{}
		query.Set("list-type", "2")
		query.Set("prefix", opts.Prefix)
		if d := opts.delimiter(); d != "" {
			query.Set("delimiter", d)
		}
		if mk := opts.maxKeys(); mk != "" {
			query.Set("max-keys", mk)
		}
		if continuationToken != "" {
			query.Set("continuation-token", continuationToken)
		}
		if opts.StartAfter != "" {
			query.Set("start-after", opts.StartAfter)
		}

		resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{bucketName: bucketName, queryValues: query})
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		var result listBucketV2Result
		err = xml.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		for _, obj := range result.Contents {
			info := ObjectInfo{Key: obj.Key, LastModified: obj.LastModified, ETag: stripQuotes(obj.ETag), Size: obj.Size, Owner: obj.Owner, StorageClass: obj.StorageClass}
			if !sendInfo(ctx, out, info) {
				return
			}
		}
		for _, p := range result.CommonPrefixes {
			if !sendInfo(ctx, out, ObjectInfo{Key: p.Prefix, IsPrefix: true}) {
				return
			}
		}

		if !result.IsTruncated {
			return
		}
		continuationToken = result.NextContinuationToken
	}
}

func (c *Client) listObjectsV1(ctx context.Context, bucketName string, opts ListObjectsOptions, out chan<- ObjectInfo) {
	marker := opts.StartAfter
	for {
		query := url.Values{}
		query.Set("prefix", opts.Prefix)
		if d := opts.delimiter(); d != "" {
			query.Set("delimiter", d)
		}
		if mk := opts.maxKeys(); mk != "" {
			query.Set("max-keys", mk)
		}
		if marker != "" {
			query.Set("marker", marker)
		}

		resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{bucketName: bucketName, queryValues: query})
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		var result listBucketResult
		err = xml.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		for _, obj := range result.Contents {
			info := ObjectInfo{Key: obj.Key, LastModified: obj.LastModified, ETag: stripQuotes(obj.ETag), Size: obj.Size, Owner: obj.Owner, StorageClass: obj.StorageClass}
			if !sendInfo(ctx, out, info) {
				return
			}
			marker = obj.Key
		}
		for _, p := range result.CommonPrefixes {
			if !sendInfo(ctx, out, ObjectInfo{Key: p.Prefix, IsPrefix: true}) {
				return
			}
		}

		if !result.IsTruncated {
			return
		}
		if result.NextMarker != "" {
			marker = result.NextMarker
		}
	}
}

func (c *Client) listObjectVersions(ctx context.Context, bucketName string, opts ListObjectsOptions, out chan<- ObjectInfo) {
	keyMarker := opts.StartAfter
	versionIDMarker := ""
	for {
		query := url.Values{}
		query.Set("versions", "")
		query.Set("prefix", opts.Prefix)
		if d := opts.delimiter(); d != "" {
			query.Set("delimiter", d)
		}
		if mk := opts.maxKeys(); mk != "" {
			query.Set("max-keys", mk)
		}
		if keyMarker != "" {
			query.Set("key-marker", keyMarker)
		}
		if versionIDMarker != "" {
			query.Set("version-id-marker", versionIDMarker)
		}

		resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{bucketName: bucketName, queryValues: query})
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		var result listVersionsResult
		err = xml.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		for _, v := range result.Versions {
			info := ObjectInfo{Key: v.Key, VersionID: v.VersionID, IsLatest: v.IsLatest, LastModified: v.LastModified, ETag: stripQuotes(v.ETag), Size: v.Size, Owner: v.Owner, StorageClass: v.StorageClass}
			if !sendInfo(ctx, out, info) {
				return
			}
		}
		for _, d := range result.DeleteMarkers {
			info := ObjectInfo{Key: d.Key, VersionID: d.VersionID, IsLatest: d.IsLatest, LastModified: d.LastModified, Owner: d.Owner, IsDeleteMarker: true}
			if !sendInfo(ctx, out, info) {
				return
			}
		}
		for _, p := range result.CommonPrefixes {
			if !sendInfo(ctx, out, ObjectInfo{Key: p.Prefix, IsPrefix: true}) {
				return
			}
		}

		if !result.IsTruncated {
			return
		}
		keyMarker = result.NextKeyMarker
		versionIDMarker = result.NextVersionIDMarker
	}
}
