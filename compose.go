package s3lite

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cloudcentry/s3lite/pkg/encrypt"
	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// kMaxPartSize bounds how large a single ComposeObject source range may be
// before it must be split into multiple UploadPartCopy ranges.
const kMaxPartSize = s3utils.MaxPartSize

// CopySrcOptions identifies one source object of a Copy/Compose operation,
// optionally restricted to a byte range.
type CopySrcOptions struct {
	Bucket     string
	Object     string
	VersionID  string
	MatchETag  string // pre-filled by the caller; ComposeObject fills it from StatObject if empty
	Start, End int64  // inclusive byte range, used only when HasRange is set
	HasRange   bool   // false means "whole object"
}

func (s CopySrcOptions) header() string {
	v := "/" + s.Bucket + "/" + s3utils.EncodePath(s.Object)
	if s.VersionID != "" {
		v += "?versionId=" + s.VersionID
	}
	return v
}

// CopyDestOptions configures the destination side of CopyObject/ComposeObject.
type CopyDestOptions struct {
	Bucket               string
	Object               string
	ServerSideEncryption encrypt.ServerSide
	ReplaceMetadata      bool
	ReplaceTags          bool
	UserMetadata         map[string]string
	Tags                 map[string]string
}

// CopyObject performs a server-side copy. Sources with a byte range or
// larger than kMaxPartSize are delegated to ComposeObject; a
// COPY metadata-directive is rejected when the source carries a range,
// since that would silently truncate metadata without actually composing.
func (c *Client) CopyObject(ctx context.Context, dst CopyDestOptions, src CopySrcOptions) (UploadInfo, error) {
	if src.HasRange {
		if !dst.ReplaceMetadata {
			return UploadInfo{}, ErrInvalidArgument("s3lite: CopyObject with a source range requires ReplaceMetadata (COPY directive would truncate silently)")
		}
		return c.ComposeObject(ctx, dst, []CopySrcOptions{src})
	}

	info, err := c.StatObject(ctx, src.Bucket, src.Object, StatObjectOptions{VersionID: src.VersionID})
	if err != nil {
		return UploadInfo{}, err
	}
	if info.Size > int64(kMaxPartSize) {
		return c.ComposeObject(ctx, dst, []CopySrcOptions{src})
	}

	headers := http.Header{}
	headers.Set("X-Amz-Copy-Source", src.header())
	if dst.ReplaceMetadata {
		headers.Set("X-Amz-Metadata-Directive", "REPLACE")
		for k, v := range dst.UserMetadata {
			headers.Set("X-Amz-Meta-"+k, v)
		}
	} else {
		headers.Set("X-Amz-Metadata-Directive", "COPY")
	}
	if dst.ReplaceTags {
		headers.Set("X-Amz-Tagging-Directive", "REPLACE")
		if len(dst.Tags) > 0 {
			headers.Set("X-Amz-Tagging", s3utils.TagEncode(dst.Tags))
		}
	} else {
		headers.Set("X-Amz-Tagging-Directive", "COPY")
	}
	if dst.ServerSideEncryption != nil {
		for k, v := range dst.ServerSideEncryption.Headers() {
			headers.Set(k, v)
		}
	}
	if src.MatchETag != "" {
		headers.Set("X-Amz-Copy-Source-If-Match", src.MatchETag)
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:   dst.Bucket,
		objectName:   dst.Object,
		customHeader: headers,
	})
	if err != nil {
		return UploadInfo{}, err
	}
	defer resp.Body.Close()

	var result copyObjectResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadInfo{}, err
	}
	return UploadInfo{
		Bucket:    dst.Bucket,
		Key:       dst.Object,
		ETag:      stripQuotes(result.ETag),
		Size:      info.Size,
		VersionID: resp.Header.Get("X-Amz-Version-Id"),
	}, nil
}

// composePart is one UploadPartCopy sub-range contributing to a composed
// object.
type composePart struct {
	src        CopySrcOptions
	start, end int64
}

// ComposeObject concatenates sources server-side into dst, via
// UploadPartCopy when more than one part is needed, or a plain CopyObject
// when the plan collapses to exactly one whole-object source.
func (c *Client) ComposeObject(ctx context.Context, dst CopyDestOptions, sources []CopySrcOptions) (UploadInfo, error) {
	if len(sources) == 0 {
		return UploadInfo{}, ErrInvalidArgument("s3lite: ComposeObject requires at least one source")
	}
	if dst.ServerSideEncryption != nil && dst.ServerSideEncryption.TLSRequired() && c.baseURL.Scheme != "https" {
		return UploadInfo{}, ErrInvalidArgument("s3lite: SSE-C requires an https endpoint")
	}

	plan, totalSize, err := c.planCompose(ctx, sources)
	if err != nil {
		return UploadInfo{}, err
	}

	if len(plan) == 1 && !plan[0].src.HasRange {
		return c.CopyObject(ctx, dst, plan[0].src)
	}

	uploadID, err := c.CreateMultipartUpload(ctx, dst.Bucket, dst.Object, PutObjectOptions{
		UserMetadata:         dst.UserMetadata,
		Tags:                 dst.Tags,
		ServerSideEncryption: dst.ServerSideEncryption,
	})
	if err != nil {
		return UploadInfo{}, err
	}

	fail := func(cause error) (UploadInfo, error) {
		c.abortMultipartUploadBestEffort(ctx, dst.Bucket, dst.Object, uploadID)
		return UploadInfo{}, cause
	}

	var parts []ObjectPart
	for i, p := range plan {
		etag, perr := c.uploadPartCopy(ctx, dst.Bucket, dst.Object, uploadID, i+1, p, dst.ServerSideEncryption)
		if perr != nil {
			return fail(perr)
		}
		parts = append(parts, ObjectPart{PartNumber: i + 1, ETag: etag})
	}

	etag, cerr := c.CompleteMultipartUpload(ctx, dst.Bucket, dst.Object, uploadID, parts)
	if cerr != nil {
		return fail(cerr)
	}
	return UploadInfo{Bucket: dst.Bucket, Key: dst.Object, ETag: etag, Size: totalSize}, nil
}

// planCompose builds the part plan: pre-flights each
// source with StatObject, splits any source larger than kMaxPartSize into
// ⌈size/kMaxPartSize⌉ ranges, rejects a non-final source whose last split
// would be under 5 MiB, and enforces the 10000-part/5 TiB ceilings.
func (c *Client) planCompose(ctx context.Context, sources []CopySrcOptions) ([]composePart, int64, error) {
	var plan []composePart
	var totalSize int64

	for idx, src := range sources {
		info, err := c.StatObject(ctx, src.Bucket, src.Object, StatObjectOptions{VersionID: src.VersionID})
		if err != nil {
			return nil, 0, err
		}
		if src.MatchETag == "" {
			src.MatchETag = `"` + info.ETag + `"`
		}

		size := info.Size
		if src.HasRange {
			size = src.End - src.Start + 1
		}
		totalSize += size

		isLastSource := idx == len(sources)-1

		if size <= int64(kMaxPartSize) {
			plan = append(plan, composePart{src: src, start: start0(src), end: end0(src, size)})
			continue
		}

		numParts := int((size + int64(kMaxPartSize) - 1) / int64(kMaxPartSize))
		base := start0(src)
		for p := 0; p < numParts; p++ {
			partStart := base + int64(p)*int64(kMaxPartSize)
			partEnd := partStart + int64(kMaxPartSize) - 1
			if p == numParts-1 {
				partEnd = base + size - 1
			}
			lastSplitSize := partEnd - partStart + 1
			if p == numParts-1 && lastSplitSize < s3utils.MinPartSize && !isLastSource {
				return nil, 0, ErrInvalidArgument(fmt.Sprintf("s3lite: source %s/%s splits into a final part smaller than 5 MiB and is not the last compose source", src.Bucket, src.Object))
			}
			plan = append(plan, composePart{src: src, start: partStart, end: partEnd})
		}
	}

	if len(plan) > s3utils.MaxPartsCount {
		return nil, 0, ErrInvalidArgument(fmt.Sprintf("s3lite: compose of %d sources requires more than the maximum %d parts", len(sources), s3utils.MaxPartsCount))
	}
	if totalSize > int64(s3utils.MaxObjectSize) {
		return nil, 0, ErrInvalidArgument("s3lite: composed object exceeds the maximum object size of 5 TiB")
	}
	return plan, totalSize, nil
}

func start0(src CopySrcOptions) int64 {
	if src.HasRange {
		return src.Start
	}
	return 0
}

func end0(src CopySrcOptions, size int64) int64 {
	if src.HasRange {
		return src.End
	}
	return size - 1
}

// UploadPartCopy copies bytes [start, end] of src into part partNumber of
// an in-flight multipart upload on dstBucket/dstObject, returning the
// part's ETag.
func (c *Client) UploadPartCopy(ctx context.Context, dstBucket, dstObject, uploadID string, partNumber int, src CopySrcOptions, start, end int64) (string, error) {
	return c.uploadPartCopy(ctx, dstBucket, dstObject, uploadID, partNumber, composePart{src: src, start: start, end: end}, nil)
}

func (c *Client) uploadPartCopy(ctx context.Context, bucketName, objectName, uploadID string, partNumber int, p composePart, sse encrypt.ServerSide) (string, error) {
	query := url.Values{}
	query.Set("partNumber", fmt.Sprintf("%d", partNumber))
	query.Set("uploadId", uploadID)

	headers := http.Header{}
	headers.Set("X-Amz-Copy-Source", p.src.header())
	headers.Set("X-Amz-Copy-Source-Range", fmt.Sprintf("bytes=%d-%d", p.start, p.end))
	if p.src.MatchETag != "" {
		headers.Set("X-Amz-Copy-Source-If-Match", p.src.MatchETag)
	}
	if sse != nil {
		for k, v := range sse.Headers() {
			headers.Set(k, v)
		}
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:   bucketName,
		objectName:   objectName,
		queryValues:  query,
		customHeader: headers,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result copyPartResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return stripQuotes(result.ETag), nil
}
