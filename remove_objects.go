package s3lite

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// maxDeleteBatch is the per-request object ceiling the S3 bulk-delete API
// enforces.
const maxDeleteBatch = 1000

// RemoveObjects consumes objectsCh, batching up to maxDeleteBatch entries
// per request into a single `<Delete><Quiet>true</Quiet>...` call, and
// returns a channel of per-object errors — a quiet delete only reports
// what failed, so a fully successful batch produces nothing on the
// returned channel at all.
func (c *Client) RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan ObjectToDelete) <-chan RemoveObjectError {
	errCh := make(chan RemoveObjectError, 100)

	go func() {
		defer close(errCh)
		if err := s3utils.CheckValidBucketName(bucketName); err != nil {
			errCh <- RemoveObjectError{Err: err}
			return
		}

		batch := make([]ObjectToDelete, 0, maxDeleteBatch)
		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			ok := c.removeObjectsBatch(ctx, bucketName, batch, errCh)
			batch = batch[:0]
			return ok
		}

		for {
			select {
			case obj, more := <-objectsCh:
				if !more {
					flush()
					return
				}
				batch = append(batch, obj)
				if len(batch) == maxDeleteBatch {
					if !flush() {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return errCh
}

func (c *Client) removeObjectsBatch(ctx context.Context, bucketName string, batch []ObjectToDelete, errCh chan<- RemoveObjectError) bool {
	body := deleteObjectsRequest{Quiet: true}
	for _, o := range batch {
		body.Objects = append(body.Objects, deleteObjectsEntry{Key: o.Name, VersionID: o.VersionID})
	}
	data, err := xml.Marshal(body)
	if err != nil {
		errCh <- RemoveObjectError{Err: err}
		return false
	}

	query := url.Values{}
	query.Set("delete", "")

	resp, err := c.executeMethod(ctx, http.MethodPost, requestInput{
		bucketName:       bucketName,
		queryValues:      query,
		contentBody:      bytes.NewReader(data),
		contentLength:    int64(len(data)),
		contentMD5Base64: md5Base64(data),
		contentSHA256Hex: sha256Hex(data),
	})
	if err != nil {
		errCh <- RemoveObjectError{Err: err}
		return false
	}
	defer resp.Body.Close()

	var result deleteObjectsResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		errCh <- RemoveObjectError{Err: err}
		return false
	}

	for _, e := range result.Errors {
		select {
		case errCh <- RemoveObjectError{ObjectName: e.Key, VersionID: e.VersionID, Err: ErrInvalidArgument(e.Code + ": " + e.Message)}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
