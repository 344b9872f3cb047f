package s3lite

import (
	"context"
	"io"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// NotificationOptions configures ListenBucketNotification.
type NotificationOptions struct {
	Prefix string
	Suffix string
	Events []string // e.g. "s3:ObjectCreated:*"
}

func (o NotificationOptions) query() url.Values {
	q := url.Values{}
	if o.Prefix != "" {
		q.Set("prefix", o.Prefix)
	}
	if o.Suffix != "" {
		q.Set("suffix", o.Suffix)
	}
	for _, e := range o.Events {
		q.Add("events", e)
	}
	return q
}

// NotificationFunc receives one decoded notification event at a time.
// Returning false stops the listen loop and closes the underlying
// connection.
type NotificationFunc func(NotificationRecord) bool

// ListenBucketNotification subscribes to bucketName's event stream, a
// MinIO-only long-poll extension that is not part of the AWS S3 API: the
// response body is an indefinitely long sequence of newline-delimited
// JSON objects, each either empty (a keep-alive) or a {"Records": [...]}
// envelope. The call blocks until ctx is cancelled, fn returns false, or
// the connection drops.
func (c *Client) ListenBucketNotification(ctx context.Context, bucketName string, opts NotificationOptions, fn NotificationFunc) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}

	resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{
		bucketName:  bucketName,
		queryValues: opts.query(),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body)
	for {
		// More skips the whitespace after the previous frame and reports
		// false once the body is exhausted, so a stream ending in a
		// newline finishes cleanly instead of failing the next Decode.
		if !decoder.More() {
			return nil
		}
		var raw notificationEvent
		err := decoder.Decode(&raw)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for _, rec := range raw.Records {
			if !fn(rec) {
				return nil
			}
		}
	}
}
