package s3lite

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

func objectSubresourceQuery(subresource, versionID string) url.Values {
	q := url.Values{}
	q.Set(subresource, "")
	if versionID != "" {
		q.Set("versionId", versionID)
	}
	return q
}

func (c *Client) getObjectConfig(ctx context.Context, bucketName, objectName, subresource, versionID string) ([]byte, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return nil, err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return nil, err
	}
	resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{
		bucketName:  bucketName,
		objectName:  objectName,
		queryValues: objectSubresourceQuery(subresource, versionID),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) putObjectConfig(ctx context.Context, bucketName, objectName, subresource, versionID string, body []byte, headers http.Header) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return err
	}
	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      objectSubresourceQuery(subresource, versionID),
		customHeader:     headers,
		contentBody:      newBytesReader(body),
		contentLength:    int64(len(body)),
		contentMD5Base64: md5Base64(body),
		contentSHA256Hex: sha256Hex(body),
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// SetObjectTags replaces every tag on the object (or a specific version).
func (c *Client) SetObjectTags(ctx context.Context, bucketName, objectName string, tags map[string]string, versionID string) error {
	body, err := marshalTagging(tags)
	if err != nil {
		return err
	}
	return c.putObjectConfig(ctx, bucketName, objectName, "tagging", versionID, body, nil)
}

// GetObjectTags returns the object's tag set.
func (c *Client) GetObjectTags(ctx context.Context, bucketName, objectName, versionID string) (map[string]string, error) {
	data, err := c.getObjectConfig(ctx, bucketName, objectName, "tagging", versionID)
	if err != nil {
		if er, ok := err.(ErrorResponse); ok && er.Code == "NoSuchTagSet" {
			return nil, nil
		}
		return nil, err
	}
	return unmarshalTagging(data)
}

// DeleteObjectTags removes every tag from the object.
func (c *Client) DeleteObjectTags(ctx context.Context, bucketName, objectName, versionID string) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return err
	}
	resp, err := c.executeMethod(ctx, http.MethodDelete, requestInput{
		bucketName:  bucketName,
		objectName:  objectName,
		queryValues: objectSubresourceQuery("tagging", versionID),
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// SetObjectRetention sets an object-lock retention period on the object.
// GovernanceBypass is required to shorten or remove a governance-mode
// retention that is already in effect.
func (c *Client) SetObjectRetention(ctx context.Context, bucketName, objectName, versionID string, retention Retention, governanceBypass bool) error {
	body, err := xml.Marshal(retentionXML{Mode: retention.Mode, RetainUntilDate: retention.RetainUntilDate})
	if err != nil {
		return err
	}
	var headers http.Header
	if governanceBypass {
		headers = http.Header{}
		headers.Set("X-Amz-Bypass-Governance-Retention", "true")
	}
	return c.putObjectConfig(ctx, bucketName, objectName, "retention", versionID, body, headers)
}

// GetObjectRetention returns the object's retention period. An object in a
// bucket without object-lock enabled reads back as an empty Retention, not
// an error.
func (c *Client) GetObjectRetention(ctx context.Context, bucketName, objectName, versionID string) (Retention, error) {
	data, err := c.getObjectConfig(ctx, bucketName, objectName, "retention", versionID)
	if err != nil {
		if er, ok := err.(ErrorResponse); ok && er.Code == "NoSuchObjectLockConfiguration" {
			return Retention{}, nil
		}
		return Retention{}, err
	}
	var decoded retentionXML
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return Retention{}, err
	}
	return Retention{Mode: decoded.Mode, RetainUntilDate: decoded.RetainUntilDate}, nil
}

// SetObjectLegalHold switches the object's legal hold on or off.
func (c *Client) SetObjectLegalHold(ctx context.Context, bucketName, objectName, versionID string, hold bool) error {
	status := "OFF"
	if hold {
		status = "ON"
	}
	body, err := xml.Marshal(legalHoldXML{Status: status})
	if err != nil {
		return err
	}
	return c.putObjectConfig(ctx, bucketName, objectName, "legal-hold", versionID, body, nil)
}

// GetObjectLegalHold reports whether the object is under legal hold.
func (c *Client) GetObjectLegalHold(ctx context.Context, bucketName, objectName, versionID string) (LegalHold, error) {
	data, err := c.getObjectConfig(ctx, bucketName, objectName, "legal-hold", versionID)
	if err != nil {
		if er, ok := err.(ErrorResponse); ok && er.Code == "NoSuchObjectLockConfiguration" {
			return LegalHold{Status: "OFF"}, nil
		}
		return LegalHold{}, err
	}
	var decoded legalHoldXML
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return LegalHold{}, err
	}
	return LegalHold{Status: decoded.Status}, nil
}
