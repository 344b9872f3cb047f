package s3lite

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// The bucket configuration endpoints all share one wire shape: a
// sub-resource query ("?versioning", "?lifecycle", ...) with an XML body on
// PUT and an XML document back on GET. The error collapses (a missing
// configuration reads back as the empty configuration, deleting an absent
// one succeeds) live with each pair.

// getBucketConfig runs GET /?<subresource> and returns the raw body.
func (c *Client) getBucketConfig(ctx context.Context, bucketName, subresource string) ([]byte, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return nil, err
	}
	resp, err := c.executeMethod(ctx, http.MethodGet, requestInput{
		bucketName:  bucketName,
		queryValues: bucketQuery(subresource),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// putBucketConfig runs PUT /?<subresource> with an XML body.
func (c *Client) putBucketConfig(ctx context.Context, bucketName, subresource string, body []byte) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:       bucketName,
		queryValues:      bucketQuery(subresource),
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

// deleteBucketConfig runs DELETE /?<subresource>, treating each code in
// collapseCodes as success (deleting an absent configuration is a no-op).
func (c *Client) deleteBucketConfig(ctx context.Context, bucketName, subresource string, collapseCodes ...string) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	resp, err := c.executeMethod(ctx, http.MethodDelete, requestInput{
		bucketName:  bucketName,
		queryValues: bucketQuery(subresource),
	})
	if err != nil {
		if er, ok := err.(ErrorResponse); ok {
			for _, code := range collapseCodes {
				if er.Code == code {
					return nil
				}
			}
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// SetBucketVersioning enables or suspends versioning on bucketName.
func (c *Client) SetBucketVersioning(ctx context.Context, bucketName string, config VersioningConfig) error {
	body, err := xml.Marshal(versioningConfig{Status: config.Status, MFADelete: config.MFADelete})
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "versioning", body)
}

// GetBucketVersioning reads back the versioning state. A bucket that has
// never been versioned returns an empty Status.
func (c *Client) GetBucketVersioning(ctx context.Context, bucketName string) (VersioningConfig, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "versioning")
	if err != nil {
		return VersioningConfig{}, err
	}
	var decoded versioningConfig
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return VersioningConfig{}, err
	}
	return VersioningConfig{Status: decoded.Status, MFADelete: decoded.MFADelete}, nil
}

// SetBucketLifecycle replaces bucketName's lifecycle rules.
func (c *Client) SetBucketLifecycle(ctx context.Context, bucketName string, rules []LifecycleRule) error {
	body, err := xml.Marshal(lifecycleConfig{Rules: rules})
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "lifecycle", body)
}

// GetBucketLifecycle returns bucketName's lifecycle rules; a bucket with no
// lifecycle configuration reads back as an empty rule set, not an error.
func (c *Client) GetBucketLifecycle(ctx context.Context, bucketName string) ([]LifecycleRule, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "lifecycle")
	if err != nil {
		if er, ok := err.(ErrorResponse); ok && er.Code == "NoSuchLifecycleConfiguration" {
			return nil, nil
		}
		return nil, err
	}
	var decoded lifecycleConfig
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return decoded.Rules, nil
}

// DeleteBucketLifecycle removes all lifecycle rules.
func (c *Client) DeleteBucketLifecycle(ctx context.Context, bucketName string) error {
	return c.deleteBucketConfig(ctx, bucketName, "lifecycle")
}

// SetBucketPolicy installs an access policy document (JSON, passed through
// verbatim — the policy grammar is the server's to validate).
func (c *Client) SetBucketPolicy(ctx context.Context, bucketName, policy string) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	body := []byte(policy)
	resp, err := c.executeMethod(ctx, http.MethodPut, requestInput{
		bucketName:       bucketName,
		queryValues:      bucketQuery("policy"),
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

// GetBucketPolicy returns the raw policy document; a bucket without one
// reads back as the empty string.
func (c *Client) GetBucketPolicy(ctx context.Context, bucketName string) (string, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "policy")
	if err != nil {
		if er, ok := err.(ErrorResponse); ok && er.Code == "NoSuchBucketPolicy" {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// DeleteBucketPolicy removes the bucket policy.
func (c *Client) DeleteBucketPolicy(ctx context.Context, bucketName string) error {
	return c.deleteBucketConfig(ctx, bucketName, "policy", "NoSuchBucketPolicy")
}

type encryptionConfig struct {
	XMLName xml.Name `xml:"ServerSideEncryptionConfiguration"`
	Rules   []struct {
		Apply struct {
			SSEAlgorithm   string `xml:"SSEAlgorithm"`
			KMSMasterKeyID string `xml:"KMSMasterKeyID,omitempty"`
		} `xml:"ApplyServerSideEncryptionByDefault"`
	} `xml:"Rule"`
}

// EncryptionConfig is a bucket's default server-side-encryption rule.
type EncryptionConfig struct {
	Algorithm      string // "AES256" or "aws:kms"
	KMSMasterKeyID string
}

// SetBucketEncryption sets the default encryption applied to new objects.
func (c *Client) SetBucketEncryption(ctx context.Context, bucketName string, config EncryptionConfig) error {
	var cfg encryptionConfig
	cfg.Rules = make([]struct {
		Apply struct {
			SSEAlgorithm   string `xml:"SSEAlgorithm"`
			KMSMasterKeyID string `xml:"KMSMasterKeyID,omitempty"`
		} `xml:"ApplyServerSideEncryptionByDefault"`
	}, 1)
	cfg.Rules[0].Apply.SSEAlgorithm = config.Algorithm
	cfg.Rules[0].Apply.KMSMasterKeyID = config.KMSMasterKeyID
	body, err := xml.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "encryption", body)
}

// GetBucketEncryption returns the bucket's default encryption rule.
func (c *Client) GetBucketEncryption(ctx context.Context, bucketName string) (EncryptionConfig, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "encryption")
	if err != nil {
		return EncryptionConfig{}, err
	}
	var decoded encryptionConfig
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return EncryptionConfig{}, err
	}
	if len(decoded.Rules) == 0 {
		return EncryptionConfig{}, nil
	}
	return EncryptionConfig{
		Algorithm:      decoded.Rules[0].Apply.SSEAlgorithm,
		KMSMasterKeyID: decoded.Rules[0].Apply.KMSMasterKeyID,
	}, nil
}

// DeleteBucketEncryption removes the default encryption configuration; a
// bucket that never had one succeeds.
func (c *Client) DeleteBucketEncryption(ctx context.Context, bucketName string) error {
	return c.deleteBucketConfig(ctx, bucketName, "encryption", "ServerSideEncryptionConfigurationNotFoundError")
}

type replicationConfig struct {
	XMLName xml.Name          `xml:"ReplicationConfiguration"`
	Role    string            `xml:"Role,omitempty"`
	Rules   []ReplicationRule `xml:"Rule"`
}

// ReplicationRule is one rule of a bucket replication configuration.
type ReplicationRule struct {
	ID                string `xml:"ID,omitempty"`
	Status            string `xml:"Status"`
	Priority          int    `xml:"Priority,omitempty"`
	Prefix            string `xml:"Filter>Prefix,omitempty"`
	DestinationBucket string `xml:"Destination>Bucket"`
}

// SetBucketReplication replaces the replication configuration.
func (c *Client) SetBucketReplication(ctx context.Context, bucketName, role string, rules []ReplicationRule) error {
	body, err := xml.Marshal(replicationConfig{Role: role, Rules: rules})
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "replication", body)
}

// GetBucketReplication returns the replication role and rules.
func (c *Client) GetBucketReplication(ctx context.Context, bucketName string) (string, []ReplicationRule, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "replication")
	if err != nil {
		return "", nil, err
	}
	var decoded replicationConfig
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return "", nil, err
	}
	return decoded.Role, decoded.Rules, nil
}

// DeleteBucketReplication removes the replication configuration; a bucket
// that never had one succeeds.
func (c *Client) DeleteBucketReplication(ctx context.Context, bucketName string) error {
	return c.deleteBucketConfig(ctx, bucketName, "replication", "ReplicationConfigurationNotFoundError")
}

// SetBucketTags replaces every tag on bucketName.
func (c *Client) SetBucketTags(ctx context.Context, bucketName string, tags map[string]string) error {
	body, err := marshalTagging(tags)
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "tagging", body)
}

// GetBucketTags returns bucketName's tag set.
func (c *Client) GetBucketTags(ctx context.Context, bucketName string) (map[string]string, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "tagging")
	if err != nil {
		if er, ok := err.(ErrorResponse); ok && er.Code == "NoSuchTagSet" {
			return nil, nil
		}
		return nil, err
	}
	return unmarshalTagging(data)
}

// DeleteBucketTags removes every tag from bucketName.
func (c *Client) DeleteBucketTags(ctx context.Context, bucketName string) error {
	return c.deleteBucketConfig(ctx, bucketName, "tagging", "NoSuchTagSet")
}

type notificationConfig struct {
	XMLName xml.Name                `xml:"NotificationConfiguration"`
	Queues  []NotificationQueueRule `xml:"QueueConfiguration"`
}

// NotificationQueueRule routes the named events to a queue ARN, optionally
// filtered by key prefix/suffix.
type NotificationQueueRule struct {
	ID     string   `xml:"Id,omitempty"`
	ARN    string   `xml:"Queue"`
	Events []string `xml:"Event"`
	Prefix string   `xml:"-"`
	Suffix string   `xml:"-"`
}

func (r NotificationQueueRule) marshalFilter() []filterRuleXML {
	var rules []filterRuleXML
	if r.Prefix != "" {
		rules = append(rules, filterRuleXML{Name: "prefix", Value: r.Prefix})
	}
	if r.Suffix != "" {
		rules = append(rules, filterRuleXML{Name: "suffix", Value: r.Suffix})
	}
	return rules
}

type filterRuleXML struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

type queueConfigXML struct {
	ID     string   `xml:"Id,omitempty"`
	ARN    string   `xml:"Queue"`
	Events []string `xml:"Event"`
	Filter *struct {
		S3Key struct {
			Rules []filterRuleXML `xml:"FilterRule"`
		} `xml:"S3Key"`
	} `xml:"Filter,omitempty"`
}

type notificationConfigXML struct {
	XMLName xml.Name         `xml:"NotificationConfiguration"`
	Queues  []queueConfigXML `xml:"QueueConfiguration"`
}

// SetBucketNotification replaces the bucket's event-routing configuration.
func (c *Client) SetBucketNotification(ctx context.Context, bucketName string, rules []NotificationQueueRule) error {
	var cfg notificationConfigXML
	for _, r := range rules {
		q := queueConfigXML{ID: r.ID, ARN: r.ARN, Events: r.Events}
		if filterRules := r.marshalFilter(); len(filterRules) > 0 {
			q.Filter = &struct {
				S3Key struct {
					Rules []filterRuleXML `xml:"FilterRule"`
				} `xml:"S3Key"`
			}{}
			q.Filter.S3Key.Rules = filterRules
		}
		cfg.Queues = append(cfg.Queues, q)
	}
	body, err := xml.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "notification", body)
}

// GetBucketNotification returns the bucket's event-routing configuration.
func (c *Client) GetBucketNotification(ctx context.Context, bucketName string) ([]NotificationQueueRule, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "notification")
	if err != nil {
		return nil, err
	}
	var decoded notificationConfigXML
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	var rules []NotificationQueueRule
	for _, q := range decoded.Queues {
		r := NotificationQueueRule{ID: q.ID, ARN: q.ARN, Events: q.Events}
		if q.Filter != nil {
			for _, fr := range q.Filter.S3Key.Rules {
				switch fr.Name {
				case "prefix":
					r.Prefix = fr.Value
				case "suffix":
					r.Suffix = fr.Value
				}
			}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// DeleteBucketNotification clears the event-routing configuration by
// writing an empty one; S3 has no DELETE verb for this sub-resource.
func (c *Client) DeleteBucketNotification(ctx context.Context, bucketName string) error {
	body, err := xml.Marshal(notificationConfigXML{})
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "notification", body)
}

// SetObjectLockConfig sets a bucket's default object-lock retention. The
// bucket must have been created with ObjectLocking enabled.
func (c *Client) SetObjectLockConfig(ctx context.Context, bucketName string, config ObjectLockConfig) error {
	cfg := objectLockConfigXML{}
	if config.Enabled {
		cfg.ObjectLockEnabled = "Enabled"
	}
	if config.Mode != "" {
		cfg.Rule = &struct {
			DefaultRetention struct {
				Mode  string `xml:"Mode,omitempty"`
				Days  int    `xml:"Days,omitempty"`
				Years int    `xml:"Years,omitempty"`
			} `xml:"DefaultRetention"`
		}{}
		cfg.Rule.DefaultRetention.Mode = config.Mode
		cfg.Rule.DefaultRetention.Days = config.Days
		cfg.Rule.DefaultRetention.Years = config.Years
	}
	body, err := xml.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.putBucketConfig(ctx, bucketName, "object-lock", body)
}

// GetObjectLockConfig returns the bucket's object-lock defaults.
func (c *Client) GetObjectLockConfig(ctx context.Context, bucketName string) (ObjectLockConfig, error) {
	data, err := c.getBucketConfig(ctx, bucketName, "object-lock")
	if err != nil {
		return ObjectLockConfig{}, err
	}
	var decoded objectLockConfigXML
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return ObjectLockConfig{}, err
	}
	out := ObjectLockConfig{Enabled: decoded.ObjectLockEnabled == "Enabled"}
	if decoded.Rule != nil {
		out.Mode = decoded.Rule.DefaultRetention.Mode
		out.Days = decoded.Rule.DefaultRetention.Days
		out.Years = decoded.Rule.DefaultRetention.Years
	}
	return out, nil
}

func marshalTagging(tags map[string]string) ([]byte, error) {
	cfg := taggingConfig{}
	for _, k := range s3utils.SortedKeys(tags) {
		cfg.TagSet = append(cfg.TagSet, struct {
			Key   string `xml:"Key"`
			Value string `xml:"Value"`
		}{Key: k, Value: tags[k]})
	}
	return xml.Marshal(cfg)
}

func unmarshalTagging(data []byte) (map[string]string, error) {
	var decoded taggingConfig
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	tags := map[string]string{}
	for _, t := range decoded.TagSet {
		tags[t.Key] = t.Value
	}
	return tags, nil
}
