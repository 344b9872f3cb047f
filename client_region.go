package s3lite

import (
	"encoding/xml"
	"net/http"
	"net/url"

	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// getRegion resolves the region to sign a request against:
// an explicit override wins (and must agree with a client-wide
// configured region, if any); otherwise the client's configured region;
// otherwise the per-bucket cache; otherwise a live GetBucketLocation call
// signed against us-east-1, whose result is cached.
func (c *Client) getRegion(bucketName, regionOverride string) (string, error) {
	if regionOverride != "" {
		if c.baseURL.Region != "" && c.baseURL.Region != regionOverride {
			return "", ErrInvalidArgument("region override " + regionOverride + " conflicts with configured region " + c.baseURL.Region)
		}
		return regionOverride, nil
	}
	if c.baseURL.Region != "" {
		return c.baseURL.Region, nil
	}
	if bucketName == "" {
		return "us-east-1", nil
	}
	if region, ok := c.cachedRegion(bucketName); ok {
		return region, nil
	}
	region, err := c.getBucketLocation(bucketName)
	if err != nil {
		return "", err
	}
	c.setCachedRegion(bucketName, region)
	return region, nil
}

func (c *Client) cachedRegion(bucketName string) (string, bool) {
	c.regionMu.RLock()
	defer c.regionMu.RUnlock()
	region, ok := c.regionCache[bucketName]
	return region, ok
}

func (c *Client) setCachedRegion(bucketName, region string) {
	c.regionMu.Lock()
	defer c.regionMu.Unlock()
	c.regionCache[bucketName] = region
}

func (c *Client) evictCachedRegion(bucketName string) {
	c.regionMu.Lock()
	defer c.regionMu.Unlock()
	delete(c.regionCache, bucketName)
}

type locationConstraint struct {
	XMLName xml.Name `xml:"LocationConstraint"`
	Region  string   `xml:",chardata"`
}

// getBucketLocation issues GET /<bucket>/?location signed against
// us-east-1, the one call that must work before a bucket's real region is
// known. An empty LocationConstraint means us-east-1; a
// literal "EU" means eu-west-1 (AWS's one legacy-alias quirk).
func (c *Client) getBucketLocation(bucketName string) (string, error) {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("location", "")

	req, err := c.newRequest(http.MethodGet, requestInput{
		bucketName:     bucketName,
		queryValues:    query,
		bucketLocation: "us-east-1",
	})
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.httpRespToErrorResponse(resp, bucketName, "")
	}

	var lc locationConstraint
	if err := xml.NewDecoder(resp.Body).Decode(&lc); err != nil && err.Error() != "EOF" {
		return "", err
	}
	switch lc.Region {
	case "":
		return "us-east-1", nil
	case "EU":
		return "eu-west-1", nil
	default:
		return lc.Region, nil
	}
}
