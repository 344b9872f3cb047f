package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultIAMRoleEndpoint  = "http://169.254.169.254"
	iamSecurityCredsPath    = "/latest/meta-data/iam/security-credentials/"
	tokenRequestHeader      = "X-aws-ec2-metadata-token"
	tokenRequestTTLHeader   = "X-aws-ec2-metadata-token-ttl-seconds"
	tokenPath               = "/latest/api/token"
	containerCredentialsURI = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"
	containerCredentialsFull = "AWS_CONTAINER_CREDENTIALS_FULL_URI"
)

// IAMAws implements the container/EC2-instance-metadata credential chain:
// if AWS_CONTAINER_CREDENTIALS_RELATIVE_URI (or _FULL_URI) is set, talk to
// the ECS/EKS credential endpoint; a WebIdentityTokenFile env var redirects
// to IRSA (handled by the caller wiring a WebIdentity provider instead);
// otherwise fall back to the EC2 instance-metadata service (IMDSv2 token
// dance first, falling back to IMDSv1 if the token request itself fails).
type IAMAws struct {
	Expiry

	Endpoint   string
	HTTPClient *http.Client
}

func NewIAMAws(endpoint string) *Credentials {
	return New(&IAMAws{Endpoint: endpoint})
}

type ec2RoleCredentials struct {
	Code            string
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	Token           string    `json:"Token"`
	Expiration      time.Time `json:"Expiration"`
}

func (i *IAMAws) client() *http.Client {
	if i.HTTPClient != nil {
		return i.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (i *IAMAws) Retrieve() (Value, error) {
	if uri := os.Getenv(containerCredentialsFull); uri != "" {
		return i.retrieveFromURL(uri, nil)
	}
	if uri := os.Getenv(containerCredentialsURI); uri != "" {
		host := "http://169.254.170.2"
		headers := map[string]string{}
		if token := os.Getenv("AWS_CONTAINER_AUTHORIZATION_TOKEN"); token != "" {
			headers["Authorization"] = token
		}
		return i.retrieveFromURL(host+uri, headers)
	}
	return i.retrieveFromInstanceMetadata()
}

func (i *IAMAws) retrieveFromURL(url string, headers map[string]string) (Value, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return Value{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := i.client().Do(req)
	if err != nil {
		return Value{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("credentials: container credentials endpoint returned %d: %s", resp.StatusCode, data)
	}
	var creds ec2RoleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Value{}, err
	}
	i.SetExpiration(creds.Expiration, 0)
	return Value{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.Token,
		SignerType:      SignatureV4,
	}, nil
}

func (i *IAMAws) retrieveFromInstanceMetadata() (Value, error) {
	endpoint := i.Endpoint
	if endpoint == "" {
		endpoint = defaultIAMRoleEndpoint
	}
	client := i.client()

	token := i.fetchIMDSv2Token(client, endpoint)

	roleReq, err := http.NewRequest(http.MethodGet, endpoint+iamSecurityCredsPath, nil)
	if err != nil {
		return Value{}, err
	}
	if token != "" {
		roleReq.Header.Set(tokenRequestHeader, token)
	}
	resp, err := client.Do(roleReq)
	if err != nil {
		return Value{}, err
	}
	roleData, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return Value{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Value{}, errors.New("credentials: no IAM role attached to this instance")
	}
	roleName := strings.TrimSpace(strings.SplitN(string(roleData), "\n", 2)[0])
	if roleName == "" {
		return Value{}, errors.New("credentials: empty IAM role name from instance metadata")
	}

	credReq, err := http.NewRequest(http.MethodGet, endpoint+iamSecurityCredsPath+roleName, nil)
	if err != nil {
		return Value{}, err
	}
	if token != "" {
		credReq.Header.Set(tokenRequestHeader, token)
	}
	credResp, err := client.Do(credReq)
	if err != nil {
		return Value{}, err
	}
	defer credResp.Body.Close()
	data, err := io.ReadAll(credResp.Body)
	if err != nil {
		return Value{}, err
	}
	var creds ec2RoleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Value{}, err
	}
	if creds.Code != "" && creds.Code != "Success" {
		return Value{}, fmt.Errorf("credentials: instance metadata returned code %q", creds.Code)
	}
	i.SetExpiration(creds.Expiration, 0)
	return Value{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.Token,
		SignerType:      SignatureV4,
	}, nil
}

// fetchIMDSv2Token best-effort upgrades to IMDSv2; a failure here just
// means the subsequent metadata calls go out unauthenticated (IMDSv1),
// which most instances still accept.
func (i *IAMAws) fetchIMDSv2Token(client *http.Client, endpoint string) string {
	req, err := http.NewRequest(http.MethodPut, endpoint+tokenPath, nil)
	if err != nil {
		return ""
	}
	req.Header.Set(tokenRequestTTLHeader, "21600")
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
