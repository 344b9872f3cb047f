package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cloudcentry/s3lite/pkg/signer"
)

// stsResult is the shared shape of the <Credentials> block every STS
// Assume*/GetFederationToken response carries, regardless of which action
// produced it.
type stsResult struct {
	AccessKeyID     string    `xml:"AccessKeyId"`
	SecretAccessKey string    `xml:"SecretAccessKey"`
	SessionToken    string    `xml:"SessionToken"`
	Expiration      time.Time `xml:"Expiration"`
}

func stringsReader(s string) *stringReaderT { return &stringReaderT{s: s} }

// stringReaderT avoids pulling in strings.NewReader's io.ReaderAt/WriterTo
// surface for what is a one-shot body; kept trivial on purpose.
type stringReaderT struct {
	s string
	i int
}

func (r *stringReaderT) Read(p []byte) (int, error) {
	if r.i >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.i:])
	r.i += n
	return n, nil
}

// AssumeRole exchanges long-term credentials for short-term ones via STS
// AssumeRole, optionally scoped by an inline policy and external ID.
type AssumeRole struct {
	Expiry

	STSEndpoint     string
	AccessKey       string
	SecretKey       string
	RoleARN         string
	RoleSessionName string
	ExternalID      string
	Policy          string
	DurationSeconds int
	HTTPClient      *http.Client
}

func NewAssumeRole(a AssumeRole) *Credentials { return New(&a) }

type assumeRoleResponse struct {
	XMLName xml.Name `xml:"AssumeRoleResponse"`
	Result  struct {
		Credentials stsResult `xml:"Credentials"`
	} `xml:"AssumeRoleResult"`
}

func (a *AssumeRole) Retrieve() (Value, error) {
	sessionName := a.RoleSessionName
	if sessionName == "" {
		sessionName = "s3lite-" + uuid.NewString()
	}
	duration := a.DurationSeconds
	if duration == 0 {
		duration = 3600
	}
	form := url.Values{}
	form.Set("Action", "AssumeRole")
	form.Set("Version", "2011-06-15")
	form.Set("RoleArn", a.RoleARN)
	form.Set("RoleSessionName", sessionName)
	form.Set("DurationSeconds", strconv.Itoa(duration))
	if a.ExternalID != "" {
		form.Set("ExternalId", a.ExternalID)
	}
	if a.Policy != "" {
		form.Set("Policy", a.Policy)
	}

	req, err := http.NewRequest(http.MethodPost, a.STSEndpoint, nil)
	if err != nil {
		return Value{}, err
	}
	body := form.Encode()
	req.Body = io.NopCloser(stringsReader(body))
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	bodySum := sha256.Sum256([]byte(body))
	req.Header.Set("X-Amz-Content-Sha256", hex.EncodeToString(bodySum[:]))
	signer.SignV4STS(req, a.AccessKey, a.SecretKey, "", "us-east-1")

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Value{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("credentials: AssumeRole failed with status %d: %s", resp.StatusCode, data)
	}
	var out assumeRoleResponse
	if err := xml.Unmarshal(data, &out); err != nil {
		return Value{}, err
	}
	a.SetExpiration(out.Result.Credentials.Expiration, 0)
	return Value{
		AccessKeyID:     out.Result.Credentials.AccessKeyID,
		SecretAccessKey: out.Result.Credentials.SecretAccessKey,
		SessionToken:    out.Result.Credentials.SessionToken,
		SignerType:      SignatureV4,
	}, nil
}

// WebIdentityTokenFunc supplies a fresh JWT for each AssumeRoleWithWebIdentity
// call; the caller typically reads it from a projected Kubernetes service
// account token file.
type WebIdentityTokenFunc func() (jwt string, err error)

// WebIdentity implements AssumeRoleWithWebIdentity (and, by the same shape,
// ClientGrants against a MinIO STS server).
type WebIdentity struct {
	Expiry

	STSEndpoint     string
	GetToken        WebIdentityTokenFunc
	RoleARN         string
	RoleSessionName string
	DurationSeconds int
	HTTPClient      *http.Client
}

func NewWebIdentity(w WebIdentity) *Credentials { return New(&w) }

type webIdentityResponse struct {
	XMLName xml.Name `xml:"AssumeRoleWithWebIdentityResponse"`
	Result  struct {
		Credentials stsResult `xml:"Credentials"`
	} `xml:"AssumeRoleWithWebIdentityResult"`
}

func (w *WebIdentity) Retrieve() (Value, error) {
	token, err := w.GetToken()
	if err != nil {
		return Value{}, err
	}
	duration := w.DurationSeconds
	if duration == 0 {
		duration = 3600
	}
	sessionName := w.RoleSessionName
	if sessionName == "" {
		sessionName = "s3lite-" + uuid.NewString()
	}
	form := url.Values{}
	form.Set("Action", "AssumeRoleWithWebIdentity")
	form.Set("Version", "2011-06-15")
	form.Set("WebIdentityToken", token)
	form.Set("DurationSeconds", strconv.Itoa(duration))
	if w.RoleARN != "" {
		form.Set("RoleArn", w.RoleARN)
		form.Set("RoleSessionName", sessionName)
	}

	client := w.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodPost, w.STSEndpoint+"?"+form.Encode(), nil)
	if err != nil {
		return Value{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Value{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("credentials: AssumeRoleWithWebIdentity failed with status %d: %s", resp.StatusCode, data)
	}
	var out webIdentityResponse
	if err := xml.Unmarshal(data, &out); err != nil {
		return Value{}, err
	}
	w.SetExpiration(out.Result.Credentials.Expiration, 0)
	return Value{
		AccessKeyID:     out.Result.Credentials.AccessKeyID,
		SecretAccessKey: out.Result.Credentials.SecretAccessKey,
		SessionToken:    out.Result.Credentials.SessionToken,
		SignerType:      SignatureV4,
	}, nil
}

// LDAPIdentity implements MinIO's AssumeRoleWithLDAPIdentity STS action.
type LDAPIdentity struct {
	Expiry

	STSEndpoint     string
	Username        string
	Password        string
	DurationSeconds int
	HTTPClient      *http.Client
}

func NewLDAPIdentity(l LDAPIdentity) *Credentials { return New(&l) }

type ldapIdentityResponse struct {
	XMLName xml.Name `xml:"AssumeRoleWithLDAPIdentityResponse"`
	Result  struct {
		Credentials stsResult `xml:"Credentials"`
	} `xml:"AssumeRoleWithLDAPIdentityResult"`
}

func (l *LDAPIdentity) Retrieve() (Value, error) {
	duration := l.DurationSeconds
	if duration == 0 {
		duration = 3600
	}
	form := url.Values{}
	form.Set("Action", "AssumeRoleWithLDAPIdentity")
	form.Set("Version", "2011-06-15")
	form.Set("LDAPUsername", l.Username)
	form.Set("LDAPPassword", l.Password)
	form.Set("DurationSeconds", strconv.Itoa(duration))

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodPost, l.STSEndpoint+"?"+form.Encode(), nil)
	if err != nil {
		return Value{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Value{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("credentials: AssumeRoleWithLDAPIdentity failed with status %d: %s", resp.StatusCode, data)
	}
	var out ldapIdentityResponse
	if err := xml.Unmarshal(data, &out); err != nil {
		return Value{}, err
	}
	l.SetExpiration(out.Result.Credentials.Expiration, 0)
	return Value{
		AccessKeyID:     out.Result.Credentials.AccessKeyID,
		SecretAccessKey: out.Result.Credentials.SecretAccessKey,
		SessionToken:    out.Result.Credentials.SessionToken,
		SignerType:      SignatureV4,
	}, nil
}

// CertificateIdentity implements MinIO's AssumeRoleWithCertificate STS
// action, authenticating via mutual TLS instead of a bearer credential.
type CertificateIdentity struct {
	Expiry

	STSEndpoint     string
	HTTPClient      *http.Client // must carry the client certificate in its Transport
	DurationSeconds int
}

func NewCertificateIdentity(c CertificateIdentity) *Credentials { return New(&c) }

type certificateIdentityResponse struct {
	XMLName xml.Name `xml:"AssumeRoleWithCertificateResponse"`
	Result  struct {
		Credentials stsResult `xml:"Credentials"`
	} `xml:"AssumeRoleWithCertificateResult"`
}

func (c *CertificateIdentity) Retrieve() (Value, error) {
	if c.HTTPClient == nil {
		return Value{}, fmt.Errorf("credentials: CertificateIdentity requires an HTTPClient configured with a client certificate")
	}
	duration := c.DurationSeconds
	if duration == 0 {
		duration = 3600
	}
	form := url.Values{}
	form.Set("Action", "AssumeRoleWithCertificate")
	form.Set("Version", "2011-06-15")
	form.Set("DurationSeconds", strconv.Itoa(duration))

	req, err := http.NewRequest(http.MethodPost, c.STSEndpoint+"?"+form.Encode(), nil)
	if err != nil {
		return Value{}, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Value{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("credentials: AssumeRoleWithCertificate failed with status %d: %s", resp.StatusCode, data)
	}
	var out certificateIdentityResponse
	if err := xml.Unmarshal(data, &out); err != nil {
		return Value{}, err
	}
	c.SetExpiration(out.Result.Credentials.Expiration, 0)
	return Value{
		AccessKeyID:     out.Result.Credentials.AccessKeyID,
		SecretAccessKey: out.Result.Credentials.SecretAccessKey,
		SessionToken:    out.Result.Credentials.SessionToken,
		SignerType:      SignatureV4,
	}, nil
}
