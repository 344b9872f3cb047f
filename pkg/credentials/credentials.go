// Package credentials implements the pluggable credential-provider model
// used to sign requests: a single Provider.Retrieve() contract, a handful
// of concrete providers (static, environment, shared config files, STS
// exchanges, IAM instance metadata, LDAP, mTLS certificate identity), and a
// Chain that tries each in turn.
package credentials

import (
	"sync"
	"time"
)

// defaultExpiryWindow is subtracted from a credential's reported expiry so
// that a signature computed just before the true deadline does not arrive
// at the server already expired.
const defaultExpiryWindow = 10 * time.Second

// Value holds a single snapshot of access/secret/session credentials.
type Value struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// SignerType is informational only; this module signs everything with
	// SigV4, but some providers (anonymous access) need to suppress
	// signing entirely.
	SignerType SignatureType
}

// SignatureType records which signing scheme a Value expects to be used
// with. The only two the client acts on are V4 (sign normally) and
// Anonymous (skip signing); V2 exists so that source credential files
// naming it fail loudly instead of being silently mis-signed.
type SignatureType int

const (
	SignatureDefault SignatureType = iota
	SignatureV2
	SignatureV4
	SignatureAnonymous
)

func (s SignatureType) IsV2() bool        { return s == SignatureV2 }
func (s SignatureType) IsV4() bool        { return s == SignatureV4 || s == SignatureDefault }
func (s SignatureType) IsAnonymous() bool { return s == SignatureAnonymous }

// Provider is implemented by every concrete credential source.
type Provider interface {
	// Retrieve returns a fresh Value, fetching or refreshing from the
	// underlying source as needed.
	Retrieve() (Value, error)

	// IsExpired reports whether the previously retrieved Value should no
	// longer be trusted without a call to Retrieve.
	IsExpired() bool
}

// Expiry is embeddable by providers whose credentials carry a server-given
// expiration (STS, IAM instance role).
type Expiry struct {
	expiration time.Time
	window     time.Duration
}

// SetExpiration records when a credential set expires; a read within
// window of that deadline is treated as already expired.
func (e *Expiry) SetExpiration(expiration time.Time, window time.Duration) {
	e.expiration = expiration
	if window <= 0 {
		window = defaultExpiryWindow
	}
	e.window = window
}

func (e *Expiry) IsExpired() bool {
	if e.expiration.IsZero() {
		return false
	}
	return time.Now().UTC().Add(e.window).After(e.expiration)
}

// Credentials wraps a Provider with a cache and a mutex so a single client
// can be shared across concurrent callers without re-fetching on every
// request.
type Credentials struct {
	mu            sync.Mutex
	provider      Provider
	current       Value
	forceRefresh  bool
	signerType    SignatureType
	overrideSign  bool
}

// New wraps provider in a cache.
func New(provider Provider) *Credentials {
	return &Credentials{provider: provider, forceRefresh: true}
}

// NewStatic is a convenience constructor for the common static-key case.
func NewStatic(accessKey, secretKey, sessionToken string, signerType SignatureType) *Credentials {
	return New(&Static{Value: Value{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    sessionToken,
		SignerType:      signerType,
	}})
}

// Get returns the current credential Value, refreshing via the underlying
// Provider if the cached value is absent or expired.
func (c *Credentials) Get() (Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.forceRefresh && !c.provider.IsExpired() {
		return c.current, nil
	}
	value, err := c.provider.Retrieve()
	if err != nil {
		return Value{}, err
	}
	c.current = value
	c.forceRefresh = false
	return c.current, nil
}

// Expire marks the cached credentials as stale, forcing the next Get to
// call through to the provider.
func (c *Credentials) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceRefresh = true
}

// IsExpired reports whether the next Get will need to call the provider.
func (c *Credentials) IsExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forceRefresh || c.provider.IsExpired()
}
