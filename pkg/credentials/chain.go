package credentials

import "errors"

// Chain tries each Provider in order, returning the first one that
// retrieves successfully and sticking with it until that provider reports
// itself expired.
type Chain struct {
	Providers []Provider

	current Provider
}

func NewChain(providers ...Provider) *Credentials {
	return New(&Chain{Providers: providers})
}

func (c *Chain) Retrieve() (Value, error) {
	var lastErr error
	for _, p := range c.Providers {
		value, err := p.Retrieve()
		if err != nil {
			lastErr = err
			continue
		}
		c.current = p
		return value, nil
	}
	if lastErr == nil {
		lastErr = errors.New("credentials: no provider in chain returned usable credentials")
	}
	return Value{}, lastErr
}

func (c *Chain) IsExpired() bool {
	if c.current == nil {
		return true
	}
	return c.current.IsExpired()
}
