package auth

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// CompositeAuthProvider tries providers in order and returns the first
// non-nil method.
type CompositeAuthProvider struct {
	Providers []Provider

	// ContinueOnError keeps trying later providers after one fails.
	ContinueOnError bool
}

// NewCompositeAuthProvider creates an empty composite provider.
func NewCompositeAuthProvider() *CompositeAuthProvider {
	return &CompositeAuthProvider{ContinueOnError: true}
}

// AddProvider appends a provider to the chain.
func (c *CompositeAuthProvider) AddProvider(p Provider) *CompositeAuthProvider {
	c.Providers = append(c.Providers, p)
	return c
}

// Method implements Provider.
//
//nolint:ireturn // transport.AuthMethod is an interface required by go-git
func (c *CompositeAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	var lastErr error
	for i, p := range c.Providers {
		method, err := p.Method(remoteURL)
		if err != nil {
			lastErr = fmt.Errorf("provider %d failed: %w", i, err)
			if !c.ContinueOnError {
				return nil, lastErr
			}
			continue
		}
		if method != nil {
			return method, nil
		}
	}
	return nil, lastErr
}
