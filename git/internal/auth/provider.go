// Package auth resolves go-git transport credentials for a remote URL.
package auth

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider returns the transport.AuthMethod for a remote URL.
// A nil method with a nil error means the provider declines the URL.
type Provider interface {
	Method(remoteURL string) (transport.AuthMethod, error)
}
