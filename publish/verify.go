package publish

import (
	"context"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Verifier looks up a pushed image.
type Verifier interface {
	Digest(ctx context.Context, ref name.Reference) (string, error)
}

// RegistryVerifier resolves references against their registry with a HEAD
// request, authenticating through a keychain.
type RegistryVerifier struct {
	keychain authn.Keychain
	options  []remote.Option
}

// NewRegistryVerifier creates a verifier using the docker credential keychain.
// Extra remote options are appended to each request.
func NewRegistryVerifier(opts ...remote.Option) *RegistryVerifier {
	return &RegistryVerifier{keychain: authn.DefaultKeychain, options: opts}
}

// Digest implements Verifier.
func (v *RegistryVerifier) Digest(ctx context.Context, ref name.Reference) (string, error) {
	opts := append([]remote.Option{
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(v.keychain),
	}, v.options...)

	desc, err := remote.Head(ref, opts...)
	if err != nil {
		return "", err
	}
	return desc.Digest.String(), nil
}
