package auth

import (
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// HTTPSAuthProvider authenticates https:// remotes with basic auth.
type HTTPSAuthProvider struct {
	auth *http.BasicAuth

	// AllowedHosts restricts authentication to matching hosts ("*.github.com").
	AllowedHosts []string
}

// NewHTTPSAuthProvider creates a provider for username and password (or token).
// A token passed with an empty username is sent as the username, which is
// what GitHub and GitLab expect for personal access tokens.
func NewHTTPSAuthProvider(username, password string) *HTTPSAuthProvider {
	if username == "" && password != "" {
		username = password
		password = ""
	}
	return &HTTPSAuthProvider{
		auth: &http.BasicAuth{Username: username, Password: password},
	}
}

// WithAllowedHosts restricts the provider to the given host patterns.
func (p *HTTPSAuthProvider) WithAllowedHosts(hosts ...string) *HTTPSAuthProvider {
	p.AllowedHosts = hosts
	return p
}

// Method implements Provider. Non-https URLs, including scp-style ssh
// remotes and anything unparsable, are declined.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *HTTPSAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	if IsSSHURL(remoteURL) {
		return nil, nil
	}
	u, err := url.Parse(remoteURL)
	if err != nil || u.Scheme != "https" {
		return nil, nil
	}
	if len(p.AllowedHosts) > 0 && !hostAllowed(u.Hostname(), p.AllowedHosts) {
		return nil, nil
	}
	return p.auth, nil
}

func hostAllowed(host string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchesPattern(host, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern matches host against an exact name, "*.suffix" or "prefix.*".
func matchesPattern(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if strings.Count(pattern, "*") != 1 {
		return false
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(host, strings.TrimSuffix(pattern, ".*")+".")
	}
	return false
}
