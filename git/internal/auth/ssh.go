package auth

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// SSHAuthProvider authenticates ssh remotes, including scp-like
// "git@host:path" URLs, with a key file or the SSH agent.
type SSHAuthProvider struct {
	PrivateKeyPath string
	Passphrase     string
	Username       string
	UseSSHAgent    bool

	// HostKeyCallback verifies host keys. If nil, go-git's default
	// known_hosts verification is used.
	HostKeyCallback gossh.HostKeyCallback
}

// NewSSHKeyProvider creates a provider using a private key file.
func NewSSHKeyProvider(keyPath, passphrase string) *SSHAuthProvider {
	return &SSHAuthProvider{PrivateKeyPath: keyPath, Passphrase: passphrase, Username: "git"}
}

// NewSSHAgentProvider creates a provider that uses the running SSH agent.
func NewSSHAgentProvider() *SSHAuthProvider {
	return &SSHAuthProvider{UseSSHAgent: true, Username: "git"}
}

// Method implements Provider. Non-ssh URLs are declined.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *SSHAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	if !IsSSHURL(remoteURL) {
		return nil, nil
	}

	switch {
	case p.PrivateKeyPath != "":
		if _, err := os.Stat(p.PrivateKeyPath); err != nil {
			return nil, fmt.Errorf("SSH private key file does not exist: %s", p.PrivateKeyPath)
		}
		keys, err := ssh.NewPublicKeysFromFile(p.Username, p.PrivateKeyPath, p.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from file: %w", err)
		}
		if p.HostKeyCallback != nil {
			keys.HostKeyCallback = p.HostKeyCallback
		}
		return keys, nil
	case p.UseSSHAgent:
		agent, err := ssh.NewSSHAgentAuth(p.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSH agent auth: %w", err)
		}
		if p.HostKeyCallback != nil {
			agent.HostKeyCallback = p.HostKeyCallback
		}
		return agent, nil
	}
	return nil, fmt.Errorf("no SSH credentials configured")
}

// IsSSHURL reports whether remoteURL uses an ssh transport.
func IsSSHURL(remoteURL string) bool {
	if !strings.Contains(remoteURL, "://") {
		// scp-like syntax: user@host:path
		at := strings.Index(remoteURL, "@")
		colon := strings.Index(remoteURL, ":")
		return at > 0 && colon > at
	}
	u, err := url.Parse(remoteURL)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "ssh", "git+ssh":
		return true
	}
	return false
}
