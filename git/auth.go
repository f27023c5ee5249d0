package git

import (
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/git/internal/auth"
)

// EnvAuth builds the credential chain used for pushes: HTTPS basic auth when a
// token is given, then an SSH key file when sshKeyPath is set, then the SSH agent.
// The agent provider is always appended, so the result is never nil. An https
// remote without a token gets no method and is pushed unauthenticated.
func EnvAuth(username, token, sshKeyPath string) AuthProvider {
	c := auth.NewCompositeAuthProvider()
	if token != "" {
		c.AddProvider(auth.NewHTTPSAuthProvider(username, token))
	}
	if sshKeyPath != "" {
		c.AddProvider(auth.NewSSHKeyProvider(sshKeyPath, ""))
	}
	c.AddProvider(auth.NewSSHAgentProvider())
	return c
}
