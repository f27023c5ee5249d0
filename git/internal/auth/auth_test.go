package auth

import (
	"errors"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	auth   transport.AuthMethod
	err    error
	called bool
}

//nolint:ireturn // test mock returns interface as required by Provider
func (m *mockProvider) Method(string) (transport.AuthMethod, error) {
	m.called = true
	return m.auth, m.err
}

func TestHTTPSAuthProvider(t *testing.T) {
	p := NewHTTPSAuthProvider("bot", "s3cret")

	method, err := p.Method("https://github.com/org/pose.git")
	require.NoError(t, err)
	assert.Equal(t, &http.BasicAuth{Username: "bot", Password: "s3cret"}, method)

	method, err = p.Method("git@github.com:org/pose.git")
	require.NoError(t, err)
	assert.Nil(t, method, "ssh URLs are declined")

	for _, remote := range []string{
		"ssh://git@github.com/org/pose.git",
		"http://github.com/org/pose.git",
		"https://github.com/%zz",
	} {
		method, err = p.Method(remote)
		require.NoError(t, err, remote)
		assert.Nil(t, method, remote)
	}

	token := NewHTTPSAuthProvider("", "ghp_token")
	method, err = token.Method("https://github.com/org/pose.git")
	require.NoError(t, err)
	assert.Equal(t, &http.BasicAuth{Username: "ghp_token"}, method)
}

func TestHTTPSAllowedHosts(t *testing.T) {
	p := NewHTTPSAuthProvider("bot", "pw").WithAllowedHosts("*.example.com")

	method, err := p.Method("https://git.example.com/pose.git")
	require.NoError(t, err)
	assert.NotNil(t, method)

	method, err = p.Method("https://github.com/pose.git")
	require.NoError(t, err)
	assert.Nil(t, method)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"github.com", "github.com", true},
		{"api.github.com", "*.github.com", true},
		{"github.com", "*.github.com", true},
		{"evilgithub.com", "*.github.com", false},
		{"gitlab.internal", "gitlab.*", true},
		{"gitlab", "gitlab.*", false},
		{"a.b.c", "*.*", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesPattern(tt.host, tt.pattern), "%s ~ %s", tt.host, tt.pattern)
	}
}

func TestIsSSHURL(t *testing.T) {
	assert.True(t, IsSSHURL("git@github.com:org/pose.git"))
	assert.True(t, IsSSHURL("ssh://git@github.com/org/pose.git"))
	assert.False(t, IsSSHURL("https://github.com/org/pose.git"))
	assert.False(t, IsSSHURL("/srv/git/pose.git"))
}

func TestSSHKeyProviderMissingKey(t *testing.T) {
	p := NewSSHKeyProvider("/does/not/exist", "")
	_, err := p.Method("git@github.com:org/pose.git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	method, err := p.Method("https://github.com/org/pose.git")
	require.NoError(t, err)
	assert.Nil(t, method)
}

func TestCompositeAuthProvider(t *testing.T) {
	want := &http.BasicAuth{Username: "user", Password: "pass"}

	t.Run("first non-nil wins", func(t *testing.T) {
		declines := &mockProvider{}
		accepts := &mockProvider{auth: want}
		never := &mockProvider{auth: &http.BasicAuth{Username: "other"}}

		c := NewCompositeAuthProvider().AddProvider(declines).AddProvider(accepts).AddProvider(never)
		method, err := c.Method("https://github.com/org/pose.git")
		require.NoError(t, err)
		assert.Equal(t, want, method)
		assert.True(t, declines.called)
		assert.False(t, never.called)
	})

	t.Run("continues past errors", func(t *testing.T) {
		c := NewCompositeAuthProvider().
			AddProvider(&mockProvider{err: errors.New("boom")}).
			AddProvider(&mockProvider{auth: want})
		method, err := c.Method("https://github.com/org/pose.git")
		require.NoError(t, err)
		assert.Equal(t, want, method)
	})

	t.Run("stops on error when configured", func(t *testing.T) {
		c := NewCompositeAuthProvider().AddProvider(&mockProvider{err: errors.New("boom")})
		c.ContinueOnError = false
		_, err := c.Method("https://github.com/org/pose.git")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("https provider steps aside for scp remotes", func(t *testing.T) {
		ssh := &mockProvider{err: errors.New("agent unavailable")}
		c := NewCompositeAuthProvider().AddProvider(NewHTTPSAuthProvider("bot", "token")).AddProvider(ssh)
		c.ContinueOnError = false
		_, err := c.Method("git@github.com:org/pose.git")
		require.Error(t, err)
		assert.True(t, ssh.called)
		assert.Contains(t, err.Error(), "agent unavailable")
		assert.NotContains(t, err.Error(), "invalid URL")
	})

	t.Run("nothing configured yields no auth", func(t *testing.T) {
		method, err := NewCompositeAuthProvider().Method("https://github.com/org/pose.git")
		require.NoError(t, err)
		assert.Nil(t, method)
	})
}
