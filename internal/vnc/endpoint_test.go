package vnc

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	q := url.Values{"project": {"p1"}, "app": {"a1"}, "cluster": {"c1"}, "vm": {"v1"}}

	tests := []struct {
		name string
		host string
		want string
	}{
		{"public host", "foo.example.com", "wss://foo.example.com/vnc/p1/a1/c1/v1"},
		{"port dropped", "foo.example.com:8443", "wss://foo.example.com/vnc/p1/a1/c1/v1"},
		{"localhost", "localhost:8080", "wss://vnc.kind.internal/vnc/p1/a1/c1/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndpointURL(tt.host, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointURLEscapesSegments(t *testing.T) {
	q := url.Values{"project": {"my project"}, "app": {"a/b"}, "cluster": {"c"}, "vm": {"v"}}
	got, err := EndpointURL("h.example.com", q)
	require.NoError(t, err)
	assert.Equal(t, "wss://h.example.com/vnc/my%20project/a%2Fb/c/v", got)
}

func TestEndpointURLMissingParam(t *testing.T) {
	_, err := EndpointURL("foo.example.com", url.Values{"project": {"p"}, "app": {"a"}})
	require.ErrorIs(t, err, ErrMissingParam)
	assert.Contains(t, err.Error(), "cluster, vm")
}

func TestFromPage(t *testing.T) {
	endpoint, opts, err := FromPage("https://foo.example.com/vnc/?project=p1&app=a1&cluster=c1&vm=v1&view_only=true")
	require.NoError(t, err)
	assert.Equal(t, "wss://foo.example.com/vnc/p1/a1/c1/v1", endpoint)
	assert.True(t, opts.ViewOnly)
	assert.False(t, opts.Scale)
}

func TestParseOptions(t *testing.T) {
	assert.Equal(t, Options{}, ParseOptions(url.Values{}))
	assert.Equal(t, Options{Scale: true}, ParseOptions(url.Values{"scale": {"1"}}))
	assert.Equal(t, Options{}, ParseOptions(url.Values{"view_only": {"maybe"}}))
}

func TestCookieHeader(t *testing.T) {
	h := CookieHeader([]*http.Cookie{
		{Name: "keycloak-token-0", Value: "abc", Secure: true, Path: "/"},
		{Name: "keycloak-tokens", Value: "1"},
	})
	assert.Equal(t, "keycloak-token-0=abc; keycloak-tokens=1", h)
}
