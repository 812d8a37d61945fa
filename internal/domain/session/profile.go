package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MaxChunkLength is the longest token slice written to a single cookie.
const MaxChunkLength = 2000

// Context is the set of identifiers scoping a proxied connection, keyed by
// field name. Field order comes from the Profile.
type Context map[string]string

// Equal reports whether both contexts carry the same fields and values.
func (c Context) Equal(other Context) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// CookieJar is the read side of a browser cookie store. *http.Request
// satisfies it.
type CookieJar interface {
	Cookie(name string) (*http.Cookie, error)
}

// Profile describes one entry point: which query parameters it requires and
// how its cookies are named.
type Profile struct {
	Name             string
	CookiePrefix     string
	Fields           []string
	GuardContext     bool
	RecordExpiration bool
	MaxChunkLength   int
}

// ServiceProxy is the application service proxy entry point. Only one
// context may be active per browser profile because the proxy routes on
// cookies alone.
var ServiceProxy = Profile{
	Name:             "service-proxy",
	CookiePrefix:     "app-service-proxy",
	Fields:           []string{"project", "cluster", "namespace", "service"},
	GuardContext:     true,
	RecordExpiration: true,
	MaxChunkLength:   MaxChunkLength,
}

// RemoteDesktop is the VNC console entry point.
var RemoteDesktop = Profile{
	Name:           "vnc",
	CookiePrefix:   "keycloak",
	Fields:         []string{"project", "app", "cluster", "vm"},
	MaxChunkLength: MaxChunkLength,
}

// Profiles lists the known entry points by name.
var Profiles = map[string]Profile{
	ServiceProxy.Name:  ServiceProxy,
	RemoteDesktop.Name: RemoteDesktop,
}

// WithMaxChunkLength returns a copy of p using n as the token chunk size.
func (p Profile) WithMaxChunkLength(n int) Profile {
	p.MaxChunkLength = n
	return p
}

// Validate extracts the required fields from the query. A parameter that is
// present with an empty value counts as present.
func (p Profile) Validate(query url.Values) (Context, []string) {
	requested := make(Context, len(p.Fields))
	var missing []string
	for _, field := range p.Fields {
		if !query.Has(field) {
			missing = append(missing, field)
			continue
		}
		requested[field] = query.Get(field)
	}
	return requested, missing
}

// ContextCookieName returns the cookie holding one context field.
func (p Profile) ContextCookieName(field string) string {
	return p.CookiePrefix + "-" + field
}

// TokenChunkName returns the cookie holding token chunk i.
func (p Profile) TokenChunkName(i int) string {
	return fmt.Sprintf("%s-token-%d", p.CookiePrefix, i)
}

// TokenCountName returns the cookie holding the number of token chunks.
func (p Profile) TokenCountName() string {
	return p.CookiePrefix + "-tokens"
}

// ExpirationName returns the cookie holding the token expiry.
func (p Profile) ExpirationName() string {
	return p.CookiePrefix + "-token-expiration"
}

// StoredContext reads the context fields already present in the jar. Fields
// without a cookie are omitted.
func (p Profile) StoredContext(jar CookieJar) Context {
	stored := make(Context, len(p.Fields))
	for _, field := range p.Fields {
		if c, err := jar.Cookie(p.ContextCookieName(field)); err == nil {
			stored[field] = decodeContextValue(c.Value)
		}
	}
	return stored
}

// Describe renders the context in field order, e.g. "project=p1 cluster=c1".
func (p Profile) Describe(ctx Context) string {
	parts := make([]string, 0, len(p.Fields))
	for _, field := range p.Fields {
		if v, ok := ctx[field]; ok {
			parts = append(parts, field+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

func (p Profile) chunkLength() int {
	if p.MaxChunkLength <= 0 {
		return MaxChunkLength
	}
	return p.MaxChunkLength
}
