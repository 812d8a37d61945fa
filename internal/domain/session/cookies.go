package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoToken      = errors.New("no token cookies")
	ErrMissingChunk = errors.New("token chunk missing")
)

// Token is an access token issued by the identity provider.
type Token struct {
	Value  string
	Expiry time.Time
}

// ChunkToken splits token into slices of at most max bytes, in order. An
// empty token yields no chunks.
func ChunkToken(token string, max int) []string {
	if max <= 0 {
		max = MaxChunkLength
	}
	chunks := make([]string, 0, (len(token)+max-1)/max)
	for start := 0; start < len(token); start += max {
		end := min(start+max, len(token))
		chunks = append(chunks, token[start:end])
	}
	return chunks
}

// TokenCookies materializes tok as numbered chunk cookies plus the chunk
// count, and the expiry when the profile records it.
func (p Profile) TokenCookies(tok Token) []*http.Cookie {
	chunks := ChunkToken(tok.Value, p.chunkLength())
	cookies := make([]*http.Cookie, 0, len(chunks)+2)
	for i, chunk := range chunks {
		c := newCookie(p.TokenChunkName(i), chunk)
		c.Secure = true
		c.HttpOnly = true
		cookies = append(cookies, c)
	}
	cookies = append(cookies, newCookie(p.TokenCountName(), strconv.Itoa(len(chunks))))

	if p.RecordExpiration && !tok.Expiry.IsZero() {
		cookies = append(cookies, newCookie(p.ExpirationName(), tok.Expiry.UTC().Format(http.TimeFormat)))
	}
	return cookies
}

// ReadToken reassembles the token: chunk count first, then chunks
// 0..count-1 in order. Any missing chunk fails the read.
func (p Profile) ReadToken(jar CookieJar) (string, error) {
	countCookie, err := jar.Cookie(p.TokenCountName())
	if err != nil {
		return "", ErrNoToken
	}
	count, err := strconv.Atoi(countCookie.Value)
	if err != nil || count < 0 {
		return "", fmt.Errorf("invalid token count %q", countCookie.Value)
	}

	var sb strings.Builder
	for i := 0; i < count; i++ {
		name := p.TokenChunkName(i)
		chunk, err := jar.Cookie(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrMissingChunk, name)
		}
		sb.WriteString(chunk.Value)
	}
	return sb.String(), nil
}

// ReadExpiry returns the recorded token expiry, if any.
func (p Profile) ReadExpiry(jar CookieJar) (time.Time, bool) {
	c, err := jar.Cookie(p.ExpirationName())
	if err != nil {
		return time.Time{}, false
	}
	t, err := http.ParseTime(c.Value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ContextCookies returns one cookie per field of ctx, in profile order.
func (p Profile) ContextCookies(ctx Context) []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(p.Fields))
	for _, field := range p.Fields {
		if v, ok := ctx[field]; ok {
			cookies = append(cookies, newCookie(p.ContextCookieName(field), encodeContextValue(v)))
		}
	}
	return cookies
}

// ClearCookies returns expiring replacements for every cookie the browser
// sent. Writing them resets the profile to a clean slate.
func ClearCookies(sent []*http.Cookie) []*http.Cookie {
	seen := make(map[string]struct{}, len(sent))
	cleared := make([]*http.Cookie, 0, len(sent))
	for _, c := range sent {
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		expired := newCookie(c.Name, "")
		expired.MaxAge = -1
		expired.Expires = time.Unix(0, 0)
		cleared = append(cleared, expired)
	}
	return cleared
}

// encodeContextValue query-escapes a context value. net/http drops bytes
// outside the cookie-octet set, so a raw value would not read back equal.
func encodeContextValue(v string) string {
	return url.QueryEscape(v)
}

// decodeContextValue reverses encodeContextValue. A value that does not
// unescape is returned as sent and compares unequal to any request.
func decodeContextValue(v string) string {
	if d, err := url.QueryUnescape(v); err == nil {
		return d
	}
	return v
}

func newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	}
}
