package vnc

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/orchgate/internal/domain/session"
)

const (
	// PathPrefix is the first path segment of every console websocket.
	PathPrefix = "vnc"
	// DevHost serves consoles when the page runs on localhost.
	DevHost = "vnc.kind.internal"
)

var ErrMissingParam = errors.New("query parameter missing")

// Options are display settings read from the page query.
type Options struct {
	ViewOnly bool
	Scale    bool
}

// ParseOptions reads view_only and scale. Unparseable values count as off.
func ParseOptions(query url.Values) Options {
	flag := func(name string) bool {
		v, err := strconv.ParseBool(query.Get(name))
		return err == nil && v
	}
	return Options{ViewOnly: flag("view_only"), Scale: flag("scale")}
}

// EndpointURL builds wss://<host>/vnc/<project>/<app>/<cluster>/<vm> from
// the host the page was served on and the page query.
func EndpointURL(host string, query url.Values) (string, error) {
	ctx, missing := session.RemoteDesktop.Validate(query)
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(missing, ", "))
	}

	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	if hostname == "localhost" {
		hostname = DevHost
	}

	segments := []string{PathPrefix}
	for _, field := range session.RemoteDesktop.Fields {
		segments = append(segments, url.PathEscape(ctx[field]))
	}
	return "wss://" + hostname + "/" + strings.Join(segments, "/"), nil
}

// FromPage parses a full console page URL into its websocket endpoint and
// display options.
func FromPage(pageURL string) (string, Options, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", Options{}, fmt.Errorf("parse page url: %w", err)
	}
	endpoint, err := EndpointURL(u.Host, u.Query())
	if err != nil {
		return "", Options{}, err
	}
	return endpoint, ParseOptions(u.Query()), nil
}

// CookieHeader renders cookies as a request Cookie header value.
func CookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	return strings.Join(parts, "; ")
}
