package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/providers/http/client"
	"github.com/GriffinCanCode/orchgate/internal/vnc"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// TokenCookie carries the bearer token to the service and VNC proxies.
const TokenCookie = "keycloak-token"

// ProxyClient fetches application endpoints through the service proxy. Each
// VU owns one so that cookies set by the proxy stay with that VU.
type ProxyClient struct {
	http  *client.Client
	jar   http.CookieJar
	token string
	rec   Recorder
	log   *logging.Logger
}

// NewProxyClient creates a proxy client with its own cookie jar.
func NewProxyClient(c *client.Client, token string, rec Recorder, log *logging.Logger) (*ProxyClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c.SetCookieJar(jar)
	return &ProxyClient{http: c, jar: jar, token: token, rec: rec, log: log.Named("proxy")}, nil
}

// Get requests endpoint with the token cookie and expects 200.
func (p *ProxyClient) Get(ctx context.Context, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	p.jar.SetCookies(u, []*http.Cookie{{Name: TokenCookie, Value: p.token, Path: "/"}})

	resp, err := p.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(endpoint)
	})
	recordHTTP(p.rec, TagServiceProxy, resp, err)
	if err != nil {
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode(), endpoint)
	}
	return nil
}

// HandshakeProbe opens a console websocket and checks the RFB banner.
type HandshakeProbe struct {
	Dialer *websocket.Dialer
	Origin string
	Token  string
	// SessionDuration bounds the wait for the banner.
	SessionDuration time.Duration
	// ForceCloseAfter bounds the closing handshake.
	ForceCloseAfter time.Duration

	rec Recorder
	log *logging.Logger
}

// NewHandshakeProbe creates a probe presenting origin and the token cookie.
func NewHandshakeProbe(origin, token string, rec Recorder, log *logging.Logger) *HandshakeProbe {
	return &HandshakeProbe{
		Dialer:          &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 45 * time.Second},
		Origin:          origin,
		Token:           token,
		SessionDuration: time.Second,
		ForceCloseAfter: 30 * time.Second,
		rec:             rec,
		log:             log.Named("vnc-probe"),
	}
}

// Check connects to address, requires the first binary message to be the
// RFB 3.8 banner and closes the session.
func (h *HandshakeProbe) Check(ctx context.Context, address string) error {
	header := http.Header{}
	header.Set("Origin", h.Origin)
	header.Set("Cookie", TokenCookie+"="+h.Token)

	start := time.Now()
	conn, resp, err := h.Dialer.DialContext(ctx, address, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect %s: %w (status %d)", address, err, resp.StatusCode)
		}
		return fmt.Errorf("connect %s: %w", address, err)
	}
	h.rec.Record(Sample{Metric: MetricWSConnecting, Value: durationMillis(time.Since(start)), Tags: typeTag(TagVNCProxy)})
	defer func() {
		conn.Close()
		h.rec.Record(Sample{Metric: MetricWSSessionDuration, Value: durationMillis(time.Since(start)), Tags: typeTag(TagVNCProxy)})
	}()

	h.log.Debug("Connected", zap.String("address", address))

	if err := h.awaitBanner(conn); err != nil {
		return fmt.Errorf("%s: %w", address, err)
	}
	return h.close(conn)
}

func (h *HandshakeProbe) awaitBanner(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(h.SessionDuration)); err != nil {
		return err
	}
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("no banner within %s: %w", h.SessionDuration, err)
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return vnc.CheckVersion(data)
	}
}

// close runs the closing handshake and fails when the peer does not answer
// within ForceCloseAfter.
func (h *HandshakeProbe) close(conn *websocket.Conn) error {
	deadline := time.Now().Add(h.ForceCloseAfter)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		return fmt.Errorf("send close: %w", err)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return nil
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("closed forcefully %s after close", h.ForceCloseAfter)
			}
			return nil
		}
	}
}
