package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
)

func fakeKeycloak(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /realms/master/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"issuer":"x"}`)
	})
	mux.HandleFunc("POST /realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good" || r.PostForm.Get("code_verifier") == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-token-value",
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, kc *httptest.Server, tweaks ...func(*config.GateConfig)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultGate()
	cfg.Logging.Development = true
	cfg.Identity.URL = kc.URL
	cfg.Identity.Timeout = 2 * time.Second
	cfg.RateLimit.Enabled = false
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	s, err := NewServer(cfg, logging.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func noRedirects() *http.Client {
	return &http.Client{
		Transport: &http.Transport{DisableCompression: true},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestLoginEndToEnd(t *testing.T) {
	kc := fakeKeycloak(t)
	_, ts := newTestServer(t, kc)
	c := noRedirects()

	resp, err := c.Get(ts.URL + "/service-proxy/?project=p1&cluster=c1&namespace=n1&service=s1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/realms/master/protocol/openid-connect/auth", loc.Path)
	assert.Equal(t, "webui-client", loc.Query().Get("client_id"))
	assert.Equal(t, "S256", loc.Query().Get("code_challenge_method"))
	assert.Equal(t, ts.URL+"/callback", loc.Query().Get("redirect_uri"))
	state := loc.Query().Get("state")

	resp, err = c.Get(ts.URL + "/callback?code=good&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	cookies := map[string]string{}
	for _, ck := range resp.Cookies() {
		cookies[ck.Name] = ck.Value
	}
	assert.Equal(t, "p1", cookies["app-service-proxy-project"])
	assert.Equal(t, "1", cookies["app-service-proxy-tokens"])
	assert.Equal(t, "access-token-value", cookies["app-service-proxy-token-0"])
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}

func TestLoginRejectedCode(t *testing.T) {
	kc := fakeKeycloak(t)
	_, ts := newTestServer(t, kc)
	c := noRedirects()

	resp, err := c.Get(ts.URL + "/vnc/?project=p&app=a&cluster=c&vm=v")
	require.NoError(t, err)
	resp.Body.Close()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp, err = c.Get(ts.URL + "/callback?code=bad&state=" + url.QueryEscape(loc.Query().Get("state")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Cookies())
}

func TestIdentityUnavailable(t *testing.T) {
	kc := fakeKeycloak(t)
	kc.Close()
	_, ts := newTestServer(t, kc)

	resp, err := noRedirects().Get(ts.URL + "/vnc/?project=p&app=a&cluster=c&vm=v")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "identity provider unavailable at "+kc.URL)
}

func TestMetricsEndpoint(t *testing.T) {
	kc := fakeKeycloak(t)
	_, ts := newTestServer(t, kc)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gate_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, string(body), "gate_pending_logins 0")
}

func TestGlobalRateLimit(t *testing.T) {
	_, ts := newTestServer(t, fakeKeycloak(t), func(cfg *config.GateConfig) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 1000
		cfg.RateLimit.Burst = 1
		cfg.RateLimit.GlobalRequestsPerSecond = 1
	})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestDerivedIdentityOnlyForServedHosts(t *testing.T) {
	_, ts := newTestServer(t, fakeKeycloak(t), func(cfg *config.GateConfig) {
		cfg.Identity.URL = ""
		cfg.Identity.Hosts = []string{"web-ui.example.com"}
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/vnc/?project=p&app=a&cluster=c&vm=v", nil)
	require.NoError(t, err)
	req.Host = "web-ui.attacker.test"

	resp, err := noRedirects().Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "does not serve")
	assert.NotContains(t, string(body), "keycloak.attacker.test")
}

func TestGzip(t *testing.T) {
	kc := fakeKeycloak(t)
	_, ts := newTestServer(t, kc)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := noRedirects().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	kc := fakeKeycloak(t)
	s, _ := newTestServer(t, kc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
