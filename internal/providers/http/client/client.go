package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "orchgate/1.0"

// Options configures a Client. Zero values are usable.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	RateLimit   float64
	InsecureTLS bool
	// Breaker enables a circuit breaker around Do when set.
	Breaker *resilience.Settings
	Name    string
}

// Client wraps resty with rate limiting and an optional circuit breaker.
// Requests are never retried: a failed call is reported as is.
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	mu      sync.RWMutex
}

// New creates a client on a pooled transport with sonic as the JSON codec.
func New(opts Options) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	transport := retryClient.HTTPClient.Transport
	if t, ok := transport.(*http.Transport); ok && opts.InsecureTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for lab clusters
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	restyClient := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	c := &Client{
		Resty:   restyClient,
		Limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if opts.RateLimit > 0 {
		c.SetRateLimit(opts.RateLimit)
	}
	if opts.Breaker != nil {
		name := opts.Name
		if name == "" {
			name = "http-external"
		}
		c.Breaker = resilience.New(name, *opts.Breaker)
	}
	return c
}

// DefaultBreaker is lenient: upstream identity and API servers vary in
// reliability and a few failures should not lock users out.
func DefaultBreaker() *resilience.Settings {
	return &resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
	}
}

// SetHeader adds a default header
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// SetBearerAuth configures bearer token authentication
func (c *Client) SetBearerAuth(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetAuthToken(token)
}

// SetCookieJar attaches a cookie jar to every request.
func (c *Client) SetCookieJar(jar http.CookieJar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetCookieJar(jar)
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

// HTTPClient exposes the underlying client for libraries that take one,
// such as oauth2.
func (c *Client) HTTPClient() *http.Client {
	return c.Resty.GetClient()
}

// Request creates a new request after the breaker and rate limiter admit it.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker != nil && c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Do builds a request and runs fn with it, through the breaker if one is
// configured.
func (c *Client) Do(ctx context.Context, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	if c.Breaker == nil {
		return fn(req)
	}
	return resilience.Do(c.Breaker, func() (*resty.Response, error) {
		return fn(req)
	})
}

// Guard runs an arbitrary call through the breaker, for clients that drive
// the transport themselves.
func Guard[T any](c *Client, fn func() (T, error)) (T, error) {
	if c.Breaker == nil {
		return fn()
	}
	return resilience.Do(c.Breaker, fn)
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	if c.Breaker == nil {
		return resilience.StateClosed
	}
	return c.Breaker.State()
}
