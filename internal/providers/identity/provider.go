package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/orchgate/internal/providers/http/client"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrUnavailable means the identity provider could not be reached.
var ErrUnavailable = errors.New("identity provider unavailable")

// Token is an issued access token.
type Token struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}

// Config describes one realm on one identity server.
type Config struct {
	BaseURL  string
	Realm    string
	ClientID string
	Timeout  time.Duration
}

// Provider talks OIDC to a single Keycloak realm. Calls go through a
// circuit breaker so an unreachable server fails fast.
type Provider struct {
	cfg    Config
	issuer string
	http   *client.Client
	log    *logging.Logger
}

// New creates a provider for cfg.
func New(cfg Config, log *logging.Logger) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cfg.BaseURL = base

	breaker := client.DefaultBreaker()
	breaker.IsSuccessful = func(err error) bool {
		var re *oauth2.RetrieveError
		return err == nil || errors.As(err, &re)
	}
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("Identity breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	return &Provider{
		cfg:    cfg,
		issuer: base + "/realms/" + url.PathEscape(cfg.Realm),
		http: client.New(client.Options{
			Timeout: cfg.Timeout,
			Breaker: breaker,
			Name:    "identity:" + base,
		}),
		log: log.Named("identity").With(zap.String("issuer", base)),
	}
}

// BaseURL returns the server root, as shown to users when it is unreachable.
func (p *Provider) BaseURL() string { return p.cfg.BaseURL }

// Issuer returns the realm URL.
func (p *Provider) Issuer() string { return p.issuer }

// Endpoint returns the realm's OAuth2 endpoints.
func (p *Provider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   p.issuer + "/protocol/openid-connect/auth",
		TokenURL:  p.issuer + "/protocol/openid-connect/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (p *Provider) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    p.cfg.ClientID,
		Endpoint:    p.Endpoint(),
		RedirectURL: redirectURL,
		Scopes:      []string{"openid"},
	}
}

// AuthCodeURL builds the login redirect for an authorization code flow
// protected by a PKCE S256 challenge derived from verifier.
func (p *Provider) AuthCodeURL(state, verifier, redirectURL string) string {
	return p.oauthConfig(redirectURL).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code, verifier, redirectURL string) (*Token, error) {
	cfg := p.oauthConfig(redirectURL)
	tok, err := client.Guard(p.http, func() (*oauth2.Token, error) {
		return cfg.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	})
	if err != nil {
		return nil, p.wrap("exchange code", err)
	}
	return p.convert(tok), nil
}

// PasswordToken runs a resource owner password grant, as used by
// non-interactive clients.
func (p *Provider) PasswordToken(ctx context.Context, username, password string) (*Token, error) {
	cfg := p.oauthConfig("")
	tok, err := client.Guard(p.http, func() (*oauth2.Token, error) {
		return cfg.PasswordCredentialsToken(p.clientContext(ctx), username, password)
	})
	if err != nil {
		return nil, p.wrap("password grant", err)
	}
	return p.convert(tok), nil
}

// Ping checks that the realm's discovery document is served.
func (p *Provider) Ping(ctx context.Context) error {
	resp, err := p.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		resp, err := r.Get(p.issuer + "/.well-known/openid-configuration")
		if err != nil {
			return resp, err
		}
		if resp.StatusCode() != http.StatusOK {
			return resp, fmt.Errorf("discovery returned %d", resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		return p.wrap("discovery", err)
	}
	p.log.Debug("Identity provider reachable", zap.Duration("latency", resp.Time()))
	return nil
}

// LogoutURL returns the end-session URL that sends the browser back to
// redirectURL afterwards.
func (p *Provider) LogoutURL(redirectURL string) string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	if redirectURL != "" {
		q.Set("post_logout_redirect_uri", redirectURL)
	}
	return p.issuer + "/protocol/openid-connect/logout?" + q.Encode()
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http.HTTPClient())
}

func (p *Provider) convert(tok *oauth2.Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}
	if out.Expiry.IsZero() {
		if exp, ok := ExpiryFromJWT(tok.AccessToken); ok {
			out.Expiry = exp
		}
	}
	return out
}

// wrap keeps protocol rejections distinct from outages.
func (p *Provider) wrap(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w at %s: %s: %v", ErrUnavailable, p.cfg.BaseURL, op, err)
}
