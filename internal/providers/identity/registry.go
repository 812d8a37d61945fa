package identity

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ErrHostNotServed means a request arrived on a host the gate does not serve,
// so no identity server may be derived from it.
var ErrHostNotServed = errors.New("host not served")

// DeriveBaseURL maps the host a page was served from to the identity
// server of the same deployment: foo.example.com -> https://keycloak.example.com.
// Hosts without a parent domain use devURL.
func DeriveBaseURL(host, devURL string) string {
	hostname := hostnameOf(host)
	if net.ParseIP(hostname) != nil {
		return devURL
	}
	_, domain, ok := strings.Cut(hostname, ".")
	if !ok || domain == "" {
		return devURL
	}
	return "https://keycloak." + domain
}

func hostnameOf(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// RegistryConfig selects how the identity server is found.
type RegistryConfig struct {
	// FixedURL, when set, is used for every host.
	FixedURL string
	// PublicHost, when set, is the only host derivation starts from.
	PublicHost string
	// Hosts lists the served hostnames a request host may derive from.
	// Hosts outside it resolve only when they have no parent domain.
	Hosts    []string
	DevURL   string
	Realm    string
	ClientID string
	Timeout  time.Duration
	// Size and TTL bound the provider cache.
	Size int
	TTL  time.Duration
}

// Registry hands out one Provider per identity server so each keeps its own
// breaker and connection pool.
type Registry struct {
	cfg       RegistryConfig
	log       *logging.Logger
	providers *expirable.LRU[string, *Provider]
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig, log *logging.Logger) *Registry {
	if cfg.Size <= 0 {
		cfg.Size = 16
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Registry{
		cfg:       cfg,
		log:       log.Named("identity-registry"),
		providers: expirable.NewLRU[string, *Provider](cfg.Size, nil, cfg.TTL),
	}
}

// BaseURLFor resolves the identity server for a request host.
func (r *Registry) BaseURLFor(host string) (string, error) {
	switch {
	case r.cfg.FixedURL != "":
		return strings.TrimRight(r.cfg.FixedURL, "/"), nil
	case r.cfg.PublicHost != "":
		return DeriveBaseURL(r.cfg.PublicHost, r.cfg.DevURL), nil
	}

	base := DeriveBaseURL(host, r.cfg.DevURL)
	if base == r.cfg.DevURL {
		return base, nil
	}
	if !slices.ContainsFunc(r.cfg.Hosts, func(h string) bool {
		return strings.EqualFold(h, hostnameOf(host))
	}) {
		return "", fmt.Errorf("%w: %s", ErrHostNotServed, host)
	}
	return base, nil
}

// ForHost returns the provider serving pages on host.
func (r *Registry) ForHost(host string) (*Provider, error) {
	base, err := r.BaseURLFor(host)
	if err != nil {
		return nil, err
	}
	if p, ok := r.providers.Get(base); ok {
		return p, nil
	}

	p := New(Config{
		BaseURL:  base,
		Realm:    r.cfg.Realm,
		ClientID: r.cfg.ClientID,
		Timeout:  r.cfg.Timeout,
	}, r.log)
	r.providers.Add(base, p)
	r.log.Info("Identity provider added", zap.String("issuer", p.Issuer()))
	return p, nil
}

// Len returns the number of cached providers.
func (r *Registry) Len() int {
	return r.providers.Len()
}
