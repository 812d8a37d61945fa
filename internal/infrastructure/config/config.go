package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// GateConfig holds the login gateway configuration.
type GateConfig struct {
	Server    ServerConfig
	Identity  IdentityConfig
	Cookies   CookieConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	PublicHost      string        `envconfig:"PUBLIC_HOST"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	Gzip            bool          `envconfig:"GZIP" default:"true"`
}

// IdentityConfig holds identity provider (Keycloak) settings. When URL is
// empty the provider address is derived from PUBLIC_HOST, or from a request
// host listed in Hosts.
type IdentityConfig struct {
	URL          string        `envconfig:"IDENTITY_URL" validate:"omitempty,url"`
	DevURL       string        `envconfig:"IDENTITY_DEV_URL" default:"http://localhost:8090" validate:"required,url"`
	Hosts        []string      `envconfig:"IDENTITY_HOSTS"`
	MaxProviders int           `envconfig:"IDENTITY_MAX_PROVIDERS" default:"16" validate:"min=1"`
	ProviderTTL  time.Duration `envconfig:"IDENTITY_PROVIDER_TTL" default:"1h" validate:"gt=0"`
	Realm        string        `envconfig:"IDENTITY_REALM" default:"master" validate:"required"`
	ClientID     string        `envconfig:"IDENTITY_CLIENT_ID" default:"webui-client" validate:"required"`
	RedirectPath string        `envconfig:"IDENTITY_REDIRECT_PATH" default:"/callback" validate:"required,startswith=/"`
	Timeout      time.Duration `envconfig:"IDENTITY_TIMEOUT" default:"10s" validate:"gt=0"`
	LoginTTL     time.Duration `envconfig:"LOGIN_TTL" default:"5m" validate:"gt=0"`
	MaxPending   int           `envconfig:"LOGIN_MAX_PENDING" default:"1024" validate:"min=1"`
}

// CookieConfig holds cookie materialization settings.
type CookieConfig struct {
	MaxChunkLength int `envconfig:"COOKIE_MAX_CHUNK" default:"2000" validate:"min=1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50" validate:"min=1"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100" validate:"min=1"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// GlobalRequestsPerSecond caps all clients together. Zero disables it.
	GlobalRequestsPerSecond int `envconfig:"RATE_LIMIT_GLOBAL_RPS" default:"0" validate:"min=0"`
}

// ProbeConfig holds load generator settings. Variable names match the ones
// the latency scripts have always been run with.
type ProbeConfig struct {
	Hostname        string        `envconfig:"MY_HOSTNAME" validate:"required"`
	Project         string        `envconfig:"PROJECT"`
	AppID           string        `envconfig:"APP_ID"`
	APIToken        string        `envconfig:"API_TOKEN"`
	Username        string        `envconfig:"PROBE_USERNAME"`
	Password        string        `envconfig:"PROBE_PASSWORD"`
	ClientID        string        `envconfig:"PROBE_CLIENT_ID" default:"system-client" validate:"required"`
	Realm           string        `envconfig:"PROBE_REALM" default:"master" validate:"required"`
	Users           int           `envconfig:"USERS" default:"10" validate:"min=1"`
	AppsPerUser     int           `envconfig:"APPS_PER_USER" default:"100" validate:"min=1"`
	PageSize        int           `envconfig:"PAGE_SIZE" default:"100" validate:"min=1"`
	ExcludeCluster  string        `envconfig:"EXCLUDE_CLUSTER" default:"cluster1"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
	SessionDuration time.Duration `envconfig:"SESSION_DURATION" default:"1s" validate:"gt=0"`
	ForceCloseAfter time.Duration `envconfig:"FORCE_CLOSE_AFTER" default:"30s" validate:"gte=0"`
	InsecureTLS     bool          `envconfig:"INSECURE_TLS" default:"false"`
	Logging         LogConfig
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadGate loads gateway configuration from environment variables.
func LoadGate() (*GateConfig, error) {
	var cfg GateConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadGateOrDefault loads gateway configuration or returns the defaults.
func LoadGateOrDefault() *GateConfig {
	cfg, err := LoadGate()
	if err != nil {
		return DefaultGate()
	}
	return cfg
}

// DefaultGate returns default gateway configuration.
func DefaultGate() *GateConfig {
	return &GateConfig{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			Gzip:            true,
		},
		Identity: IdentityConfig{
			DevURL:       "http://localhost:8090",
			MaxProviders: 16,
			ProviderTTL:  time.Hour,
			Realm:        "master",
			ClientID:     "webui-client",
			RedirectPath: "/callback",
			Timeout:      10 * time.Second,
			LoginTTL:     5 * time.Minute,
			MaxPending:   1024,
		},
		Cookies: CookieConfig{
			MaxChunkLength: 2000,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Validate checks field constraints.
func (c *GateConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid gate config: %w", err)
	}
	return nil
}

// LoadProbe loads probe configuration from environment variables. Callers
// apply flag overrides before calling Validate.
func LoadProbe() (*ProbeConfig, error) {
	var cfg ProbeConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and that some credential is present.
func (c *ProbeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid probe config: %w", err)
	}
	if c.APIToken == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("invalid probe config: API_TOKEN or PROBE_USERNAME/PROBE_PASSWORD required")
	}
	return nil
}
