package http

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/domain/session"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/orchgate/internal/providers/identity"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded gate pages.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// IdentityProvider is the part of an OIDC provider the gate needs.
type IdentityProvider interface {
	BaseURL() string
	Ping(ctx context.Context) error
	AuthCodeURL(state, verifier, redirectURL string) string
	Exchange(ctx context.Context, code, verifier, redirectURL string) (*identity.Token, error)
	LogoutURL(redirectURL string) string
}

// IdentityResolver picks the identity provider for the host a request was
// served on. It fails for hosts the gate does not serve.
type IdentityResolver func(host string) (IdentityProvider, error)

// RegistryResolver adapts an identity.Registry.
func RegistryResolver(r *identity.Registry) IdentityResolver {
	return func(host string) (IdentityProvider, error) {
		p, err := r.ForHost(host)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Options configures the gate handlers.
type Options struct {
	// PublicHost, when set, is used instead of the request host for
	// redirect URLs.
	PublicHost     string
	RedirectPath   string
	MaxChunkLength int
}

// Route paths.
const (
	PathRoot         = "/"
	PathServiceProxy = "/service-proxy/"
	PathVNC          = "/vnc/"
	PathVNCAddress   = "/vnc/address"
	PathCallback     = "/callback"
	PathReset        = "/reset"
	PathLogout       = "/logout"
	PathHealth       = "/health"
	PathMetrics      = "/metrics"
)

// Handlers contains the gate's HTTP handlers
type Handlers struct {
	identity IdentityResolver
	pending  *session.PendingStore
	metrics  *monitoring.Metrics
	profiles map[string]session.Profile
	opts     Options
	log      *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(resolve IdentityResolver, pending *session.PendingStore, metrics *monitoring.Metrics, opts Options, log *logging.Logger) *Handlers {
	if opts.RedirectPath == "" {
		opts.RedirectPath = PathCallback
	}
	profiles := make(map[string]session.Profile, len(session.Profiles))
	for name, p := range session.Profiles {
		if opts.MaxChunkLength > 0 {
			p = p.WithMaxChunkLength(opts.MaxChunkLength)
		}
		profiles[name] = p
	}
	return &Handlers{
		identity: resolve,
		pending:  pending,
		metrics:  metrics,
		profiles: profiles,
		opts:     opts,
		log:      log.Named("handlers"),
	}
}

// Register mounts every gate route on r and installs the page templates.
func (h *Handlers) Register(r *gin.Engine) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	r.GET(PathRoot, h.Root)
	r.GET(PathHealth, h.Health)

	r.GET(PathServiceProxy, h.Login(session.ServiceProxy.Name))
	r.GET(PathVNC, h.Login(session.RemoteDesktop.Name))
	r.GET(PathVNCAddress, h.VNCAddress)
	r.GET(h.opts.RedirectPath, h.Callback)
	r.POST(PathReset, h.Reset)
	r.GET(PathLogout, h.Logout)
	return nil
}

// entryPath returns the route a profile's logins start from.
func entryPath(profile string) string {
	if profile == session.RemoteDesktop.Name {
		return PathVNC
	}
	return PathServiceProxy
}

// externalURL builds an absolute URL on the host the browser used.
func (h *Handlers) externalURL(c *gin.Context, path string) string {
	host := h.opts.PublicHost
	if host == "" {
		host = c.Request.Host
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") || h.opts.PublicHost != "" {
		scheme = "https"
	}
	return scheme + "://" + host + path
}

// safeReturn accepts only same-site absolute paths.
func safeReturn(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return PathRoot
	}
	if u, err := url.Parse(raw); err != nil || u.Host != "" || u.Scheme != "" {
		return PathRoot
	}
	return raw
}

func setCookies(c *gin.Context, cookies []*http.Cookie) {
	for _, ck := range cookies {
		http.SetCookie(c.Writer, ck)
	}
}

// Root shows which service proxy context this browser is signed in to
func (h *Handlers) Root(c *gin.Context) {
	p := h.profiles[session.ServiceProxy.Name]
	data := gin.H{
		"Title":      "Service proxy",
		"Context":    p.Describe(p.StoredContext(c.Request)),
		"LogoutPath": PathLogout,
	}
	if expiry, ok := p.ReadExpiry(c.Request); ok {
		data["Expires"] = expiry.UTC().Format(time.RFC1123)
		data["Expired"] = time.Now().After(expiry)
	}
	c.HTML(http.StatusOK, "landing.html", data)
}

// Health reports liveness and request totals
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "orchgate",
		"pending_logins": h.pending.Len(),
		"requests":       h.metrics.Snapshot(),
	})
}
