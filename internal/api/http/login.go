package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/domain/session"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/orchgate/internal/providers/identity"
	"github.com/GriffinCanCode/orchgate/internal/shared/id"
	"github.com/GriffinCanCode/orchgate/internal/vnc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Login validates the entry parameters and redirects to the identity
// provider. The context guard runs here too so a conflicting browser is
// stopped before the round trip.
func (h *Handlers) Login(profileName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.profiles[profileName]
		ctx := c.Request.Context()
		log := h.log.With(zap.String("profile", p.Name), tracing.Field(ctx))
		query := c.Request.URL.Query()

		requested, missing := p.Validate(query)
		if len(missing) > 0 {
			h.metrics.RecordBootstrap(p.Name, session.OutcomeMissingParam.String())
			err := session.MissingParamError(missing)
			log.Warn("Login rejected", zap.Error(err))
			h.renderError(c, http.StatusBadRequest, "Missing parameters", err.Error(), "")
			return
		}

		if p.GuardContext {
			if _, conflict := p.Guard(requested, c.Request); conflict != nil {
				h.metrics.RecordBootstrap(p.Name, session.OutcomeConflict.String())
				log.Info("Context conflict", zap.String("requested", p.Describe(requested)))
				h.renderConflict(c, conflict, c.Request.URL.RequestURI())
				return
			}
		}

		provider, ok := h.resolveIdentity(c, log)
		if !ok {
			return
		}
		if err := provider.Ping(ctx); err != nil {
			log.Error("Identity provider unreachable", zap.Error(err))
			h.renderUnavailable(c, provider, c.Request.URL.RequestURI())
			return
		}

		login := session.PendingLogin{
			State:       id.NewLoginID().String(),
			Profile:     p.Name,
			Query:       query,
			Verifier:    oauth2.GenerateVerifier(),
			RedirectURI: h.externalURL(c, h.opts.RedirectPath),
			CreatedAt:   time.Now(),
		}
		h.pending.Put(login)
		h.metrics.RecordLoginStarted(p.Name)

		log.Debug("Redirecting to identity provider",
			zap.String("state", login.State),
			zap.String("requested", p.Describe(requested)))
		c.Redirect(http.StatusFound, provider.AuthCodeURL(login.State, login.Verifier, login.RedirectURI))
	}
}

// Callback completes a login: exchanges the code, bootstraps the session
// and continues to the entry point's landing.
func (h *Handlers) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log.With(tracing.Field(ctx))

	login, ok := h.pending.Take(c.Query("state"))
	if !ok {
		log.Warn("Unknown or expired login state")
		h.renderError(c, http.StatusBadRequest, "Login expired", "This sign-in link has expired or was already used.", PathRoot)
		return
	}
	p := h.profiles[login.Profile]
	retry := entryPath(p.Name) + "?" + login.Query.Encode()
	log = log.With(zap.String("profile", p.Name), zap.String("state", login.State))

	if reason := c.Query("error"); reason != "" {
		log.Warn("Identity provider refused login",
			zap.String("error", reason),
			zap.String("description", c.Query("error_description")))
		msg := reason
		if d := c.Query("error_description"); d != "" {
			msg += ": " + d
		}
		h.renderError(c, http.StatusUnauthorized, "Sign-in failed", msg, retry)
		return
	}
	code := c.Query("code")
	if code == "" {
		h.renderError(c, http.StatusBadRequest, "Sign-in failed", "code parameter missing", retry)
		return
	}

	provider, ok := h.resolveIdentity(c, log)
	if !ok {
		return
	}
	timer := monitoring.NewTimer(h.metrics, "exchange")
	tok, err := provider.Exchange(ctx, code, login.Verifier, login.RedirectURI)
	timer.Stop(err)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) || errors.Is(err, resilience.ErrCircuitOpen) {
			log.Error("Identity provider unreachable", zap.Error(err))
			h.renderUnavailable(c, provider, retry)
			return
		}
		log.Warn("Code exchange rejected", zap.Error(err))
		h.renderError(c, http.StatusUnauthorized, "Sign-in failed", "The identity provider rejected the sign-in.", retry)
		return
	}

	result := p.Bootstrap(login.Query, c.Request, session.Token{Value: tok.AccessToken, Expiry: tok.Expiry})
	h.metrics.RecordBootstrap(p.Name, result.Outcome.String())

	switch result.Outcome {
	case session.OutcomeMissingParam:
		h.renderError(c, http.StatusBadRequest, "Missing parameters", session.MissingParamError(result.Missing).Error(), "")
	case session.OutcomeConflict:
		log.Info("Context conflict", zap.String("requested", p.Describe(result.Requested)))
		h.renderConflict(c, result.Conflict, retry)
	case session.OutcomeReady:
		setCookies(c, result.Cookies)
		log.Info("Session ready",
			zap.String("context", p.Describe(result.Requested)),
			zap.Int("cookies", len(result.Cookies)),
			zap.Time("expiry", tok.Expiry))
		h.land(c, p, login)
	}
}

// land sends the browser to the entry point's landing after cookies are set.
func (h *Handlers) land(c *gin.Context, p session.Profile, login session.PendingLogin) {
	if p.Name != session.RemoteDesktop.Name {
		c.Redirect(http.StatusFound, PathRoot)
		return
	}

	endpoint, err := vnc.EndpointURL(c.Request.Host, login.Query)
	if err != nil {
		h.renderError(c, http.StatusBadRequest, "Missing parameters", err.Error(), "")
		return
	}
	c.HTML(http.StatusOK, "vnc.html", gin.H{
		"Title":      "Remote desktop",
		"Status":     "Connecting to " + endpoint,
		"Endpoint":   endpoint,
		"Options":    vnc.ParseOptions(login.Query),
		"LogoutPath": PathLogout,
	})
}

// VNCAddress returns the console websocket address for the page query. The
// caller must already hold the desktop token cookies.
func (h *Handlers) VNCAddress(c *gin.Context) {
	p := h.profiles[session.RemoteDesktop.Name]
	query := c.Request.URL.Query()

	endpoint, err := vnc.EndpointURL(c.Request.Host, query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := p.ReadToken(c.Request); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	requested, _ := p.Validate(query)
	opts := vnc.ParseOptions(query)
	c.JSON(http.StatusOK, gin.H{
		"address":   endpoint,
		"context":   p.Describe(requested),
		"view_only": opts.ViewOnly,
		"scale":     opts.Scale,
	})
}

// Reset expires every cookie the browser sent and returns to the page that
// hit the conflict.
func (h *Handlers) Reset(c *gin.Context) {
	cleared := session.ClearCookies(c.Request.Cookies())
	setCookies(c, cleared)
	h.metrics.RecordReset("conflict")
	h.log.Info("Cookies cleared", zap.Int("cookies", len(cleared)), tracing.Field(c.Request.Context()))
	c.Redirect(http.StatusSeeOther, safeReturn(c.PostForm("return")))
}

// Logout expires every cookie and ends the identity provider session.
func (h *Handlers) Logout(c *gin.Context) {
	cleared := session.ClearCookies(c.Request.Cookies())
	setCookies(c, cleared)
	h.metrics.RecordReset("logout")

	provider, err := h.identity(c.Request.Host)
	if err != nil {
		c.Redirect(http.StatusFound, PathRoot)
		return
	}
	c.Redirect(http.StatusFound, provider.LogoutURL(h.externalURL(c, PathRoot)))
}

// resolveIdentity finds the provider for the request host and renders a 400
// when the host is not served.
func (h *Handlers) resolveIdentity(c *gin.Context, log *logging.Logger) (IdentityProvider, bool) {
	provider, err := h.identity(c.Request.Host)
	if err != nil {
		log.Warn("No identity provider for host", zap.String("host", c.Request.Host), zap.Error(err))
		h.renderError(c, http.StatusBadRequest, "Unknown host", "This gate does not serve "+c.Request.Host+".", "")
		return nil, false
	}
	return provider, true
}

func (h *Handlers) renderError(c *gin.Context, status int, title, message, retry string) {
	c.HTML(status, "error.html", gin.H{
		"Title":   title,
		"Message": message,
		"Retry":   retry,
	})
}

func (h *Handlers) renderUnavailable(c *gin.Context, provider IdentityProvider, retry string) {
	h.renderError(c, http.StatusBadGateway, "Sign-in unavailable",
		"identity provider unavailable at "+provider.BaseURL(), retry)
}

func (h *Handlers) renderConflict(c *gin.Context, conflict *session.Conflict, returnTo string) {
	c.HTML(http.StatusConflict, "conflict.html", gin.H{
		"Title":     "Different context already active",
		"Diffs":     conflict.Diffs,
		"ResetPath": PathReset,
		"Return":    returnTo,
	})
}
