package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	gatehttp "github.com/GriffinCanCode/orchgate/internal/api/http"
	"github.com/GriffinCanCode/orchgate/internal/api/middleware"
	"github.com/GriffinCanCode/orchgate/internal/domain/session"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/orchgate/internal/providers/identity"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	handler http.Handler
	tracer  *tracing.Tracer
	pending *session.PendingStore
	logger  *logging.Logger
	config  *config.GateConfig
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance. Metrics are registered on reg,
// which is also what /metrics serves.
func NewServer(cfg *config.GateConfig, logger *logging.Logger, reg *prometheus.Registry) (*Server, error) {
	logger.Info("Initializing gate",
		zap.String("port", cfg.Server.Port),
		zap.String("identity_url", cfg.Identity.URL),
		zap.String("realm", cfg.Identity.Realm),
	)

	pending := session.NewPendingStore(cfg.Identity.MaxPending, cfg.Identity.LoginTTL)
	metrics := monitoring.NewMetrics(reg, pending.Len)
	tracer := tracing.New("orchgate", logger)

	registry := identity.NewRegistry(identity.RegistryConfig{
		FixedURL:   cfg.Identity.URL,
		PublicHost: cfg.Server.PublicHost,
		Hosts:      cfg.Identity.Hosts,
		DevURL:     cfg.Identity.DevURL,
		Realm:      cfg.Identity.Realm,
		ClientID:   cfg.Identity.ClientID,
		Timeout:    cfg.Identity.Timeout,
		Size:       cfg.Identity.MaxProviders,
		TTL:        cfg.Identity.ProviderTTL,
	}, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
		if rps := cfg.RateLimit.GlobalRequestsPerSecond; rps > 0 {
			logger.Info("Global rate limit enabled", zap.Int("rps", rps))
			router.Use(middleware.GlobalRateLimit(middleware.RateLimitConfig{
				RequestsPerSecond: rps,
				Burst:             max(rps, cfg.RateLimit.Burst),
			}))
		}
	}

	handlers := gatehttp.NewHandlers(gatehttp.RegistryResolver(registry), pending, metrics, gatehttp.Options{
		PublicHost:     cfg.Server.PublicHost,
		RedirectPath:   cfg.Identity.RedirectPath,
		MaxChunkLength: cfg.Cookies.MaxChunkLength,
	}, logger)
	if err := handlers.Register(router); err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}
	router.GET(gatehttp.PathMetrics, gin.WrapH(monitoring.Handler(reg)))

	var handler http.Handler = router
	if cfg.Server.Gzip {
		handler = gzhttp.GzipHandler(router)
	}

	logger.Info("Gate initialized successfully")

	return &Server{
		router:  router,
		handler: handler,
		tracer:  tracer,
		pending: pending,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler returns the root handler, compressed when enabled.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.handler}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close releases background resources.
func (s *Server) Close() error {
	s.tracer.Close()
	_ = s.logger.Sync()
	return nil
}
