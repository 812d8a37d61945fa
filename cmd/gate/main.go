package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/server"
)

func main() {
	cfg, err := config.LoadGate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Listen port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen address")
	flag.StringVar(&cfg.Server.PublicHost, "public-host", cfg.Server.PublicHost, "Host used in redirect URLs")
	flag.StringVar(&cfg.Identity.URL, "identity-url", cfg.Identity.URL, "Identity provider root; derived from the request host when empty")
	flag.StringVar(&cfg.Identity.Realm, "realm", cfg.Identity.Realm, "Identity realm")
	flag.StringVar(&cfg.Identity.ClientID, "client-id", cfg.Identity.ClientID, "OAuth client id")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development mode (console logs, debug gin)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.NewServer(cfg, logger, reg)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		_ = srv.Close()
		os.Exit(1)
	}
	logger.Info("Shut down gracefully")
	_ = srv.Close()
}
