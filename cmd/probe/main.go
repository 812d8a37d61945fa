package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/loadgen"
	"github.com/GriffinCanCode/orchgate/internal/providers/identity"
)

// errThresholds marks a run that completed but missed its thresholds.
var errThresholds = errors.New("thresholds failed")

func main() {
	cfg, err := config.LoadProbe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// Flags override environment
	planName := flag.String("plan", loadgen.PlanASP, "Built-in plan (adm, asp, vnc) or path to a YAML/TOML plan")
	jsonOut := flag.Bool("json", false, "Write the report as JSON")
	metricsOut := flag.String("metrics-out", "", "Write sample metrics in Prometheus text format to this file")
	flag.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "Deployment domain (MY_HOSTNAME)")
	flag.StringVar(&cfg.Project, "project", cfg.Project, "Project (PROJECT)")
	flag.StringVar(&cfg.AppID, "app", cfg.AppID, "Application id (APP_ID)")
	flag.IntVar(&cfg.Users, "users", cfg.Users, "Virtual users (USERS)")
	flag.IntVar(&cfg.AppsPerUser, "apps-per-user", cfg.AppsPerUser, "Items per virtual user (APPS_PER_USER)")
	flag.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Listing page size (PAGE_SIZE)")
	flag.BoolVar(&cfg.InsecureTLS, "insecure", cfg.InsecureTLS, "Skip TLS verification (INSECURE_TLS)")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (LOG_LEVEL)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewWriter(os.Stderr, cfg.Logging.Level)
	err = run(cfg, logger, *planName, *jsonOut, *metricsOut)
	switch {
	case errors.Is(err, errThresholds):
		os.Exit(1)
	case err != nil:
		logger.Error("Probe failed", zap.Error(err))
		os.Exit(2)
	}
}

func run(cfg *config.ProbeConfig, logger *logging.Logger, planName string, jsonOut bool, metricsOut string) error {
	plan, err := loadPlan(planName, cfg.Users)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := accessToken(ctx, cfg, logger)
	if err != nil {
		return err
	}

	env := &loadgen.Env{
		Domain:          cfg.Hostname,
		Hosts:           loadgen.HostsFor(cfg.Hostname),
		Project:         cfg.Project,
		AppID:           cfg.AppID,
		Token:           token,
		AppsPerUser:     cfg.AppsPerUser,
		PageSize:        cfg.PageSize,
		ExcludeCluster:  cfg.ExcludeCluster,
		RequestTimeout:  cfg.RequestTimeout,
		SessionDuration: cfg.SessionDuration,
		ForceCloseAfter: cfg.ForceCloseAfter,
		InsecureTLS:     cfg.InsecureTLS,
		Log:             logger,
	}

	reg := prometheus.NewRegistry()
	runner := loadgen.NewRunner(plan, env, logger, loadgen.NewExporter(reg))
	report, runErr := runner.Run(ctx)
	if report == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn("Run ended early", zap.Error(runErr))
	}

	if jsonOut {
		err = report.WriteJSON(os.Stdout)
	} else {
		err = report.WriteText(os.Stdout)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if metricsOut != "" {
		if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if !report.Passed {
		return errThresholds
	}
	return runErr
}

func loadPlan(name string, users int) (*loadgen.Plan, error) {
	switch name {
	case loadgen.PlanADM, loadgen.PlanASP, loadgen.PlanVNC:
		return loadgen.BuiltinPlan(name, users)
	default:
		return loadgen.LoadPlan(name)
	}
}

// accessToken returns API_TOKEN, or runs a password grant against the
// deployment's identity provider.
func accessToken(ctx context.Context, cfg *config.ProbeConfig, logger *logging.Logger) (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}
	provider := identity.New(identity.Config{
		BaseURL:  "https://keycloak." + cfg.Hostname,
		Realm:    cfg.Realm,
		ClientID: cfg.ClientID,
		Timeout:  30 * time.Second,
	}, logger)
	tok, err := provider.PasswordToken(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return "", fmt.Errorf("obtain token: %w", err)
	}
	logger.Info("Obtained access token", zap.Time("expiry", tok.Expiry))
	return tok.AccessToken, nil
}
