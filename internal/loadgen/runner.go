package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/shared/id"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes a plan against an environment.
type Runner struct {
	plan      *Plan
	env       *Env
	collector *Collector
	newVU     VUFactory
	log       *logging.Logger
}

// NewRunner wires a runner. Samples go to an internal collector and to any
// extra recorders, such as a metrics exporter.
func NewRunner(plan *Plan, env *Env, log *logging.Logger, extra ...Recorder) *Runner {
	collector := NewCollector()
	env.Recorder = Tee(append([]Recorder{collector}, extra...)...)
	if env.Log == nil {
		env.Log = log
	}
	return &Runner{
		plan:      plan,
		env:       env,
		collector: collector,
		newVU:     env.NewVU,
		log:       log.Named("runner"),
	}
}

// Collector exposes the samples gathered so far.
func (r *Runner) Collector() *Collector { return r.collector }

// Run executes every scenario concurrently, each after its start time, and
// judges the thresholds once all have finished.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	thresholds, err := ParseThresholds(r.plan.Thresholds)
	if err != nil {
		return nil, err
	}
	scenarios := make([]Scenario, len(r.plan.Scenarios))
	for i, sp := range r.plan.Scenarios {
		if scenarios[i], err = Lookup(sp.Exec, r.env); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sp.Name, err)
		}
	}

	runID := id.NewRunID()
	started := time.Now()
	r.log.Info("Starting run",
		zap.String("run_id", runID.String()),
		zap.Int("scenarios", len(scenarios)))

	results := make([]ScenarioResult, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range r.plan.Scenarios {
		g.Go(func() error {
			res, err := Execute(gctx, sp, scenarios[i], r.newVU, r.env.Recorder, r.log)
			results[i] = res
			return err
		})
	}
	runErr := g.Wait()

	report := BuildReport(runID, started, results, r.collector, Evaluate(thresholds, r.collector))
	r.log.Info("Run finished",
		zap.String("run_id", runID.String()),
		zap.Bool("passed", report.Passed),
		zap.Duration("duration", report.Duration))
	return report, runErr
}
