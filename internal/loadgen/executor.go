package loadgen

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExecutorKind selects how VUs schedule iterations.
type ExecutorKind string

const (
	// ConstantVUs loops every VU until Duration has elapsed.
	ConstantVUs ExecutorKind = "constant-vus"
	// PerVUIterations runs Iterations per VU, bounded by MaxDuration.
	PerVUIterations ExecutorKind = "per-vu-iterations"
)

// VUFactory builds VU id of n.
type VUFactory func(id, n int) (*VU, error)

// ScenarioResult summarizes one executed scenario.
type ScenarioResult struct {
	Name       string        `json:"name"`
	Exec       string        `json:"exec"`
	Executor   ExecutorKind  `json:"executor"`
	VUs        int           `json:"vus"`
	Iterations int64         `json:"iterations"`
	Failed     int64         `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// Execute waits for the plan's start time, then runs sc on plan.VUs
// goroutines. Failed iterations are logged and counted; they never stop
// other VUs.
func Execute(ctx context.Context, plan ScenarioPlan, sc Scenario, newVU VUFactory, rec Recorder, log *logging.Logger) (ScenarioResult, error) {
	result := ScenarioResult{Name: plan.Name, Exec: plan.Exec, Executor: plan.Executor, VUs: plan.VUs}
	log = log.Named("executor").With(zap.String("scenario", plan.Name))

	if d := plan.StartTime.Duration(); d > 0 {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(d):
		}
	}

	var iterations, failed atomic.Int64
	tags := map[string]string{"scenario": plan.Name}
	iterate := func(ctx context.Context, vu *VU) {
		start := time.Now()
		err := sc.Iterate(ctx, vu)
		iterations.Add(1)
		rec.Record(Sample{Metric: MetricIterations, Value: durationMillis(time.Since(start)), Tags: tags})
		rec.Record(Sample{Metric: MetricIterationFailed, Value: boolRate(err != nil), Tags: tags})
		if err != nil {
			failed.Add(1)
			log.Warn("Iteration failed", zap.Int("vu", vu.ID), zap.Error(err))
		}
	}

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for id := 1; id <= plan.VUs; id++ {
		g.Go(func() error {
			vu, err := newVU(id, plan.VUs)
			if err != nil {
				return fmt.Errorf("vu %d: %w", id, err)
			}

			switch plan.Executor {
			case ConstantVUs:
				deadline := started.Add(plan.Duration.Duration())
				for gctx.Err() == nil && time.Now().Before(deadline) {
					iterate(gctx, vu)
				}
			case PerVUIterations:
				runCtx, cancel := context.WithTimeout(gctx, plan.MaxDuration.Duration())
				defer cancel()
				for i := 0; i < plan.Iterations && runCtx.Err() == nil; i++ {
					iterate(runCtx, vu)
				}
			default:
				return fmt.Errorf("unknown executor %q", plan.Executor)
			}
			return nil
		})
	}
	err := g.Wait()

	result.Iterations = iterations.Load()
	result.Failed = failed.Load()
	result.Duration = time.Since(started)
	log.Info("Scenario finished",
		zap.Int64("iterations", result.Iterations),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration))
	return result, err
}
