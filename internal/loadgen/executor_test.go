package loadgen

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingScenario struct {
	calls atomic.Int64
	fail  func(vu *VU) bool
	pause time.Duration
}

func (s *countingScenario) Name() string { return "counting" }

func (s *countingScenario) Iterate(ctx context.Context, vu *VU) error {
	s.calls.Add(1)
	if s.pause > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(s.pause):
		}
	}
	if s.fail != nil && s.fail(vu) {
		return errors.New("iteration failed")
	}
	return nil
}

func bareVU(id, n int) (*VU, error) {
	return &VU{ID: id, Of: n, Log: logging.NewNop()}, nil
}

func TestExecutePerVUIterations(t *testing.T) {
	sc := &countingScenario{fail: func(vu *VU) bool { return vu.ID == 2 }}
	rec := NewCollector()
	plan := ScenarioPlan{Name: "s", Exec: "x", Executor: PerVUIterations, VUs: 3, Iterations: 2, MaxDuration: Duration(time.Minute)}

	res, err := Execute(context.Background(), plan, sc, bareVU, rec, logging.NewNop())
	require.NoError(t, err)

	assert.EqualValues(t, 6, res.Iterations)
	assert.EqualValues(t, 2, res.Failed)
	assert.Equal(t, 3, res.VUs)
	assert.EqualValues(t, 6, sc.calls.Load())

	scenario := map[string]string{"scenario": "s"}
	assert.Len(t, rec.Values(MetricIterations, scenario), 6)
	failed := Summarize(rec.Values(MetricIterationFailed, scenario))
	assert.InDelta(t, 2.0/6.0, failed.Avg, 1e-9)
}

func TestExecutePerVUIterationsStopsAtMaxDuration(t *testing.T) {
	sc := &countingScenario{pause: time.Hour}
	plan := ScenarioPlan{Name: "s", Exec: "x", Executor: PerVUIterations, VUs: 1, Iterations: 5, MaxDuration: Duration(50 * time.Millisecond)}

	res, err := Execute(context.Background(), plan, sc, bareVU, NewCollector(), logging.NewNop())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Iterations)
	assert.Less(t, res.Duration, 5*time.Second)
}

func TestExecuteConstantVUs(t *testing.T) {
	sc := &countingScenario{pause: 5 * time.Millisecond}
	plan := ScenarioPlan{Name: "s", Exec: "x", Executor: ConstantVUs, VUs: 2, Duration: Duration(60 * time.Millisecond)}

	res, err := Execute(context.Background(), plan, sc, bareVU, NewCollector(), logging.NewNop())
	require.NoError(t, err)
	assert.Greater(t, res.Iterations, int64(2))
	assert.GreaterOrEqual(t, res.Duration, 60*time.Millisecond)
}

func TestExecuteWaitsForStartTime(t *testing.T) {
	sc := &countingScenario{}
	plan := ScenarioPlan{Name: "s", Exec: "x", Executor: PerVUIterations, VUs: 1, Iterations: 1, MaxDuration: Duration(time.Second), StartTime: Duration(40 * time.Millisecond)}

	start := time.Now()
	_, err := Execute(context.Background(), plan, sc, bareVU, NewCollector(), logging.NewNop())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan.StartTime = Duration(time.Hour)
	_, err = Execute(ctx, plan, sc, bareVU, NewCollector(), logging.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, sc.calls.Load())
}

func TestExecuteVUFactoryError(t *testing.T) {
	boom := errors.New("no jar")
	plan := ScenarioPlan{Name: "s", Exec: "x", Executor: PerVUIterations, VUs: 2, Iterations: 1, MaxDuration: Duration(time.Second)}

	_, err := Execute(context.Background(), plan, &countingScenario{}, func(int, int) (*VU, error) {
		return nil, boom
	}, NewCollector(), logging.NewNop())
	assert.ErrorIs(t, err, boom)
}
