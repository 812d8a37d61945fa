package loadgen

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/shared/id"
	"github.com/bytedance/sonic"
)

// MetricSummary aggregates one metric stream.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Type   string  `json:"type,omitempty"`
	Count  int     `json:"count"`
	Rate   float64 `json:"rate,omitempty"`
	Avg    float64 `json:"avg,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Med    float64 `json:"med,omitempty"`
	Max    float64 `json:"max,omitempty"`
	P90    float64 `json:"p90,omitempty"`
	P95    float64 `json:"p95,omitempty"`
}

// Report is the outcome of a run.
type Report struct {
	RunID      string            `json:"run_id"`
	Started    time.Time         `json:"started"`
	Duration   time.Duration     `json:"duration"`
	Scenarios  []ScenarioResult  `json:"scenarios"`
	Metrics    []MetricSummary   `json:"metrics"`
	Thresholds []ThresholdResult `json:"thresholds"`
	Passed     bool              `json:"passed"`
}

func isRate(metric string) bool {
	return metric == MetricHTTPReqFailed || metric == MetricIterationFailed
}

// BuildReport summarizes every series in c.
func BuildReport(runID id.RunID, started time.Time, scenarios []ScenarioResult, c *Collector, thresholds []ThresholdResult) *Report {
	r := &Report{
		RunID:      runID.String(),
		Started:    started,
		Duration:   time.Since(started),
		Scenarios:  scenarios,
		Thresholds: thresholds,
		Passed:     AllPassed(thresholds),
	}
	for _, s := range c.Series() {
		values := untyped(c, s.Metric)
		if s.Type != "" {
			values = c.Values(s.Metric, typeTag(s.Type))
		}
		st := Summarize(values)
		m := MetricSummary{Metric: s.Metric, Type: s.Type, Count: st.Count}
		if isRate(s.Metric) {
			m.Rate = st.Avg
		} else {
			m.Avg, m.Min, m.Med, m.Max, m.P90, m.P95 = st.Avg, st.Min, st.Med, st.Max, st.P90, st.P95
		}
		r.Metrics = append(r.Metrics, m)
	}
	return r
}

// untyped returns the values of samples that carry no type tag.
func untyped(c *Collector, metric string) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []float64
	for _, s := range c.samples {
		if s.Metric == metric && s.Tags["type"] == "" {
			out = append(out, s.Value)
		}
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	b, err := sonic.ConfigStd.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// WriteText writes a human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s  %s\n\n", r.RunID, r.Duration.Round(time.Millisecond))

	for _, s := range r.Scenarios {
		fmt.Fprintf(&b, "  scenario %-32s %-18s vus=%-4d iterations=%-6d failed=%d\n",
			s.Name, s.Executor, s.VUs, s.Iterations, s.Failed)
	}
	b.WriteString("\n")

	for _, m := range r.Metrics {
		name := m.Metric
		if m.Type != "" {
			name += "{type:" + m.Type + "}"
		}
		if isRate(m.Metric) {
			fmt.Fprintf(&b, "  %-48s rate=%.2f%% count=%d\n", name, m.Rate*100, m.Count)
			continue
		}
		fmt.Fprintf(&b, "  %-48s avg=%.2fms min=%.2fms med=%.2fms max=%.2fms p(90)=%.2fms p(95)=%.2fms count=%d\n",
			name, m.Avg, m.Min, m.Med, m.Max, m.P90, m.P95, m.Count)
	}
	b.WriteString("\n")

	for _, t := range r.Thresholds {
		mark := "✓"
		if !t.Passed {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s %s (observed %.4g over %d samples)\n", mark, t.Selector, t.Expr, t.Observed, t.Samples)
	}
	if r.Passed {
		b.WriteString("\nall thresholds passed\n")
	} else {
		b.WriteString("\nsome thresholds failed\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
