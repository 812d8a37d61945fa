package loadgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector("http_req_duration{type:armAPI}")
	require.NoError(t, err)
	assert.Equal(t, "http_req_duration", sel.Metric)
	assert.Equal(t, map[string]string{"type": "armAPI"}, sel.Tags)
	assert.Equal(t, "http_req_duration{type:armAPI}", sel.String())

	sel, err = ParseSelector(" iterations ")
	require.NoError(t, err)
	assert.Equal(t, "iterations", sel.String())
	assert.Nil(t, sel.Tags)

	sel, err = ParseSelector("m{type:a, scenario:b}")
	require.NoError(t, err)
	assert.Equal(t, "m{scenario:b,type:a}", sel.String())

	for _, bad := range []string{"", "{type:a}", "m{type:a", "m{nocolon}"} {
		_, err := ParseSelector(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr     string
		stat     string
		quantile float64
		op       string
		bound    float64
	}{
		{"p(95)<1000", "p", 95, "<", 1000},
		{"p(99.9) <= 2.5", "p", 99.9, "<=", 2.5},
		{"avg<750", "avg", 0, "<", 750},
		{"rate<0.01", "rate", 0, "<", 0.01},
		{"count>=1", "count", 0, ">=", 1},
		{"med!=0", "med", 0, "!=", 0},
		{"max > -1", "max", 0, ">", -1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCondition(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.stat, c.Stat)
			assert.Equal(t, tt.quantile, c.Quantile)
			assert.Equal(t, tt.op, c.Op)
			assert.Equal(t, tt.bound, c.Bound)
		})
	}

	for _, bad := range []string{"p95<1", "avg", "avg<", "mean<1", "p(101)<1", "avg=<1"} {
		_, err := ParseCondition(bad)
		assert.Error(t, err, bad)
	}
}

func TestSummarize(t *testing.T) {
	values := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	st := Summarize(values)

	assert.Equal(t, 10, st.Count)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 10.0, st.Max)
	assert.InDelta(t, 5.5, st.Avg, 1e-9)
	assert.InDelta(t, 5.0, st.Med, 1e-9)
	assert.InDelta(t, 9.5, st.P95, 1e-9)

	assert.Equal(t, Stats{}, Summarize(nil))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 95))
}

func collectorWith(metric, typ string, values ...float64) *Collector {
	c := NewCollector()
	for _, v := range values {
		c.Record(Sample{Metric: metric, Value: v, Tags: typeTag(typ)})
	}
	return c
}

func TestEvaluate(t *testing.T) {
	c := collectorWith(MetricHTTPReqDuration, TagARM, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	c.Record(Sample{Metric: MetricHTTPReqDuration, Value: 10000, Tags: typeTag(TagADM)})
	for _, failed := range []float64{0, 0, 0, 1} {
		c.Record(Sample{Metric: MetricHTTPReqFailed, Value: failed, Tags: typeTag(TagARM)})
	}

	ths, err := ParseThresholds(map[string][]string{
		"http_req_duration{type:armAPI}": {"p(95)<10", "avg<5", "med==5"},
		"http_req_failed":                {"rate<0.01"},
		"ws_connecting{type:vncProxy}":   {"p(95)<3000"},
	})
	require.NoError(t, err)

	results := Evaluate(ths, c)
	require.Len(t, results, 5)

	byExpr := make(map[string]ThresholdResult)
	for _, r := range results {
		byExpr[r.Selector+" "+r.Expr] = r
	}

	p95 := byExpr["http_req_duration{type:armAPI} p(95)<10"]
	assert.True(t, p95.Passed)
	assert.InDelta(t, 9.5, p95.Observed, 1e-9)
	assert.Equal(t, 10, p95.Samples)

	avg := byExpr["http_req_duration{type:armAPI} avg<5"]
	assert.False(t, avg.Passed)
	assert.InDelta(t, 5.5, avg.Observed, 1e-9)

	assert.True(t, byExpr["http_req_duration{type:armAPI} med==5"].Passed)

	rate := byExpr["http_req_failed rate<0.01"]
	assert.False(t, rate.Passed)
	assert.InDelta(t, 0.25, rate.Observed, 1e-9)

	empty := byExpr["ws_connecting{type:vncProxy} p(95)<3000"]
	assert.True(t, empty.Passed)
	assert.Zero(t, empty.Samples)

	assert.False(t, AllPassed(results))
	assert.True(t, AllPassed(nil))
}

func TestParseThresholdsRejectsBadExpression(t *testing.T) {
	_, err := ParseThresholds(map[string][]string{"http_req_failed": {"rate<<1"}})
	assert.ErrorContains(t, err, "http_req_failed")
}
