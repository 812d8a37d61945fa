package loadgen

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Selector picks a metric stream, e.g. http_req_duration{type:armAPI}.
type Selector struct {
	Metric string
	Tags   map[string]string
}

func (s Selector) String() string {
	if len(s.Tags) == 0 {
		return s.Metric
	}
	keys := make([]string, 0, len(s.Tags))
	for k := range s.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+s.Tags[k])
	}
	return s.Metric + "{" + strings.Join(parts, ",") + "}"
}

// ParseSelector parses metric{tag:value,...}.
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	name, rest, hasTags := strings.Cut(expr, "{")
	sel := Selector{Metric: strings.TrimSpace(name)}
	if sel.Metric == "" {
		return Selector{}, fmt.Errorf("empty metric in %q", expr)
	}
	if !hasTags {
		return sel, nil
	}
	body, ok := strings.CutSuffix(rest, "}")
	if !ok {
		return Selector{}, fmt.Errorf("unterminated tag set in %q", expr)
	}
	sel.Tags = make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return Selector{}, fmt.Errorf("invalid tag %q in %q", pair, expr)
		}
		sel.Tags[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return sel, nil
}

// Condition is one threshold expression such as p(95)<1000 or rate<0.01.
type Condition struct {
	Expr     string
	Stat     string
	Quantile float64
	Op       string
	Bound    float64
}

var conditionPattern = regexp.MustCompile(`^\s*(avg|min|max|med|count|rate|p\((\d+(?:\.\d+)?)\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

// ParseCondition parses a threshold expression.
func ParseCondition(expr string) (Condition, error) {
	m := conditionPattern.FindStringSubmatch(expr)
	if m == nil {
		return Condition{}, fmt.Errorf("invalid threshold %q", expr)
	}
	c := Condition{Expr: strings.TrimSpace(expr), Stat: m[1], Op: m[3]}
	if m[2] != "" {
		q, err := strconv.ParseFloat(m[2], 64)
		if err != nil || q < 0 || q > 100 {
			return Condition{}, fmt.Errorf("invalid percentile in %q", expr)
		}
		c.Stat, c.Quantile = "p", q
	}
	bound, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("invalid bound in %q: %w", expr, err)
	}
	c.Bound = bound
	return c, nil
}

// Observe computes the condition's statistic over values.
func (c Condition) Observe(values []float64) float64 {
	switch c.Stat {
	case "count":
		return float64(len(values))
	case "rate", "avg":
		return Summarize(values).Avg
	case "min":
		return Summarize(values).Min
	case "max":
		return Summarize(values).Max
	case "med":
		return Summarize(values).Med
	case "p":
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return Percentile(sorted, c.Quantile)
	}
	return math.NaN()
}

// Holds reports whether observed satisfies the condition.
func (c Condition) Holds(observed float64) bool {
	switch c.Op {
	case "<":
		return observed < c.Bound
	case "<=":
		return observed <= c.Bound
	case ">":
		return observed > c.Bound
	case ">=":
		return observed >= c.Bound
	case "==":
		return observed == c.Bound
	case "!=":
		return observed != c.Bound
	}
	return false
}

// Threshold binds conditions to a metric stream.
type Threshold struct {
	Selector   Selector
	Conditions []Condition
}

// ParseThresholds parses a selector to expressions map, sorted by selector.
func ParseThresholds(raw map[string][]string) ([]Threshold, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Threshold, 0, len(raw))
	for _, k := range keys {
		sel, err := ParseSelector(k)
		if err != nil {
			return nil, err
		}
		th := Threshold{Selector: sel}
		for _, expr := range raw[k] {
			c, err := ParseCondition(expr)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			th.Conditions = append(th.Conditions, c)
		}
		out = append(out, th)
	}
	return out, nil
}

// ThresholdResult is the verdict of one condition.
type ThresholdResult struct {
	Selector string  `json:"selector"`
	Expr     string  `json:"expr"`
	Observed float64 `json:"observed"`
	Samples  int     `json:"samples"`
	Passed   bool    `json:"passed"`
}

// Evaluate judges every threshold against the collected samples. A stream
// with no samples passes, since there is nothing to judge.
func Evaluate(thresholds []Threshold, c *Collector) []ThresholdResult {
	var results []ThresholdResult
	for _, th := range thresholds {
		values := c.Values(th.Selector.Metric, th.Selector.Tags)
		for _, cond := range th.Conditions {
			r := ThresholdResult{
				Selector: th.Selector.String(),
				Expr:     cond.Expr,
				Samples:  len(values),
				Passed:   true,
			}
			if len(values) > 0 {
				r.Observed = cond.Observe(values)
				r.Passed = cond.Holds(r.Observed)
			}
			results = append(results, r)
		}
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
