package loadgen

import (
	"sort"
	"sync"
	"time"
)

// Metric names, kept compatible with k6 so existing threshold expressions
// carry over.
const (
	MetricHTTPReqDuration   = "http_req_duration"
	MetricHTTPReqFailed     = "http_req_failed"
	MetricWSConnecting      = "ws_connecting"
	MetricWSSessionDuration = "ws_session_duration"
	MetricIterations        = "iterations"
	MetricIterationFailed   = "iteration_failed"
)

// Sample tag values for the "type" tag.
const (
	TagARM          = "armAPI"
	TagADM          = "admApiStats"
	TagServiceProxy = "containerAppProxy"
	TagVNCProxy     = "vncProxy"
)

// Sample is one measurement. Durations are in milliseconds, rates are 0 or 1.
type Sample struct {
	Metric string
	Value  float64
	Tags   map[string]string
	Time   time.Time
}

// Recorder accepts samples from concurrent VUs.
type Recorder interface {
	Record(s Sample)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Sample)

func (f RecorderFunc) Record(s Sample) { f(s) }

// Tee fans a sample out to several recorders.
func Tee(recorders ...Recorder) Recorder {
	return RecorderFunc(func(s Sample) {
		for _, r := range recorders {
			r.Record(s)
		}
	})
}

// Collector keeps every sample in memory for threshold evaluation.
type Collector struct {
	mu      sync.Mutex
	samples []Sample
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record implements Recorder.
func (c *Collector) Record(s Sample) {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

// Len returns the number of samples recorded.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Values returns the values of metric whose tags include every tag in
// filter.
func (c *Collector) Values(metric string, filter map[string]string) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []float64
	for _, s := range c.samples {
		if s.Metric == metric && matchTags(s.Tags, filter) {
			out = append(out, s.Value)
		}
	}
	return out
}

// Series lists every metric and type tag combination seen, sorted.
func (c *Collector) Series() []Series {
	c.mu.Lock()
	seen := make(map[Series]struct{})
	for _, s := range c.samples {
		seen[Series{Metric: s.Metric, Type: s.Tags["type"]}] = struct{}{}
	}
	c.mu.Unlock()

	out := make([]Series, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Series identifies one metric stream by its type tag.
type Series struct {
	Metric string
	Type   string
}

func matchTags(tags, filter map[string]string) bool {
	for k, v := range filter {
		if tags[k] != v {
			return false
		}
	}
	return true
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func boolRate(failed bool) float64 {
	if failed {
		return 1
	}
	return 0
}

func typeTag(t string) map[string]string {
	return map[string]string{"type": t}
}
