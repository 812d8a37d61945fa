package loadgen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as "1m" or "500ms" in plan files.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// ScenarioPlan schedules one scenario.
type ScenarioPlan struct {
	Name        string       `yaml:"name" toml:"name" json:"name"`
	Exec        string       `yaml:"exec" toml:"exec" json:"exec"`
	Executor    ExecutorKind `yaml:"executor" toml:"executor" json:"executor"`
	VUs         int          `yaml:"vus" toml:"vus" json:"vus"`
	Iterations  int          `yaml:"iterations" toml:"iterations" json:"iterations"`
	Duration    Duration     `yaml:"duration" toml:"duration" json:"duration"`
	MaxDuration Duration     `yaml:"maxDuration" toml:"maxDuration" json:"maxDuration"`
	StartTime   Duration     `yaml:"startTime" toml:"startTime" json:"startTime"`
}

// Validate checks the fields the executor needs.
func (p ScenarioPlan) Validate() error {
	if p.Name == "" {
		return errors.New("scenario name is required")
	}
	if p.Exec == "" {
		return fmt.Errorf("scenario %s: exec is required", p.Name)
	}
	if p.VUs < 1 {
		return fmt.Errorf("scenario %s: vus must be at least 1", p.Name)
	}
	switch p.Executor {
	case ConstantVUs:
		if p.Duration <= 0 {
			return fmt.Errorf("scenario %s: duration must be positive", p.Name)
		}
	case PerVUIterations:
		if p.Iterations < 1 {
			return fmt.Errorf("scenario %s: iterations must be at least 1", p.Name)
		}
		if p.MaxDuration <= 0 {
			return fmt.Errorf("scenario %s: maxDuration must be positive", p.Name)
		}
	default:
		return fmt.Errorf("scenario %s: unknown executor %q", p.Name, p.Executor)
	}
	return nil
}

// Plan is a full load test: scenarios plus pass/fail thresholds.
type Plan struct {
	Scenarios  []ScenarioPlan      `yaml:"scenarios" toml:"scenarios" json:"scenarios"`
	Thresholds map[string][]string `yaml:"thresholds" toml:"thresholds" json:"thresholds"`
}

// Validate checks every scenario and threshold.
func (p *Plan) Validate() error {
	if len(p.Scenarios) == 0 {
		return errors.New("plan has no scenarios")
	}
	seen := make(map[string]bool, len(p.Scenarios))
	for _, s := range p.Scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scenario %s", s.Name)
		}
		seen[s.Name] = true
	}
	_, err := ParseThresholds(p.Thresholds)
	return err
}

// ParsePlan decodes a plan; format is "yaml" or "toml".
func ParsePlan(data []byte, format string) (*Plan, error) {
	var p Plan
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode yaml plan: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode toml plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan format %q", format)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPlan reads a plan file, picking the format from its extension.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// Built-in plan names.
const (
	PlanADM = "adm"
	PlanASP = "asp"
	PlanVNC = "vnc"
)

// BuiltinPlan returns a stock plan. users sizes the per-VU-iteration
// scenarios.
func BuiltinPlan(name string, users int) (*Plan, error) {
	minute := Duration(time.Minute)
	switch name {
	case PlanADM:
		return &Plan{
			Scenarios: []ScenarioPlan{
				{Name: "deploymentSummaryFromADM", Exec: ExecADMSummary, Executor: ConstantVUs, VUs: 10, Duration: minute},
				{Name: "deploymentListFromADM", Exec: ExecADMDeployments, Executor: ConstantVUs, VUs: 10, Duration: minute, StartTime: minute},
				{Name: "clusterListFromADM", Exec: ExecADMClusters, Executor: ConstantVUs, VUs: 10, Duration: minute, StartTime: 2 * minute},
			},
			Thresholds: map[string][]string{
				"http_req_failed":                     {"rate<0.01"},
				"http_req_duration{type:admApiStats}": {"p(95)<1000", "avg<500"},
				"http_req_failed{type:admApiStats}":   {"rate<0.01"},
			},
		}, nil
	case PlanASP:
		return &Plan{
			Scenarios: []ScenarioPlan{
				{Name: "containerAppProxyLatencyTest", Exec: ExecASPEndpoints, Executor: PerVUIterations, VUs: users, Iterations: 1, MaxDuration: 10 * minute},
			},
			Thresholds: map[string][]string{
				"http_req_failed":                           {"rate<0.01"},
				"http_req_duration{type:armAPI}":            {"p(95)<1000", "avg<750"},
				"http_req_failed{type:armAPI}":              {"rate<0.01"},
				"http_req_duration{type:containerAppProxy}": {"p(95)<3000", "avg<2500"},
				"http_req_failed{type:containerAppProxy}":   {"rate<0.01"},
			},
		}, nil
	case PlanVNC:
		return &Plan{
			Scenarios: []ScenarioPlan{
				{Name: "vmVNCAccessLatencyTest", Exec: ExecVNCHandshake, Executor: PerVUIterations, VUs: users, Iterations: 1, MaxDuration: 10 * minute},
			},
			Thresholds: map[string][]string{
				"http_req_failed":                    {"rate<0.01"},
				"http_req_duration{type:armAPI}":     {"p(95)<1000", "avg<750"},
				"http_req_failed{type:armAPI}":       {"rate<0.01"},
				"ws_connecting{type:vncProxy}":       {"p(95)<3000", "avg<2500"},
				"ws_session_duration{type:vncProxy}": {"p(95)<3000", "avg<2500"},
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown plan %q (known: %s, %s, %s)", name, PlanADM, PlanASP, PlanVNC)
}
