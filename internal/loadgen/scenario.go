package loadgen

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/providers/http/client"
	"go.uber.org/zap"
)

// Scenario names accepted in plans.
const (
	ExecADMDeployments = "adm-deployments"
	ExecADMSummary     = "adm-summary"
	ExecADMClusters    = "adm-clusters"
	ExecASPEndpoints   = "asp-endpoints"
	ExecVNCHandshake   = "vnc-handshake"
)

var ErrEndpointNotReady = errors.New("app endpoint not ready")

// Env is the run-wide input shared by every VU.
type Env struct {
	Domain          string
	Hosts           Hosts
	Project         string
	AppID           string
	Token           string
	AppsPerUser     int
	PageSize        int
	ExcludeCluster  string
	RequestTimeout  time.Duration
	SessionDuration time.Duration
	ForceCloseAfter time.Duration
	InsecureTLS     bool
	Recorder        Recorder
	Log             *logging.Logger
}

// VU is one virtual user: its 1-based ID among Of users and the clients it
// owns. Clients are not shared between VUs.
type VU struct {
	ID    int
	Of    int
	API   *APIClient
	Proxy *ProxyClient
	VNC   *HandshakeProbe
	Log   *logging.Logger
}

// NewVU builds the clients for VU id of n.
func (e *Env) NewVU(id, n int) (*VU, error) {
	opts := client.Options{Timeout: e.RequestTimeout, InsecureTLS: e.InsecureTLS}
	log := e.Log.With(zap.Int("vu", id))

	proxy, err := NewProxyClient(client.New(opts), e.Token, e.Recorder, log)
	if err != nil {
		return nil, err
	}

	origin := "https://web-ui." + e.Domain
	handshake := NewHandshakeProbe(origin, e.Token, e.Recorder, log)
	if e.SessionDuration > 0 {
		handshake.SessionDuration = e.SessionDuration
	}
	if e.ForceCloseAfter > 0 {
		handshake.ForceCloseAfter = e.ForceCloseAfter
	}
	if e.InsecureTLS {
		handshake.Dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for lab clusters
	}

	return &VU{
		ID:    id,
		Of:    n,
		API:   NewAPIClient(client.New(opts), e.Hosts, e.Token, e.Recorder, log),
		Proxy: proxy,
		VNC:   handshake,
		Log:   log,
	}, nil
}

// Scenario is one unit of work a VU repeats.
type Scenario interface {
	Name() string
	Iterate(ctx context.Context, vu *VU) error
}

type scenarioFunc struct {
	name string
	fn   func(ctx context.Context, vu *VU) error
}

func (s scenarioFunc) Name() string                              { return s.name }
func (s scenarioFunc) Iterate(ctx context.Context, vu *VU) error { return s.fn(ctx, vu) }

// Lookup returns the scenario registered under exec.
func Lookup(exec string, env *Env) (Scenario, error) {
	switch exec {
	case ExecADMDeployments:
		return admScenario(exec, env, ADMDeployments), nil
	case ExecADMSummary:
		return admScenario(exec, env, ADMDeploymentsStatus), nil
	case ExecADMClusters:
		return admScenario(exec, env, ADMClusters), nil
	case ExecASPEndpoints:
		return scenarioFunc{name: exec, fn: env.serviceProxyIteration}, nil
	case ExecVNCHandshake:
		return scenarioFunc{name: exec, fn: env.vncIteration}, nil
	}
	return nil, fmt.Errorf("unknown scenario %q (known: %v)", exec, Names())
}

// Names lists the registered scenarios.
func Names() []string {
	names := []string{ExecADMDeployments, ExecADMSummary, ExecADMClusters, ExecASPEndpoints, ExecVNCHandshake}
	sort.Strings(names)
	return names
}

func admScenario(name string, env *Env, route string) Scenario {
	return scenarioFunc{name: name, fn: func(ctx context.Context, vu *VU) error {
		return vu.API.ADM(ctx, env.Project, route)
	}}
}

// clusterKeys lists clusters other than the excluded one, by name or ID.
func (e *Env) clusterKeys(clusters []Cluster, byID bool) []string {
	keys := make([]string, 0, len(clusters))
	for _, c := range clusters {
		key := c.Name
		if byID {
			key = c.ID
		}
		if key == e.ExcludeCluster {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// serviceProxyIteration resolves the VU's share of app endpoints and
// requests each through the service proxy. Endpoint failures are logged
// and counted but do not abort the iteration.
func (e *Env) serviceProxyIteration(ctx context.Context, vu *VU) error {
	clusters, err := vu.API.Clusters(ctx, e.PageSize)
	if err != nil {
		return err
	}
	names := Partition(e.clusterKeys(clusters, false), vu.Of, vu.ID, e.AppsPerUser)

	var urls []string
	for _, name := range names {
		endpoints, err := vu.API.Endpoints(ctx, e.AppID, name)
		if err != nil {
			return err
		}
		for _, ep := range endpoints {
			if ep.EndpointStatus.State != EndpointStateReady {
				return fmt.Errorf("%w: cluster %s, endpoint %s is %q", ErrEndpointNotReady, name, ep.ID, ep.EndpointStatus.State)
			}
			if len(ep.Ports) == 0 {
				return fmt.Errorf("endpoint %s on %s exposes no ports", ep.ID, name)
			}
			urls = append(urls, ep.Ports[0].ServiceProxyURL)
		}
	}
	vu.Log.Info("Resolved app endpoints",
		zap.Int("clusters", len(names)),
		zap.Int("endpoints", len(urls)))

	for _, u := range urls {
		if err := vu.Proxy.Get(ctx, u); err != nil {
			vu.Log.Warn("App endpoint failed", zap.String("url", u), zap.Error(err))
		}
	}
	return nil
}

// vncIteration resolves console addresses for the VU's share of virtual
// machines and checks the RFB banner on each.
func (e *Env) vncIteration(ctx context.Context, vu *VU) error {
	clusters, err := vu.API.Clusters(ctx, e.PageSize)
	if err != nil {
		return err
	}
	ids := Partition(e.clusterKeys(clusters, true), vu.Of, vu.ID, e.AppsPerUser)

	var addresses []string
	for _, cluster := range ids {
		workloads, err := vu.API.Workloads(ctx, e.AppID, cluster)
		if err != nil {
			return err
		}
		for _, w := range workloads {
			if w.Type != WorkloadVirtualMachine {
				continue
			}
			addr, err := vu.API.VNCAddress(ctx, e.AppID, cluster, w.ID)
			if err != nil {
				return err
			}
			addresses = append(addresses, addr)
		}
	}
	vu.Log.Info("Resolved console addresses", zap.Int("addresses", len(addresses)))

	for _, addr := range addresses {
		if err := vu.VNC.Check(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}
