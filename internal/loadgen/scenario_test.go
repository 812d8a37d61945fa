package loadgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	env := &Env{}
	for _, name := range Names() {
		sc, err := Lookup(name, env)
		require.NoError(t, err)
		assert.Equal(t, name, sc.Name())
	}

	_, err := Lookup("nope", env)
	assert.ErrorContains(t, err, "unknown scenario")
}

func TestClusterKeysExcludesByKey(t *testing.T) {
	env := &Env{ExcludeCluster: "cluster1"}
	clusters := []Cluster{{ID: "cluster1", Name: "demo"}, {ID: "id-2", Name: "cluster1"}, {ID: "id-3", Name: "edge"}}

	assert.Equal(t, []string{"demo", "edge"}, env.clusterKeys(clusters, false))
	assert.Equal(t, []string{"id-2", "id-3"}, env.clusterKeys(clusters, true))
}

func TestServiceProxyIteration(t *testing.T) {
	f := newFakeOrchestrator(t)
	f.clusters = []Cluster{{ID: "1", Name: "cluster1"}, {ID: "2", Name: "c2"}, {ID: "3", Name: "c3"}}
	f.endpoints["c2"] = []AppEndpoint{readyEndpoint("ep2", serverPlaceholder+"/proxy/c2")}
	f.endpoints["c3"] = []AppEndpoint{readyEndpoint("ep3", serverPlaceholder+"/missing")}
	srv := f.start()

	rec := NewCollector()
	env := testEnv(srv, rec)
	vu, err := env.NewVU(1, 1)
	require.NoError(t, err)

	sc, err := Lookup(ExecASPEndpoints, env)
	require.NoError(t, err)
	require.NoError(t, sc.Iterate(context.Background(), vu))

	assert.Equal(t, "tok", f.proxyToken("c2"))
	assert.Empty(t, f.proxyToken("cluster1"))
	// Two cluster pages plus one endpoint listing per remaining cluster.
	assert.Len(t, rec.Values(MetricHTTPReqFailed, typeTag(TagARM)), 4)
	assert.Equal(t, []float64{0, 1}, rec.Values(MetricHTTPReqFailed, typeTag(TagServiceProxy)))
}

func TestServiceProxyIterationRejectsUnreadyEndpoint(t *testing.T) {
	f := newFakeOrchestrator(t)
	f.clusters = []Cluster{{ID: "2", Name: "c2"}}
	ep := readyEndpoint("ep2", "http://unused")
	ep.EndpointStatus.State = "STATE_NOT_READY"
	f.endpoints["c2"] = []AppEndpoint{ep}
	srv := f.start()

	env := testEnv(srv, NewCollector())
	vu, err := env.NewVU(1, 1)
	require.NoError(t, err)

	err = env.serviceProxyIteration(context.Background(), vu)
	assert.ErrorIs(t, err, ErrEndpointNotReady)
}

func TestVNCIteration(t *testing.T) {
	f := newFakeOrchestrator(t)
	f.clusters = []Cluster{{ID: "cluster1", Name: "x"}, {ID: "id-2", Name: "y"}}
	f.workloads["id-2"] = []AppWorkload{{ID: "vm-a", Type: WorkloadVirtualMachine}, {ID: "pod-a", Type: "TYPE_POD"}, {ID: "vm-b", Type: WorkloadVirtualMachine}}
	f.workloads["cluster1"] = []AppWorkload{{ID: "vm-z", Type: WorkloadVirtualMachine}}
	srv := f.start()

	rec := NewCollector()
	env := testEnv(srv, rec)
	vu, err := env.NewVU(1, 1)
	require.NoError(t, err)

	require.NoError(t, env.vncIteration(context.Background(), vu))

	assert.Equal(t, []string{"https://web-ui.example.com", "https://web-ui.example.com"}, f.seenOrigins())
	assert.Len(t, rec.Values(MetricWSConnecting, typeTag(TagVNCProxy)), 2)
}

func TestVNCIterationFailsOnBadBanner(t *testing.T) {
	f := newFakeOrchestrator(t)
	f.clusters = []Cluster{{ID: "id-2", Name: "y"}}
	f.workloads["id-2"] = []AppWorkload{{ID: "vm-a", Type: WorkloadVirtualMachine}}
	f.banner = "HTTP/1.1 200 OK\n"
	srv := f.start()

	env := testEnv(srv, NewCollector())
	vu, err := env.NewVU(1, 1)
	require.NoError(t, err)

	assert.Error(t, env.vncIteration(context.Background(), vu))
}
