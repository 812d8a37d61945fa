package loadgen

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// serverPlaceholder in a service proxy URL is replaced with the fake's own
// address.
const serverPlaceholder = "{server}"

// fakeOrchestrator serves the resource, deployment and ADM APIs plus the
// proxies behind them.
type fakeOrchestrator struct {
	t         *testing.T
	clusters  []Cluster
	endpoints map[string][]AppEndpoint
	workloads map[string][]AppWorkload
	banner    string
	admStatus int

	mu          sync.Mutex
	pageFetches int
	auth        []string
	requestIDs  []string
	proxyHits   map[string]string
	origins     []string
}

func newFakeOrchestrator(t *testing.T) *fakeOrchestrator {
	return &fakeOrchestrator{
		t:         t,
		endpoints: map[string][]AppEndpoint{},
		workloads: map[string][]AppWorkload{},
		banner:    "RFB 003.008\n",
		admStatus: http.StatusOK,
		proxyHits: map[string]string{},
	}
}

func (f *fakeOrchestrator) start() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /deployment.orchestrator.apis/v1/clusters", f.listClusters)
	mux.HandleFunc("GET /resource.orchestrator.apis/v2/endpoints/{app}/{cluster}", func(w http.ResponseWriter, r *http.Request) {
		var eps []AppEndpoint
		for _, ep := range f.endpoints[r.PathValue("cluster")] {
			ports := make([]EndpointPort, len(ep.Ports))
			for i, p := range ep.Ports {
				p.ServiceProxyURL = strings.ReplaceAll(p.ServiceProxyURL, serverPlaceholder, "http://"+r.Host)
				ports[i] = p
			}
			ep.Ports = ports
			eps = append(eps, ep)
		}
		writeJSON(w, endpointList{AppEndpoints: eps})
	})
	mux.HandleFunc("GET /resource.orchestrator.apis/v2/workloads/virtual-machines/{app}/{cluster}/{vm}/vnc", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, vncAddress{Address: "ws://" + r.Host + "/console/" + r.PathValue("vm")})
	})
	mux.HandleFunc("GET /resource.orchestrator.apis/v2/workloads/{app}/{cluster}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, workloadList{AppWorkloads: f.workloads[r.PathValue("cluster")]})
	})
	mux.HandleFunc("GET /v1/projects/{project}/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.admStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})
	mux.HandleFunc("GET /proxy/{cluster}", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(TokenCookie)
		f.mu.Lock()
		if err == nil {
			f.proxyHits[r.PathValue("cluster")] = c.Value
		}
		f.mu.Unlock()
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("GET /console/{vm}", f.console)

	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func (f *fakeOrchestrator) listClusters(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.pageFetches++
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.requestIDs = append(f.requestIDs, r.Header.Get("X-Request-ID"))
	f.mu.Unlock()

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	end := min(offset+size, len(f.clusters))
	page := ClusterPage{TotalElements: len(f.clusters)}
	if offset < end {
		page.Clusters = f.clusters[offset:end]
	}
	writeJSON(w, page)
}

func (f *fakeOrchestrator) console(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.origins = append(f.origins, r.Header.Get("Origin"))
	f.mu.Unlock()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if f.banner != "" {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(f.banner))
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *fakeOrchestrator) setADMStatus(status int) {
	f.mu.Lock()
	f.admStatus = status
	f.mu.Unlock()
}

func (f *fakeOrchestrator) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageFetches
}

func (f *fakeOrchestrator) headers() (auth, requestIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...), append([]string(nil), f.requestIDs...)
}

func (f *fakeOrchestrator) proxyToken(cluster string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxyHits[cluster]
}

func (f *fakeOrchestrator) seenOrigins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.origins...)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, _ := sonic.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func testEnv(srv *httptest.Server, rec Recorder) *Env {
	return &Env{
		Domain:          "example.com",
		Hosts:           Hosts{Resource: srv.URL, ADM: srv.URL},
		Project:         "proj",
		AppID:           "b-app",
		Token:           "tok",
		AppsPerUser:     100,
		PageSize:        2,
		ExcludeCluster:  "cluster1",
		RequestTimeout:  5 * time.Second,
		SessionDuration: 2 * time.Second,
		ForceCloseAfter: 2 * time.Second,
		Recorder:        rec,
		Log:             logging.NewNop(),
	}
}

func readyEndpoint(id, proxyURL string) AppEndpoint {
	ep := AppEndpoint{ID: id, Ports: []EndpointPort{{Name: "http", Value: 80, ServiceProxyURL: proxyURL}}}
	ep.EndpointStatus.State = EndpointStateReady
	return ep
}
