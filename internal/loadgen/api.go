package loadgen

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/orchgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchgate/internal/providers/http/client"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnexpectedStatus marks a response whose status was not 200.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrUnexpectedPayload marks a 200 response that is not the expected
	// JSON document, such as a login page served by a proxy.
	ErrUnexpectedPayload = errors.New("unexpected payload")
)

// Endpoint states and workload types reported by the resource API.
const (
	EndpointStateReady     = "STATE_READY"
	WorkloadVirtualMachine = "TYPE_VIRTUAL_MACHINE"
)

// Cluster is one entry of the deployment orchestrator cluster listing.
type Cluster struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClusterPage is one page of the cluster listing.
type ClusterPage struct {
	Clusters      []Cluster `json:"clusters"`
	TotalElements int       `json:"totalElements"`
}

// EndpointPort is an exposed port of an application endpoint.
type EndpointPort struct {
	Name            string `json:"name"`
	Value           int    `json:"value"`
	Protocol        string `json:"protocol"`
	ServiceProxyURL string `json:"serviceProxyUrl"`
}

// AppEndpoint is an application endpoint on one cluster.
type AppEndpoint struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Ports          []EndpointPort `json:"ports"`
	EndpointStatus struct {
		State string `json:"state"`
	} `json:"endpointStatus"`
}

// AppWorkload is a pod or virtual machine of an application on one cluster.
type AppWorkload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type endpointList struct {
	AppEndpoints []AppEndpoint `json:"appEndpoints"`
}

type workloadList struct {
	AppWorkloads []AppWorkload `json:"appWorkloads"`
}

type vncAddress struct {
	Address string `json:"address"`
}

// APIClient calls the orchestrator northbound APIs and records a tagged
// sample for every request.
type APIClient struct {
	http     *client.Client
	rec      Recorder
	log      *logging.Logger
	resource string
	adm      string
}

// Hosts holds the API roots for a deployment.
type Hosts struct {
	Resource string
	ADM      string
}

// HostsFor derives API roots from the deployment's base domain.
func HostsFor(domain string) Hosts {
	return Hosts{
		Resource: "https://app-orch." + domain,
		ADM:      "https://api." + domain,
	}
}

// NewAPIClient creates a client authenticating with a bearer token.
func NewAPIClient(c *client.Client, hosts Hosts, token string, rec Recorder, log *logging.Logger) *APIClient {
	c.SetBearerAuth(token)
	c.SetHeader("Content-Type", "application/json")
	return &APIClient{
		http:     c,
		rec:      rec,
		log:      log.Named("api"),
		resource: hosts.Resource,
		adm:      hosts.ADM,
	}
}

// ClusterPage fetches one page of the cluster listing.
func (a *APIClient) ClusterPage(ctx context.Context, offset, pageSize int) (*ClusterPage, error) {
	u := a.resource + "/deployment.orchestrator.apis/v1/clusters?" + url.Values{
		"pageSize": {strconv.Itoa(pageSize)},
		"offset":   {strconv.Itoa(offset)},
	}.Encode()

	var page ClusterPage
	if err := a.get(ctx, u, TagARM, &page, "clusters", "totalElements"); err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	return &page, nil
}

// Clusters fetches every cluster page.
func (a *APIClient) Clusters(ctx context.Context, pageSize int) ([]Cluster, error) {
	return ListAll(ctx, pageSize, func(ctx context.Context, offset int) ([]Cluster, int, error) {
		page, err := a.ClusterPage(ctx, offset, pageSize)
		if err != nil {
			return nil, 0, err
		}
		return page.Clusters, page.TotalElements, nil
	})
}

// Endpoints lists the endpoints of app on cluster.
func (a *APIClient) Endpoints(ctx context.Context, appID, cluster string) ([]AppEndpoint, error) {
	u := a.resource + "/resource.orchestrator.apis/v2/endpoints/" + url.PathEscape(appID) + "/" + url.PathEscape(cluster)

	var out endpointList
	if err := a.get(ctx, u, TagARM, &out, "appEndpoints"); err != nil {
		return nil, fmt.Errorf("list endpoints on %s: %w", cluster, err)
	}
	return out.AppEndpoints, nil
}

// Workloads lists the workloads of app on cluster.
func (a *APIClient) Workloads(ctx context.Context, appID, cluster string) ([]AppWorkload, error) {
	u := a.resource + "/resource.orchestrator.apis/v2/workloads/" + url.PathEscape(appID) + "/" + url.PathEscape(cluster)

	var out workloadList
	if err := a.get(ctx, u, TagARM, &out, "appWorkloads"); err != nil {
		return nil, fmt.Errorf("list workloads on %s: %w", cluster, err)
	}
	return out.AppWorkloads, nil
}

// VNCAddress returns the console websocket address of a virtual machine.
func (a *APIClient) VNCAddress(ctx context.Context, appID, cluster, vm string) (string, error) {
	u := a.resource + "/resource.orchestrator.apis/v2/workloads/virtual-machines/" +
		url.PathEscape(appID) + "/" + url.PathEscape(cluster) + "/" + url.PathEscape(vm) + "/vnc"

	var out vncAddress
	if err := a.get(ctx, u, TagARM, &out, "address"); err != nil {
		return "", fmt.Errorf("get vnc address of %s on %s: %w", vm, cluster, err)
	}
	if out.Address == "" {
		return "", fmt.Errorf("get vnc address of %s on %s: %w: empty address", vm, cluster, ErrUnexpectedPayload)
	}
	return out.Address, nil
}

// ADM routes under /v1/projects/<project>.
const (
	ADMDeployments       = "appdeployment/deployments"
	ADMDeploymentsStatus = "summary/deployments_status"
	ADMClusters          = "appdeployment/clusters"
)

// ADM issues a GET against an app deployment manager route of project.
func (a *APIClient) ADM(ctx context.Context, project, route string) error {
	u := a.adm + "/v1/projects/" + url.PathEscape(project) + "/" + route
	if err := a.get(ctx, u, TagADM, nil); err != nil {
		return fmt.Errorf("adm %s: %w", route, err)
	}
	return nil
}

// get issues a GET and, when result is set, decodes the body into it. The
// body must be a JSON object carrying every key in fields; a null value
// counts as present.
func (a *APIClient) get(ctx context.Context, u, tag string, result any, fields ...string) error {
	resp, err := a.http.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
		r.SetHeader("X-Request-ID", uuid.NewString())
		return r.Get(u)
	})
	recordHTTP(a.rec, tag, resp, err)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		a.log.Warn("Request failed",
			zap.String("url", u),
			zap.Int("status", resp.StatusCode()))
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode(), u)
	}
	if result == nil {
		return nil
	}
	if err := decodeJSON(resp, result, fields); err != nil {
		a.log.Warn("Unexpected payload",
			zap.String("url", u),
			zap.String("content_type", resp.Header().Get("Content-Type")),
			zap.Error(err))
		return fmt.Errorf("%w from %s: %v", ErrUnexpectedPayload, u, err)
	}
	return nil
}

func decodeJSON(resp *resty.Response, result any, fields []string) error {
	ct := resp.Header().Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || (mt != "application/json" && !strings.HasSuffix(mt, "+json")) {
		return fmt.Errorf("content type %q", ct)
	}

	var doc map[string]any
	if err := sonic.Unmarshal(resp.Body(), &doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	for _, f := range fields {
		if _, ok := doc[f]; !ok {
			return fmt.Errorf("%s missing", f)
		}
	}
	if err := sonic.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// recordHTTP records duration and failure for one request. Statuses in
// 200-399 count as success.
func recordHTTP(rec Recorder, tag string, resp *resty.Response, err error) {
	now := time.Now()
	failed := err != nil || resp == nil || resp.StatusCode() < 200 || resp.StatusCode() >= 400
	if err == nil && resp != nil {
		rec.Record(Sample{Metric: MetricHTTPReqDuration, Value: durationMillis(resp.Time()), Tags: typeTag(tag), Time: now})
	}
	rec.Record(Sample{Metric: MetricHTTPReqFailed, Value: boolRate(failed), Tags: typeTag(tag), Time: now})
}
