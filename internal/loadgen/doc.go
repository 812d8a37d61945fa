// Package loadgen measures orchestrator API and proxy latency under load.
//
// A Plan lists scenarios and thresholds. Each scenario runs on its own set
// of virtual users (VUs) under one of two executors:
//
//   - constant-vus: every VU loops until the duration has elapsed
//   - per-vu-iterations: every VU runs a fixed number of iterations,
//     bounded by a maximum duration
//
// VUs record tagged samples (http_req_duration{type:armAPI} and so on)
// into a Collector. Thresholds such as "p(95)<1000" or "rate<0.01" are
// evaluated against those samples once every scenario has finished.
//
// Cluster listings are paged: the first page reports totalElements and
// exactly ceil(totalElements/pageSize) pages are fetched. Each VU then
// works on its Partition of the clusters.
package loadgen
