// Package main is the orchestrator latency probe.
//
// It runs load scenarios against a deployment under virtual-user
// parallelism and judges the plan's thresholds:
//   - adm: deployment listing, summary and cluster routes
//   - asp: every ready service proxy endpoint, fetched with the token cookie
//   - vnc: the console websocket handshake of every VM
//
// Environment variables keep the names the latency scripts use
// (MY_HOSTNAME, API_TOKEN, PROJECT, APP_ID, USERS, APPS_PER_USER); flags
// override them.
//
// Usage:
//
//	MY_HOSTNAME=kind.internal API_TOKEN=... ./probe -plan vnc -users 20
//	./probe -plan plans/asp.yaml -json -metrics-out probe.prom
//
// Exit status is 1 when a threshold fails and 2 on any other error.
package main
