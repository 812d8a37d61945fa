// Package main is the entry point for the orchestrator login gate.
//
// The gate signs a browser in to the application service proxy or a VM
// console: it validates the entry parameters, runs the authorization code
// flow against the deployment's identity provider and writes the token and
// context cookies the proxies read.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Identity provider derived from the request host
//	./gate -port 8080
//
//	# Fixed identity provider, development logs
//	./gate -identity-url http://localhost:8090 -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
