/*
Package monitoring provides Prometheus metrics for the login gateway.

# Overview

Metrics are registered on a caller-supplied registry so tests and several
gateways in one process never collide on the default registerer.

# Features

- HTTP request metrics (latency, throughput, size) labelled by route
- Login redirects and bootstrap outcomes per entry point
- Identity provider call latency and errors
- Pending logins and uptime as gauge functions
- Running totals for the health endpoint

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg, pending.Len)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	timer := monitoring.NewTimer(metrics, "exchange")
	tok, err := provider.Exchange(ctx, code, verifier, redirect)
	timer.Stop(err)
*/
package monitoring
