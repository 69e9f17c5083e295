/*
Package monitoring provides Prometheus metrics for the server.

# Overview

Each Metrics value owns a private registry. It records HTTP traffic, fetch
outcomes, pool occupancy, live sessions, boundary protocol calls and
WebSocket activity.

# Features

- HTTP request metrics (count, latency) labelled by route template
- Fetch outcomes and latency, streamed body bytes
- Pool clients by state (implements client.Observer)
- Live sessions (implements session.Observer)
- Boundary protocol calls by operation and status
- WebSocket connections and messages

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	pool := client.NewPool(client.Config{Observer: metrics})
	broker := session.NewBroker(session.Config{Observer: metrics})
*/
package monitoring
