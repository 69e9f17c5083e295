// Package server assembles the cookiefetch HTTP server.
//
// NewServer loads the URL scope, builds the client pool, session broker,
// fetcher, event hub and metrics, and mounts them on one gin router:
//
//	GET  /                       service banner
//	GET  /health                 pool and session occupancy
//	POST /connect                reserve a streaming session
//	POST /fetch                  perform one outbound request
//	POST /ipc/{id}/push          upload one request body chunk
//	POST /ipc/{id}/pop           poll one response body chunk
//	POST /ipc/{id}/close/...     close either direction of a session
//	GET  /events                 ready-to-pop notifications (WebSocket)
//	GET  /metrics                Prometheus exposition
//
// Responses are gzip compressed when configured, except on /events.
package server
