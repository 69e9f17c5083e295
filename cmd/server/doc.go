// Package main is the entry point for the cookiefetch host service.
//
// The service performs cookie-aware HTTP requests on behalf of a sandboxed
// caller. Every target URL must match the configured allowlist. Request and
// response bodies can stream through sessions polled over /ipc.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Allow one site, listen on 8000
//	./server -allow 'https://example.com/**'
//
//	# Load the allowlist from a file
//	./server -scope ./scope.yaml -port 9000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
