// Package http serves the command surface: reserving streaming sessions
// (POST /connect) and performing fetches (POST /fetch), plus the service
// banner and health report.
//
// Request and response bodies are JSON encoded with sonic. A failed fetch
// answers a non-2xx status with
//
//	{"error": {"kind": "NotAllowed", "message": "...", "url": "..."}}
//
// where the status follows StatusFor.
package http
