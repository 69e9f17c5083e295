// Package middleware provides the gin middleware shared by the command and
// boundary routes: CORS, a wildcard origin stamp and per-IP rate limiting.
package middleware
