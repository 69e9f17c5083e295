// Package scope decides which URLs a fetch may reach.
//
// A Scope holds shell-glob patterns matched against the whole URL string.
// '*' matches any run of characters, path separators included, so
// "https://example.com/*" admits every path and query on that origin.
// An empty Scope admits nothing.
//
// Patterns come from the SCOPE_ALLOWLIST variable and an optional
// SCOPE_SOURCE, which is either a YAML, TOML or JSON file or an http(s)
// URL serving one:
//
//	scope:
//	  allowlist:
//	    - "https://example.com/*"
package scope
