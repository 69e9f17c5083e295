// Package cookies provides the per-client cookie store.
//
// A Jar holds Records addressable by (domain, name). Explicit inserts are
// validated against the host of a context URL, so a record can only be
// placed for a domain that covers that host. The Jar also implements
// net/http.CookieJar; an http.Client configured with it records Set-Cookie
// headers from every response and redirect hop, and sends matching records
// on every request.
package cookies
