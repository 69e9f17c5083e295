package cookies

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrInvalidDomain is returned when a record's domain does not cover the
	// host of the URL it is inserted for.
	ErrInvalidDomain = errors.New("invalid cookie domain")
	// ErrInvalidCookie is returned for records net/http would refuse to send.
	ErrInvalidCookie = errors.New("invalid cookie")
)

type key struct {
	domain string
	name   string
}

// Jar is a cookie store addressable by (domain, name). It implements
// http.CookieJar so a transport stores Set-Cookie records from every
// response, redirect hops included, and sends matching ones back.
type Jar struct {
	mu      sync.Mutex
	records map[key]*Record
	now     func() time.Time
}

// NewJar creates an empty jar.
func NewJar() *Jar {
	return &Jar{
		records: make(map[key]*Record),
		now:     time.Now,
	}
}

// Insert validates rec against the host of contextURL and upserts it.
// A failed insert leaves the jar untouched. An already expired record
// removes any stored record with the same key.
func (j *Jar) Insert(rec Record, contextURL *url.URL) error {
	if contextURL == nil {
		return fmt.Errorf("%w: no context URL", ErrInvalidDomain)
	}

	host, err := canonicalHost(contextURL.Host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}

	domain := normalizeDomain(rec.Domain)
	if domain == "" {
		rec.HostOnly = true
		domain = host
	} else {
		if !validHost(domain) {
			return fmt.Errorf("%w: malformed domain %q", ErrInvalidDomain, rec.Domain)
		}
		if !domainMatch(host, domain) {
			return fmt.Errorf("%w: %q does not cover host %q", ErrInvalidDomain, rec.Domain, host)
		}
		if domain != host && isPublicSuffix(domain) {
			return fmt.Errorf("%w: %q is a public suffix", ErrInvalidDomain, rec.Domain)
		}
	}
	rec.Domain = domain

	if rec.Path == "" || rec.Path[0] != '/' {
		rec.Path = defaultPath(contextURL.Path)
	}

	if err := rec.httpCookie().Valid(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	rec.expiry = rec.deadline(now)

	k := key{domain: rec.Domain, name: rec.Name}
	if rec.expiredAt(now) {
		delete(j.records, k)
		return nil
	}
	j.records[k] = &rec
	return nil
}

// Clear removes every record.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = make(map[key]*Record)
}

// Len returns the number of stored records, expired ones included.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.records)
}

// Snapshot returns every live record ordered by domain then name.
func (j *Jar) Snapshot() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]Record, 0, len(j.records))
	for k, r := range j.records {
		if r.expiredAt(now) {
			delete(j.records, k)
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Domain != out[b].Domain {
			return out[a].Domain < out[b].Domain
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// SetCookies implements http.CookieJar. Records the jar refuses are dropped
// silently, as a browser would.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	for _, c := range cookies {
		_ = j.Insert(recordFromHTTP(c), u)
	}
}

// Cookies implements http.CookieJar. Longer paths sort first.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	host, err := canonicalHost(u.Host)
	if err != nil {
		return nil
	}

	https := u.Scheme == "https"
	path := u.Path
	if path == "" {
		path = "/"
	}

	j.mu.Lock()
	now := j.now()
	var selected []*Record
	for k, r := range j.records {
		if r.expiredAt(now) {
			delete(j.records, k)
			continue
		}
		if r.Secure && !https {
			continue
		}
		if r.HostOnly {
			if host != r.Domain {
				continue
			}
		} else if !domainMatch(host, r.Domain) {
			continue
		}
		if !pathMatch(path, r.Path) {
			continue
		}
		selected = append(selected, r)
	}
	j.mu.Unlock()

	sort.SliceStable(selected, func(a, b int) bool {
		if len(selected[a].Path) != len(selected[b].Path) {
			return len(selected[a].Path) > len(selected[b].Path)
		}
		return selected[a].Name < selected[b].Name
	})

	out := make([]*http.Cookie, 0, len(selected))
	for _, r := range selected {
		out = append(out, &http.Cookie{Name: r.Name, Value: r.Value})
	}
	return out
}

// canonicalHost strips the port and lower-cases host.
func canonicalHost(host string) (string, error) {
	if host == "" {
		return "", errors.New("empty host")
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	host = strings.Trim(host, "[]")
	if host == "" {
		return "", errors.New("empty host")
	}
	if !validHost(host) {
		return "", fmt.Errorf("malformed host %q", host)
	}
	return host, nil
}

// validHost accepts IP literals and RFC 1123 host names. Underscores are
// tolerated inside labels, as browsers do.
func validHost(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case 'a' <= c && c <= 'z', '0' <= c && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, ".")
	return strings.TrimSuffix(domain, ".")
}

// domainMatch implements RFC 6265 section 5.1.3. IP hosts only match
// themselves.
func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	if net.ParseIP(host) != nil {
		return false
	}
	return strings.HasSuffix(host, "."+domain)
}

// pathMatch implements RFC 6265 section 5.1.4.
func pathMatch(requestPath, cookiePath string) bool {
	if requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

// defaultPath implements RFC 6265 section 5.1.4 default-path.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func isPublicSuffix(domain string) bool {
	if net.ParseIP(domain) != nil {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(domain)
	return suffix == domain
}
