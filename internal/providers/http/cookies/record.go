package cookies

import (
	"fmt"
	"net/http"
	"time"
)

// SameSite is the same-site mode of a cookie.
type SameSite int

const (
	SameSiteUnset SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

// String returns the attribute spelling used on the wire.
func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	default:
		return ""
	}
}

// ParseSameSite parses "Strict", "Lax" or "None".
func ParseSameSite(s string) (SameSite, error) {
	switch s {
	case "Strict":
		return SameSiteStrict, nil
	case "Lax":
		return SameSiteLax, nil
	case "None":
		return SameSiteNone, nil
	default:
		return SameSiteUnset, fmt.Errorf("unknown SameSite %q, expected Strict, Lax or None", s)
	}
}

func sameSiteFromHTTP(m http.SameSite) SameSite {
	switch m {
	case http.SameSiteStrictMode:
		return SameSiteStrict
	case http.SameSiteLaxMode:
		return SameSiteLax
	case http.SameSiteNoneMode:
		return SameSiteNone
	default:
		return SameSiteUnset
	}
}

func (s SameSite) httpMode() http.SameSite {
	switch s {
	case SameSiteStrict:
		return http.SameSiteStrictMode
	case SameSiteLax:
		return http.SameSiteLaxMode
	case SameSiteNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// Record is one cookie held by a Jar.
//
// MaxAge follows net/http: zero means unset and a negative value means the
// cookie is already expired. A zero Expires means unset. A record with
// neither is a session cookie.
type Record struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	HostOnly bool
	HTTPOnly bool
	Secure   bool
	MaxAge   time.Duration
	Expires  time.Time
	SameSite SameSite

	// expiry is the absolute deadline computed when the record was stored.
	expiry time.Time
}

// Persistent reports whether the record carries an expiration.
func (r Record) Persistent() bool {
	return r.MaxAge != 0 || !r.Expires.IsZero()
}

// deadline resolves MaxAge and Expires into one absolute time. Max-Age wins
// over Expires when both are present.
func (r Record) deadline(now time.Time) time.Time {
	switch {
	case r.MaxAge < 0:
		return now.Add(-time.Second)
	case r.MaxAge > 0:
		return now.Add(r.MaxAge)
	default:
		return r.Expires
	}
}

func (r Record) expiredAt(now time.Time) bool {
	return !r.expiry.IsZero() && !r.expiry.After(now)
}

// httpCookie renders the record for validation by net/http.
func (r Record) httpCookie() *http.Cookie {
	c := &http.Cookie{
		Name:     r.Name,
		Value:    r.Value,
		Path:     r.Path,
		HttpOnly: r.HTTPOnly,
		Secure:   r.Secure,
		SameSite: r.SameSite.httpMode(),
	}
	if !r.HostOnly {
		c.Domain = r.Domain
	}
	if !r.Expires.IsZero() {
		c.Expires = r.Expires
	}
	return c
}

func recordFromHTTP(c *http.Cookie) Record {
	rec := Record{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: sameSiteFromHTTP(c.SameSite),
	}

	switch {
	case c.MaxAge > 0:
		rec.MaxAge = time.Duration(c.MaxAge) * time.Second
	case c.MaxAge < 0:
		rec.MaxAge = -1
	}
	if !c.Expires.IsZero() {
		rec.Expires = c.Expires.UTC()
	}
	return rec
}
