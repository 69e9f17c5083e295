package scope

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// doublestar treats '/' as a path separator that '*' cannot cross. URLs are
// matched as flat strings, so '/' is folded to a byte that never appears in
// a URL or a pattern before matching.
const separatorFold = "\x00"

// Scope is an ordered URL allowlist of glob patterns. An empty Scope denies
// every URL. A Scope is immutable and safe for concurrent use.
type Scope struct {
	patterns []string
	folded   []string
}

// New compiles the given patterns. Blank patterns are skipped.
func New(patterns []string) (*Scope, error) {
	s := &Scope{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		folded := fold(p)
		if !doublestar.ValidatePattern(folded) {
			return nil, fmt.Errorf("invalid scope pattern %q", p)
		}

		s.patterns = append(s.patterns, p)
		s.folded = append(s.folded, folded)
	}
	return s, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(patterns ...string) *Scope {
	s, err := New(patterns)
	if err != nil {
		panic(err)
	}
	return s
}

// IsAllowed reports whether any pattern matches the normalized string form
// of u.
func (s *Scope) IsAllowed(u *url.URL) bool {
	if s == nil || u == nil {
		return false
	}
	return s.IsAllowedString(Normalize(u))
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// Normalize renders u the way patterns are written: lower-case scheme and
// host, no default port, and "/" for an empty path on URLs with a host.
func Normalize(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)

	if port := n.Port(); port != "" && defaultPorts[n.Scheme] == port {
		n.Host = strings.TrimSuffix(n.Host, ":"+port)
	} else if port == "" {
		n.Host = strings.TrimSuffix(n.Host, ":")
	}
	if n.Host != "" && n.Opaque == "" && n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return n.String()
}

// IsAllowedString reports whether any pattern matches raw.
func (s *Scope) IsAllowedString(raw string) bool {
	if s == nil || len(s.folded) == 0 {
		return false
	}

	target := fold(raw)
	for _, p := range s.folded {
		if doublestar.MatchUnvalidated(p, target) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns in order.
func (s *Scope) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// Len returns the number of patterns.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Merge returns a Scope holding the patterns of s followed by those of other.
func (s *Scope) Merge(other *Scope) *Scope {
	merged := &Scope{}
	for _, src := range []*Scope{s, other} {
		if src == nil {
			continue
		}
		merged.patterns = append(merged.patterns, src.patterns...)
		merged.folded = append(merged.folded, src.folded...)
	}
	return merged
}

func fold(s string) string {
	return strings.ReplaceAll(s, "/", separatorFold)
}
