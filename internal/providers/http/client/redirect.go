package client

import (
	"fmt"
	"net/http"
	"sync"
)

// DefaultRedirectLimit is the hop budget a client is reset to on release.
const DefaultRedirectLimit = 10

// Redirect describes a redirect policy: follow without limit, or follow at
// most Limit hops. Manual is a limit of zero.
type Redirect struct {
	follow bool
	limit  int
}

// Follow follows every redirect.
func Follow() Redirect { return Redirect{follow: true} }

// Manual treats every redirect response as final.
func Manual() Redirect { return Redirect{} }

// Limit follows at most n redirects. Negative n is treated as zero.
func Limit(n int) Redirect {
	if n < 0 {
		n = 0
	}
	return Redirect{limit: n}
}

// DefaultRedirect returns the policy a fresh or recycled client starts with.
func DefaultRedirect() Redirect { return Limit(DefaultRedirectLimit) }

// IsFollow reports whether the policy is unbounded.
func (r Redirect) IsFollow() bool { return r.follow }

// Remaining returns the hop budget of a bounded policy.
func (r Redirect) Remaining() int { return r.limit }

func (r Redirect) String() string {
	switch {
	case r.follow:
		return "follow"
	case r.limit == 0:
		return "manual"
	default:
		return fmt.Sprintf("limit(%d)", r.limit)
	}
}

// RedirectPolicy is the mutable redirect state of one client. The transport
// consults it on every redirect response; a bounded policy is decremented
// per hop and, once exhausted, makes the transport return the redirect
// response itself.
type RedirectPolicy struct {
	mu  sync.Mutex
	cur Redirect
}

// NewRedirectPolicy creates a policy set to DefaultRedirect.
func NewRedirectPolicy() *RedirectPolicy {
	return &RedirectPolicy{cur: DefaultRedirect()}
}

// Set replaces the current policy.
func (p *RedirectPolicy) Set(r Redirect) {
	p.mu.Lock()
	p.cur = r
	p.mu.Unlock()
}

// Get returns the current policy.
func (p *RedirectPolicy) Get() Redirect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Reset restores DefaultRedirect.
func (p *RedirectPolicy) Reset() {
	p.Set(DefaultRedirect())
}

// Apply implements resty.RedirectPolicy.
func (p *RedirectPolicy) Apply(_ *http.Request, _ []*http.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur.follow {
		return nil
	}
	if p.cur.limit == 0 {
		return http.ErrUseLastResponse
	}
	p.cur.limit--
	return nil
}
