package fetch

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/cookies"
	"github.com/bytedance/sonic"
)

// Options describes one outbound request. The zero value is a GET with no
// headers, cookies or body that follows every redirect.
type Options struct {
	Method   string                            `json:"method,omitempty"`
	Headers  map[string][]string               `json:"headers,omitempty"`
	Cookies  map[string]map[string]CookieProps `json:"cookies,omitempty"`
	Redirect *Redirect                         `json:"redirect,omitempty"`
	// Body is ignored when Session is set; the body then streams from the
	// session's upstream channel.
	Body    []byte `json:"body,omitempty"`
	Session *int   `json:"session,omitempty"`
}

// Response is the structured result of a fetch.
type Response struct {
	URL     string                            `json:"url"`
	Status  int                               `json:"status"`
	Headers map[string][]string               `json:"headers"`
	Cookies map[string]map[string]CookieProps `json:"cookies"`
	// Body is nil for streamed responses.
	Body []byte `json:"body"`
}

// CookieProps is the wire form of one cookie, keyed elsewhere by domain and
// name. MaxAge is in seconds; Expires is an RFC 2822 date.
type CookieProps struct {
	Value    string   `json:"value"`
	Path     string   `json:"path"`
	HTTPOnly *bool    `json:"httpOnly,omitempty"`
	Secure   *bool    `json:"secure,omitempty"`
	MaxAge   *float64 `json:"maxAge,omitempty"`
	Expires  string   `json:"expires,omitempty"`
	SameSite string   `json:"sameSite,omitempty"`
}

var expiresLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC850,
}

func parseExpires(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range expiresLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// record converts p into a jar record for domain.
func (p CookieProps) record(domain, name string) (cookies.Record, error) {
	rec := cookies.Record{
		Name:   name,
		Value:  p.Value,
		Domain: domain,
		Path:   p.Path,
	}
	if p.HTTPOnly != nil {
		rec.HTTPOnly = *p.HTTPOnly
	}
	if p.Secure != nil {
		rec.Secure = *p.Secure
	}
	if p.MaxAge != nil {
		secs := *p.MaxAge
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return rec, fmt.Errorf("max age %v", secs)
		}
		if secs <= 0 {
			rec.MaxAge = -1
		} else {
			rec.MaxAge = time.Duration(secs * float64(time.Second))
		}
	}
	if p.Expires != "" {
		t, err := parseExpires(p.Expires)
		if err != nil {
			return rec, err
		}
		rec.Expires = t
	}
	if p.SameSite != "" {
		ss, err := cookies.ParseSameSite(p.SameSite)
		if err != nil {
			return rec, err
		}
		rec.SameSite = ss
	}
	return rec, nil
}

func propsFromRecord(r cookies.Record) CookieProps {
	httpOnly, secure := r.HTTPOnly, r.Secure
	p := CookieProps{
		Value:    r.Value,
		Path:     r.Path,
		HTTPOnly: &httpOnly,
		Secure:   &secure,
	}
	if r.MaxAge > 0 {
		secs := r.MaxAge.Seconds()
		p.MaxAge = &secs
	}
	if !r.Expires.IsZero() {
		p.Expires = r.Expires.UTC().Format(time.RFC1123Z)
	}
	if r.SameSite != cookies.SameSiteUnset {
		p.SameSite = r.SameSite.String()
	}
	return p
}

// Redirect is the wire form of a redirect policy: "follow", "manual" or
// {"limit": n}.
type Redirect struct {
	policy client.Redirect
}

// NewRedirect wraps a policy for encoding.
func NewRedirect(r client.Redirect) *Redirect {
	return &Redirect{policy: r}
}

// Policy returns the decoded policy.
func (r *Redirect) Policy() client.Redirect {
	if r == nil {
		return client.Follow()
	}
	return r.policy
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Redirect) UnmarshalJSON(data []byte) error {
	var mode string
	if err := sonic.ConfigStd.Unmarshal(data, &mode); err == nil {
		switch mode {
		case "follow":
			r.policy = client.Follow()
		case "manual":
			r.policy = client.Manual()
		default:
			return fmt.Errorf("redirect: unknown mode %q, want follow, manual or {\"limit\": n}", mode)
		}
		return nil
	}

	var limit struct {
		Limit *int `json:"limit"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &limit); err != nil {
		return fmt.Errorf("redirect: %w", err)
	}
	if limit.Limit == nil {
		return fmt.Errorf("redirect: missing field limit")
	}
	if *limit.Limit < 0 {
		return fmt.Errorf("redirect: negative limit %d", *limit.Limit)
	}
	r.policy = client.Limit(*limit.Limit)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Redirect) MarshalJSON() ([]byte, error) {
	switch {
	case r.policy.IsFollow():
		return []byte(`"follow"`), nil
	case r.policy.Remaining() == 0:
		return []byte(`"manual"`), nil
	default:
		return []byte(fmt.Sprintf(`{"limit":%d}`, r.policy.Remaining())), nil
	}
}
