package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/cookies"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/http/httpguts"
)

// outbound is a validated request ready to execute on a held client.
type outbound struct {
	method string
	url    string
	req    *resty.Request
}

// buildRequest validates opts and applies them to c: cookies go into the
// jar and, when applyRedirect is set, the redirect mode into the policy.
// Nothing touches the network. body may be nil.
func buildRequest(ctx context.Context, c *client.Client, u *url.URL, opts *Options, applyRedirect bool, body io.Reader) (*outbound, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, &Error{Kind: KindInvalidMethod, Name: method}
	}

	header, err := buildHeader(opts.Headers)
	if err != nil {
		return nil, err
	}

	if err := insertCookies(c.Jar(), u.Scheme, opts.Cookies); err != nil {
		return nil, err
	}

	if applyRedirect {
		c.Redirect().Set(opts.Redirect.Policy())
	}

	req := c.R(client.WithExactHeaders(ctx, header)).SetDoNotParseResponse(true)
	if body != nil {
		req.SetBody(body)
	}

	return &outbound{method: method, url: u.String(), req: req}, nil
}

func buildHeader(in map[string][]string) (http.Header, error) {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	h := make(http.Header, len(in))
	for _, name := range names {
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, &Error{Kind: KindInvalidHeader, Name: name}
		}
		for _, v := range in[name] {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, &Error{Kind: KindInvalidHeader, Name: name}
			}
			h.Add(name, v)
		}
	}
	return h, nil
}

// insertCookies stores every (domain, name) pair, each under the URL
// scheme://domain/path. Domains and names are visited in sorted order so a
// failure is reported deterministically.
func insertCookies(jar *cookies.Jar, scheme string, in map[string]map[string]CookieProps) error {
	domains := make([]string, 0, len(in))
	for d := range in {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		pairs := in[domain]
		names := make([]string, 0, len(pairs))
		for n := range pairs {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			props := pairs[name]
			rec, err := props.record(domain, name)
			if err != nil {
				return &Error{Kind: KindInvalidCookie, Domain: domain, Name: name, Err: err}
			}

			contextURL := &url.URL{
				Scheme: scheme,
				Host:   strings.TrimPrefix(domain, "."),
				Path:   props.Path,
			}
			if err := jar.Insert(rec, contextURL); err != nil {
				if errors.Is(err, cookies.ErrInvalidDomain) {
					return &Error{Kind: KindInvalidCookieDomain, Domain: domain, Err: err}
				}
				return &Error{Kind: KindInvalidCookie, Domain: domain, Name: name, Err: err}
			}
		}
	}
	return nil
}

// buildResponse captures everything but the body.
func buildResponse(resp *resty.Response, jar *cookies.Jar, requested string) *Response {
	out := &Response{
		URL:     requested,
		Status:  resp.StatusCode(),
		Headers: lowerHeader(resp.Header()),
		Cookies: snapshotCookies(jar),
	}
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		out.URL = raw.Request.URL.String()
	}
	return out
}

func lowerHeader(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		out[key] = append(out[key], values...)
	}
	return out
}

func snapshotCookies(jar *cookies.Jar) map[string]map[string]CookieProps {
	out := make(map[string]map[string]CookieProps)
	for _, rec := range jar.Snapshot() {
		pairs, ok := out[rec.Domain]
		if !ok {
			pairs = make(map[string]CookieProps)
			out[rec.Domain] = pairs
		}
		pairs[rec.Name] = propsFromRecord(rec)
	}
	return out
}
