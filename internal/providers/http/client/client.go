package client

import (
	"context"
	"net/http"

	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/cookies"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

type exactHeaderKey struct{}

// WithExactHeaders makes the request sent under ctx carry exactly h, so
// that nothing resty would add on its own (Content-Type sniffing, its
// default User-Agent) reaches the wire.
func WithExactHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, exactHeaderKey{}, h)
}

// Client is one pooled HTTP client. It owns a transport, a cookie jar and a
// redirect policy, and is held by at most one fetch at a time.
type Client struct {
	id     int
	resty  *resty.Client
	jar    *cookies.Jar
	policy *RedirectPolicy
	held   bool
}

func newClient(id int, userAgent string, logger *zap.Logger) *Client {
	jar := cookies.NewJar()
	policy := NewRedirectPolicy()

	r := resty.New().
		SetTransport(cleanhttp.DefaultPooledTransport()).
		SetCookieJar(jar).
		SetRedirectPolicy(policy).
		SetAllowGetMethodPayload(true).
		SetLogger(logger.Sugar()).
		SetPreRequestHook(func(_ *resty.Client, req *http.Request) error {
			h, ok := req.Context().Value(exactHeaderKey{}).(http.Header)
			if !ok {
				return nil
			}
			// The jar's Cookie header is added by http.Client after this
			// hook, so replacing the map here does not drop it.
			req.Header = h.Clone()
			if req.Header.Get("User-Agent") == "" && userAgent != "" {
				req.Header.Set("User-Agent", userAgent)
			}
			return nil
		})

	return &Client{
		id:     id,
		resty:  r,
		jar:    jar,
		policy: policy,
	}
}

// ID identifies the client within its pool.
func (c *Client) ID() int { return c.id }

// Jar returns the client's cookie jar.
func (c *Client) Jar() *cookies.Jar { return c.jar }

// Redirect returns the client's redirect policy.
func (c *Client) Redirect() *RedirectPolicy { return c.policy }

// R starts a request bound to ctx.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.resty.R().SetContext(ctx)
}

// reset clears the jar and restores the default redirect policy.
func (c *Client) reset() {
	c.jar.Clear()
	c.policy.Reset()
}

func (c *Client) close() {
	c.resty.GetClient().CloseIdleConnections()
}
