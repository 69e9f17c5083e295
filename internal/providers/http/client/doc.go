// Package client provides the pool of cookie-aware HTTP clients.
//
// Each Client couples a resty client with its own cookies.Jar and
// RedirectPolicy. A fetch holds a client exclusively from Acquire until
// Release, including while the response body drains. Release clears the
// jar and restores the redirect policy to Limit(10), so the next holder
// always starts clean.
//
// Redirect policies:
//   - Follow: follow every redirect
//   - Manual: return the first redirect response as the final response
//   - Limit(n): follow n redirects, then return the next redirect response
//
// Example Usage:
//
//	pool := client.NewPool(client.Config{Capacity: 16})
//	c, err := pool.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer pool.Release(c)
//	c.Redirect().Set(client.Manual())
//	resp, err := c.R(ctx).Get("https://example.com/")
package client
