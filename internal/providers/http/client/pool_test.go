package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/cookies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	stats []Stats
}

func (o *recordingObserver) PoolChanged(s Stats) {
	o.mu.Lock()
	o.stats = append(o.stats, s)
	o.mu.Unlock()
}

func TestPoolReleaseResetsClient(t *testing.T) {
	pool := NewPool(Config{Capacity: 1})
	defer pool.Close()

	ctx := context.Background()
	c, err := pool.Acquire(ctx)
	require.NoError(t, err)

	u, _ := url.Parse("https://example.com/")
	require.NoError(t, c.Jar().Insert(cookies.Record{Name: "a", Value: "1", Domain: "example.com"}, u))
	c.Redirect().Set(Manual())
	pool.Release(c)

	again, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(again)

	assert.Same(t, c, again)
	assert.Equal(t, 0, again.Jar().Len())
	assert.Equal(t, DefaultRedirect(), again.Redirect().Get())
}

func TestPoolCapacity(t *testing.T) {
	obs := &recordingObserver{}
	pool := NewPool(Config{Capacity: 1, Observer: obs})
	defer pool.Close()

	c, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *Client, 1)
	go func() {
		next, err := pool.Acquire(context.Background())
		if err == nil {
			got <- next
		}
	}()

	pool.Release(c)
	select {
	case next := <-got:
		assert.Same(t, c, next)
		pool.Release(next)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting acquire was not woken by release")
	}

	stats := pool.Stats()
	assert.Equal(t, Stats{Capacity: 1, Created: 1, Idle: 1, InUse: 0}, stats)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.NotEmpty(t, obs.stats)
	assert.Equal(t, stats, obs.stats[len(obs.stats)-1])
}

func TestPoolDoubleReleaseIsIgnored(t *testing.T) {
	pool := NewPool(Config{Capacity: 2})
	defer pool.Close()

	c, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(c)
	pool.Release(c)

	assert.Equal(t, 1, pool.Stats().Idle)
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestPoolClosed(t *testing.T) {
	pool := NewPool(Config{})
	pool.Close()

	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// redirectServer serves /hop/N, which redirects to /hop/N-1, down to /hop/0.
func redirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if n == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("done"))
			return
		}
		http.Redirect(w, r, "/hop/"+strconv.Itoa(n-1), http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRedirectPolicies(t *testing.T) {
	srv := redirectServer(t)

	tests := []struct {
		name     string
		policy   Redirect
		status   int
		finalHop string
	}{
		{"manual returns first redirect", Manual(), http.StatusFound, "/hop/3"},
		{"limit stops after budget", Limit(2), http.StatusFound, "/hop/1"},
		{"limit large enough", Limit(3), http.StatusOK, "/hop/0"},
		{"follow", Follow(), http.StatusOK, "/hop/0"},
	}

	pool := NewPool(Config{Capacity: 1})
	defer pool.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, err := pool.Acquire(ctx)
			require.NoError(t, err)
			defer pool.Release(c)

			c.Redirect().Set(tt.policy)
			resp, err := c.R(ctx).Get(srv.URL + "/hop/3")
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode())
			assert.Equal(t, tt.finalHop, resp.RawResponse.Request.URL.Path)
		})
	}
}

func TestExactHeaders(t *testing.T) {
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pool := NewPool(Config{Capacity: 1, UserAgent: "cookiefetch-test"})
	defer pool.Close()

	ctx := context.Background()
	c, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(c)

	h := http.Header{}
	h.Add("X-Multi", "a")
	h.Add("X-Multi", "b")
	_, err = c.R(WithExactHeaders(ctx, h)).
		SetBody(strings.NewReader("payload")).
		Post(srv.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, seen.Values("X-Multi"))
	assert.Empty(t, seen.Get("Content-Type"))
	assert.Equal(t, "cookiefetch-test", seen.Get("User-Agent"))
}

func TestRedirectString(t *testing.T) {
	assert.Equal(t, "follow", Follow().String())
	assert.Equal(t, "manual", Manual().String())
	assert.Equal(t, "manual", Limit(-3).String())
	assert.Equal(t, "limit(10)", DefaultRedirect().String())
}
