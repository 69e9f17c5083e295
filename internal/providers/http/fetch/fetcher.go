package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/scope"
	"go.uber.org/zap"
)

// ChunkSize is the largest downstream chunk a drain sends.
const ChunkSize = 32 * 1024

// Notifier is told whenever a downstream chunk is queued or a downstream
// stream ends, so the caller knows to pop.
type Notifier interface {
	ReadyToPop(id int)
}

// Observer records fetch outcomes.
type Observer interface {
	FetchCompleted(outcome string, elapsed time.Duration)
	ChunkStreamed(bytes int)
}

// Fetcher performs fetches on pooled clients, enforcing the scope and
// binding streaming bodies to broker sessions.
type Fetcher struct {
	pool     *client.Pool
	scope    *scope.Scope
	broker   *session.Broker
	notifier Notifier
	observer Observer
	logger   *zap.Logger

	// base outlives request contexts; streaming exchanges derive from it.
	base   context.Context
	cancel context.CancelFunc
	drains sync.WaitGroup
}

// NewFetcher wires a Fetcher. notifier and observer may be nil.
func NewFetcher(pool *client.Pool, sc *scope.Scope, broker *session.Broker, notifier Notifier, logger *zap.Logger, observer Observer) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Fetcher{
		pool:     pool,
		scope:    sc,
		broker:   broker,
		notifier: notifier,
		observer: observer,
		logger:   logger,
		base:     base,
		cancel:   cancel,
	}
}

// Fetch performs one request. When opts.Session is set the request body is
// read from that session's upstream channel and the response body is sent
// to its downstream channel after Fetch returns; otherwise the body is
// embedded in the Response.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts *Options) (*Response, error) {
	start := time.Now()
	resp, err := f.fetch(ctx, rawURL, opts)

	outcome := "ok"
	if err != nil {
		var ferr *Error
		if errors.As(err, &ferr) {
			outcome = ferr.Kind.String()
		} else {
			outcome = "error"
		}
		f.logger.Debug("fetch failed",
			zap.String("url", rawURL),
			zap.String("kind", outcome),
			zap.Error(err))
	} else {
		f.logger.Info("fetch completed",
			zap.String("url", resp.URL),
			zap.Int("status", resp.Status),
			zap.Duration("elapsed", time.Since(start)))
	}
	if f.observer != nil {
		f.observer.FetchCompleted(outcome, time.Since(start))
	}
	return resp, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, opts *Options) (*Response, error) {
	// Without options the client keeps the pool's default redirect policy.
	applyRedirect := opts != nil
	if opts == nil {
		opts = &Options{}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		f.abandonUnclaimed(opts.Session)
		return nil, &Error{Kind: KindInvalidURL, Err: err}
	}

	if !f.scope.IsAllowed(u) {
		f.abandonUnclaimed(opts.Session)
		return nil, &Error{Kind: KindNotAllowed, URL: u.String()}
	}

	var stream *session.Stream
	if opts.Session != nil {
		stream, err = f.broker.Claim(*opts.Session)
		if err != nil {
			return nil, sessionError(err)
		}
	}

	// A streamed exchange keeps running after the caller's context ends:
	// the response body drains in the background. Until the response
	// headers arrive the caller can still cancel it.
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	stopLink := func() bool { return true }
	if stream != nil {
		reqCtx, cancel = context.WithCancel(f.base)
		stopLink = context.AfterFunc(ctx, cancel)
	}

	fail := func(err error) (*Response, error) {
		stopLink()
		cancel()
		if stream != nil {
			f.broker.Abandon(stream.ID())
			f.notify(stream.ID())
		}
		return nil, err
	}

	c, err := f.pool.Acquire(reqCtx)
	if err != nil {
		return fail(transportError(err, u.String()))
	}

	var body io.Reader
	switch {
	case stream != nil:
		body = stream.Upstream(reqCtx)
	case len(opts.Body) > 0:
		body = bytes.NewReader(opts.Body)
	}

	out, err := buildRequest(reqCtx, c, u, opts, applyRedirect, body)
	if err != nil {
		f.pool.Release(c)
		return fail(err)
	}

	resp, err := out.req.Execute(out.method, out.url)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		f.pool.Release(c)
		return fail(transportError(err, out.url))
	}

	result := buildResponse(resp, c.Jar(), out.url)
	raw := resp.RawBody()

	if stream == nil {
		data, err := io.ReadAll(raw)
		raw.Close()
		f.pool.Release(c)
		if err != nil {
			return nil, transportError(err, result.URL)
		}
		result.Body = data
		return result, nil
	}

	stopLink()
	f.drains.Add(1)
	go f.drain(reqCtx, cancel, c, stream, raw)
	return result, nil
}

// drain copies the response body into the session's downstream channel,
// then finishes the stream and releases the client.
func (f *Fetcher) drain(ctx context.Context, cancel context.CancelFunc, c *client.Client, stream *session.Stream, body io.ReadCloser) {
	defer f.drains.Done()
	defer cancel()
	defer f.pool.Release(c)
	defer body.Close()

	id := stream.ID()
	buf := make([]byte, ChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if serr := stream.Send(ctx, chunk); serr != nil {
				f.logger.Debug("downstream closed before body ended",
					zap.Int("session", id),
					zap.Error(serr))
				break
			}
			if f.observer != nil {
				f.observer.ChunkStreamed(n)
			}
			f.notify(id)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				f.logger.Warn("response body read failed",
					zap.Int("session", id),
					zap.Error(err))
			}
			break
		}
	}

	stream.Finish()
	f.notify(id)
}

// abandonUnclaimed ends a session a failed fetch never got to claim, so the
// caller polling it sees the end of the stream. Sessions already claimed by
// another fetch are left alone.
func (f *Fetcher) abandonUnclaimed(id *int) {
	if id == nil {
		return
	}
	if _, err := f.broker.Claim(*id); err != nil {
		return
	}
	f.broker.Abandon(*id)
	f.notify(*id)
}

func (f *Fetcher) notify(id int) {
	if f.notifier != nil {
		f.notifier.ReadyToPop(id)
	}
}

// Close cancels in-flight streamed exchanges and waits for their drains.
func (f *Fetcher) Close() {
	f.cancel()
	f.drains.Wait()
}

// Wait blocks until every background drain has finished.
func (f *Fetcher) Wait() {
	f.drains.Wait()
}
