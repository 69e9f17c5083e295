package client

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultCapacity bounds the number of clients a pool creates.
const DefaultCapacity = 16

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("client pool is closed")

// Stats describes pool occupancy.
type Stats struct {
	Capacity int
	Created  int
	Idle     int
	InUse    int
}

// Observer is told about every occupancy change.
type Observer interface {
	PoolChanged(Stats)
}

// Config configures a Pool.
type Config struct {
	Capacity  int
	UserAgent string
	Logger    *zap.Logger
	Observer  Observer
}

// Pool hands out Clients exclusively. Clients are created on demand up to
// Capacity; Acquire waits when all of them are held. Release resets the
// client before it can be handed out again.
type Pool struct {
	cfg    Config
	logger *zap.Logger
	sem    *semaphore.Weighted

	mu      sync.Mutex
	idle    []*Client
	created int
	inUse   int
	closed  bool
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		cfg:    cfg,
		logger: cfg.Logger,
		sem:    semaphore.NewWeighted(int64(cfg.Capacity)),
	}
}

// Acquire returns an idle client or creates one, waiting while the pool is
// at capacity. It fails only when ctx ends or the pool is closed.
func (p *Pool) Acquire(ctx context.Context) (*Client, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}

	var c *Client
	if n := len(p.idle); n > 0 {
		c = p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
	} else {
		p.created++
		c = newClient(p.created, p.cfg.UserAgent, p.logger)
		p.logger.Debug("created pooled client", zap.Int("client", c.id))
	}
	c.held = true
	p.inUse++
	stats := p.statsLocked()
	p.mu.Unlock()

	p.notify(stats)
	return c, nil
}

// Release resets c and returns it to the pool. Releasing a client that is
// not held is a no-op.
func (p *Pool) Release(c *Client) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if !c.held {
		p.mu.Unlock()
		p.logger.Warn("release of a client that is not held", zap.Int("client", c.id))
		return
	}
	c.held = false
	c.reset()

	if p.closed {
		c.close()
	} else {
		p.idle = append(p.idle, c)
	}
	p.inUse--
	stats := p.statsLocked()
	p.mu.Unlock()

	p.sem.Release(1)
	p.notify(stats)
}

// Stats returns the current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// Close drops idle clients. Held clients are closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		c.close()
	}
}

func (p *Pool) statsLocked() Stats {
	return Stats{
		Capacity: p.cfg.Capacity,
		Created:  p.created,
		Idle:     len(p.idle),
		InUse:    p.inUse,
	}
}

func (p *Pool) notify(s Stats) {
	if p.cfg.Observer != nil {
		p.cfg.Observer.PoolChanged(s)
	}
}
