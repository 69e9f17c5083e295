package session

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// DefaultDepth is the per-direction channel capacity.
const DefaultDepth = 32

var (
	// ErrUnestablished is returned for ids with no live session.
	ErrUnestablished = errors.New("session unestablished")
	// ErrConsumed is returned when a session is claimed twice.
	ErrConsumed = errors.New("session already consumed")
	// ErrInvalidSessionID is returned for ids that can never be valid.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrClosed is returned when sending into a closed channel.
	ErrClosed = errors.New("stream closed")
)

// State is the lifecycle state of a session.
type State int

const (
	// Open sessions are reserved but not yet bound to a fetch.
	Open State = iota
	// Consumed sessions are bound to exactly one fetch.
	Consumed
)

func (s State) String() string {
	if s == Consumed {
		return "consumed"
	}
	return "open"
}

// PopStatus is the outcome of a non-blocking Pop.
type PopStatus int

const (
	// PopChunk means a chunk was returned.
	PopChunk PopStatus = iota
	// PopEmpty means the stream is live but nothing is queued yet.
	PopEmpty
	// PopPending means no fetch has claimed the session yet.
	PopPending
	// PopEnd means the stream is closed and fully drained.
	PopEnd
)

func (s PopStatus) String() string {
	switch s {
	case PopChunk:
		return "chunk"
	case PopEmpty:
		return "empty"
	case PopPending:
		return "pending"
	default:
		return "end"
	}
}

// Observer is told the number of live sessions after every change.
type Observer interface {
	SessionsChanged(live int)
}

// Config configures a Broker.
type Config struct {
	Depth    int
	Logger   *zap.Logger
	Observer Observer
}

type session struct {
	id    int
	state State
	up    *pipe
	down  *pipe
	// ended is set once the receiver has seen PopEnd or closed downstream.
	ended bool
}

// Broker owns the slot table of streaming sessions. Ids are small integers;
// a freed slot is reused lowest index first.
type Broker struct {
	depth    int
	logger   *zap.Logger
	observer Observer

	mu    sync.Mutex
	slots []*session
	free  freeList
	live  int
}

// NewBroker creates an empty broker.
func NewBroker(cfg Config) *Broker {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Broker{
		depth:    cfg.Depth,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
}

// Reserve allocates a new Open session and returns its id.
func (b *Broker) Reserve() int {
	b.mu.Lock()
	var id int
	if b.free.Len() > 0 {
		id = heap.Pop(&b.free).(int)
	} else {
		id = len(b.slots)
		b.slots = append(b.slots, nil)
	}
	b.slots[id] = &session{
		id:   id,
		up:   newPipe(b.depth),
		down: newPipe(b.depth),
	}
	b.live++
	live := b.live
	b.mu.Unlock()

	b.logger.Debug("session reserved", zap.Int("session", id))
	b.notify(live)
	return id
}

// Claim binds the session to the caller. It succeeds once per id.
func (b *Broker) Claim(id int) (*Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if s.state == Consumed {
		return nil, fmt.Errorf("session %d: %w", id, ErrConsumed)
	}
	s.state = Consumed
	return &Stream{broker: b, s: s}, nil
}

// Push queues an upstream chunk, suspending while the channel is full.
func (b *Broker) Push(ctx context.Context, id int, chunk []byte) error {
	s, err := b.lookup(id)
	if err != nil {
		return err
	}
	if err := s.up.send(ctx, chunk); err != nil {
		return fmt.Errorf("session %d upstream: %w", id, err)
	}
	return nil
}

// Pop takes the next downstream chunk without blocking.
func (b *Broker) Pop(id int) ([]byte, PopStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookupLocked(id)
	if err != nil {
		return nil, PopEnd, err
	}

	chunk, st := s.down.tryRecv()
	switch st {
	case recvChunk:
		return chunk, PopChunk, nil
	case recvEnd:
		s.ended = true
		b.releaseIfDoneLocked(s)
		return nil, PopEnd, nil
	}
	if s.state == Open {
		return nil, PopPending, nil
	}
	return nil, PopEmpty, nil
}

// CloseUpstream ends the request body stream. Chunks already queued are
// still delivered.
func (b *Broker) CloseUpstream(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookupLocked(id)
	if err != nil {
		return err
	}
	s.up.close()
	b.releaseIfDoneLocked(s)
	return nil
}

// CloseDownstream stops the response body stream from the receiving side.
// Queued chunks are discarded and the producer's next send fails. The next
// Pop reports PopEnd and frees the slot.
func (b *Broker) CloseDownstream(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookupLocked(id)
	if err != nil {
		return err
	}
	s.down.abort()
	return nil
}

// Abandon closes both directions of a session whose fetch failed. Pop
// reports PopEnd once any queued chunks are taken.
func (b *Broker) Abandon(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookupLocked(id)
	if err != nil {
		return
	}
	s.up.close()
	s.down.close()
	b.releaseIfDoneLocked(s)
}

// State returns the state of a live session.
func (b *Broker) State(id int) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.lookupLocked(id)
	if err != nil {
		return Open, err
	}
	return s.state, nil
}

// Len returns the number of live sessions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

func (b *Broker) lookup(id int) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookupLocked(id)
}

func (b *Broker) lookupLocked(id int) (*session, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSessionID, id)
	}
	if id >= len(b.slots) || b.slots[id] == nil {
		return nil, fmt.Errorf("session %d: %w", id, ErrUnestablished)
	}
	return b.slots[id], nil
}

// releaseIfDoneLocked frees the slot once upstream is closed and the
// receiver has observed the end of downstream.
func (b *Broker) releaseIfDoneLocked(s *session) {
	if !s.up.isClosed() || !s.ended {
		return
	}
	if s.id >= len(b.slots) || b.slots[s.id] != s {
		return
	}
	b.slots[s.id] = nil
	heap.Push(&b.free, s.id)
	b.live--

	b.logger.Debug("session released", zap.Int("session", s.id))
	if b.observer != nil {
		b.observer.SessionsChanged(b.live)
	}
}

func (b *Broker) notify(live int) {
	if b.observer != nil {
		b.observer.SessionsChanged(live)
	}
}

// Stream is the fetch side of a claimed session: it reads the request body
// from upstream and writes the response body downstream.
type Stream struct {
	broker *Broker
	s      *session
}

// ID returns the session id.
func (st *Stream) ID() int { return st.s.id }

// Upstream returns a reader over pushed chunks. It returns io.EOF once the
// upstream is closed and drained, or ctx's error when ctx ends first.
func (st *Stream) Upstream(ctx context.Context) io.Reader {
	return &pipeReader{ctx: ctx, p: st.s.up}
}

// Send queues a downstream chunk, suspending while the channel is full. It
// returns ErrClosed once the receiving side closed the downstream.
func (st *Stream) Send(ctx context.Context, chunk []byte) error {
	return st.s.down.send(ctx, chunk)
}

// Finish closes both directions from the producer side. Queued downstream
// chunks stay available to Pop.
func (st *Stream) Finish() {
	st.broker.mu.Lock()
	defer st.broker.mu.Unlock()

	st.s.up.close()
	st.s.down.close()
	st.broker.releaseIfDoneLocked(st.s)
}

// freeList is a min-heap of released slot ids.
type freeList []int

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) { *f = append(*f, x.(int)) }

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}
