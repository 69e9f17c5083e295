package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

type recvState int

const (
	recvChunk recvState = iota
	recvEmpty
	recvEnd
)

// pipe is a bounded FIFO of chunks with a one-way close. Senders suspend
// while it is full; receivers keep draining buffered chunks after close
// unless the pipe was aborted.
type pipe struct {
	ch      chan []byte
	done    chan struct{}
	once    sync.Once
	aborted atomic.Bool
}

func newPipe(depth int) *pipe {
	return &pipe{
		ch:   make(chan []byte, depth),
		done: make(chan struct{}),
	}
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *pipe) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// abort closes the pipe and drops everything buffered, including chunks a
// racing sender slips in afterwards.
func (p *pipe) abort() {
	p.aborted.Store(true)
	p.close()
	p.discard()
}

// discard drops every buffered chunk.
func (p *pipe) discard() {
	for {
		select {
		case <-p.ch:
		default:
			return
		}
	}
}

func (p *pipe) send(ctx context.Context, b []byte) error {
	if p.isClosed() {
		return ErrClosed
	}
	select {
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.ch <- b:
		if p.aborted.Load() {
			p.discard()
			return ErrClosed
		}
		return nil
	}
}

func (p *pipe) tryRecv() ([]byte, recvState) {
	if p.aborted.Load() {
		p.discard()
		return nil, recvEnd
	}
	select {
	case b := <-p.ch:
		return b, recvChunk
	default:
	}

	select {
	case <-p.done:
		// A send may have completed just before close.
		select {
		case b := <-p.ch:
			return b, recvChunk
		default:
			return nil, recvEnd
		}
	default:
		return nil, recvEmpty
	}
}

// recv blocks for the next chunk and returns io.EOF once the pipe is closed
// and drained.
func (p *pipe) recv(ctx context.Context) ([]byte, error) {
	if p.aborted.Load() {
		p.discard()
		return nil, io.EOF
	}
	select {
	case b := <-p.ch:
		return b, nil
	case <-p.done:
		select {
		case b := <-p.ch:
			return b, nil
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pipeReader adapts the receiving end of a pipe to io.Reader.
type pipeReader struct {
	ctx context.Context
	p   *pipe
	buf []byte
}

func (r *pipeReader) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for len(r.buf) == 0 {
		chunk, err := r.p.recv(r.ctx)
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(b, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
