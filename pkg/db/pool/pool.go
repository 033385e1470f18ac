// Package pool provides a bounded pool of storage clients for the
// durable write paths. Callers acquire a client, do their work, and
// release it; when every pooled client is busy past the acquire
// timeout the pool hands out a short-lived ephemeral client instead of
// failing the request.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/gpuoptimizer/revenue-core/pkg/db"
	"github.com/gpuoptimizer/revenue-core/pkg/errors"
)

// Factory opens one storage client. The pool calls it for the initial
// fill and again for every ephemeral fallback client.
type Factory func(ctx context.Context) (*db.Client, error)

// Pool is a fixed-capacity set of storage clients.
type Pool struct {
	clients        chan *db.Client
	factory        Factory
	acquireTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Options shape a Pool.
type Options struct {
	Size           int
	AcquireTimeout time.Duration
	Factory        Factory
}

// New builds the pool and eagerly opens Size clients. An open failure
// during the fill closes whatever was opened and surfaces a dependency
// error; a half-filled pool is never returned.
func New(ctx context.Context, opts Options) (*Pool, error) {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if opts.Factory == nil {
		return nil, errors.New(errors.CodeInternal, "pool factory is required")
	}

	p := &Pool{
		clients:        make(chan *db.Client, opts.Size),
		factory:        opts.Factory,
		acquireTimeout: opts.AcquireTimeout,
	}

	for i := 0; i < opts.Size; i++ {
		client, err := opts.Factory(ctx)
		if err != nil {
			p.Close()
			return nil, errors.Wrap(errors.CodeDependency, err, "storage unavailable")
		}
		p.clients <- client
	}

	return p, nil
}

// Acquire hands out a client. It blocks up to the configured timeout
// waiting for a pooled client, then falls back to opening an ephemeral
// one. The returned pooled flag must be passed back to Release
// unchanged. A ctx already done fails immediately.
func (p *Pool) Acquire(ctx context.Context) (*db.Client, bool, error) {
	select {
	case client := <-p.clients:
		return client, true, nil
	default:
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case client := <-p.clients:
		return client, true, nil
	case <-ctx.Done():
		return nil, false, errors.Wrap(errors.CodeDependency, ctx.Err(), "storage unavailable")
	case <-timer.C:
		client, err := p.factory(ctx)
		if err != nil {
			return nil, false, errors.Wrap(errors.CodeDependency, err, "storage unavailable")
		}
		return client, false, nil
	}
}

// Release returns a pooled client to the pool and closes ephemeral
// ones. If the pool is full or already closed the client is closed
// instead of blocking the caller.
func (p *Pool) Release(client *db.Client, pooled bool) {
	if client == nil {
		return
	}

	if !pooled {
		_ = client.Close()
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		_ = client.Close()
		return
	}

	select {
	case p.clients <- client:
	default:
		_ = client.Close()
	}
}

// Close drains and closes every pooled client. Clients checked out at
// the time of the call are closed by their Release.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case client := <-p.clients:
			_ = client.Close()
		default:
			return
		}
	}
}
