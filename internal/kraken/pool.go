// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kraken

import (
	"context"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
)

// Conn is one REQ connection to a backend. zmq4.Socket satisfies this
// interface; tests substitute fakes.
type Conn interface {
	Send(msg zmq4.Msg) error
	Recv() (zmq4.Msg, error)
	Close() error
}

// Dialer opens a new REQ connection to the given endpoint.
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

// ZMQDialer is the production Dialer.
func ZMQDialer(ctx context.Context, endpoint string) (Conn, error) {
	socket := zmq4.NewReq(ctx)
	err := socket.Dial(endpoint)
	if err != nil {
		return nil, err
	}
	return socket, nil
}

type pooledConn struct {
	conn Conn
	// bornAt is the dial time. The TTL counts from here, not from the last
	// use, so that a connection in steady use is recycled too.
	bornAt time.Time
}

// Pool is a bounded pool of REQ connections to one backend. Connections are
// created lazily up to maxConns, and recycled once they exceed ttl. A REQ
// socket must never be shared between concurrent callers, so each in-flight
// call checks out its own connection; callers beyond the bound wait until a
// slot frees up or their context expires.
type Pool struct {
	endpoint string
	dial     Dialer
	ttl      time.Duration
	now      func() time.Time

	// slots is a semaphore bounding the number of checked-out plus idle conns.
	slots chan struct{}
	mu    sync.Mutex
	idle  []pooledConn
}

// NewPool creates a Pool. maxConns must be at least 1.
func NewPool(endpoint string, maxConns int, ttl time.Duration, dial Dialer) *Pool {
	return &Pool{
		endpoint: endpoint,
		dial:     dial,
		ttl:      ttl,
		now:      time.Now,
		slots:    make(chan struct{}, maxConns),
	}
}

// WithConn runs fn with a connection checked out of the pool. Exactly one
// request/reply round-trip may be performed inside fn. If fn returns an
// error, the connection is closed and discarded instead of being returned to
// the pool: after a failed round-trip the REQ lockstep state is unknown.
func (p *Pool) WithConn(ctx context.Context, fn func(Conn) error) error {
	select {
	case p.slots <- struct{}{}:
		// acquired a slot
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	pc, err := p.checkout(ctx)
	if err != nil {
		return err
	}

	err = fn(pc.conn)
	if err != nil {
		pc.conn.Close()
		return err
	}

	p.mu.Lock()
	p.idle = append(p.idle, pc)
	p.mu.Unlock()
	return nil
}

// checkout returns an idle connection, or dials a new one. Idle connections
// whose age since dialing exceeds the TTL are closed and replaced.
func (p *Pool) checkout(ctx context.Context) (pooledConn, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if p.now().Sub(pc.bornAt) < p.ttl {
			p.mu.Unlock()
			return pc, nil
		}
		pc.conn.Close()
	}
	p.mu.Unlock()

	conn, err := p.dial(ctx, p.endpoint)
	if err != nil {
		return pooledConn{}, err
	}
	return pooledConn{conn: conn, bornAt: p.now()}, nil
}

// Close closes all idle connections. Checked-out connections are closed by
// their callers' error paths; a pool is only closed after its instance has
// been discarded, at which point no new checkouts occur.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pc := range p.idle {
		pc.conn.Close()
	}
	p.idle = nil
}

// OverrideTimeNow replaces time.Now with a test double.
func (p *Pool) OverrideTimeNow(now func() time.Time) *Pool {
	p.now = now
	return p
}
