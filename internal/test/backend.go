// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package test contains doubles for unit tests: a scripted kraken backend, a
// deterministic clock and an audit event recorder.
package test

import (
	"context"
	"errors"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/sapcc/jormun/internal/kraken"
)

// Backend is a scripted kraken double. It answers every request from its
// canned response fields, so tests can exercise the full dispatch path
// without a ZMQ transport.
type Backend struct {
	mu       sync.Mutex
	Status   kraken.Status
	Journeys []kraken.Journey
	Places   []kraken.Place
	Passages []kraken.Passage
	// Err, if set, is reported in the response envelope.
	Err *kraken.ResponseError
	// Hang makes every Recv block until the connection is closed, which is
	// how a dead kraken looks from the outside.
	Hang bool
	// Garbage makes every Recv return bytes that do not parse.
	Garbage bool

	dialCount int
	recvCount int
}

// Dialer returns a kraken.Dialer that connects to this double.
func (b *Backend) Dialer() kraken.Dialer {
	return func(ctx context.Context, endpoint string) (kraken.Conn, error) {
		b.mu.Lock()
		b.dialCount++
		b.mu.Unlock()
		return &backendConn{backend: b, closed: make(chan struct{})}, nil
	}
}

// DialCount returns how many connections have been dialed so far.
func (b *Backend) DialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dialCount
}

// RecvCount returns how many replies have been served so far.
func (b *Backend) RecvCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recvCount
}

// SetHang flips the Hang flag. Safe to call while requests are in flight.
func (b *Backend) SetHang(hang bool) {
	b.mu.Lock()
	b.Hang = hang
	b.mu.Unlock()
}

func (b *Backend) buildResponse(req *kraken.Request) *kraken.Response {
	b.mu.Lock()
	defer b.mu.Unlock()
	resp := kraken.Response{Error: b.Err}
	switch req.RequestedAPI {
	case kraken.APIStatus:
		status := b.Status
		resp.Status = &status
	case kraken.APIJourneys:
		resp.Journeys = b.Journeys
	case kraken.APIPlaces, kraken.APIPlacesNearby:
		resp.Places = b.Places
	case kraken.APINextDepartures, kraken.APINextArrivals:
		resp.Passages = b.Passages
	}
	return &resp
}

type backendConn struct {
	backend *Backend

	mu        sync.Mutex
	lastSent  []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Send implements the kraken.Conn interface.
func (c *backendConn) Send(msg zmq4.Msg) error {
	select {
	case <-c.closed:
		return errors.New("send on closed connection")
	default:
	}
	c.mu.Lock()
	c.lastSent = msg.Bytes()
	c.mu.Unlock()
	return nil
}

// Recv implements the kraken.Conn interface.
func (c *backendConn) Recv() (zmq4.Msg, error) {
	c.backend.mu.Lock()
	hang, garbage := c.backend.Hang, c.backend.Garbage
	c.backend.mu.Unlock()

	if hang {
		<-c.closed
		return zmq4.Msg{}, errors.New("recv on closed connection")
	}
	if garbage {
		return zmq4.NewMsg([]byte("\xff\xff\xff")), nil
	}

	c.mu.Lock()
	lastSent := c.lastSent
	c.mu.Unlock()
	req, err := kraken.UnmarshalRequest(lastSent)
	if err != nil {
		return zmq4.Msg{}, err
	}

	c.backend.mu.Lock()
	c.backend.recvCount++
	c.backend.mu.Unlock()
	return zmq4.NewMsg(c.backend.buildResponse(req).Marshal()), nil
}

// Close implements the kraken.Conn interface.
func (c *backendConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
