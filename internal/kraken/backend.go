// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kraken

import (
	"context"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus"
)

var backendRequestDurationSecs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "jormun_backend_request_duration_seconds",
		Help: "Duration of request/reply round-trips per backend and API.",
	},
	[]string{"instance", "api"},
)

func init() {
	prometheus.MustRegister(backendRequestDurationSecs)
}

// Backend is the client for one kraken. All methods are safe for concurrent
// use; concurrency is bounded by the connection pool.
type Backend struct {
	Name     string
	Endpoint string
	pool     *Pool
}

// NewBackend creates a Backend with its connection pool.
func NewBackend(name, endpoint string, maxConns int, socketTTL time.Duration, dial Dialer) *Backend {
	return &Backend{
		Name:     name,
		Endpoint: endpoint,
		pool:     NewPool(endpoint, maxConns, socketTTL, dial),
	}
}

// Do performs one request/reply round-trip. On timeout, the connection that
// carried the request is discarded and a DeadSocketError is returned. A reply
// that cannot be parsed yields a DecodeError.
func (b *Backend) Do(ctx context.Context, req *Request, timeout time.Duration) (*Response, error) {
	payload := req.Marshal()
	start := time.Now()

	var resp *Response
	err := b.pool.WithConn(ctx, func(conn Conn) error {
		err := conn.Send(zmq4.NewMsg(payload))
		if err != nil {
			return DeadSocketError{Instance: b.Name, Endpoint: b.Endpoint}
		}

		type recvResult struct {
			msg zmq4.Msg
			err error
		}
		received := make(chan recvResult, 1)
		go func() {
			msg, err := conn.Recv()
			received <- recvResult{msg, err}
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case result := <-received:
			if result.err != nil {
				return DeadSocketError{Instance: b.Name, Endpoint: b.Endpoint}
			}
			resp, err = UnmarshalResponse(result.msg.Bytes())
			if err != nil {
				return DecodeError{Instance: b.Name, Inner: err}
			}
			return nil
		case <-timer.C:
			// The reply may still arrive later, but this REQ socket can no
			// longer be used for another request. WithConn closes it, which
			// also unblocks the Recv goroutine.
			return DeadSocketError{Instance: b.Name, Endpoint: b.Endpoint}
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return nil, err
	}

	backendRequestDurationSecs.
		WithLabelValues(b.Name, req.RequestedAPI.String()).
		Observe(time.Since(start).Seconds())
	return resp, nil
}

// Status performs a STATUS round-trip.
func (b *Backend) Status(ctx context.Context, timeout time.Duration) (*Status, error) {
	resp, err := b.Do(ctx, &Request{RequestedAPI: APIStatus}, timeout)
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return &Status{}, nil
	}
	return resp.Status, nil
}

// Close tears down the connection pool.
func (b *Backend) Close() {
	b.pool.Close()
}

// OverrideTimeNow replaces time.Now in the connection pool with a test double.
func (b *Backend) OverrideTimeNow(now func() time.Time) *Backend {
	b.pool.OverrideTimeNow(now)
	return b
}
