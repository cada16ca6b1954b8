// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package kraken_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sapcc/jormun/internal/kraken"
	"github.com/sapcc/jormun/internal/test"
)

func TestBackendRoundTrip(t *testing.T) {
	be := &test.Backend{
		Journeys: []kraken.Journey{{
			DepartureDateTime: 1700000000,
			ArrivalDateTime:   1700003600,
			Duration:          3600,
			Sections: []kraken.Section{
				{Type: "public_transport", From: "A", To: "B", Mode: "metro", Line: "M1", Duration: 3600},
			},
		}},
	}
	backend := kraken.NewBackend("fr-idf", "inproc://fr-idf", 4, time.Minute, be.Dialer())
	defer backend.Close()

	req := &kraken.Request{
		RequestedAPI: kraken.APIJourneys,
		Journeys:     &kraken.JourneysRequest{From: "A", To: "B", Datetime: 1700000000, Clockwise: true},
	}
	resp, err := backend.Do(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if len(resp.Journeys) != 1 {
		t.Fatalf("expected 1 journey, got %d", len(resp.Journeys))
	}
	j := resp.Journeys[0]
	if j.Duration != 3600 || len(j.Sections) != 1 || j.Sections[0].Line != "M1" {
		t.Errorf("journey did not survive the round-trip: %+v", j)
	}

	// a second request must reuse the pooled connection
	_, err = backend.Do(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if be.DialCount() != 1 {
		t.Errorf("expected 1 dial, got %d", be.DialCount())
	}
}

func TestBackendTimeoutDiscardsConnection(t *testing.T) {
	be := &test.Backend{Hang: true}
	backend := kraken.NewBackend("fr-idf", "inproc://fr-idf", 4, time.Minute, be.Dialer())
	defer backend.Close()

	req := &kraken.Request{RequestedAPI: kraken.APIStatus}
	_, err := backend.Do(context.Background(), req, 10*time.Millisecond)
	var dse kraken.DeadSocketError
	if !errors.As(err, &dse) {
		t.Fatalf("expected DeadSocketError, got %v", err)
	}
	if dse.Instance != "fr-idf" {
		t.Errorf("expected instance name in error, got %q", dse.Instance)
	}

	// after the timeout, the connection must not be reused: the next request
	// gets a fresh one and succeeds once the backend answers again
	be.SetHang(false)
	_, err = backend.Do(context.Background(), req, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	if be.DialCount() != 2 {
		t.Errorf("expected 2 dials, got %d", be.DialCount())
	}
}

func TestBackendDecodeError(t *testing.T) {
	be := &test.Backend{Garbage: true}
	backend := kraken.NewBackend("fr-idf", "inproc://fr-idf", 4, time.Minute, be.Dialer())
	defer backend.Close()

	_, err := backend.Do(context.Background(), &kraken.Request{RequestedAPI: kraken.APIStatus}, time.Second)
	var de kraken.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestPoolBoundsConcurrentCheckouts(t *testing.T) {
	be := &test.Backend{}
	pool := kraken.NewPool("inproc://x", 1, time.Minute, be.Dialer())
	defer pool.Close()

	// hold the only slot, then verify that a second checkout blocks until its
	// context expires
	release := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		_ = pool.WithConn(context.Background(), func(kraken.Conn) error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.WithConn(ctx, func(kraken.Conn) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded while pool is exhausted, got %v", err)
	}
	close(release)
}

func TestPoolRecyclesExpiredConnections(t *testing.T) {
	be := &test.Backend{}
	clock := &test.Clock{}
	pool := kraken.NewPool("inproc://x", 4, 10*time.Minute, be.Dialer()).OverrideTimeNow(clock.Now)
	defer pool.Close()

	noop := func(kraken.Conn) error { return nil }
	if err := pool.WithConn(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
	if err := pool.WithConn(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
	if be.DialCount() != 1 {
		t.Fatalf("expected connection reuse, got %d dials", be.DialCount())
	}

	clock.StepBy(11 * time.Minute)
	if err := pool.WithConn(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
	if be.DialCount() != 2 {
		t.Errorf("expected expired connection to be replaced, got %d dials", be.DialCount())
	}
}

func TestPoolRecyclesBusyConnections(t *testing.T) {
	be := &test.Backend{}
	clock := &test.Clock{}
	pool := kraken.NewPool("inproc://x", 4, 10*time.Minute, be.Dialer()).OverrideTimeNow(clock.Now)
	defer pool.Close()

	// a connection in steady use never sits idle for long, but it must still
	// be replaced once its age since dialing exceeds the TTL
	noop := func(kraken.Conn) error { return nil }
	for i := 0; i < 4; i++ {
		if err := pool.WithConn(context.Background(), noop); err != nil {
			t.Fatal(err)
		}
		clock.StepBy(4 * time.Minute)
	}
	if be.DialCount() != 2 {
		t.Errorf("expected the busy connection to be replaced after its TTL, got %d dials", be.DialCount())
	}
}
