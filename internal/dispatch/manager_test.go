// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sapcc/jormun/internal/cache"
	"github.com/sapcc/jormun/internal/dispatch"
	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/kraken"
	"github.com/sapcc/jormun/internal/models"
	"github.com/sapcc/jormun/internal/test"
)

const (
	westShape = `{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]}`
	eastShape = `{"type":"Polygon","coordinates":[[[3,0],[8,0],[8,4],[3,4],[3,0]]]}`
)

func testConfig() jormun.Configuration {
	return jormun.Configuration{
		RefreshInterval:       time.Minute,
		RequestTimeout:        50 * time.Millisecond,
		MaxSocketsPerInstance: 2,
		SocketTTL:             time.Minute,
		StatusCacheTTL:        time.Minute,
	}
}

func setupManager(t *testing.T, store cache.Store, be *test.Backend, rows ...models.Instance) *dispatch.Manager {
	t.Helper()
	mgr := dispatch.NewManager(nil, store, testConfig()).
		OverrideDialer(be.Dialer()).
		OverrideInstanceLoader(func(ctx context.Context) ([]models.Instance, error) {
			return rows, nil
		})
	t.Cleanup(mgr.Close)
	if err := mgr.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	return mgr
}

func TestRefreshAddsAndRemovesInstances(t *testing.T) {
	be := &test.Backend{}
	rows := []models.Instance{
		{Name: "fr-idf", QueueSocket: "tcp://10.0.0.1:30000"},
		{Name: "fr-ne", QueueSocket: "tcp://10.0.0.2:30000"},
	}
	mgr := dispatch.NewManager(nil, nil, testConfig()).
		OverrideDialer(be.Dialer()).
		OverrideInstanceLoader(func(ctx context.Context) ([]models.Instance, error) {
			return rows, nil
		})
	defer mgr.Close()

	if err := mgr.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if names := regionNames(mgr); len(names) != 2 || names[0] != "fr-idf" || names[1] != "fr-ne" {
		t.Fatalf("unexpected regions after first refresh: %v", names)
	}

	// a row disappearing from the table discards its instance
	rows = rows[:1]
	if err := mgr.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if names := regionNames(mgr); len(names) != 1 || names[0] != "fr-idf" {
		t.Fatalf("unexpected regions after second refresh: %v", names)
	}
	if mgr.Find("fr-ne") != nil {
		t.Error("expected discarded instance to be gone")
	}
}

func TestRefreshAppliesConfigChanges(t *testing.T) {
	be := &test.Backend{Journeys: []kraken.Journey{{Duration: 1800}}}
	rows := []models.Instance{{Name: "fr-idf", QueueSocket: "tcp://a", Priority: 1}}
	mgr := dispatch.NewManager(nil, nil, testConfig()).
		OverrideDialer(be.Dialer()).
		OverrideInstanceLoader(func(ctx context.Context) ([]models.Instance, error) {
			return rows, nil
		})
	defer mgr.Close()
	if err := mgr.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	// warm up the socket pool
	if _, err := mgr.Dispatch(context.Background(), dispatch.Args{From: "A", To: "B"}, "fr-idf", "journeys"); err != nil {
		t.Fatal(err)
	}

	// an admin-side update becomes visible on the next refresh, including a
	// reparsed boundary shape
	rows = []models.Instance{{Name: "fr-idf", QueueSocket: "tcp://a", Priority: 7, BoundaryShape: westShape}}
	if err := mgr.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	inst := mgr.Find("fr-idf")
	if inst.Config.Priority != 7 {
		t.Errorf("expected priority 7 after refresh, got %d", inst.Config.Priority)
	}
	lon, lat := 1.0, 1.0
	resolved, apiErr := mgr.Resolve("", &lon, &lat)
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if resolved.Config.Name != "fr-idf" {
		t.Error("expected the new boundary shape to take effect")
	}

	// the socket pool survived the reconfiguration
	if _, err := mgr.Dispatch(context.Background(), dispatch.Args{From: "A", To: "B"}, "fr-idf", "journeys"); err != nil {
		t.Fatal(err)
	}
	if be.DialCount() != 1 {
		t.Errorf("expected the socket pool to survive a config change, got %d dials", be.DialCount())
	}
}

func TestRefreshDoesNotDisturbConcurrentReaders(t *testing.T) {
	be := &test.Backend{}
	rows := []models.Instance{{Name: "west", QueueSocket: "tcp://w", BoundaryShape: westShape}}
	mgr := dispatch.NewManager(nil, nil, testConfig()).
		OverrideDialer(be.Dialer()).
		OverrideInstanceLoader(func(ctx context.Context) ([]models.Instance, error) {
			return rows, nil
		})
	defer mgr.Close()
	if err := mgr.RefreshOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	// resolve in a tight loop while refreshes rewrite the instance config;
	// the race detector flags any unsynchronized access to shared state
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lon, lat := 1.0, 1.0
		for {
			select {
			case <-stop:
				return
			default:
			}
			inst, apiErr := mgr.Resolve("", &lon, &lat)
			if apiErr != nil {
				t.Errorf("unexpected resolve error: %s", apiErr.Error())
				return
			}
			if inst.Config.Name != "west" {
				t.Errorf("resolved wrong instance: %q", inst.Config.Name)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		rows = []models.Instance{{Name: "west", QueueSocket: "tcp://w", BoundaryShape: westShape, Priority: i}}
		if err := mgr.RefreshOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func regionNames(mgr *dispatch.Manager) []string {
	var names []string
	for _, inst := range mgr.Regions() {
		names = append(names, inst.Config.Name)
	}
	return names
}

func TestResolveExplicitRegion(t *testing.T) {
	be := &test.Backend{}
	mgr := setupManager(t, nil, be, models.Instance{Name: "fr-idf", QueueSocket: "tcp://10.0.0.1:30000"})

	inst, apiErr := mgr.Resolve("fr-idf", nil, nil)
	if apiErr != nil {
		t.Fatalf("unexpected error: %s", apiErr.Error())
	}
	if inst.Config.Name != "fr-idf" {
		t.Errorf("resolved wrong instance: %q", inst.Config.Name)
	}

	_, apiErr = mgr.Resolve("nowhere", nil, nil)
	if apiErr == nil || apiErr.ID != jormun.ErrUnknownObject {
		t.Fatalf("expected unknown_object, got %v", apiErr)
	}
	if apiErr.Message != "The region nowhere doesn't exists" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestResolveByCoordinate(t *testing.T) {
	be := &test.Backend{}
	mgr := setupManager(t, nil, be,
		models.Instance{Name: "east", QueueSocket: "tcp://e", BoundaryShape: eastShape},
		models.Instance{Name: "west", QueueSocket: "tcp://w", BoundaryShape: westShape},
	)

	lon, lat := 1.0, 1.0
	inst, apiErr := mgr.Resolve("", &lon, &lat)
	if apiErr != nil {
		t.Fatalf("unexpected error: %s", apiErr.Error())
	}
	if inst.Config.Name != "west" {
		t.Errorf("expected west to contain (1,1), got %q", inst.Config.Name)
	}

	lon, lat = 20.0, 20.0
	_, apiErr = mgr.Resolve("", &lon, &lat)
	if apiErr == nil || apiErr.ID != jormun.ErrUnknownObject {
		t.Errorf("expected unknown_object for uncovered coordinate, got %v", apiErr)
	}

	_, apiErr = mgr.Resolve("", nil, nil)
	if apiErr == nil || apiErr.Message != "no region nor coordinates given" {
		t.Errorf("expected error without region and coordinates, got %v", apiErr)
	}
}

func TestResolveOverlapPrefersPriorityThenPaid(t *testing.T) {
	be := &test.Backend{}

	// both shapes contain (3.5, 1); higher priority wins
	mgr := setupManager(t, nil, be,
		models.Instance{Name: "east", QueueSocket: "tcp://e", BoundaryShape: eastShape, Priority: 10},
		models.Instance{Name: "west", QueueSocket: "tcp://w", BoundaryShape: westShape, Priority: 0},
	)
	lon, lat := 3.5, 1.0
	inst, apiErr := mgr.Resolve("", &lon, &lat)
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if inst.Config.Name != "east" {
		t.Errorf("expected higher priority region, got %q", inst.Config.Name)
	}

	// equal priority: the paid region beats the open-data one
	mgr = setupManager(t, nil, be,
		models.Instance{Name: "east", QueueSocket: "tcp://e", BoundaryShape: eastShape, IsFree: true},
		models.Instance{Name: "west", QueueSocket: "tcp://w", BoundaryShape: westShape, IsFree: false},
	)
	inst, apiErr = mgr.Resolve("", &lon, &lat)
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if inst.Config.Name != "west" {
		t.Errorf("expected paid region to win the tie, got %q", inst.Config.Name)
	}

	// full tie: name order decides, deterministically
	mgr = setupManager(t, nil, be,
		models.Instance{Name: "east", QueueSocket: "tcp://e", BoundaryShape: eastShape},
		models.Instance{Name: "west", QueueSocket: "tcp://w", BoundaryShape: westShape},
	)
	inst, apiErr = mgr.Resolve("", &lon, &lat)
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if inst.Config.Name != "east" {
		t.Errorf("expected name order to break the tie, got %q", inst.Config.Name)
	}
}

func TestRegionForObject(t *testing.T) {
	be := &test.Backend{}
	mgr := setupManager(t, nil, be,
		models.Instance{Name: "fr-idf", QueueSocket: "tcp://a", ObjectPrefix: "OIF,RTP"},
		models.Instance{Name: "fr-ne", QueueSocket: "tcp://b"},
	)

	inst, apiErr := mgr.RegionForObject("stop_area:OIF:SA:8727100")
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if inst.Config.Name != "fr-idf" {
		t.Errorf("expected prefix OIF to resolve to fr-idf, got %q", inst.Config.Name)
	}

	inst, apiErr = mgr.RegionForObject("fr-ne:stop_area:123")
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if inst.Config.Name != "fr-ne" {
		t.Errorf("expected region name prefix to resolve to fr-ne, got %q", inst.Config.Name)
	}

	_, apiErr = mgr.RegionForObject("stop_area:XYZ:42")
	if apiErr == nil || apiErr.ID != jormun.ErrUnknownObject {
		t.Errorf("expected unknown_object for unclaimed id, got %v", apiErr)
	}
}

func TestDispatchTracksLiveness(t *testing.T) {
	be := &test.Backend{Journeys: []kraken.Journey{{Duration: 1800}}}
	mgr := setupManager(t, nil, be, models.Instance{Name: "fr-idf", QueueSocket: "tcp://a"})
	inst := mgr.Find("fr-idf")

	resp, err := mgr.Dispatch(context.Background(), dispatch.Args{From: "A", To: "B"}, "fr-idf", "journeys")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Journeys) != 1 {
		t.Fatalf("expected 1 journey, got %d", len(resp.Journeys))
	}
	if inst.State().String() != "running" {
		t.Errorf("expected state running, got %q", inst.State().String())
	}

	be.SetHang(true)
	_, err = mgr.Dispatch(context.Background(), dispatch.Args{From: "A", To: "B"}, "fr-idf", "journeys")
	var dse kraken.DeadSocketError
	if !errors.As(err, &dse) {
		t.Fatalf("expected DeadSocketError, got %v", err)
	}
	if inst.State().String() != "dead" {
		t.Errorf("expected state dead, got %q", inst.State().String())
	}

	// a dead instance stays registered and recovers on the next success
	be.SetHang(false)
	_, err = mgr.Dispatch(context.Background(), dispatch.Args{From: "A", To: "B"}, "fr-idf", "journeys")
	if err != nil {
		t.Fatal(err)
	}
	if inst.State().String() != "running" {
		t.Errorf("expected state running after recovery, got %q", inst.State().String())
	}
}

func TestDispatchUnknownAPI(t *testing.T) {
	be := &test.Backend{}
	mgr := setupManager(t, nil, be, models.Instance{Name: "fr-idf", QueueSocket: "tcp://a"})

	_, err := mgr.Dispatch(context.Background(), dispatch.Args{}, "fr-idf", "teleport")
	apiErr := jormun.AsAPIError(err)
	if apiErr == nil || apiErr.ID != jormun.ErrUnknownAPI {
		t.Fatalf("expected unknown_api, got %v", err)
	}
	if apiErr.Message != "The api teleport doesn't exist" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestStatusIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStore(rc, "jormun")

	be := &test.Backend{Status: kraken.Status{Timezone: "Europe/Paris", PublicationDate: "20260801T000000"}}
	mgr := setupManager(t, store, be, models.Instance{Name: "fr-idf", QueueSocket: "tcp://a"})
	inst := mgr.Find("fr-idf")

	status, err := inst.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if status.Timezone != "Europe/Paris" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if be.RecvCount() != 1 {
		t.Fatalf("expected 1 backend call, got %d", be.RecvCount())
	}

	// the second call is served from the cache
	status, err = inst.Status(context.Background())
	if err != nil || status.Timezone != "Europe/Paris" {
		t.Fatalf("unexpected cached status: %+v (%v)", status, err)
	}
	if be.RecvCount() != 1 {
		t.Errorf("expected cached status, but backend was called %d times", be.RecvCount())
	}

	// once the cache entry expires, the backend is asked again
	mr.FastForward(2 * time.Minute)
	_, err = inst.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if be.RecvCount() != 2 {
		t.Errorf("expected a fresh backend call after expiry, got %d", be.RecvCount())
	}
}
