// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package dispatch contains the instance manager: the component that tracks
// one coverage region per configured kraken backend, decides which backend
// serves a given request, and relays request/reply envelopes.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/jormun/internal/cache"
	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/kraken"
	"github.com/sapcc/jormun/internal/models"
)

var instancesLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "jormun_instances_loaded",
	Help: "Number of instances currently registered in the instance manager.",
})

func init() {
	prometheus.MustRegister(instancesLoadedGauge)
}

// Manager owns the name→Instance map. It is constructed explicitly in func
// main() and handed to the API layer; there is no process-wide singleton.
// The map is mutated only by the refresh loop; dispatch calls read a
// consistent snapshot per call.
type Manager struct {
	db    *jormun.DB
	store cache.Store // nil if caching is disabled
	cfg   jormun.Configuration

	// non-pure functions that can be replaced by deterministic doubles for unit tests
	dial          kraken.Dialer
	loadInstances func(ctx context.Context) ([]models.Instance, error)

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewManager creates a Manager. It starts empty; call RefreshOnce (or start
// RunRefresh) to populate it.
func NewManager(db *jormun.DB, store cache.Store, cfg jormun.Configuration) *Manager {
	m := &Manager{
		db:        db,
		store:     store,
		cfg:       cfg,
		dial:      kraken.ZMQDialer,
		instances: make(map[string]*Instance),
	}
	m.loadInstances = func(ctx context.Context) ([]models.Instance, error) {
		return jormun.AllActiveInstances(&db.DbMap)
	}
	return m
}

// OverrideDialer replaces the ZMQ dialer with a test double.
func (m *Manager) OverrideDialer(dial kraken.Dialer) *Manager {
	m.dial = dial
	return m
}

// OverrideInstanceLoader replaces the DB query for instance rows with a test
// double.
func (m *Manager) OverrideInstanceLoader(load func(ctx context.Context) ([]models.Instance, error)) *Manager {
	m.loadInstances = load
	return m
}

// RefreshOnce reconciles the in-memory instance map with the instances table:
// new rows are instantiated, removed rows are torn down, changed rows get a
// rebuilt Instance around the surviving socket pool, unchanged rows are left
// untouched.
func (m *Manager) RefreshOnce(ctx context.Context) error {
	rows, err := m.loadInstances(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.Name] = true
		existing, exists := m.instances[row.Name]
		if exists {
			if existing.Config == row {
				continue
			}
			// An Instance is immutable once published (readers hold its
			// pointer without a lock), so config changes swap in a rebuilt
			// Instance. The backend and its socket pool carry over unless
			// the endpoint moved.
			backend := existing.backend
			if existing.Config.QueueSocket != row.QueueSocket {
				backend.Close()
				backend = kraken.NewBackend(row.Name, row.QueueSocket, m.cfg.MaxSocketsPerInstance, m.cfg.SocketTTL, m.dial)
			}
			replacement := newInstance(row, backend, m.store, m.cfg.StatusCacheTTL, m.cfg.RequestTimeout)
			replacement.state = existing.State()
			m.instances[row.Name] = replacement
			logg.Info("instance %q reconfigured", row.Name)
			continue
		}
		backend := kraken.NewBackend(row.Name, row.QueueSocket, m.cfg.MaxSocketsPerInstance, m.cfg.SocketTTL, m.dial)
		m.instances[row.Name] = newInstance(row, backend, m.store, m.cfg.StatusCacheTTL, m.cfg.RequestTimeout)
		logg.Info("instance %q registered (endpoint %s)", row.Name, row.QueueSocket)
	}

	for name, inst := range m.instances {
		if !seen[name] {
			inst.Close()
			delete(m.instances, name)
			logg.Info("instance %q discarded", name)
		}
	}

	instancesLoadedGauge.Set(float64(len(m.instances)))
	return nil
}

// RunRefresh runs the periodic refresh until ctx expires. Errors are logged
// and retried on the next tick; a broken DB must not take down request
// serving for the instances already loaded.
func (m *Manager) RunRefresh(ctx context.Context) {
	err := m.RefreshOnce(ctx)
	if err != nil {
		logg.Error("initial instance refresh failed: %s", err.Error())
	}

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.RefreshOnce(ctx)
			if err != nil {
				logg.Error("instance refresh failed: %s", err.Error())
			}
		}
	}
}

// Regions returns a snapshot of all registered instances in name order.
func (m *Manager) Regions() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Config.Name < result[j].Config.Name
	})
	return result
}

// Find returns the instance with the given region name, or nil.
func (m *Manager) Find(region string) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[region]
}

// Resolve selects the instance for a request. An explicit region name wins;
// otherwise the coordinate is matched against the boundary shapes. When
// several regions contain the coordinate, the winner is picked by priority
// (descending), then paid regions over free ones; any further tie keeps name
// order (Regions() returns a stably name-ordered base list).
func (m *Manager) Resolve(region string, lon, lat *float64) (*Instance, *jormun.APIError) {
	if region != "" {
		inst := m.Find(region)
		if inst == nil {
			return nil, jormun.RegionNotFound(region)
		}
		return inst, nil
	}

	if lon == nil || lat == nil {
		return nil, jormun.RegionNotFound("")
	}

	var candidates []*Instance
	for _, inst := range m.Regions() {
		if inst.Contains(*lon, *lat) {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		return nil, jormun.ErrUnknownObject.With("No region available for the coordinates: %f, %f", *lon, *lat)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		lhs, rhs := candidates[i].Config, candidates[j].Config
		if lhs.Priority != rhs.Priority {
			return lhs.Priority > rhs.Priority
		}
		// paid instances are preferred over open-data ones
		return !lhs.IsFree && rhs.IsFree
	})
	return candidates[0], nil
}

// RegionForObject resolves an object id to the instance claiming its id
// namespace.
func (m *Manager) RegionForObject(objectID string) (*Instance, *jormun.APIError) {
	for _, inst := range m.Regions() {
		if inst.ClaimsObject(objectID) {
			return inst, nil
		}
	}
	return nil, jormun.ErrUnknownObject.With("Invalid id : %s", objectID)
}

// Dispatch builds the request for the named API, resolves the region and
// performs the round-trip. The raw response envelope is returned; rendering
// happens in the HTTP layer.
func (m *Manager) Dispatch(ctx context.Context, args Args, region, api string) (*kraken.Response, error) {
	req, apiErr := BuildRequest(api, args)
	if apiErr != nil {
		return nil, apiErr
	}
	inst, apiErr := m.Resolve(region, args.Lon, args.Lat)
	if apiErr != nil {
		return nil, apiErr
	}
	return inst.SendAndReceive(ctx, req)
}

// Close tears down all instances. Only called at process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, inst := range m.instances {
		inst.Close()
		delete(m.instances, name)
	}
	instancesLoadedGauge.Set(0)
}
