// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/jormun/internal/cache"
	"github.com/sapcc/jormun/internal/kraken"
	"github.com/sapcc/jormun/internal/models"
)

// InstanceState describes the liveness of an instance as observed by the
// manager. A Dead instance stays registered and is retried on the next
// dispatch; only removal from the database discards it.
type InstanceState int

// Possible values for InstanceState.
const (
	StateUnknown InstanceState = iota
	StateLoaded
	StateDead
)

// String returns the state name as shown in the coverage API.
func (s InstanceState) String() string {
	switch s {
	case StateLoaded:
		return "running"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Instance is the in-memory representation of one coverage region: its
// configuration row, its backend client and its observed liveness. Config
// and shape are immutable after construction; the refresh loop publishes a
// replacement Instance when the row changes.
type Instance struct {
	Config  models.Instance
	backend *kraken.Backend
	shape   orb.Geometry // nil if the region has no boundary shape

	store          cache.Store // nil if caching is disabled
	statusCacheTTL time.Duration
	requestTimeout time.Duration

	mu    sync.Mutex
	state InstanceState
}

func newInstance(row models.Instance, backend *kraken.Backend, store cache.Store, statusCacheTTL, requestTimeout time.Duration) *Instance {
	inst := &Instance{
		Config:         row,
		backend:        backend,
		store:          store,
		statusCacheTTL: statusCacheTTL,
		requestTimeout: requestTimeout,
	}
	if row.BoundaryShape != "" {
		geom, err := geojson.UnmarshalGeometry([]byte(row.BoundaryShape))
		if err != nil {
			logg.Error("instance %q has a malformed boundary shape, coordinate resolution will skip it: %s", row.Name, err.Error())
		} else {
			inst.shape = geom.Geometry()
		}
	}
	return inst
}

// State returns the current liveness state.
func (i *Instance) State() InstanceState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) setState(state InstanceState) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = state
}

// SendAndReceive performs one round-trip against this instance's backend and
// tracks liveness: a timeout marks the instance Dead, any success marks it
// Loaded again.
func (i *Instance) SendAndReceive(ctx context.Context, req *kraken.Request) (*kraken.Response, error) {
	resp, err := i.backend.Do(ctx, req, i.requestTimeout)
	var deadErr kraken.DeadSocketError
	switch {
	case err == nil:
		i.setState(StateLoaded)
	case errors.As(err, &deadErr):
		i.setState(StateDead)
	}
	return resp, err
}

// Status returns the backend's status, served from the cache when possible.
// Cache errors degrade to a direct backend call.
func (i *Instance) Status(ctx context.Context) (*kraken.Status, error) {
	cacheKey := "status:" + i.Config.Name
	if i.store != nil {
		buf, ok, err := i.store.Get(ctx, cacheKey)
		if err == nil && ok {
			var status kraken.Status
			if json.Unmarshal([]byte(buf), &status) == nil {
				return &status, nil
			}
		}
	}

	resp, err := i.SendAndReceive(ctx, &kraken.Request{RequestedAPI: kraken.APIStatus})
	if err != nil {
		return nil, err
	}
	status := resp.Status
	if status == nil {
		status = &kraken.Status{}
	}

	if i.store != nil {
		buf, _ := json.Marshal(status)
		err := i.store.Set(ctx, cacheKey, string(buf), i.statusCacheTTL)
		if err != nil {
			logg.Debug("cannot cache status of instance %q: %s", i.Config.Name, err.Error())
		}
	}
	return status, nil
}

// Contains checks whether the given coordinate lies within this region's
// boundary shape. Regions without a (valid) shape contain nothing.
func (i *Instance) Contains(lon, lat float64) bool {
	point := orb.Point{lon, lat}
	switch shape := i.shape.(type) {
	case orb.Polygon:
		return planar.PolygonContains(shape, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(shape, point)
	default:
		return false
	}
}

// ClaimsObject checks whether an object id belongs to this region's id
// namespace. Ids look like "stop_area:OIF:SA:8727100"; the region claims them
// by its name or any of its configured prefixes.
func (i *Instance) ClaimsObject(objectID string) bool {
	for _, prefix := range i.Config.ObjectPrefixes() {
		if strings.HasPrefix(objectID, prefix+":") || strings.Contains(objectID, ":"+prefix+":") {
			return true
		}
	}
	return false
}

// Close tears down the backend connection pool. Called when the instance is
// discarded.
func (i *Instance) Close() {
	i.backend.Close()
}
