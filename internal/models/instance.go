// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package models

import (
	"strings"
	"time"
)

// Instance contains a record from the `instances` table. Each row describes
// one coverage region served by one kraken backend.
type Instance struct {
	Name string `db:"name"`
	// QueueSocket is the ZMQ endpoint of the backend, e.g. "tcp://10.0.0.1:30000"
	// or "ipc:///tmp/default_kraken".
	QueueSocket string `db:"queue_socket"`
	// IsFree marks open-data regions that can be queried without an API token.
	IsFree bool `db:"is_free"`
	// Priority breaks ties when several regions' shapes contain a coordinate.
	Priority int    `db:"priority"`
	Timezone string `db:"timezone"`
	Scenario string `db:"scenario"`
	// BoundaryShape is a GeoJSON Polygon or MultiPolygon, or empty if the
	// region has no configured boundary.
	BoundaryShape string `db:"boundary_shape"`
	// ObjectPrefix is a comma-separated list of id namespaces claimed by this
	// region (e.g. "OIF,RTP"). Empty means only the region name itself.
	ObjectPrefix string `db:"object_prefix"`
	// Discarded rows are kept for audit purposes, but are ignored by the
	// instance manager and torn down on the next refresh.
	Discarded bool      `db:"discarded"`
	CreatedAt time.Time `db:"created_at"`
}

// ObjectPrefixes parses the ObjectPrefix field. The region name is always a
// valid prefix.
func (i Instance) ObjectPrefixes() []string {
	result := []string{i.Name}
	for _, p := range strings.Split(i.ObjectPrefix, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
