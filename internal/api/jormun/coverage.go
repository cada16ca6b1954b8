// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sapcc/jormun/internal/api"
	"github.com/sapcc/jormun/internal/dispatch"
	"github.com/sapcc/jormun/internal/jormun"
)

func regionToDict(inst *dispatch.Instance) map[string]any {
	return map[string]any{
		"id":       inst.Config.Name,
		"status":   inst.State().String(),
		"is_free":  inst.Config.IsFree,
		"scenario": inst.Config.Scenario,
		"timezone": inst.Config.Timezone,
		"priority": inst.Config.Priority,
	}
}

func (a *API) handleListCoverage(w http.ResponseWriter, r *http.Request) {
	// listing regions carries no instance context, so the auth guard only
	// applies the public-deployment and rate-limit rules
	if !a.authorize(w, r, nil, "coverage") {
		return
	}

	regions := make([]any, 0)
	for _, inst := range a.mgr.Regions() {
		regions = append(regions, regionToDict(inst))
	}
	api.Render(w, r, http.StatusOK, map[string]any{"regions": regions})
}

func (a *API) handleGetCoverage(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]
	inst := a.mgr.Find(region)
	if inst == nil {
		jormun.RegionNotFound(region).WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, inst, "coverage") {
		return
	}

	data := regionToDict(inst)
	// enrich with dataset info when the backend is reachable; a dead backend
	// must not break the coverage page
	status, err := inst.Status(r.Context())
	if err == nil {
		data["start_production_date"] = status.StartProductionDate
		data["end_production_date"] = status.EndProductionDate
		data["publication_date"] = status.PublicationDate
	}
	api.Render(w, r, http.StatusOK, map[string]any{"regions": []any{data}})
}

func (a *API) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]
	inst := a.mgr.Find(region)
	if inst == nil {
		jormun.RegionNotFound(region).WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, inst, "status") {
		return
	}

	status, err := inst.Status(r.Context())
	if err != nil {
		api.RenderError(w, err)
		return
	}
	api.Render(w, r, http.StatusOK, statusToDict(status))
}

func (a *API) handleCoord(w http.ResponseWriter, r *http.Request) {
	lon, lat, ok := parseCoord(mux.Vars(r)["coord"])
	if !ok {
		jormun.ErrInvalidArgument.With("coordinates must be given as lon;lat").WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, nil, "coord") {
		return
	}

	inst, apiErr := a.mgr.Resolve("", &lon, &lat)
	if apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	api.Render(w, r, http.StatusOK, map[string]any{
		"regions": []any{inst.Config.Name},
		"coord":   map[string]any{"lon": lon, "lat": lat},
	})
}
