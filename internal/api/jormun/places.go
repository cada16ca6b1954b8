// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sapcc/jormun/internal/api"
	"github.com/sapcc/jormun/internal/jormun"
)

func (a *API) handlePlaces(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]
	inst := a.mgr.Find(region)
	if inst == nil {
		jormun.RegionNotFound(region).WriteAsJSONTo(w)
		return
	}

	args, apiErr := parsePlacesArgs(r)
	if apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, inst, "places") {
		return
	}

	resp, err := a.mgr.Dispatch(r.Context(), args, inst.Config.Name, "places")
	if err != nil {
		api.RenderError(w, err)
		return
	}
	renderResponse(w, r, resp, placesToDict(resp, "places"))
}

func (a *API) handlePlacesNearby(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]
	inst := a.mgr.Find(region)
	if inst == nil {
		jormun.RegionNotFound(region).WriteAsJSONTo(w)
		return
	}

	args, apiErr := parsePlacesNearbyArgs(r)
	if apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, inst, "places_nearby") {
		return
	}

	resp, err := a.mgr.Dispatch(r.Context(), args, inst.Config.Name, "places_nearby")
	if err != nil {
		api.RenderError(w, err)
		return
	}
	renderResponse(w, r, resp, placesToDict(resp, "places_nearby"))
}
