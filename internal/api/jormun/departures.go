// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sapcc/jormun/internal/api"
	"github.com/sapcc/jormun/internal/jormun"
)

// handleStopTimes serves both the departures and the arrivals route; the two
// only differ in the direction flag sent to the backend.
func (a *API) handleStopTimes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	region := vars["region"]
	apiName, krakenAPI := "departures", "next_departures"
	if strings.HasSuffix(r.URL.Path, "/arrivals") {
		apiName, krakenAPI = "arrivals", "next_arrivals"
	}

	inst := a.mgr.Find(region)
	if inst == nil {
		jormun.RegionNotFound(region).WriteAsJSONTo(w)
		return
	}

	args, apiErr := parseStopTimesArgs(r, vars["id"])
	if apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, inst, apiName) {
		return
	}

	resp, err := a.mgr.Dispatch(r.Context(), args, inst.Config.Name, krakenAPI)
	if err != nil {
		api.RenderError(w, err)
		return
	}
	renderResponse(w, r, resp, passagesToDict(resp, apiName))
}
