// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sapcc/jormun/internal/api"
)

func (a *API) handleJourneys(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"] // empty on the regionless route

	args, apiErr := parseJourneysArgs(r)
	if apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}

	inst, apiErr := a.mgr.Resolve(region, args.Lon, args.Lat)
	if apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	if !a.authorize(w, r, inst, "journeys") {
		return
	}

	resp, err := a.mgr.Dispatch(r.Context(), args, inst.Config.Name, "journeys")
	if err != nil {
		api.RenderError(w, err)
		return
	}

	data := journeysToDict(resp)
	data["context"] = map[string]any{"region": inst.Config.Name, "timezone": inst.Config.Timezone}
	renderResponse(w, r, resp, data)
}
