// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package adminapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"
	"github.com/sapcc/go-api-declarations/cadf"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/models"
)

func instanceToJSON(i models.Instance) map[string]any {
	return map[string]any{
		"name":          i.Name,
		"queue_socket":  i.QueueSocket,
		"is_free":       i.IsFree,
		"priority":      i.Priority,
		"timezone":      i.Timezone,
		"scenario":      i.Scenario,
		"object_prefix": i.ObjectPrefix,
		"discarded":     i.Discarded,
		"created_at":    i.CreatedAt,
	}
}

func (a *API) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var instances []models.Instance
	_, err := a.db.Select(&instances, "SELECT * FROM instances ORDER BY name")
	if respondwith.ErrorText(w, err) {
		return
	}
	result := make([]any, 0, len(instances))
	for _, i := range instances {
		result = append(result, instanceToJSON(i))
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"instances": result})
}

type instanceRequest struct {
	QueueSocket   *string `json:"queue_socket"`
	IsFree        *bool   `json:"is_free"`
	Priority      *int    `json:"priority"`
	Timezone      *string `json:"timezone"`
	Scenario      *string `json:"scenario"`
	BoundaryShape *string `json:"boundary_shape"`
	ObjectPrefix  *string `json:"object_prefix"`
	Discarded     *bool   `json:"discarded"`
}

func (req instanceRequest) applyTo(instance *models.Instance) *jormun.APIError {
	if req.QueueSocket != nil {
		instance.QueueSocket = *req.QueueSocket
	}
	if req.IsFree != nil {
		instance.IsFree = *req.IsFree
	}
	if req.Priority != nil {
		instance.Priority = *req.Priority
	}
	if req.Timezone != nil {
		instance.Timezone = *req.Timezone
	}
	if req.Scenario != nil {
		instance.Scenario = *req.Scenario
	}
	if req.BoundaryShape != nil {
		if *req.BoundaryShape != "" {
			// reject broken shapes here instead of logging on every refresh
			_, err := geojson.UnmarshalGeometry([]byte(*req.BoundaryShape))
			if err != nil {
				return jormun.ErrInvalidArgument.With("boundary_shape is not valid GeoJSON: %s", err.Error())
			}
		}
		instance.BoundaryShape = *req.BoundaryShape
	}
	if req.ObjectPrefix != nil {
		instance.ObjectPrefix = *req.ObjectPrefix
	}
	if req.Discarded != nil {
		instance.Discarded = *req.Discarded
	}
	return nil
}

// handlePutInstance creates or updates the instance with the given name. The
// change becomes visible to request serving on the next instance refresh.
func (a *API) handlePutInstance(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	name := mux.Vars(r)["name"]

	var req instanceRequest
	if err := jormun.DecodeJSONRequest(r, &req); err != nil {
		err.WriteAsJSONTo(w)
		return
	}

	instance, err := jormun.FindInstance(a.db, name)
	if respondwith.ErrorText(w, err) {
		return
	}

	if instance == nil {
		if req.QueueSocket == nil || *req.QueueSocket == "" {
			jormun.ErrInvalidArgument.With("queue_socket is missing").WriteAsJSONTo(w)
			return
		}
		instance = &models.Instance{Name: name, Scenario: "default", CreatedAt: time.Now()}
		if apiErr := req.applyTo(instance); apiErr != nil {
			apiErr.WriteAsJSONTo(w)
			return
		}
		err = a.db.Insert(instance)
		if respondwith.ErrorText(w, err) {
			return
		}
		a.audit(r, http.StatusCreated, cadf.CreateAction, instanceResource(name))
		respondwith.JSON(w, http.StatusCreated, map[string]any{"instance": instanceToJSON(*instance)})
		return
	}

	if apiErr := req.applyTo(instance); apiErr != nil {
		apiErr.WriteAsJSONTo(w)
		return
	}
	_, err = a.db.Update(instance)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusOK, cadf.UpdateAction, instanceResource(name))
	respondwith.JSON(w, http.StatusOK, map[string]any{"instance": instanceToJSON(*instance)})
}

// handleDeleteInstance marks an instance as discarded. The row is kept so
// that authorizations and audit history stay intact.
func (a *API) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	name := mux.Vars(r)["name"]

	instance, err := jormun.FindInstance(a.db, name)
	if respondwith.ErrorText(w, err) {
		return
	}
	if instance == nil {
		jormun.RegionNotFound(name).WriteAsJSONTo(w)
		return
	}

	instance.Discarded = true
	_, err = a.db.Update(instance)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusNoContent, cadf.DeleteAction, instanceResource(name))
	w.WriteHeader(http.StatusNoContent)
}
