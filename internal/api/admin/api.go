// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package adminapi provides the management API that Tyr-style tooling uses to
// maintain users, keys, authorizations and instances. It is token-guarded and
// intended for internal deployment only.
package adminapi

import (
	"crypto/subtle"
	"net/http"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-api-declarations/cadf"

	"github.com/sapcc/jormun/internal/jormun"
)

// API contains state variables used by the admin API implementation.
type API struct {
	cfg     jormun.Configuration
	db      gorp.SqlExecutor
	auditor jormun.Auditor
}

// NewAPI constructs a new API instance.
func NewAPI(cfg jormun.Configuration, db gorp.SqlExecutor, auditor jormun.Auditor) *API {
	return &API{cfg, db, auditor}
}

// AddTo implements the httpapi.API interface.
func (a *API) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/admin/v0/users").HandlerFunc(a.handleListUsers)
	r.Methods("POST").Path("/admin/v0/users").HandlerFunc(a.handleCreateUser)
	r.Methods("GET").Path("/admin/v0/users/{id}").HandlerFunc(a.handleGetUser)
	r.Methods("PUT").Path("/admin/v0/users/{id}").HandlerFunc(a.handleUpdateUser)
	r.Methods("DELETE").Path("/admin/v0/users/{id}").HandlerFunc(a.handleDeleteUser)
	r.Methods("POST").Path("/admin/v0/users/{id}/keys").HandlerFunc(a.handleCreateKey)
	r.Methods("DELETE").Path("/admin/v0/users/{id}/keys/{key_id}").HandlerFunc(a.handleDeleteKey)
	r.Methods("PUT").Path("/admin/v0/users/{id}/authorizations/{instance}/{api}").HandlerFunc(a.handleGrantAuthorization)
	r.Methods("DELETE").Path("/admin/v0/users/{id}/authorizations/{instance}/{api}").HandlerFunc(a.handleRevokeAuthorization)
	r.Methods("GET").Path("/admin/v0/instances").HandlerFunc(a.handleListInstances)
	r.Methods("PUT").Path("/admin/v0/instances/{name}").HandlerFunc(a.handlePutInstance)
	r.Methods("DELETE").Path("/admin/v0/instances/{name}").HandlerFunc(a.handleDeleteInstance)
}

// requireAdmin checks the admin token on this request. Errors have been
// written to w when false is returned.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("X-Admin-Token")
	if a.cfg.AdminToken == "" {
		jormun.ErrForbidden.With("admin API is disabled").WriteAsJSONTo(w)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.AdminToken)) != 1 {
		jormun.ErrUnauthorized.With("invalid admin token").WriteAsJSONTo(w)
		return false
	}
	return true
}

func (a *API) audit(r *http.Request, reasonCode int, action cadf.Action, target cadf.Resource) {
	if a.auditor == nil {
		return
	}
	a.auditor.Record(jormun.AuditEventParams{
		Request:    r,
		UserLogin:  "admin",
		ReasonCode: reasonCode,
		Action:     action,
		Target:     target,
	}.BuildAuditEvent())
}

func userResource(id string) cadf.Resource {
	return cadf.Resource{TypeURI: "service/navitia/user", ID: id}
}

func instanceResource(name string) cadf.Resource {
	return cadf.Resource{TypeURI: "service/navitia/instance", ID: name}
}
