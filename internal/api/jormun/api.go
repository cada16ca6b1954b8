// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormunv1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/jormun/internal/auth"
	"github.com/sapcc/jormun/internal/dispatch"
	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/models"
)

// API contains state variables used by the v1 API implementation.
type API struct {
	mgr     *dispatch.Manager
	checker *auth.Checker
	rle     *jormun.RateLimitEngine // nil if rate limiting is disabled
}

// NewAPI constructs a new API instance.
func NewAPI(mgr *dispatch.Manager, checker *auth.Checker, rle *jormun.RateLimitEngine) *API {
	return &API{mgr, checker, rle}
}

// AddTo implements the httpapi.API interface.
func (a *API) AddTo(r *mux.Router) {
	r.Methods("GET").Path("/v1/coverage").HandlerFunc(a.handleListCoverage)
	r.Methods("GET").Path("/v1/coverage/{region}").HandlerFunc(a.handleGetCoverage)
	r.Methods("GET").Path("/v1/coverage/{region}/status").HandlerFunc(a.handleGetStatus)
	r.Methods("GET").Path("/v1/coverage/{region}/journeys").HandlerFunc(a.handleJourneys)
	r.Methods("GET").Path("/v1/journeys").HandlerFunc(a.handleJourneys)
	r.Methods("GET").Path("/v1/coverage/{region}/places").HandlerFunc(a.handlePlaces)
	r.Methods("GET").Path("/v1/coverage/{region}/places_nearby").HandlerFunc(a.handlePlacesNearby)
	r.Methods("GET").Path("/v1/coverage/{region}/stop_areas/{id}/departures").HandlerFunc(a.handleStopTimes)
	r.Methods("GET").Path("/v1/coverage/{region}/stop_areas/{id}/arrivals").HandlerFunc(a.handleStopTimes)
	r.Methods("GET").Path("/v1/coord/{coord}").HandlerFunc(a.handleCoord)
}

// authorize resolves the instance for this request (nil if no region context
// exists yet), runs the auth guard and the rate limit, and reports whether
// the handler may proceed. Errors have been written to w when false is
// returned.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, inst *dispatch.Instance, api string) bool {
	var instModel *models.Instance
	if inst != nil {
		instModel = &inst.Config
	}
	user, authErr := a.checker.CheckRequest(r, instModel, api)
	if authErr != nil {
		authErr.WriteAsJSONTo(w)
		return false
	}
	return a.checkRateLimit(w, r, user)
}

// checkRateLimit counts this request against the token's (or anonymous
// client's) rate limit. Rate limiting errors fail open: a broken Redis must
// not take down request serving.
func (a *API) checkRateLimit(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	if a.rle == nil {
		return true
	}
	// count per user where known, so that a user with several keys cannot
	// multiply their quota; anonymous requests are counted per client IP
	var key string
	switch {
	case user != nil:
		key = "user:" + strconv.FormatInt(user.ID, 10)
	case auth.TokenFromRequest(r) != "":
		key = "token:" + auth.TokenFromRequest(r)
	default:
		key = "ip:" + httpext.GetRequesterIPFor(r)
	}

	result, err := a.rle.RateLimitAllows(r.Context(), key)
	if err != nil {
		logg.Error("rate limit check failed, allowing request: %s", err.Error())
		return true
	}
	if result.Allowed <= 0 {
		retryAfter := strconv.Itoa(int(result.RetryAfter / time.Second))
		jormun.ErrTooManyRequests.With("rate limit exceeded").
			WithHeader("Retry-After", retryAfter).
			WriteAsJSONTo(w)
		return false
	}
	return true
}
