// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIErrorID is the closed set of error identifiers that can appear in type
// APIError. The identifiers show up verbatim in JSON error bodies, so they are
// part of the public API.
type APIErrorID string

// Possible values for APIErrorID.
const (
	ErrUnknownObject   APIErrorID = "unknown_object"
	ErrUnknownAPI      APIErrorID = "unknown_api"
	ErrInvalidArgument APIErrorID = "invalid_argument"
	ErrUnauthorized    APIErrorID = "unauthorized"
	ErrForbidden       APIErrorID = "forbidden"
	ErrTooManyRequests APIErrorID = "too_many_requests"
	ErrDeadSocket      APIErrorID = "dead_socket"
	ErrInternal        APIErrorID = "internal_error"
)

var apiErrorStatusCodes = map[APIErrorID]int{
	ErrUnknownObject:   http.StatusNotFound,
	ErrUnknownAPI:      http.StatusNotFound,
	ErrInvalidArgument: http.StatusBadRequest,
	ErrUnauthorized:    http.StatusUnauthorized,
	ErrForbidden:       http.StatusForbidden,
	ErrTooManyRequests: http.StatusTooManyRequests,
	ErrDeadSocket:      http.StatusServiceUnavailable,
	ErrInternal:        http.StatusInternalServerError,
}

// With is a convenience function for constructing type APIError.
func (id APIErrorID) With(msg string, args ...any) *APIError {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &APIError{ID: id, Message: msg}
}

// APIError is the error type that the HTTP layer renders into JSON error
// bodies. All errors crossing from the dispatch/auth layer into a resource
// handler are of this type (or get converted into it).
type APIError struct {
	ID      APIErrorID
	Message string
	// Header contains additional headers to set on the error response (e.g. Retry-After).
	Header http.Header
}

// WithHeader returns a copy of this error with the given header set on it.
func (e *APIError) WithHeader(key, value string) *APIError {
	result := *e
	result.Header = make(http.Header, len(e.Header)+1)
	for k, v := range e.Header {
		result.Header[k] = v
	}
	result.Header.Set(key, value)
	return &result
}

// Error implements the builtin/error interface.
func (e *APIError) Error() string {
	return string(e.ID) + ": " + e.Message
}

// Status returns the HTTP status code for this error.
func (e *APIError) Status() int {
	status, ok := apiErrorStatusCodes[e.ID]
	if !ok {
		return http.StatusInternalServerError
	}
	return status
}

// WriteAsJSONTo renders this error in the format used throughout the v1 API.
func (e *APIError) WriteAsJSONTo(w http.ResponseWriter) {
	for k, v := range e.Header {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	buf, _ := json.Marshal(struct {
		Error struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		} `json:"error"`
	}{Error: struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}{ID: string(e.ID), Message: e.Message}})
	w.Write(append(buf, '\n'))
}

// RegionNotFound constructs the APIError for a region that could not be
// resolved from a name, a coordinate or an object id.
func RegionNotFound(region string) *APIError {
	if region == "" {
		return ErrUnknownObject.With("no region nor coordinates given")
	}
	return ErrUnknownObject.With("The region %s doesn't exists", region)
}

// DecodeJSONRequest parses the JSON request body into target. Unknown fields
// are rejected so that typos in attribute names do not silently get ignored.
func DecodeJSONRequest(r *http.Request, target any) *APIError {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(target)
	if err != nil {
		return ErrInvalidArgument.With("request body is not valid JSON: %s", err.Error())
	}
	return nil
}

// AsAPIError casts err into an *APIError if possible, and returns nil otherwise.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
