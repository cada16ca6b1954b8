// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIErrorRendering(t *testing.T) {
	w := httptest.NewRecorder()
	ErrTooManyRequests.With("rate limit exceeded").
		WithHeader("Retry-After", "42").
		WriteAsJSONTo(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if h := w.Header().Get("Retry-After"); h != "42" {
		t.Errorf("expected Retry-After header, got %q", h)
	}
	expected := `{"error":{"id":"too_many_requests","message":"rate limit exceeded"}}` + "\n"
	if w.Body.String() != expected {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestRegionNotFound(t *testing.T) {
	err := RegionNotFound("fr-idf")
	if err.ID != ErrUnknownObject || err.Status() != http.StatusNotFound {
		t.Errorf("unexpected error %v with status %d", err, err.Status())
	}
	if err.Message != "The region fr-idf doesn't exists" {
		t.Errorf("unexpected message %q", err.Message)
	}

	err = RegionNotFound("")
	if err.Message != "no region nor coordinates given" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestAsAPIError(t *testing.T) {
	apiErr := ErrForbidden.With("nope")
	if AsAPIError(apiErr) != apiErr {
		t.Error("expected identity for *APIError values")
	}
	if AsAPIError(fmt.Errorf("wrapped: %w", apiErr)) != apiErr {
		t.Error("expected AsAPIError to unwrap")
	}
	if AsAPIError(errors.New("plain")) != nil {
		t.Error("expected nil for unrelated errors")
	}
}
