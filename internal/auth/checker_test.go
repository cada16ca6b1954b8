// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sapcc/jormun/internal/cache"
	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/models"
)

var (
	testUser = models.User{ID: 1, Login: "alice", Type: models.UserWithFreeInstances}

	paidRegion = models.Instance{Name: "fr-idf", IsFree: false}
	freeRegion = models.Instance{Name: "fr-ne", IsFree: true}
)

func setupChecker(store cache.Store, isPublic bool) *Checker {
	cfg := jormun.Configuration{IsPublic: isPublic, AuthCacheTTL: time.Minute}
	return NewChecker(nil, store, cfg).OverrideLookups(
		func(token string) (*models.User, error) {
			if token == "valid-token" {
				user := testUser
				return &user, nil
			}
			return nil, nil
		},
		func(userID int64, instanceName, api string) (bool, error) {
			return userID == 1 && instanceName == "fr-idf" && api == "journeys", nil
		},
	)
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/coverage/fr-idf/journeys", nil)
	if token != "" {
		r.Header.Set("Authorization", token)
	}
	return r
}

func TestTokenFromRequest(t *testing.T) {
	checks := []struct {
		header   string
		expected string
	}{
		{"", ""},
		{"abc123", "abc123"},
		{"Bearer abc123", "abc123"},
		{"Basic " + base64.StdEncoding.EncodeToString([]byte("abc123:hunter2")), "abc123"},
		{"Basic " + base64.StdEncoding.EncodeToString([]byte("abc123")), "abc123"},
		{"Basic not-base64!!", ""},
	}
	for _, check := range checks {
		actual := TokenFromRequest(requestWithToken(check.header))
		if actual != check.expected {
			t.Errorf("header %q: expected token %q, got %q", check.header, check.expected, actual)
		}
	}
}

func TestCheckRequestPublicDeployment(t *testing.T) {
	c := setupChecker(nil, true)
	user, apiErr := c.CheckRequest(requestWithToken(""), &paidRegion, "journeys")
	if user != nil || apiErr != nil {
		t.Errorf("expected public deployment to allow everything, got user=%v err=%v", user, apiErr)
	}
}

func TestCheckRequestNoToken(t *testing.T) {
	c := setupChecker(nil, false)

	// free regions do not require a token
	user, apiErr := c.CheckRequest(requestWithToken(""), &freeRegion, "journeys")
	if user != nil || apiErr != nil {
		t.Errorf("expected free region to allow anonymous access, got user=%v err=%v", user, apiErr)
	}

	// paid regions do
	_, apiErr = c.CheckRequest(requestWithToken(""), &paidRegion, "journeys")
	if apiErr == nil || apiErr.ID != jormun.ErrUnauthorized {
		t.Fatalf("expected unauthorized, got %v", apiErr)
	}
	if apiErr.Message != "no token. You can get one at https://navitia.io" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestCheckRequestInvalidToken(t *testing.T) {
	c := setupChecker(nil, false)
	_, apiErr := c.CheckRequest(requestWithToken("Bearer bogus"), &paidRegion, "journeys")
	if apiErr == nil || apiErr.ID != jormun.ErrUnauthorized {
		t.Fatalf("expected unauthorized, got %v", apiErr)
	}
}

func TestCheckRequestAuthorization(t *testing.T) {
	c := setupChecker(nil, false)

	// alice has journeys on fr-idf
	user, apiErr := c.CheckRequest(requestWithToken("Bearer valid-token"), &paidRegion, "journeys")
	if apiErr != nil {
		t.Fatalf("unexpected error: %s", apiErr.Error())
	}
	if user == nil || user.Login != "alice" {
		t.Errorf("expected resolved user, got %v", user)
	}

	// but not places
	_, apiErr = c.CheckRequest(requestWithToken("Bearer valid-token"), &paidRegion, "places")
	if apiErr == nil || apiErr.ID != jormun.ErrForbidden {
		t.Fatalf("expected forbidden, got %v", apiErr)
	}

	// free regions only need a valid token, not an authorization
	user, apiErr = c.CheckRequest(requestWithToken("Bearer valid-token"), &freeRegion, "places")
	if apiErr != nil || user == nil {
		t.Errorf("expected free region to allow any valid token, got user=%v err=%v", user, apiErr)
	}
}

func TestCheckRequestWithoutInstanceContext(t *testing.T) {
	c := setupChecker(nil, false)

	// no instance context: authorized, but the user is still resolved for
	// rate limiting
	user, apiErr := c.CheckRequest(requestWithToken("Bearer valid-token"), nil, "coverage")
	if apiErr != nil {
		t.Fatalf("unexpected error: %s", apiErr.Error())
	}
	if user == nil || user.Login != "alice" {
		t.Errorf("expected resolved user, got %v", user)
	}

	user, apiErr = c.CheckRequest(requestWithToken(""), nil, "coverage")
	if user != nil || apiErr != nil {
		t.Errorf("expected anonymous pass-through, got user=%v err=%v", user, apiErr)
	}
}

func TestCheckRequestUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStore(rc, "jormun")

	lookupCount := 0
	cfg := jormun.Configuration{AuthCacheTTL: time.Minute}
	c := NewChecker(nil, store, cfg).OverrideLookups(
		func(token string) (*models.User, error) {
			lookupCount++
			user := testUser
			return &user, nil
		},
		func(userID int64, instanceName, api string) (bool, error) {
			return true, nil
		},
	)

	for i := 0; i < 3; i++ {
		_, apiErr := c.CheckRequest(requestWithToken("Bearer valid-token"), &paidRegion, "journeys")
		if apiErr != nil {
			t.Fatal(apiErr)
		}
	}
	if lookupCount != 1 {
		t.Errorf("expected 1 DB lookup for 3 requests, got %d", lookupCount)
	}

	// cache expiry forces a fresh lookup
	mr.FastForward(2 * time.Minute)
	_, apiErr := c.CheckRequest(requestWithToken("Bearer valid-token"), &paidRegion, "journeys")
	if apiErr != nil {
		t.Fatal(apiErr)
	}
	if lookupCount != 2 {
		t.Errorf("expected a fresh DB lookup after expiry, got %d", lookupCount)
	}
}

func TestCheckRequestCacheErrorsDegradeToDB(t *testing.T) {
	lookupCount := 0
	cfg := jormun.Configuration{AuthCacheTTL: time.Minute}
	c := NewChecker(nil, brokenStore{}, cfg).OverrideLookups(
		func(token string) (*models.User, error) {
			lookupCount++
			user := testUser
			return &user, nil
		},
		func(userID int64, instanceName, api string) (bool, error) {
			return true, nil
		},
	)

	user, apiErr := c.CheckRequest(requestWithToken("Bearer valid-token"), &paidRegion, "journeys")
	if apiErr != nil {
		t.Fatalf("expected broken cache to degrade to DB lookup, got %v", apiErr)
	}
	if user == nil || lookupCount != 1 {
		t.Errorf("expected DB lookup, got user=%v lookups=%d", user, lookupCount)
	}
}

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (brokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
