// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves bearer tokens to users and enforces per-instance API
// authorization. Checks are explicit guard calls at the start of each
// resource handler, not middleware magic: handlers know best which instance
// context they operate in.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/jormun/internal/cache"
	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/models"
)

// Checker performs authentication and authorization checks. User and access
// lookups are cached; cache failures degrade to direct DB queries.
type Checker struct {
	db       *jormun.DB
	store    cache.Store // nil if caching is disabled
	isPublic bool
	cacheTTL time.Duration

	// non-pure functions that can be replaced by deterministic doubles for unit tests
	findUserByToken func(token string) (*models.User, error)
	userHasAccess   func(userID int64, instanceName, api string) (bool, error)
}

// NewChecker creates a Checker.
func NewChecker(db *jormun.DB, store cache.Store, cfg jormun.Configuration) *Checker {
	c := &Checker{
		db:       db,
		store:    store,
		isPublic: cfg.IsPublic,
		cacheTTL: cfg.AuthCacheTTL,
	}
	c.findUserByToken = func(token string) (*models.User, error) {
		return jormun.FindUserByToken(&db.DbMap, token)
	}
	c.userHasAccess = func(userID int64, instanceName, api string) (bool, error) {
		return jormun.UserHasAccess(&db.DbMap, userID, instanceName, api)
	}
	return c
}

// OverrideLookups replaces the DB lookups with test doubles.
func (c *Checker) OverrideLookups(
	findUserByToken func(token string) (*models.User, error),
	userHasAccess func(userID int64, instanceName, api string) (bool, error),
) *Checker {
	c.findUserByToken = findUserByToken
	c.userHasAccess = userHasAccess
	return c
}

// TokenFromRequest extracts the API token from the Authorization header. Both
// a bare token (with or without the "Bearer" keyword) and HTTP Basic auth
// (token as username, password ignored) are accepted.
func TokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	if rest, found := strings.CutPrefix(header, "Basic "); found {
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return ""
		}
		token, _, _ := strings.Cut(string(decoded), ":")
		return token
	}
	if rest, found := strings.CutPrefix(header, "Bearer "); found {
		return rest
	}
	return header
}

// CheckRequest authorizes one HTTP request against the given instance and API
// name. A nil instance means the request carries no instance context (e.g.
// the region could not be resolved yet); such requests are authorized and
// fail later with a more helpful error. The resolved user (if any) is
// returned for rate limiting and logging.
func (c *Checker) CheckRequest(r *http.Request, instance *models.Instance, api string) (*models.User, *jormun.APIError) {
	if c.isPublic {
		return nil, nil
	}

	token := TokenFromRequest(r)

	if instance == nil {
		// no instance context: authorized by design, but still resolve the
		// user for rate limiting if a token was sent
		if token != "" {
			user, err := c.cachedUserByToken(r.Context(), token)
			if err != nil {
				logg.Error("cannot resolve token without instance context: %s", err.Error())
			}
			return user, nil
		}
		return nil, nil
	}

	if token == "" {
		if instance.IsFree {
			return nil, nil
		}
		return nil, jormun.ErrUnauthorized.With("no token. You can get one at https://navitia.io")
	}

	user, err := c.cachedUserByToken(r.Context(), token)
	if err != nil {
		return nil, jormun.ErrInternal.With("cannot resolve token")
	}
	if user == nil {
		return nil, jormun.ErrUnauthorized.With("invalid token")
	}

	if instance.IsFree {
		return user, nil
	}

	allowed, err := c.cachedHasAccess(r.Context(), user.ID, instance.Name, api)
	if err != nil {
		return nil, jormun.ErrInternal.With("cannot check authorization")
	}
	if !allowed {
		return user, jormun.ErrForbidden.With("user %s has no access to %s on region %s", user.Login, api, instance.Name)
	}
	return user, nil
}

// cachedUserByToken resolves a token to a user, with a TTL'd cache entry per
// token. Only successful resolutions are cached.
func (c *Checker) cachedUserByToken(ctx context.Context, token string) (*models.User, error) {
	cacheKey := "user_token:" + token
	if c.store != nil {
		buf, ok, err := c.store.Get(ctx, cacheKey)
		if err == nil && ok {
			var user models.User
			if json.Unmarshal([]byte(buf), &user) == nil {
				return &user, nil
			}
		}
	}

	user, err := c.findUserByToken(token)
	if err != nil || user == nil {
		return user, err
	}

	if c.store != nil {
		buf, _ := json.Marshal(user)
		err := c.store.Set(ctx, cacheKey, string(buf), c.cacheTTL)
		if err != nil {
			logg.Debug("cannot cache user lookup: %s", err.Error())
		}
	}
	return user, nil
}

// cachedHasAccess checks the authorizations table, with a TTL'd cache entry
// per (user, instance, api) triple.
func (c *Checker) cachedHasAccess(ctx context.Context, userID int64, instanceName, api string) (bool, error) {
	cacheKey := fmt.Sprintf("auth:%d:%s:%s", userID, instanceName, api)
	if c.store != nil {
		buf, ok, err := c.store.Get(ctx, cacheKey)
		if err == nil && ok {
			return buf == "1", nil
		}
	}

	allowed, err := c.userHasAccess(userID, instanceName, api)
	if err != nil {
		return false, err
	}

	if c.store != nil {
		value := "0"
		if allowed {
			value = "1"
		}
		err := c.store.Set(ctx, cacheKey, value, c.cacheTTL)
		if err != nil {
			logg.Debug("cannot cache authorization lookup: %s", err.Error())
		}
	}
	return allowed, nil
}
