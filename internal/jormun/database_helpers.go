// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"database/sql"
	"errors"

	gorp "github.com/go-gorp/gorp/v3"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/jormun/internal/models"
)

var activeInstancesQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM instances WHERE NOT discarded ORDER BY name
`)

// AllActiveInstances returns all instances rows that are not discarded, in
// name order. The instance manager relies on this ordering for stable
// tie-breaking.
func AllActiveInstances(db gorp.SqlExecutor) ([]models.Instance, error) {
	var instances []models.Instance
	_, err := db.Select(&instances, activeInstancesQuery)
	return instances, err
}

// FindInstance works similar to db.SelectOne(), but returns nil instead of
// sql.ErrNoRows if no instance exists with this name.
func FindInstance(db gorp.SqlExecutor, name string) (*models.Instance, error) {
	var instance models.Instance
	err := db.SelectOne(&instance, "SELECT * FROM instances WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &instance, err
}

var userByTokenQuery = sqlext.SimplifyWhitespace(`
	SELECT u.* FROM users u
	  JOIN keys k ON k.user_id = u.id
	 WHERE k.token = $1 AND NOT u.blocked
	   AND (k.valid_until IS NULL OR k.valid_until > NOW())
`)

// FindUserByToken resolves a bearer token to its user. Expired keys and
// blocked users do not resolve; nil is returned in those cases, not an error.
func FindUserByToken(db gorp.SqlExecutor, token string) (*models.User, error) {
	var user models.User
	err := db.SelectOne(&user, userByTokenQuery, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &user, err
}

// FindUser works similar to db.SelectOne(), but returns nil instead of
// sql.ErrNoRows if no user exists with this ID.
func FindUser(db gorp.SqlExecutor, id int64) (*models.User, error) {
	var user models.User
	err := db.SelectOne(&user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &user, err
}

var hasAccessQuery = sqlext.SimplifyWhitespace(`
	SELECT COUNT(*) FROM authorizations a
	  JOIN apis ap ON ap.id = a.api_id
	 WHERE a.user_id = $1 AND a.instance_name = $2 AND ap.name IN ($3, 'ALL')
`)

// UserHasAccess checks whether an authorizations row grants the given user
// access to (instance, api) or (instance, "ALL").
func UserHasAccess(db gorp.SqlExecutor, userID int64, instanceName, api string) (bool, error) {
	count, err := db.SelectInt(hasAccessQuery, userID, instanceName, api)
	return count > 0, err
}

// FindAPIByName works similar to db.SelectOne(), but returns nil instead of
// sql.ErrNoRows if no API row exists with this name.
func FindAPIByName(db gorp.SqlExecutor, name string) (*models.API, error) {
	var api models.API
	err := db.SelectOne(&api, "SELECT * FROM apis WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &api, err
}
