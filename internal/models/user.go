// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package models

import "time"

// UserType identifies which class of instances a user may see by default.
type UserType string

// Possible values for UserType.
const (
	UserWithFreeInstances    UserType = "with_free_instances"
	UserWithoutFreeInstances UserType = "without_free_instances"
	SuperUser                UserType = "super_user"
)

// User contains a record from the `users` table.
type User struct {
	ID      int64    `db:"id" json:"id"`
	Login   string   `db:"login" json:"login"`
	Email   string   `db:"email" json:"email"`
	Type    UserType `db:"type" json:"type"`
	Blocked bool     `db:"blocked" json:"blocked"`
}

// Key contains a record from the `keys` table. A key is one bearer token
// belonging to a user.
type Key struct {
	ID      int64  `db:"id" json:"id"`
	UserID  int64  `db:"user_id" json:"user_id"`
	Token   string `db:"token" json:"token"`
	AppName string `db:"app_name" json:"app_name"`
	// ValidUntil is nil for keys that never expire.
	ValidUntil *time.Time `db:"valid_until" json:"valid_until"`
}

// IsValidAt checks whether this key can authenticate requests at time t.
func (k Key) IsValidAt(t time.Time) bool {
	return k.ValidUntil == nil || k.ValidUntil.After(t)
}

// API contains a record from the `apis` table. The well-known name "ALL"
// grants access to every API of an instance.
type API struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Authorization contains a record from the `authorizations` table. It grants
// one user access to one API on one instance.
type Authorization struct {
	UserID       int64  `db:"user_id" json:"user_id"`
	InstanceName string `db:"instance_name" json:"instance_name"`
	APIID        int64  `db:"api_id" json:"api_id"`
}
