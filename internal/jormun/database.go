// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package jormun

import (
	"database/sql"

	gorp "github.com/go-gorp/gorp/v3"
	_ "github.com/lib/pq" // postgres driver for database/sql
	"github.com/sapcc/go-bits/easypg"

	"github.com/sapcc/jormun/internal/models"
)

var sqlMigrations = map[string]string{
	"001_initial.up.sql": `
		CREATE TABLE instances (
			name           TEXT        NOT NULL PRIMARY KEY,
			queue_socket   TEXT        NOT NULL,
			is_free        BOOLEAN     NOT NULL DEFAULT FALSE,
			priority       INT         NOT NULL DEFAULT 0,
			timezone       TEXT        NOT NULL DEFAULT '',
			scenario       TEXT        NOT NULL DEFAULT 'default',
			boundary_shape TEXT        NOT NULL DEFAULT '',
			object_prefix  TEXT        NOT NULL DEFAULT '',
			discarded      BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE users (
			id      BIGSERIAL NOT NULL PRIMARY KEY,
			login   TEXT      NOT NULL UNIQUE,
			email   TEXT      NOT NULL DEFAULT '',
			type    TEXT      NOT NULL DEFAULT 'with_free_instances',
			blocked BOOLEAN   NOT NULL DEFAULT FALSE
		);

		CREATE TABLE keys (
			id          BIGSERIAL   NOT NULL PRIMARY KEY,
			user_id     BIGINT      NOT NULL REFERENCES users ON DELETE CASCADE,
			token       TEXT        NOT NULL UNIQUE,
			app_name    TEXT        NOT NULL DEFAULT '',
			valid_until TIMESTAMPTZ DEFAULT NULL
		);

		CREATE TABLE apis (
			id   BIGSERIAL NOT NULL PRIMARY KEY,
			name TEXT      NOT NULL UNIQUE
		);
		INSERT INTO apis (name) VALUES ('ALL');

		CREATE TABLE authorizations (
			user_id       BIGINT NOT NULL REFERENCES users ON DELETE CASCADE,
			instance_name TEXT   NOT NULL REFERENCES instances ON DELETE CASCADE,
			api_id        BIGINT NOT NULL REFERENCES apis ON DELETE CASCADE,
			PRIMARY KEY (user_id, instance_name, api_id)
		);
	`,
	"001_initial.down.sql": `
		DROP TABLE authorizations;
		DROP TABLE apis;
		DROP TABLE keys;
		DROP TABLE users;
		DROP TABLE instances;
	`,
}

// DBConfiguration returns the easypg.Configuration object that func main() needs
// to initialize the DB connection.
func DBConfiguration() easypg.Configuration {
	return easypg.Configuration{
		Migrations: sqlMigrations,
	}
}

// DB adds convenience functions on top of gorp.DbMap.
type DB struct {
	gorp.DbMap
}

// InitORM wraps a database connection into a DB instance.
func InitORM(dbConn *sql.DB) *DB {
	// ensure that this process does not starve other processes for DB connections
	dbConn.SetMaxOpenConns(16)

	result := &DB{DbMap: gorp.DbMap{Db: dbConn, Dialect: gorp.PostgresDialect{}}}
	initModels(&result.DbMap)
	return result
}

// initModels is used by InitORM to setup the ORM part of the database
// connection.
func initModels(db *gorp.DbMap) {
	db.AddTableWithName(models.Instance{}, "instances").SetKeys(false, "name")
	db.AddTableWithName(models.User{}, "users").SetKeys(true, "id")
	db.AddTableWithName(models.Key{}, "keys").SetKeys(true, "id")
	db.AddTableWithName(models.API{}, "apis").SetKeys(true, "id")
	db.AddTableWithName(models.Authorization{}, "authorizations").SetKeys(false, "user_id", "instance_name", "api_id")
}
