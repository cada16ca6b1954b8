// SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sapcc/go-api-declarations/cadf"
	"github.com/sapcc/go-bits/respondwith"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/jormun/internal/jormun"
	"github.com/sapcc/jormun/internal/models"
)

func (a *API) findUserFromRequest(w http.ResponseWriter, r *http.Request) *models.User {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		jormun.ErrInvalidArgument.With("user id must be an integer").WriteAsJSONTo(w)
		return nil
	}
	user, err := jormun.FindUser(a.db, id)
	if respondwith.ErrorText(w, err) {
		return nil
	}
	if user == nil {
		jormun.ErrUnknownObject.With("no such user").WriteAsJSONTo(w)
		return nil
	}
	return user
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	var users []models.User
	_, err := a.db.Select(&users, "SELECT * FROM users ORDER BY id")
	if respondwith.ErrorText(w, err) {
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}

	var keys []models.Key
	_, err := a.db.Select(&keys, "SELECT * FROM keys WHERE user_id = $1 ORDER BY id", user.ID)
	if respondwith.ErrorText(w, err) {
		return
	}
	if keys == nil {
		keys = []models.Key{}
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"user": user, "keys": keys})
}

type userRequest struct {
	Login string          `json:"login"`
	Email string          `json:"email"`
	Type  models.UserType `json:"type"`
}

func (u userRequest) validate() *jormun.APIError {
	if u.Login == "" {
		return jormun.ErrInvalidArgument.With("login is missing")
	}
	switch u.Type {
	case "", models.UserWithFreeInstances, models.UserWithoutFreeInstances, models.SuperUser:
		return nil
	default:
		return jormun.ErrInvalidArgument.With("no such user type: %q", u.Type)
	}
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}

	var req userRequest
	if err := jormun.DecodeJSONRequest(r, &req); err != nil {
		err.WriteAsJSONTo(w)
		return
	}
	if err := req.validate(); err != nil {
		err.WriteAsJSONTo(w)
		return
	}
	if req.Type == "" {
		req.Type = models.UserWithFreeInstances
	}

	user := models.User{Login: req.Login, Email: req.Email, Type: req.Type}
	err := a.db.Insert(&user)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusCreated, cadf.CreateAction, userResource(strconv.FormatInt(user.ID, 10)))
	respondwith.JSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}

	var req struct {
		Email   *string          `json:"email"`
		Type    *models.UserType `json:"type"`
		Blocked *bool            `json:"blocked"`
	}
	if err := jormun.DecodeJSONRequest(r, &req); err != nil {
		err.WriteAsJSONTo(w)
		return
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Type != nil {
		user.Type = *req.Type
	}
	if req.Blocked != nil {
		user.Blocked = *req.Blocked
	}

	_, err := a.db.Update(user)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusOK, cadf.UpdateAction, userResource(strconv.FormatInt(user.ID, 10)))
	respondwith.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}

	// keys and authorizations are removed by ON DELETE CASCADE
	_, err := a.db.Delete(user)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusNoContent, cadf.DeleteAction, userResource(strconv.FormatInt(user.ID, 10)))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}

	var req struct {
		AppName    string     `json:"app_name"`
		ValidUntil *time.Time `json:"valid_until"`
	}
	// an empty body creates a non-expiring key without an app name
	if r.ContentLength != 0 {
		if err := jormun.DecodeJSONRequest(r, &req); err != nil {
			err.WriteAsJSONTo(w)
			return
		}
	}

	key := models.Key{
		UserID:     user.ID,
		Token:      uuid.NewString(),
		AppName:    req.AppName,
		ValidUntil: req.ValidUntil,
	}
	err := a.db.Insert(&key)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusCreated, cadf.CreateAction, cadf.Resource{
		TypeURI: "service/navitia/key",
		ID:      strconv.FormatInt(key.ID, 10),
	})
	respondwith.JSON(w, http.StatusCreated, map[string]any{"key": key})
}

func (a *API) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}
	keyID, err := strconv.ParseInt(mux.Vars(r)["key_id"], 10, 64)
	if err != nil {
		jormun.ErrInvalidArgument.With("key id must be an integer").WriteAsJSONTo(w)
		return
	}

	result, err := a.db.Exec("DELETE FROM keys WHERE id = $1 AND user_id = $2", keyID, user.ID)
	if respondwith.ErrorText(w, err) {
		return
	}
	rowsDeleted, err := result.RowsAffected()
	if respondwith.ErrorText(w, err) {
		return
	}
	if rowsDeleted == 0 {
		jormun.ErrUnknownObject.With("no such key").WriteAsJSONTo(w)
		return
	}
	a.audit(r, http.StatusNoContent, cadf.DeleteAction, cadf.Resource{
		TypeURI: "service/navitia/key",
		ID:      strconv.FormatInt(keyID, 10),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGrantAuthorization(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}
	vars := mux.Vars(r)

	instance, err := jormun.FindInstance(a.db, vars["instance"])
	if respondwith.ErrorText(w, err) {
		return
	}
	if instance == nil {
		jormun.RegionNotFound(vars["instance"]).WriteAsJSONTo(w)
		return
	}

	// api rows are created on first use; "ALL" exists from the start
	apiRow, err := jormun.FindAPIByName(a.db, vars["api"])
	if respondwith.ErrorText(w, err) {
		return
	}
	if apiRow == nil {
		apiRow = &models.API{Name: vars["api"]}
		err = a.db.Insert(apiRow)
		if respondwith.ErrorText(w, err) {
			return
		}
	}

	// granting twice is not an error
	_, err = a.db.Exec(sqlext.SimplifyWhitespace(`INSERT INTO authorizations (user_id, instance_name, api_id)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`), user.ID, instance.Name, apiRow.ID)
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusNoContent, cadf.EnableAction, userResource(strconv.FormatInt(user.ID, 10)))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRevokeAuthorization(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	user := a.findUserFromRequest(w, r)
	if user == nil {
		return
	}
	vars := mux.Vars(r)

	_, err := a.db.Exec(sqlext.SimplifyWhitespace(`DELETE FROM authorizations WHERE user_id = $1 AND instance_name = $2
		   AND api_id = (SELECT id FROM apis WHERE name = $3)`), user.ID, vars["instance"], vars["api"])
	if respondwith.ErrorText(w, err) {
		return
	}
	a.audit(r, http.StatusNoContent, cadf.DisableAction, userResource(strconv.FormatInt(user.ID, 10)))
	w.WriteHeader(http.StatusNoContent)
}
