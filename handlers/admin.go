// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

type AdminHandler struct {
	db  *sql.DB
	svc *voting.Service
}

func NewAdminHandler(db *sql.DB, svc *voting.Service) *AdminHandler {
	return &AdminHandler{db: db, svc: svc}
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `SELECT `+userColumns+` FROM app_user ORDER BY created_at, id`)
	if err != nil {
		middleware.WriteError(w, voting.Unavailable("query users", err), "Database error")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			middleware.WriteError(w, err, "Database error")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		middleware.WriteError(w, voting.Unavailable("iterate users", err), "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, users)
}

// PromoteUser handles PATCH /admin/users/{id}/promote
func (h *AdminHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "is_admin", "user promoted")
}

// VerifyUser handles PATCH /admin/users/{id}/verify
func (h *AdminHandler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "verified", "user verified")
}

// setFlag sets one boolean column of app_user; column is never caller input
func (h *AdminHandler) setFlag(w http.ResponseWriter, r *http.Request, column, logMsg string) {
	userID := r.PathValue("id")

	res, err := h.db.ExecContext(r.Context(),
		`UPDATE app_user SET `+column+` = $1 WHERE id = $2`, true, userID)
	if err != nil {
		middleware.WriteError(w, voting.Unavailable("update user "+column, err), "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.WriteError(w, voting.ErrUserNotFound, "")
		return
	}

	user, err := getUser(r.Context(), h.db, userID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	admin, _ := middleware.UserFromContext(r.Context())
	slog.Info(logMsg, "user_id", userID, "admin_id", admin.ID)
	middleware.JSONResponse(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /admin/users/{id}
// Elections the user owns are deleted with them. Votes the user cast stay in
// the ledger so published tallies remain reproducible.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	admin, _ := middleware.UserFromContext(r.Context())

	if userID == admin.ID {
		middleware.ErrorResponse(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	if _, err := getUser(r.Context(), h.db, userID); err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	owned, err := h.svc.Store().ListElections(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}
	for _, e := range owned {
		if err := h.svc.DeleteElection(r.Context(), admin, e.ID); err != nil && !errors.Is(err, voting.ErrElectionNotFound) {
			middleware.WriteError(w, err, "Failed to delete user's elections")
			return
		}
	}

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM app_user WHERE id = $1`, userID)
	if err != nil {
		middleware.WriteError(w, voting.Unavailable("delete user", err), "Database error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		middleware.WriteError(w, voting.ErrUserNotFound, "")
		return
	}

	slog.Info("user deleted", "user_id", userID, "admin_id", admin.ID, "elections", len(owned))
	w.WriteHeader(http.StatusNoContent)
}

// ListElections handles GET /admin/elections
func (h *AdminHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.svc.Store().ListElections(r.Context(), "")
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ElectionList{
		Count:     len(elections),
		Elections: elections,
	})
}

// RebuildTallies handles POST /admin/elections/{id}/rebuild-tallies
// Reports counter drift and rewrites the cached counters from the ledger
func (h *AdminHandler) RebuildTallies(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.CheckTallies(r.Context(), r.PathValue("id"), true)
	if err != nil {
		middleware.WriteError(w, err, "Failed to rebuild tallies")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
