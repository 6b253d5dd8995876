// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/cliparse"
	"github.com/voteverse/server/db"
	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

// MinUserPasswordLength is the shortest accepted account password
const MinUserPasswordLength = 8

type UserHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	issuer *auth.TokenIssuer
}

func NewUserHandler(db *sql.DB, cfg cliparse.Config, issuer *auth.TokenIssuer) *UserHandler {
	return &UserHandler{db: db, cfg: cfg, issuer: issuer}
}

// Register handles POST /users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := voting.NormalizeEmail(req.Email)
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		middleware.ErrorResponse(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < MinUserPasswordLength {
		middleware.ErrorResponse(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "password is too long")
		return
	}
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	userID, err := auth.GenerateID()
	if err != nil {
		slog.Error("failed to generate user ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	user := models.User{
		ID:           userID,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO app_user (id, email, name, password_hash, verified, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.Name, user.PasswordHash, false, false, user.CreatedAt)
	if db.IsUniqueViolation(err) {
		middleware.WriteError(w, voting.ErrDuplicateEmail, "")
		return
	}
	if err != nil {
		slog.Error("failed to insert user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	middleware.JSONResponse(w, http.StatusCreated, user)
}

// Login handles POST /users/login
// Returns a session token and also sets it as an HTTP-only cookie
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := getUserByEmail(r.Context(), h.db, voting.NormalizeEmail(req.Email))
	if errors.Is(err, voting.ErrUserNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cfg.TokenTTL.Seconds()),
	})

	slog.Info("user logged in", "user_id", user.ID)
	middleware.JSONResponse(w, http.StatusOK, models.LoginResponse{Token: token, User: user})
}

// Me handles GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	middleware.JSONResponse(w, http.StatusOK, user)
}

// LookupUser resolves a user id for the identity middleware
func LookupUser(conn *sql.DB) middleware.UserLookup {
	return func(ctx context.Context, id string) (models.User, error) {
		return getUser(ctx, conn, id)
	}
}

const userColumns = `id, email, name, password_hash, verified, is_admin, created_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Verified, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, voting.ErrUserNotFound
	}
	if err != nil {
		return u, voting.Unavailable("query user", err)
	}
	return u, nil
}

func getUser(ctx context.Context, conn *sql.DB, id string) (models.User, error) {
	return scanUser(conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
}

func getUserByEmail(ctx context.Context, conn *sql.DB, email string) (models.User, error) {
	return scanUser(conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE email = $1`, email))
}
