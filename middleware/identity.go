// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

// TokenCookie is the cookie checked when no Authorization header is sent
const TokenCookie = "token"

// UserLookup loads a user by id, returning voting.ErrUserNotFound when absent
type UserLookup func(ctx context.Context, id string) (models.User, error)

type userKey struct{}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user set by RequireUser
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey{}).(models.User)
	return u, ok
}

// Identity resolves session tokens to users
type Identity struct {
	issuer *auth.TokenIssuer
	lookup UserLookup
}

func NewIdentity(issuer *auth.TokenIssuer, lookup UserLookup) *Identity {
	return &Identity{issuer: issuer, lookup: lookup}
}

// RequireUser rejects requests without a valid session token with 401 and
// otherwise stores the caller's user record in the request context.
func (id *Identity) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		userID, err := id.issuer.Verify(token)
		if err != nil {
			ErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := id.lookup(r.Context(), userID)
		if errors.Is(err, voting.ErrUserNotFound) {
			ErrorResponse(w, http.StatusUnauthorized, "User no longer exists")
			return
		}
		if err != nil {
			WriteError(w, err, "Failed to load user")
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// RequireAdmin wraps RequireUser and additionally rejects non-admins with 403
func (id *Identity) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return id.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		if !user.IsAdmin {
			ErrorResponse(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r)
	})
}

// sessionToken reads a bearer token from the Authorization header, falling
// back to the token cookie
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}
