// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# Identity

Identity resolves a session token to a user record before the handler runs.
The token is read from "Authorization: Bearer <jwt>" or the "token" cookie:

	id := middleware.NewIdentity(issuer, handlers.LookupUser(db))
	mux.HandleFunc("POST /votes", id.RequireUser(votes.CastVote))
	mux.HandleFunc("GET /admin/users", id.RequireAdmin(admin.ListUsers))

Missing or invalid tokens get 401; RequireAdmin answers 403 for non-admins.
Handlers read the caller with UserFromContext.

# Errors

WriteError maps domain error kinds to status codes:

	not found → 404, forbidden → 403, unauthorized → 401,
	conflict → 409, validation → 400, unavailable → 503, other → 500

Responses carry a machine-readable reason code. Server-side failures are
logged and answered with a generic message.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(cfg.AllowedOrigin)(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Recorded in the voter activity log.
*/
package middleware
