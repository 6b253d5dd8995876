// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the VoteVerse API.

# Route Registration

NewRouter creates a configured http.ServeMux from the shared components:

	mux := router.NewRouter(router.Deps{
		DB:      db,
		Config:  cfg,
		Service: svc,
		Hub:     hub,
		Metrics: m,
	})

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Users:

	POST /users/register
	POST /users/login
	GET  /users/me         (session)

Elections (reads are public):

	POST   /elections                    (session)
	GET    /elections
	GET    /elections/mine               (session)
	GET    /elections/{id}
	PATCH  /elections/{id}               (owner)
	DELETE /elections/{id}               (owner or admin)
	POST   /elections/{id}/close         (owner)
	POST   /elections/{id}/candidates    (owner)
	GET    /elections/{id}/candidates
	DELETE /elections/{id}/candidates/{candidateId} (owner)

Voting and results:

	POST /votes                          (session)
	GET  /elections/{id}/result          (closed elections only)
	GET  /elections/{id}/votes           (owner)
	GET  /elections/{id}/voter-logs      (owner)
	GET  /elections/{id}/live            (websocket)

Administration (admin session):

	GET    /admin/users
	PATCH  /admin/users/{id}/promote
	PATCH  /admin/users/{id}/verify
	DELETE /admin/users/{id}            (not your own account)
	GET    /admin/elections
	DELETE /admin/elections/{id}
	POST   /admin/elections/{id}/rebuild-tallies

Sessions are JWTs sent as "Authorization: Bearer <token>" or the token cookie.
*/
package router
