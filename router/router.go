// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/cliparse"
	"github.com/voteverse/server/handlers"
	"github.com/voteverse/server/live"
	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/voting"
)

// Deps are the shared components the routes are built over
type Deps struct {
	DB      *sql.DB
	Config  cliparse.Config
	Service *voting.Service
	Hub     *live.Hub
	Metrics *metrics.Metrics
}

func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	issuer := auth.NewTokenIssuer(d.Config.JWTSecret, d.Config.TokenTTL)
	id := middleware.NewIdentity(issuer, handlers.LookupUser(d.DB))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(d.DB, d.Config, issuer)
	electionHandler := handlers.NewElectionHandler(d.Service)
	votingHandler := handlers.NewVotingHandler(d.Service)
	resultsHandler := handlers.NewResultsHandler(d.Service)
	liveHandler := handlers.NewLiveHandler(d.Service, d.Hub, d.Config)
	adminHandler := handlers.NewAdminHandler(d.DB, d.Service)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Users
	mux.HandleFunc("POST /users/register", middleware.WithLogging(userHandler.Register))
	mux.HandleFunc("POST /users/login", middleware.WithLogging(userHandler.Login))
	mux.HandleFunc("GET /users/me", middleware.WithLogging(id.RequireUser(userHandler.Me)))

	// Elections (reads are public, changes need a session)
	mux.HandleFunc("POST /elections", middleware.WithLogging(id.RequireUser(electionHandler.CreateElection)))
	mux.HandleFunc("GET /elections", middleware.WithLogging(electionHandler.ListElections))
	mux.HandleFunc("GET /elections/mine", middleware.WithLogging(id.RequireUser(electionHandler.MyElections)))
	mux.HandleFunc("GET /elections/{id}", middleware.WithLogging(electionHandler.GetElection))
	mux.HandleFunc("PATCH /elections/{id}", middleware.WithLogging(id.RequireUser(electionHandler.UpdateElection)))
	mux.HandleFunc("DELETE /elections/{id}", middleware.WithLogging(id.RequireUser(electionHandler.DeleteElection)))
	mux.HandleFunc("POST /elections/{id}/close", middleware.WithLogging(id.RequireUser(electionHandler.CloseElection)))

	// Candidates
	mux.HandleFunc("POST /elections/{id}/candidates", middleware.WithLogging(id.RequireUser(electionHandler.AddCandidate)))
	mux.HandleFunc("GET /elections/{id}/candidates", middleware.WithLogging(electionHandler.ListCandidates))
	mux.HandleFunc("DELETE /elections/{id}/candidates/{candidateId}", middleware.WithLogging(id.RequireUser(electionHandler.RemoveCandidate)))

	// Voting
	mux.HandleFunc("POST /votes", middleware.WithLogging(id.RequireUser(votingHandler.CastVote)))

	// Results and audit
	mux.HandleFunc("GET /elections/{id}/result", middleware.WithLogging(resultsHandler.GetResult))
	mux.HandleFunc("GET /elections/{id}/votes", middleware.WithLogging(id.RequireUser(resultsHandler.GetLedger)))
	mux.HandleFunc("GET /elections/{id}/voter-logs", middleware.WithLogging(id.RequireUser(resultsHandler.GetVoterLogs)))

	// Live tally channel; long-lived, so not wrapped in request logging
	mux.HandleFunc("GET /elections/{id}/live", liveHandler.Subscribe)

	// Administration
	mux.HandleFunc("GET /admin/users", middleware.WithLogging(id.RequireAdmin(adminHandler.ListUsers)))
	mux.HandleFunc("PATCH /admin/users/{id}/promote", middleware.WithLogging(id.RequireAdmin(adminHandler.PromoteUser)))
	mux.HandleFunc("PATCH /admin/users/{id}/verify", middleware.WithLogging(id.RequireAdmin(adminHandler.VerifyUser)))
	mux.HandleFunc("DELETE /admin/users/{id}", middleware.WithLogging(id.RequireAdmin(adminHandler.DeleteUser)))
	mux.HandleFunc("GET /admin/elections", middleware.WithLogging(id.RequireAdmin(adminHandler.ListElections)))
	mux.HandleFunc("DELETE /admin/elections/{id}", middleware.WithLogging(id.RequireAdmin(electionHandler.DeleteElection)))
	mux.HandleFunc("POST /admin/elections/{id}/rebuild-tallies", middleware.WithLogging(id.RequireAdmin(adminHandler.RebuildTallies)))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("voteverse API v1"))
	})

	return mux
}
