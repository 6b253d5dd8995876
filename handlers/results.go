// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

type ResultsHandler struct {
	svc *voting.Service
}

func NewResultsHandler(svc *voting.Service) *ResultsHandler {
	return &ResultsHandler{svc: svc}
}

// GetResult handles GET /elections/{id}/result
// Results are only available once the election has ended
func (h *ResultsHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err, "Failed to compute results")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// GetLedger handles GET /elections/{id}/votes
// Owner only; lists every vote with voter and candidate names
func (h *ResultsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	e, err := h.svc.OwnedElection(r.Context(), user, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	votes, err := h.svc.Store().ListVotes(r.Context(), e.ID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.LedgerResponse{
		ElectionID: e.ID,
		TotalVotes: len(votes),
		Votes:      votes,
	})
}

// GetVoterLogs handles GET /elections/{id}/voter-logs
// Owner only; newest entries first
func (h *ResultsHandler) GetVoterLogs(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	e, err := h.svc.OwnedElection(r.Context(), user, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	logs, err := h.svc.Store().ListVoterLogs(r.Context(), e.ID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.VoterLogResponse{
		ElectionID: e.ID,
		Logs:       logs,
	})
}
