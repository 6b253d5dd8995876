// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

type ElectionHandler struct {
	svc *voting.Service
}

func NewElectionHandler(svc *voting.Service) *ElectionHandler {
	return &ElectionHandler{svc: svc}
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	owner, _ := middleware.UserFromContext(r.Context())
	e, err := h.svc.CreateElection(r.Context(), owner, req)
	if err != nil {
		middleware.WriteError(w, err, "Failed to create election")
		return
	}
	e.RevealAllowList()

	middleware.JSONResponse(w, http.StatusCreated, e)
}

// ListElections handles GET /elections
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "")
}

// MyElections handles GET /elections/mine
func (h *ElectionHandler) MyElections(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	h.list(w, r, user.ID)
}

func (h *ElectionHandler) list(w http.ResponseWriter, r *http.Request, ownerID string) {
	elections, err := h.svc.Store().ListElections(r.Context(), ownerID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}
	if ownerID != "" {
		for i := range elections {
			elections[i].RevealAllowList()
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.ElectionList{
		Count:     len(elections),
		Elections: elections,
	})
}

// GetElection handles GET /elections/{id}
// Returns the election with its roster, cached tallies and time remaining
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")

	e, err := h.svc.Store().GetElection(r.Context(), electionID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	roster, err := h.svc.Store().ListRoster(r.Context(), e.ID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	now := h.svc.Now()
	view := models.ElectionView{
		Election:   *e,
		Status:     e.Status(now),
		Candidates: roster,
	}
	if e.IsOpen(now) {
		view.ClosesIn = humanize.RelTime(e.EndDate, now, "ago", "from now")
	}

	middleware.JSONResponse(w, http.StatusOK, view)
}

// UpdateElection handles PATCH /elections/{id}
func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	owner, _ := middleware.UserFromContext(r.Context())
	e, err := h.svc.UpdateElection(r.Context(), owner, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err, "Failed to update election")
		return
	}
	e.RevealAllowList()

	middleware.JSONResponse(w, http.StatusOK, e)
}

// CloseElection handles POST /elections/{id}/close
func (h *ElectionHandler) CloseElection(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.UserFromContext(r.Context())
	e, err := h.svc.CloseElection(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err, "Failed to close election")
		return
	}
	e.RevealAllowList()

	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteElection handles DELETE /elections/{id} and DELETE /admin/elections/{id}
func (h *ElectionHandler) DeleteElection(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	if err := h.svc.DeleteElection(r.Context(), actor, r.PathValue("id")); err != nil {
		middleware.WriteError(w, err, "Failed to delete election")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddCandidate handles POST /elections/{id}/candidates
func (h *ElectionHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.AddCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	owner, _ := middleware.UserFromContext(r.Context())
	c, err := h.svc.AddCandidate(r.Context(), owner, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err, "Failed to add candidate")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, c)
}

// ListCandidates handles GET /elections/{id}/candidates
func (h *ElectionHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Store().GetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	roster, err := h.svc.Store().ListRoster(r.Context(), e.ID)
	if err != nil {
		middleware.WriteError(w, err, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CandidateList{
		Count:      len(roster),
		Candidates: roster,
	})
}

// RemoveCandidate handles DELETE /elections/{id}/candidates/{candidateId}
func (h *ElectionHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.UserFromContext(r.Context())
	err := h.svc.RemoveCandidate(r.Context(), owner, r.PathValue("id"), r.PathValue("candidateId"))
	if err != nil {
		middleware.WriteError(w, err, "Failed to remove candidate")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
