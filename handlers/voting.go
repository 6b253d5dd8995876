// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/voteverse/server/middleware"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/voting"
)

type VotingHandler struct {
	svc *voting.Service
}

func NewVotingHandler(svc *voting.Service) *VotingHandler {
	return &VotingHandler{svc: svc}
}

// CastVote handles POST /votes
// The voter is the authenticated caller; one vote per voter per election.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ElectionID == "" || req.CandidateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "election_id and candidate_id are required")
		return
	}

	voter, _ := middleware.UserFromContext(r.Context())
	res, err := h.svc.Cast(r.Context(), voting.CastRequest{
		Voter:       voter,
		ElectionID:  req.ElectionID,
		CandidateID: req.CandidateID,
		Password:    req.VotePassword,
		IPAddress:   middleware.GetClientIP(r),
	})
	if err != nil {
		middleware.WriteError(w, err, "Failed to cast vote")
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		VoteID:    res.Vote.ID,
		VoteCount: res.VoteCount,
	})
}
