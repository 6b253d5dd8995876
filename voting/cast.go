// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/models"
)

// CastRequest is one voter's ballot for one election
type CastRequest struct {
	Voter       models.User
	ElectionID  string
	CandidateID string
	Password    string
	IPAddress   string
}

type CastResult struct {
	Vote         models.Vote
	VoteCount    int // candidate tally after this vote
	Participants int
}

// Cast validates and records a vote.
//
// Checks run in order: election exists, candidate is on its roster, election
// is open, voter is eligible, voter has not voted yet. The ledger insert,
// tally increment and participant append then commit as one transaction; the
// (voter, election) unique constraint on the ledger arbitrates concurrent
// casts so exactly one succeeds. Once the write phase starts it no longer
// follows ctx cancellation, so a recorded vote stands even if the caller
// goes away.
//
// After commit the vote is logged and a TallyUpdate is handed to the
// publisher asynchronously; publication failures never reach the caller.
func (s *Service) Cast(ctx context.Context, req CastRequest) (CastResult, error) {
	start := time.Now()

	res, err := s.cast(ctx, req)
	if err != nil {
		s.metrics.VoteRejected(ReasonOf(err))
		if attemptWorthLogging(err) {
			s.logActivity(ctx, req, models.LogStatusAttempted, s.now())
		}
		return CastResult{}, err
	}

	s.metrics.VoteAccepted(req.ElectionID, time.Since(start))
	s.logActivity(ctx, req, models.LogStatusVoted, res.Vote.VotedAt)
	s.publish(ctx, models.TallyUpdate{
		ElectionID:        res.Vote.ElectionID,
		CandidateID:       res.Vote.CandidateID,
		NewTally:          res.VoteCount,
		TotalParticipants: res.Participants,
		VoterDisplayName:  displayName(req.Voter),
		Timestamp:         res.Vote.VotedAt,
	})

	slog.Info("vote cast", "election_id", req.ElectionID, "candidate_id", req.CandidateID,
		"vote_id", res.Vote.ID, "tally", res.VoteCount)
	return res, nil
}

func (s *Service) cast(ctx context.Context, req CastRequest) (CastResult, error) {
	if req.ElectionID == "" || req.CandidateID == "" {
		return CastResult{}, Invalid("election_id and candidate_id are required")
	}

	e, err := s.store.GetElection(ctx, req.ElectionID)
	if err != nil {
		return CastResult{}, err
	}

	if !slices.Contains(e.CandidateIDs, req.CandidateID) {
		return CastResult{}, ErrInvalidCandidate
	}
	c, err := s.store.GetCandidate(ctx, req.CandidateID)
	if errors.Is(err, ErrCandidateNotFound) {
		return CastResult{}, ErrInvalidCandidate
	}
	if err != nil {
		return CastResult{}, err
	}
	if c.ElectionID != e.ID {
		return CastResult{}, ErrInvalidCandidate
	}

	now := s.now()
	if !e.IsOpen(now) {
		return CastResult{}, ErrElectionNotActive
	}

	if err := Evaluate(RulesFor(e), req.Voter.Email, req.Password); err != nil {
		return CastResult{}, err
	}

	// Fast path only; the unique constraint below is authoritative
	voted, err := s.store.HasVoted(ctx, req.Voter.ID, e.ID)
	if err != nil {
		return CastResult{}, err
	}
	if voted {
		return CastResult{}, ErrAlreadyVoted
	}

	id, err := auth.GenerateID()
	if err != nil {
		return CastResult{}, err
	}
	vote := models.Vote{
		ID:          id,
		VoterID:     req.Voter.ID,
		ElectionID:  e.ID,
		CandidateID: c.ID,
		VotedAt:     now,
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	tally, participants, err := s.store.RecordVote(writeCtx, vote)
	if err != nil {
		if KindOf(err) == KindUnavailable {
			slog.Error("failed to record vote", "election_id", e.ID, "error", err)
		}
		return CastResult{}, err
	}

	return CastResult{Vote: vote, VoteCount: tally, Participants: participants}, nil
}

// attemptWorthLogging reports whether a rejection concerns an existing
// election and should appear in its audit trail.
func attemptWorthLogging(err error) bool {
	switch KindOf(err) {
	case KindForbidden, KindConflict:
		return true
	}
	return errors.Is(err, ErrElectionNotActive) || errors.Is(err, ErrInvalidCandidate)
}

// logActivity appends to the voter log. Failures are logged and ignored.
func (s *Service) logActivity(ctx context.Context, req CastRequest, status string, at time.Time) {
	id, err := auth.GenerateID()
	if err != nil {
		slog.Warn("failed to generate voter log id", "error", err)
		return
	}

	entry := models.VoterLog{
		ID:         id,
		VoterID:    req.Voter.ID,
		ElectionID: req.ElectionID,
		Status:     status,
		IPAddress:  req.IPAddress,
		LoggedAt:   at,
	}
	if err := s.store.LogActivity(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("failed to write voter log", "election_id", req.ElectionID, "status", status, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, update models.TallyUpdate) {
	if s.publisher == nil {
		return
	}

	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(pubCtx, update); err != nil {
			slog.Warn("failed to publish tally update", "election_id", update.ElectionID, "error", err)
		}
	}()
}

// displayName is the name shown to live observers
func displayName(u models.User) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return "anonymous"
}
