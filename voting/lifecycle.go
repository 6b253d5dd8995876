// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/models"
)

// MinVotePasswordLength is the shortest accepted election password
const MinVotePasswordLength = 4

// CreateElection validates the request and stores a new, active election
// owned by owner.
func (s *Service) CreateElection(ctx context.Context, owner models.User, req models.CreateElectionRequest) (*models.Election, error) {
	now := s.now()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, Invalid("title is required")
	}
	if req.EndDate.IsZero() {
		return nil, Invalid("end_date is required")
	}

	start := now
	if req.StartDate != nil && !req.StartDate.IsZero() {
		start = req.StartDate.UTC()
	}
	end := req.EndDate.UTC()
	if !end.After(start) {
		return nil, Invalid("end_date must be after start_date")
	}
	if !end.After(now) {
		return nil, Invalid("end_date must be in the future")
	}

	var hash *string
	if req.VotePassword != "" {
		h, err := hashVotePassword(req.VotePassword)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	id, err := auth.GenerateID()
	if err != nil {
		slog.Error("failed to generate election id", "error", err)
		return nil, err
	}

	e := &models.Election{
		ID:                id,
		Title:             title,
		Description:       strings.TrimSpace(req.Description),
		OwnerID:           owner.ID,
		StartDate:         start,
		EndDate:           end,
		Active:            true,
		PasswordHash:      hash,
		PasswordProtected: hash != nil,
		AllowedEmails:     normalizeList(req.AllowedEmails, NormalizeEmail),
		AllowedDomains:    normalizeList(req.AllowedDomains, NormalizeDomain),
		CandidateIDs:      []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	e.Restricted = RulesFor(e).Restricted()

	if err := s.store.CreateElection(ctx, e); err != nil {
		slog.Error("failed to create election", "owner_id", owner.ID, "error", err)
		return nil, err
	}

	slog.Info("election created", "election_id", e.ID, "owner_id", owner.ID,
		"restricted", e.Restricted, "password_protected", e.PasswordProtected)
	return e, nil
}

// AddCandidate registers a candidate on an open election and appends it to
// the roster. Only the owner may add candidates.
func (s *Service) AddCandidate(ctx context.Context, owner models.User, electionID string, req models.AddCandidateRequest) (*models.Candidate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, Invalid("name is required")
	}

	e, err := s.ownedElection(ctx, owner, electionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !e.IsOpen(now) {
		return nil, ErrElectionClosed
	}

	id, err := auth.GenerateID()
	if err != nil {
		return nil, err
	}

	c := &models.Candidate{
		ID:         id,
		ElectionID: e.ID,
		Name:       name,
		Bio:        strings.TrimSpace(req.Bio),
		CreatedAt:  now,
	}
	if err := s.store.AddCandidate(ctx, c); err != nil {
		slog.Error("failed to add candidate", "election_id", e.ID, "error", err)
		return nil, err
	}

	slog.Info("candidate added", "election_id", e.ID, "candidate_id", c.ID)
	return c, nil
}

// RemoveCandidate drops a candidate from an open election's roster. The
// candidate record and any votes it received stay in storage.
func (s *Service) RemoveCandidate(ctx context.Context, owner models.User, electionID, candidateID string) error {
	e, err := s.ownedElection(ctx, owner, electionID)
	if err != nil {
		return err
	}
	if !e.IsOpen(s.now()) {
		return ErrElectionClosed
	}

	removed, err := s.store.RemoveFromRoster(ctx, e.ID, candidateID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrCandidateNotFound
	}

	slog.Info("candidate removed from roster", "election_id", e.ID, "candidate_id", candidateID)
	return nil
}

// UpdateElection applies an owner's partial update. A candidate list replaces
// the roster wholesale; every id must name a candidate of this election.
// Ledger entries for candidates dropped from the roster are kept.
func (s *Service) UpdateElection(ctx context.Context, owner models.User, electionID string, req models.UpdateElectionRequest) (*models.Election, error) {
	e, err := s.ownedElection(ctx, owner, electionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var ch ElectionChanges

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, Invalid("title cannot be empty")
		}
		ch.Title = &title
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		ch.Description = &desc
	}
	if req.EndDate != nil {
		// Closing is one-way; a new end date never reopens voting
		if !e.IsOpen(now) {
			return nil, ErrElectionClosed
		}
		end := req.EndDate.UTC()
		if !end.After(now) {
			return nil, Invalid("end_date must be in the future")
		}
		if !end.After(e.StartDate) {
			return nil, Invalid("end_date must be after start_date")
		}
		ch.EndDate = &end
	}
	if req.VotePassword != nil {
		hash := ""
		if *req.VotePassword != "" {
			if hash, err = hashVotePassword(*req.VotePassword); err != nil {
				return nil, err
			}
		}
		ch.PasswordHash = &hash
	}
	if req.AllowedEmails != nil {
		emails := normalizeList(*req.AllowedEmails, NormalizeEmail)
		ch.AllowedEmails = &emails
	}
	if req.AllowedDomains != nil {
		domains := normalizeList(*req.AllowedDomains, NormalizeDomain)
		ch.AllowedDomains = &domains
	}

	if req.Candidates != nil {
		if !e.IsOpen(now) {
			return nil, ErrElectionClosed
		}
		roster, err := s.validateRoster(ctx, e.ID, *req.Candidates)
		if err != nil {
			return nil, err
		}
		if dropped := droppedWithVotes(ctx, s.store, e, roster); len(dropped) > 0 {
			slog.Warn("roster replacement drops candidates with recorded votes",
				"election_id", e.ID, "candidate_ids", dropped)
		}
		ch.Roster = &roster
	}

	if err := s.store.UpdateElection(ctx, e.ID, ch, now); err != nil {
		if KindOf(err) == KindUnavailable {
			slog.Error("failed to update election", "election_id", e.ID, "error", err)
		}
		return nil, err
	}

	slog.Info("election updated", "election_id", e.ID)
	return s.store.GetElection(ctx, e.ID)
}

func (s *Service) validateRoster(ctx context.Context, electionID string, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	roster := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, Invalid("candidate id cannot be empty")
		}
		if seen[id] {
			return nil, Invalid("duplicate candidate %s in roster", id)
		}
		seen[id] = true

		c, err := s.store.GetCandidate(ctx, id)
		if errors.Is(err, ErrCandidateNotFound) {
			return nil, ErrInvalidReference
		}
		if err != nil {
			return nil, err
		}
		if c.ElectionID != electionID {
			return nil, ErrInvalidReference
		}
		roster = append(roster, id)
	}
	return roster, nil
}

// droppedWithVotes lists current roster members absent from the new roster
// that already hold ledger entries. Lookup failures only skip the warning.
func droppedWithVotes(ctx context.Context, store *Store, e *models.Election, roster []string) []string {
	keep := make(map[string]bool, len(roster))
	for _, id := range roster {
		keep[id] = true
	}

	counts, err := store.LedgerCounts(ctx, e.ID)
	if err != nil {
		return nil
	}

	var dropped []string
	for _, id := range e.CandidateIDs {
		if !keep[id] && counts[id] > 0 {
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// CloseElection ends an election explicitly. Closing twice fails with
// ErrAlreadyClosed; an election whose end date passed while still flagged
// active can still be closed.
func (s *Service) CloseElection(ctx context.Context, owner models.User, electionID string) (*models.Election, error) {
	e, err := s.ownedElection(ctx, owner, electionID)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, ErrAlreadyClosed
	}

	closed, err := s.store.CloseElection(ctx, e.ID, s.now())
	if err != nil {
		slog.Error("failed to close election", "election_id", e.ID, "error", err)
		return nil, err
	}
	if !closed {
		// Lost a race with another close
		return nil, ErrAlreadyClosed
	}

	slog.Info("election closed", "election_id", e.ID)
	return s.store.GetElection(ctx, e.ID)
}

// DeleteElection removes an election with its roster, ledger and logs.
// Allowed for the owner and for admins.
func (s *Service) DeleteElection(ctx context.Context, actor models.User, electionID string) error {
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return err
	}
	if e.OwnerID != actor.ID && !actor.IsAdmin {
		return ErrNotOwner
	}

	if err := s.store.DeleteElection(ctx, e.ID); err != nil {
		slog.Error("failed to delete election", "election_id", e.ID, "error", err)
		return err
	}

	slog.Info("election deleted", "election_id", e.ID, "actor_id", actor.ID)
	return nil
}

// OwnedElection loads an election and checks that user owns it
func (s *Service) OwnedElection(ctx context.Context, user models.User, electionID string) (*models.Election, error) {
	return s.ownedElection(ctx, user, electionID)
}

func (s *Service) ownedElection(ctx context.Context, owner models.User, electionID string) (*models.Election, error) {
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != owner.ID {
		return nil, ErrNotOwner
	}
	return e, nil
}

func hashVotePassword(password string) (string, error) {
	if len(password) < MinVotePasswordLength {
		return "", Invalid("vote_password must be at least %d characters", MinVotePasswordLength)
	}
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", Invalid("vote_password is too long")
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// normalizeList applies norm, drops empty entries and de-duplicates while
// keeping first-seen order.
func normalizeList(in []string, norm func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = norm(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
