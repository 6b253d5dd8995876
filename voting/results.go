// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/voteverse/server/models"
)

// Aggregate ranks a closed election's roster by ledger count.
//
// counts maps candidate id to its number of ledger entries; the cached
// Candidate.VoteCount is only reported alongside. Ties keep roster order, so
// among equally voted candidates the one listed first ranks higher. Winner is
// nil for an empty roster. TotalVotes counts every ledger entry of the
// election, including votes for candidates no longer on the roster.
func Aggregate(e *models.Election, roster []models.Candidate, counts map[string]int, now time.Time) (*models.ElectionResult, error) {
	if e.IsOpen(now) {
		return nil, ErrElectionOpen
	}

	standings := make([]models.Standing, len(roster))
	for i, c := range roster {
		standings[i] = models.Standing{
			CandidateID: c.ID,
			Name:        c.Name,
			Votes:       counts[c.ID],
			CachedTally: c.VoteCount,
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Votes > standings[j].Votes
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	result := &models.ElectionResult{
		ElectionID: e.ID,
		Title:      e.Title,
		ClosedAt:   e.EndDate,
		TotalVotes: total,
		Standings:  standings,
	}
	if len(standings) > 0 {
		winner := standings[0]
		result.Winner = &winner
	}
	return result, nil
}

// Results loads an election with its roster and ledger counts and aggregates them
func (s *Service) Results(ctx context.Context, electionID string) (*models.ElectionResult, error) {
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if e.IsOpen(now) {
		return nil, ErrElectionOpen
	}

	roster, err := s.store.ListRoster(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.LedgerCounts(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	result, err := Aggregate(e, roster, counts, now)
	if err != nil {
		return nil, err
	}

	for _, st := range result.Standings {
		if st.CachedTally != st.Votes {
			slog.Warn("cached tally disagrees with ledger",
				"election_id", e.ID, "candidate_id", st.CandidateID,
				"cached", st.CachedTally, "ledger", st.Votes)
		}
	}
	return result, nil
}

// CheckTallies compares cached candidate counters with the ledger and, when
// rebuild is set and drift exists, rewrites the counters from the ledger.
func (s *Service) CheckTallies(ctx context.Context, electionID string, rebuild bool) (*models.TallyCheckResponse, error) {
	if _, err := s.store.GetElection(ctx, electionID); err != nil {
		return nil, err
	}

	drift, err := s.store.VerifyTallies(ctx, electionID)
	if err != nil {
		return nil, err
	}

	resp := &models.TallyCheckResponse{ElectionID: electionID, Drift: drift}
	if rebuild && len(drift) > 0 {
		if err := s.store.RebuildTallies(ctx, electionID); err != nil {
			return nil, err
		}
		resp.Rebuilt = true
		slog.Info("tallies rebuilt from ledger", "election_id", electionID, "drifted", len(drift))
	}
	return resp, nil
}
