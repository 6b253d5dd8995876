// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/voteverse/server/models"
	"github.com/voteverse/server/testutil"
)

// TestConcurrentVotesSameVoter verifies that simultaneous submissions from one
// voter produce exactly one ledger entry and one tally increment
func TestConcurrentVotesSameVoter(t *testing.T) {
	env := newTestEnv(t)
	handler := NewVotingHandler(env.svc)

	owner := testutil.CreateTestUser(t, env.db, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, env.db, "Voter", "voter@example.com", false)
	electionID := testutil.CreateTestElection(t, env.db, owner.ID, "open")
	a := testutil.AddTestCandidate(t, env.db, electionID, "Alpha")
	b := testutil.AddTestCandidate(t, env.db, electionID, "Beta")

	numAttempts := 10
	var created, conflicts atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			// Alternate candidates so a double count would show up in either tally
			candidateID := a
			if idx%2 == 1 {
				candidateID = b
			}
			req := testutil.MakeRequest("POST", "/votes",
				models.CastVoteRequest{ElectionID: electionID, CandidateID: candidateID}, nil)
			w := httptest.NewRecorder()

			handler.CastVote(w, as(req, voter))

			switch w.Code {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			default:
				t.Errorf("Unexpected status %d: %s", w.Code, w.Body.String())
			}
		}(i)
	}

	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 accepted vote, got %d", created.Load())
	}
	if conflicts.Load() != int32(numAttempts-1) {
		t.Errorf("Expected %d conflicts, got %d", numAttempts-1, conflicts.Load())
	}

	var ledger, tallies, participants int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID).Scan(&ledger); err != nil {
		t.Fatalf("Failed to count ledger: %v", err)
	}
	if err := env.db.QueryRow(`SELECT COALESCE(SUM(vote_count), 0) FROM candidate WHERE election_id = $1`, electionID).Scan(&tallies); err != nil {
		t.Fatalf("Failed to sum tallies: %v", err)
	}
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM election_voter WHERE election_id = $1`, electionID).Scan(&participants); err != nil {
		t.Fatalf("Failed to count participants: %v", err)
	}

	if ledger != 1 || tallies != 1 || participants != 1 {
		t.Errorf("Expected ledger=1 tallies=1 participants=1, got %d/%d/%d", ledger, tallies, participants)
	}
}

// TestConcurrentVotesManyVoters verifies that cached tallies match the ledger
// after many voters vote at once
func TestConcurrentVotesManyVoters(t *testing.T) {
	env := newTestEnv(t)
	handler := NewVotingHandler(env.svc)

	owner := testutil.CreateTestUser(t, env.db, "Owner", "owner@example.com", false)
	electionID := testutil.CreateTestElection(t, env.db, owner.ID, "open")
	candidates := []string{
		testutil.AddTestCandidate(t, env.db, electionID, "Alpha"),
		testutil.AddTestCandidate(t, env.db, electionID, "Beta"),
		testutil.AddTestCandidate(t, env.db, electionID, "Gamma"),
	}

	numVoters := 12
	voters := make([]models.User, numVoters)
	for i := range voters {
		voters[i] = testutil.CreateTestUser(t, env.db, fmt.Sprintf("Voter%d", i), fmt.Sprintf("voter%d@example.com", i), false)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numVoters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/votes",
				models.CastVoteRequest{ElectionID: electionID, CandidateID: candidates[idx%len(candidates)]}, nil)
			w := httptest.NewRecorder()

			handler.CastVote(w, as(req, voters[idx]))

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numVoters {
		t.Errorf("Expected %d successful votes, got %d", numVoters, successCount.Load())
	}

	drift, err := env.svc.Store().VerifyTallies(t.Context(), electionID)
	if err != nil {
		t.Fatalf("VerifyTallies() error = %v", err)
	}
	if len(drift) != 0 {
		t.Errorf("Cached tallies drifted from ledger: %+v", drift)
	}

	e, err := env.svc.Store().GetElection(t.Context(), electionID)
	if err != nil {
		t.Fatalf("GetElection() error = %v", err)
	}
	if e.Participants != numVoters {
		t.Errorf("Expected %d participants, got %d", numVoters, e.Participants)
	}
}

// TestConcurrentElectionClose verifies that racing closes yield exactly one
// success; the rest see already_closed
func TestConcurrentElectionClose(t *testing.T) {
	env := newTestEnv(t)
	handler := NewElectionHandler(env.svc)

	owner := testutil.CreateTestUser(t, env.db, "Owner", "owner@example.com", false)
	electionID := testutil.CreateTestElection(t, env.db, owner.ID, "open")

	numAttempts := 5
	var successCount, alreadyClosed atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest("POST", "/elections/"+electionID+"/close", nil)
			req.SetPathValue("id", electionID)
			w := httptest.NewRecorder()

			handler.CloseElection(w, as(req, owner))

			switch w.Code {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusBadRequest:
				alreadyClosed.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly one successful close, got %d", successCount.Load())
	}
	if alreadyClosed.Load() != int32(numAttempts-1) {
		t.Errorf("Expected %d already_closed responses, got %d", numAttempts-1, alreadyClosed.Load())
	}
}

// TestParallelElections verifies that votes in separate elections do not
// interfere with each other
func TestParallelElections(t *testing.T) {
	env := newTestEnv(t)
	handler := NewVotingHandler(env.svc)

	owner := testutil.CreateTestUser(t, env.db, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, env.db, "Voter", "voter@example.com", false)

	numElections := 4
	elections := make([]string, numElections)
	candidates := make([]string, numElections)
	for i := range elections {
		elections[i] = testutil.CreateTestElection(t, env.db, owner.ID, "open")
		candidates[i] = testutil.AddTestCandidate(t, env.db, elections[i], "Alpha")
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup

	// One voter, one vote per election, all at once
	for i := 0; i < numElections; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			req := testutil.MakeRequest("POST", "/votes",
				models.CastVoteRequest{ElectionID: elections[idx], CandidateID: candidates[idx]}, nil)
			w := httptest.NewRecorder()

			handler.CastVote(w, as(req, voter))

			if w.Code == http.StatusCreated {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if int(successCount.Load()) != numElections {
		t.Errorf("Expected %d accepted votes, got %d", numElections, successCount.Load())
	}

	for i, electionID := range elections {
		var count int
		if err := env.db.QueryRow(`SELECT vote_count FROM candidate WHERE id = $1`, candidates[i]).Scan(&count); err != nil {
			t.Fatalf("Failed to read tally: %v", err)
		}
		if count != 1 {
			t.Errorf("Election %s: expected tally 1, got %d", electionID, count)
		}
	}
}
