// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/voteverse/server/metrics"
	"github.com/voteverse/server/models"
	"github.com/voteverse/server/testutil"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingPublisher struct {
	mu      sync.Mutex
	updates []models.TallyUpdate
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, u models.TallyUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return p.err
}

func (p *recordingPublisher) Updates() []models.TallyUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TallyUpdate(nil), p.updates...)
}

func newTestService(t *testing.T) (*Service, *sql.DB, *recordingPublisher) {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	t.Cleanup(func() { conn.Close() })

	pub := &recordingPublisher{}
	return NewService(NewStore(conn), pub, metrics.New()), conn, pub
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestCast_Success(t *testing.T) {
	svc, conn, pub := newTestService(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Vera Voter", "vera@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	candidateID := testutil.AddTestCandidate(t, conn, electionID, "Alice")

	res, err := svc.Cast(ctx, CastRequest{
		Voter:       voter,
		ElectionID:  electionID,
		CandidateID: candidateID,
		IPAddress:   "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Cast() error = %v", err)
	}
	svc.Wait()

	if res.VoteCount != 1 {
		t.Errorf("VoteCount = %d, want 1", res.VoteCount)
	}
	if res.Participants != 1 {
		t.Errorf("Participants = %d, want 1", res.Participants)
	}
	if res.Vote.ID == "" {
		t.Error("expected a vote ID")
	}

	if n := countRows(t, conn, `SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID); n != 1 {
		t.Errorf("ledger entries = %d, want 1", n)
	}
	if n := countRows(t, conn, `SELECT COUNT(*) FROM voter_log WHERE election_id = $1 AND status = 'voted'`, electionID); n != 1 {
		t.Errorf("voted log entries = %d, want 1", n)
	}

	updates := pub.Updates()
	if len(updates) != 1 {
		t.Fatalf("published %d updates, want 1", len(updates))
	}
	u := updates[0]
	if u.ElectionID != electionID || u.CandidateID != candidateID || u.NewTally != 1 || u.TotalParticipants != 1 {
		t.Errorf("unexpected update: %+v", u)
	}
	if u.VoterDisplayName != "Vera Voter" {
		t.Errorf("VoterDisplayName = %q, want Vera Voter", u.VoterDisplayName)
	}

	if got := promtest.ToFloat64(svc.metrics.VotesAccepted.WithLabelValues(electionID)); got != 1 {
		t.Errorf("votes_accepted_total = %v, want 1", got)
	}
}

func TestCast_Rejections(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Voter", "voter@other.com", false)

	openID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	openCandidate := testutil.AddTestCandidate(t, conn, openID, "A")

	otherID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	foreignCandidate := testutil.AddTestCandidate(t, conn, otherID, "Foreign")

	closedID := testutil.CreateTestElection(t, conn, owner.ID, "closed")
	closedCandidate := testutil.AddTestCandidate(t, conn, closedID, "C")

	expiredID := testutil.CreateTestElection(t, conn, owner.ID, "expired")
	expiredCandidate := testutil.AddTestCandidate(t, conn, expiredID, "E")

	passwordID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	passwordCandidate := testutil.AddTestCandidate(t, conn, passwordID, "P")
	testutil.SetTestElectionPassword(t, conn, passwordID, "secret")

	restrictedID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	restrictedCandidate := testutil.AddTestCandidate(t, conn, restrictedID, "R")
	testutil.AllowTestDomains(t, conn, restrictedID, "corp.com")
	testutil.SetTestElectionPassword(t, conn, restrictedID, "secret")

	tests := []struct {
		name        string
		electionID  string
		candidateID string
		password    string
		want        error
	}{
		{"missing ids", "", "", "", ErrInvalidInput},
		{"unknown election", "no-such-election", openCandidate, "", ErrElectionNotFound},
		{"candidate of another election", openID, foreignCandidate, "", ErrInvalidCandidate},
		{"unknown candidate", openID, "no-such-candidate", "", ErrInvalidCandidate},
		{"explicitly closed", closedID, closedCandidate, "", ErrElectionNotActive},
		{"end date passed while active", expiredID, expiredCandidate, "", ErrElectionNotActive},
		{"password missing", passwordID, passwordCandidate, "", ErrPasswordRequired},
		{"password wrong", passwordID, passwordCandidate, "guess", ErrInvalidPassword},
		{"restricted wins over password", restrictedID, restrictedCandidate, "secret", ErrNotEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Cast(ctx, CastRequest{
				Voter:       voter,
				ElectionID:  tt.electionID,
				CandidateID: tt.candidateID,
				Password:    tt.password,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("Cast() error = %v, want %v", err, tt.want)
			}
		})
	}

	// Nothing was recorded and no counter moved
	if n := countRows(t, conn, `SELECT COUNT(*) FROM vote`); n != 0 {
		t.Errorf("ledger entries = %d, want 0", n)
	}
	if n := countRows(t, conn, `SELECT COALESCE(SUM(vote_count), 0) FROM candidate`); n != 0 {
		t.Errorf("sum of tallies = %d, want 0", n)
	}

	// Rejections against existing elections are audited
	if n := countRows(t, conn, `SELECT COUNT(*) FROM voter_log WHERE election_id = $1 AND status = 'attempted'`, passwordID); n != 2 {
		t.Errorf("attempted log entries = %d, want 2", n)
	}
	if n := countRows(t, conn, `SELECT COUNT(*) FROM voter_log WHERE election_id = 'no-such-election'`); n != 0 {
		t.Errorf("unknown election should not be logged, got %d entries", n)
	}
}

func TestCast_CorrectPasswordAccepted(t *testing.T) {
	svc, conn, _ := newTestService(t)

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Voter", "voter@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	candidateID := testutil.AddTestCandidate(t, conn, electionID, "A")
	testutil.SetTestElectionPassword(t, conn, electionID, "secret")

	_, err := svc.Cast(context.Background(), CastRequest{
		Voter: voter, ElectionID: electionID, CandidateID: candidateID, Password: "secret",
	})
	if err != nil {
		t.Fatalf("Cast() error = %v", err)
	}
}

func TestCast_SecondVoteRejected(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Voter", "voter@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	a := testutil.AddTestCandidate(t, conn, electionID, "A")
	b := testutil.AddTestCandidate(t, conn, electionID, "B")

	if _, err := svc.Cast(ctx, CastRequest{Voter: voter, ElectionID: electionID, CandidateID: a}); err != nil {
		t.Fatalf("first Cast() error = %v", err)
	}

	// A different candidate does not get around the one-vote rule
	_, err := svc.Cast(ctx, CastRequest{Voter: voter, ElectionID: electionID, CandidateID: b})
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("second Cast() error = %v, want ErrAlreadyVoted", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("KindOf() = %v, want conflict", KindOf(err))
	}
}

// TestCast_ConcurrentSameVoter verifies that simultaneous casts by one voter
// record exactly one vote
func TestCast_ConcurrentSameVoter(t *testing.T) {
	svc, conn, pub := newTestService(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Voter", "voter@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	candidateID := testutil.AddTestCandidate(t, conn, electionID, "A")

	const attempts = 10
	var successCount, alreadyVotedCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Cast(ctx, CastRequest{Voter: voter, ElectionID: electionID, CandidateID: candidateID})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ErrAlreadyVoted):
				alreadyVotedCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	svc.Wait()

	if successCount.Load() != 1 {
		t.Errorf("successes = %d, want 1", successCount.Load())
	}
	if alreadyVotedCount.Load() != attempts-1 {
		t.Errorf("AlreadyVoted = %d, want %d", alreadyVotedCount.Load(), attempts-1)
	}

	if n := countRows(t, conn, `SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID); n != 1 {
		t.Errorf("ledger entries = %d, want 1", n)
	}
	if n := countRows(t, conn, `SELECT vote_count FROM candidate WHERE id = $1`, candidateID); n != 1 {
		t.Errorf("tally = %d, want 1", n)
	}
	if n := countRows(t, conn, `SELECT COUNT(*) FROM election_voter WHERE election_id = $1`, electionID); n != 1 {
		t.Errorf("participants = %d, want 1", n)
	}
	if len(pub.Updates()) != 1 {
		t.Errorf("published %d updates, want 1", len(pub.Updates()))
	}
}

// TestCast_ConcurrentVotersTallyMatchesLedger verifies the cached tally and
// the ledger agree after many voters race on the same candidates
func TestCast_ConcurrentVotersTallyMatchesLedger(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	candidates := []string{
		testutil.AddTestCandidate(t, conn, electionID, "A"),
		testutil.AddTestCandidate(t, conn, electionID, "B"),
	}

	const numVoters = 12
	voters := make([]models.User, numVoters)
	for i := range voters {
		voters[i] = testutil.CreateTestUser(t, conn, "Voter", "voter"+string(rune('a'+i))+"@example.com", false)
	}

	var wg sync.WaitGroup
	for i, v := range voters {
		wg.Add(1)
		go func(i int, v models.User) {
			defer wg.Done()
			if _, err := svc.Cast(ctx, CastRequest{Voter: v, ElectionID: electionID, CandidateID: candidates[i%2]}); err != nil {
				t.Errorf("Cast() error = %v", err)
			}
		}(i, v)
	}
	wg.Wait()
	svc.Wait()

	drift, err := svc.Store().VerifyTallies(ctx, electionID)
	if err != nil {
		t.Fatalf("VerifyTallies() error = %v", err)
	}
	if len(drift) != 0 {
		t.Errorf("tally drift after concurrent casts: %+v", drift)
	}

	e, err := svc.Store().GetElection(ctx, electionID)
	if err != nil {
		t.Fatalf("GetElection() error = %v", err)
	}
	if e.Participants != numVoters {
		t.Errorf("Participants = %d, want %d", e.Participants, numVoters)
	}
}

func TestCast_PublishFailureDoesNotFailVote(t *testing.T) {
	svc, conn, pub := newTestService(t)
	pub.err = errors.New("broker down")

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Voter", "voter@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	candidateID := testutil.AddTestCandidate(t, conn, electionID, "A")

	if _, err := svc.Cast(context.Background(), CastRequest{Voter: voter, ElectionID: electionID, CandidateID: candidateID}); err != nil {
		t.Fatalf("Cast() error = %v, want nil despite publisher failure", err)
	}
	svc.Wait()

	if n := countRows(t, conn, `SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID); n != 1 {
		t.Errorf("ledger entries = %d, want 1", n)
	}
}

func TestCast_CanceledContextAfterValidation(t *testing.T) {
	svc, conn, _ := newTestService(t)

	owner := testutil.CreateTestUser(t, conn, "Owner", "owner@example.com", false)
	voter := testutil.CreateTestUser(t, conn, "Voter", "voter@example.com", false)
	electionID := testutil.CreateTestElection(t, conn, owner.ID, "open")
	candidateID := testutil.AddTestCandidate(t, conn, electionID, "A")

	// A canceled caller never gets past the read phase
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Cast(ctx, CastRequest{Voter: voter, ElectionID: electionID, CandidateID: candidateID})
	if err == nil {
		t.Fatal("Cast() with canceled context succeeded")
	}
	if KindOf(err) != KindUnavailable {
		t.Errorf("KindOf() = %v, want unavailable", KindOf(err))
	}
	if n := countRows(t, conn, `SELECT COUNT(*) FROM vote`); n != 0 {
		t.Errorf("ledger entries = %d, want 0", n)
	}
}
