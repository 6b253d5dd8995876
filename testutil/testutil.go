// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/cliparse"
	"github.com/voteverse/server/db"
	"github.com/voteverse/server/models"
)

// TestPassword is the login password of every user made by CreateTestUser
const TestPassword = "password123"

var (
	passwordHashOnce sync.Once
	passwordHash     string
)

// SetupTestDB creates a fresh file-backed SQLite database with the full
// schema. It is removed with the test's temp dir.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "voteverse_test.db")
	conn, err := db.Open(context.Background(), cliparse.DatabaseSQLite, path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "voteverse_test.db",
		DatabaseType: cliparse.DatabaseSQLite,
		JWTSecret:    "test-jwt-secret",
		TokenTTL:     time.Hour,
		KafkaTopic:   "votes",
	}
}

// CreateTestUser inserts a verified user whose password is TestPassword
func CreateTestUser(t *testing.T, conn *sql.DB, name, email string, admin bool) models.User {
	t.Helper()

	passwordHashOnce.Do(func() {
		h, err := auth.HashPassword(TestPassword)
		if err != nil {
			panic(err)
		}
		passwordHash = h
	})

	id, _ := auth.GenerateID()
	u := models.User{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Verified:     true,
		IsAdmin:      admin,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := conn.Exec(`
		INSERT INTO app_user (id, email, name, password_hash, verified, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Verified, u.IsAdmin, u.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return u
}

// CreateTestElection creates an election owned by ownerID and returns its ID.
// status should be "open", "closed" (explicitly ended) or "expired" (still
// flagged active but past its end date).
func CreateTestElection(t *testing.T, conn *sql.DB, ownerID, status string) string {
	t.Helper()

	electionID, _ := auth.GenerateID()
	now := time.Now().UTC()
	start := now.Add(-time.Hour)
	end := now.Add(24 * time.Hour)
	active := true

	switch status {
	case "closed":
		active = false
		end = now.Add(-time.Minute)
	case "expired":
		end = now.Add(-time.Minute)
	}

	_, err := conn.Exec(`
		INSERT INTO election (id, title, description, owner_id, start_date, end_date, active, created_at, updated_at)
		VALUES ($1, 'Test Election', 'A test election', $2, $3, $4, $5, $6, $6)
	`, electionID, ownerID, start, end, active, now)
	if err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}

	return electionID
}

// SetTestElectionPassword protects an election with a vote password
func SetTestElectionPassword(t *testing.T, conn *sql.DB, electionID, password string) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash election password: %v", err)
	}
	if _, err := conn.Exec(`UPDATE election SET password_hash = $1 WHERE id = $2`, hash, electionID); err != nil {
		t.Fatalf("Failed to set election password: %v", err)
	}
}

// AllowTestEmails adds exact emails to an election's allow-list
func AllowTestEmails(t *testing.T, conn *sql.DB, electionID string, emails ...string) {
	t.Helper()

	for _, email := range emails {
		if _, err := conn.Exec(`
			INSERT INTO election_allowed_email (election_id, email) VALUES ($1, $2)
		`, electionID, email); err != nil {
			t.Fatalf("Failed to allow email: %v", err)
		}
	}
}

// AllowTestDomains adds domains to an election's allow-list
func AllowTestDomains(t *testing.T, conn *sql.DB, electionID string, domains ...string) {
	t.Helper()

	for _, domain := range domains {
		if _, err := conn.Exec(`
			INSERT INTO election_allowed_domain (election_id, domain) VALUES ($1, $2)
		`, electionID, domain); err != nil {
			t.Fatalf("Failed to allow domain: %v", err)
		}
	}
}

// AddTestCandidate adds a candidate to the end of an election's roster and
// returns the candidate ID
func AddTestCandidate(t *testing.T, conn *sql.DB, electionID, name string) string {
	t.Helper()

	candidateID, _ := auth.GenerateID()
	_, err := conn.Exec(`
		INSERT INTO candidate (id, election_id, name, bio, vote_count, created_at)
		VALUES ($1, $2, $3, '', 0, $4)
	`, candidateID, electionID, name, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO election_roster (election_id, candidate_id, position)
		SELECT $1, $2, COALESCE(MAX(position), -1) + 1
		FROM election_roster WHERE election_id = $1
	`, electionID, candidateID)
	if err != nil {
		t.Fatalf("Failed to add test candidate to roster: %v", err)
	}

	return candidateID
}

// CastTestVote writes a ledger entry, bumps the candidate tally and records
// participation, bypassing eligibility checks
func CastTestVote(t *testing.T, conn *sql.DB, voterID, electionID, candidateID string) string {
	t.Helper()

	voteID, _ := auth.GenerateID()
	now := time.Now().UTC()

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO vote (id, voter_id, election_id, candidate_id, voted_at) VALUES ($1, $2, $3, $4, $5)`,
			[]any{voteID, voterID, electionID, candidateID, now}},
		{`UPDATE candidate SET vote_count = vote_count + 1 WHERE id = $1`,
			[]any{candidateID}},
		{`INSERT INTO election_voter (election_id, voter_id, joined_at) VALUES ($1, $2, $3)`,
			[]any{electionID, voterID, now}},
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s.query, s.args...); err != nil {
			t.Fatalf("Failed to cast test vote: %v", err)
		}
	}

	return voteID
}

// AuthHeader returns a bearer token header for userID signed with cfg's secret
func AuthHeader(t *testing.T, cfg cliparse.Config, userID string) map[string]string {
	t.Helper()

	token, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL).Issue(userID)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
