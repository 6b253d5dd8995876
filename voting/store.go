// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/voteverse/server/db"
	"github.com/voteverse/server/models"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists elections, candidates, the vote ledger and voter logs.
// All timestamps are written in UTC.
type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Elections

func (s *Store) GetElection(ctx context.Context, id string) (*models.Election, error) {
	return getElection(ctx, s.db, id)
}

func getElection(ctx context.Context, q querier, id string) (*models.Election, error) {
	var e models.Election
	var hash sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, title, description, owner_id, start_date, end_date, active,
		       password_hash, created_at, updated_at
		FROM election
		WHERE id = $1
	`, id).Scan(
		&e.ID, &e.Title, &e.Description, &e.OwnerID, &e.StartDate, &e.EndDate,
		&e.Active, &hash, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrElectionNotFound
	}
	if err != nil {
		return nil, unavailable("query election", err)
	}

	if hash.Valid && hash.String != "" {
		e.PasswordHash = &hash.String
		e.PasswordProtected = true
	}

	if e.AllowedEmails, err = queryStrings(ctx, q, `
		SELECT email FROM election_allowed_email WHERE election_id = $1 ORDER BY email
	`, id); err != nil {
		return nil, unavailable("query allowed emails", err)
	}
	if e.AllowedDomains, err = queryStrings(ctx, q, `
		SELECT domain FROM election_allowed_domain WHERE election_id = $1 ORDER BY domain
	`, id); err != nil {
		return nil, unavailable("query allowed domains", err)
	}
	e.Restricted = len(e.AllowedEmails) > 0 || len(e.AllowedDomains) > 0
	if e.CandidateIDs, err = queryStrings(ctx, q, `
		SELECT candidate_id FROM election_roster WHERE election_id = $1 ORDER BY position
	`, id); err != nil {
		return nil, unavailable("query roster", err)
	}
	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM election_voter WHERE election_id = $1
	`, id).Scan(&e.Participants); err != nil {
		return nil, unavailable("count participants", err)
	}

	return &e, nil
}

// ListElections returns all elections, or only those owned by ownerID when set,
// newest first.
func (s *Store) ListElections(ctx context.Context, ownerID string) ([]models.Election, error) {
	query := `SELECT id FROM election ORDER BY created_at DESC`
	args := []any{}
	if ownerID != "" {
		query = `SELECT id FROM election WHERE owner_id = $1 ORDER BY created_at DESC`
		args = append(args, ownerID)
	}

	// Collect ids first; the rows must be closed before per-election lookups
	// can run on a single-connection pool.
	ids, err := queryStrings(ctx, s.db, query, args...)
	if err != nil {
		return nil, unavailable("list elections", err)
	}

	elections := make([]models.Election, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetElection(ctx, id)
		if errors.Is(err, ErrElectionNotFound) {
			continue // deleted in between
		}
		if err != nil {
			return nil, err
		}
		elections = append(elections, *e)
	}
	return elections, nil
}

func (s *Store) CreateElection(ctx context.Context, e *models.Election) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO election (id, title, description, owner_id, start_date, end_date,
		                      active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Title, e.Description, e.OwnerID, e.StartDate.UTC(), e.EndDate.UTC(),
		e.Active, nullableHash(e.PasswordHash), e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return unavailable("insert election", err)
	}

	if err := replaceAllowLists(ctx, tx, e.ID, &e.AllowedEmails, &e.AllowedDomains); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit election", err)
	}
	return nil
}

// ElectionChanges lists the fields UpdateElection writes; nil leaves a field
// as is. A PasswordHash pointing at "" removes the password.
type ElectionChanges struct {
	Title          *string
	Description    *string
	EndDate        *time.Time
	PasswordHash   *string
	Roster         *[]string
	AllowedEmails  *[]string
	AllowedDomains *[]string
}

// UpdateElection applies changes atomically. Roster ids must already have been
// validated by the caller.
func (s *Store) UpdateElection(ctx context.Context, id string, ch ElectionChanges, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	e, err := getElection(ctx, tx, id)
	if err != nil {
		return err
	}
	if ch.Title != nil {
		e.Title = *ch.Title
	}
	if ch.Description != nil {
		e.Description = *ch.Description
	}
	if ch.EndDate != nil {
		e.EndDate = *ch.EndDate
	}
	if ch.PasswordHash != nil {
		e.PasswordHash = ch.PasswordHash
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE election
		SET title = $1, description = $2, end_date = $3, password_hash = $4, updated_at = $5
		WHERE id = $6
	`, e.Title, e.Description, e.EndDate.UTC(), nullableHash(e.PasswordHash), now.UTC(), id)
	if err != nil {
		return unavailable("update election", err)
	}

	if ch.Roster != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM election_roster WHERE election_id = $1`, id); err != nil {
			return unavailable("clear roster", err)
		}
		for pos, candidateID := range *ch.Roster {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO election_roster (election_id, candidate_id, position)
				VALUES ($1, $2, $3)
			`, id, candidateID, pos)
			if db.IsUniqueViolation(err) {
				return Invalid("duplicate candidate %s in roster", candidateID)
			}
			if err != nil {
				return unavailable("insert roster entry", err)
			}
		}
	}

	if err := replaceAllowLists(ctx, tx, id, ch.AllowedEmails, ch.AllowedDomains); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit election update", err)
	}
	return nil
}

func replaceAllowLists(ctx context.Context, tx *sql.Tx, electionID string, emails, domains *[]string) error {
	if emails != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM election_allowed_email WHERE election_id = $1`, electionID); err != nil {
			return unavailable("clear allowed emails", err)
		}
		for _, email := range *emails {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO election_allowed_email (election_id, email) VALUES ($1, $2)
				ON CONFLICT (election_id, email) DO NOTHING
			`, electionID, email)
			if err != nil {
				return unavailable("insert allowed email", err)
			}
		}
	}
	if domains != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM election_allowed_domain WHERE election_id = $1`, electionID); err != nil {
			return unavailable("clear allowed domains", err)
		}
		for _, domain := range *domains {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO election_allowed_domain (election_id, domain) VALUES ($1, $2)
				ON CONFLICT (election_id, domain) DO NOTHING
			`, electionID, domain)
			if err != nil {
				return unavailable("insert allowed domain", err)
			}
		}
	}
	return nil
}

// CloseElection flips an active election to closed and stamps its end date.
// It reports false when the election was already inactive, so concurrent
// callers see exactly one successful close.
func (s *Store) CloseElection(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE election
		SET active = $1, end_date = $2, updated_at = $2
		WHERE id = $3 AND active = $4
	`, false, now.UTC(), id, true)
	if err != nil {
		return false, unavailable("close election", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("close election", err)
	}
	return n == 1, nil
}

// DeleteElection removes an election and everything scoped to it
func (s *Store) DeleteElection(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	// Explicit deletes; SQLite does not enforce ON DELETE CASCADE by default
	for _, stmt := range []string{
		`DELETE FROM voter_log WHERE election_id = $1`,
		`DELETE FROM vote WHERE election_id = $1`,
		`DELETE FROM election_voter WHERE election_id = $1`,
		`DELETE FROM election_roster WHERE election_id = $1`,
		`DELETE FROM candidate WHERE election_id = $1`,
		`DELETE FROM election_allowed_email WHERE election_id = $1`,
		`DELETE FROM election_allowed_domain WHERE election_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return unavailable("delete election data", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM election WHERE id = $1`, id)
	if err != nil {
		return unavailable("delete election", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrElectionNotFound
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit election delete", err)
	}
	return nil
}

// Candidates

// AddCandidate inserts the candidate and appends it to the election roster
func (s *Store) AddCandidate(ctx context.Context, c *models.Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO candidate (id, election_id, name, bio, vote_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.ElectionID, c.Name, c.Bio, 0, c.CreatedAt.UTC())
	if err != nil {
		return unavailable("insert candidate", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO election_roster (election_id, candidate_id, position)
		SELECT $1, $2, COALESCE(MAX(position), -1) + 1
		FROM election_roster WHERE election_id = $1
	`, c.ElectionID, c.ID)
	if err != nil {
		return unavailable("append roster", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit candidate", err)
	}
	return nil
}

// RemoveFromRoster drops a candidate from the roster; the candidate row and
// any ledger entries naming it are kept.
func (s *Store) RemoveFromRoster(ctx context.Context, electionID, candidateID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM election_roster WHERE election_id = $1 AND candidate_id = $2
	`, electionID, candidateID)
	if err != nil {
		return false, unavailable("remove roster entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("remove roster entry", err)
	}
	return n == 1, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, election_id, name, bio, vote_count, created_at
		FROM candidate
		WHERE id = $1
	`, id).Scan(&c.ID, &c.ElectionID, &c.Name, &c.Bio, &c.VoteCount, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	if err != nil {
		return nil, unavailable("query candidate", err)
	}
	return &c, nil
}

// ListRoster returns the election's candidates in roster order
func (s *Store) ListRoster(ctx context.Context, electionID string) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.election_id, c.name, c.bio, c.vote_count, c.created_at
		FROM election_roster r
		JOIN candidate c ON c.id = r.candidate_id
		WHERE r.election_id = $1
		ORDER BY r.position
	`, electionID)
	if err != nil {
		return nil, unavailable("query roster", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.Name, &c.Bio, &c.VoteCount, &c.CreatedAt); err != nil {
			return nil, unavailable("scan candidate", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate roster", err)
	}
	return candidates, nil
}

// Vote ledger

func (s *Store) HasVoted(ctx context.Context, voterID, electionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM vote WHERE voter_id = $1 AND election_id = $2
		)
	`, voterID, electionID).Scan(&exists)
	if err != nil {
		return false, unavailable("check ledger", err)
	}
	return exists, nil
}

// RecordVote appends the ledger entry, increments the candidate tally and
// adds the voter to the participation list in one transaction. The ledger
// insert runs first so the (voter, election) unique constraint decides
// concurrent races before any counter moves.
func (s *Store) RecordVote(ctx context.Context, v models.Vote) (tally, participants int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (id, voter_id, election_id, candidate_id, voted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.VoterID, v.ElectionID, v.CandidateID, v.VotedAt.UTC())
	if db.IsUniqueViolation(err) {
		return 0, 0, ErrAlreadyVoted
	}
	if err != nil {
		return 0, 0, unavailable("insert vote", err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE candidate SET vote_count = vote_count + 1
		WHERE id = $1 AND election_id = $2
		RETURNING vote_count
	`, v.CandidateID, v.ElectionID).Scan(&tally)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrInvalidCandidate
	}
	if err != nil {
		return 0, 0, unavailable("increment tally", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO election_voter (election_id, voter_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (election_id, voter_id) DO NOTHING
	`, v.ElectionID, v.VoterID, v.VotedAt.UTC())
	if err != nil {
		return 0, 0, unavailable("append participant", err)
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM election_voter WHERE election_id = $1
	`, v.ElectionID).Scan(&participants)
	if err != nil {
		return 0, 0, unavailable("count participants", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, unavailable("commit vote", err)
	}
	return tally, participants, nil
}

// LedgerCounts counts ledger entries per candidate for an election
func (s *Store) LedgerCounts(ctx context.Context, electionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_id, COUNT(*) FROM vote WHERE election_id = $1 GROUP BY candidate_id
	`, electionID)
	if err != nil {
		return nil, unavailable("count ledger", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var candidateID string
		var n int
		if err := rows.Scan(&candidateID, &n); err != nil {
			return nil, unavailable("scan ledger count", err)
		}
		counts[candidateID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate ledger counts", err)
	}
	return counts, nil
}

// ListVotes returns the raw ledger for an election joined with display names
func (s *Store) ListVotes(ctx context.Context, electionID string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.voter_id, v.election_id, v.candidate_id, v.voted_at,
		       COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(c.name, '')
		FROM vote v
		LEFT JOIN app_user u ON u.id = v.voter_id
		LEFT JOIN candidate c ON c.id = v.candidate_id
		WHERE v.election_id = $1
		ORDER BY v.voted_at, v.id
	`, electionID)
	if err != nil {
		return nil, unavailable("query ledger", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var le models.LedgerEntry
		if err := rows.Scan(&le.ID, &le.VoterID, &le.ElectionID, &le.CandidateID, &le.VotedAt,
			&le.VoterName, &le.VoterEmail, &le.CandidateName); err != nil {
			return nil, unavailable("scan ledger entry", err)
		}
		entries = append(entries, le)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate ledger", err)
	}
	return entries, nil
}

// VerifyTallies compares every candidate counter of an election, roster member
// or not, with its ledger count and returns the ones that differ.
func (s *Store) VerifyTallies(ctx context.Context, electionID string) ([]models.TallyMismatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.vote_count,
		       (SELECT COUNT(*) FROM vote v WHERE v.candidate_id = c.id AND v.election_id = c.election_id)
		FROM candidate c
		WHERE c.election_id = $1
		ORDER BY c.created_at, c.id
	`, electionID)
	if err != nil {
		return nil, unavailable("verify tallies", err)
	}
	defer rows.Close()

	drift := []models.TallyMismatch{}
	for rows.Next() {
		var m models.TallyMismatch
		if err := rows.Scan(&m.CandidateID, &m.Cached, &m.Ledger); err != nil {
			return nil, unavailable("scan tally", err)
		}
		if m.Cached != m.Ledger {
			drift = append(drift, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tallies", err)
	}
	return drift, nil
}

// RebuildTallies rewrites every cached candidate counter of an election from
// the ledger.
func (s *Store) RebuildTallies(ctx context.Context, electionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE candidate
		SET vote_count = (
			SELECT COUNT(*) FROM vote
			WHERE vote.candidate_id = candidate.id AND vote.election_id = candidate.election_id
		)
		WHERE election_id = $1
	`, electionID)
	if err != nil {
		return unavailable("rebuild tallies", err)
	}
	return nil
}

// Voter activity log

func (s *Store) LogActivity(ctx context.Context, l models.VoterLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voter_log (id, voter_id, election_id, status, ip_address, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.VoterID, l.ElectionID, l.Status, l.IPAddress, l.LoggedAt.UTC())
	if err != nil {
		return unavailable("insert voter log", err)
	}
	return nil
}

// ListVoterLogs returns an election's audit trail, newest first
func (s *Store) ListVoterLogs(ctx context.Context, electionID string) ([]models.VoterLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.voter_id, COALESCE(u.name, ''), COALESCE(u.email, ''),
		       l.election_id, l.status, l.ip_address, l.logged_at
		FROM voter_log l
		LEFT JOIN app_user u ON u.id = l.voter_id
		WHERE l.election_id = $1
		ORDER BY l.logged_at DESC, l.id
	`, electionID)
	if err != nil {
		return nil, unavailable("query voter logs", err)
	}
	defer rows.Close()

	logs := []models.VoterLog{}
	for rows.Next() {
		var l models.VoterLog
		if err := rows.Scan(&l.ID, &l.VoterID, &l.VoterName, &l.VoterEmail,
			&l.ElectionID, &l.Status, &l.IPAddress, &l.LoggedAt); err != nil {
			return nil, unavailable("scan voter log", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate voter logs", err)
	}
	return logs, nil
}

func nullableHash(hash *string) any {
	if hash == nil || *hash == "" {
		return nil
	}
	return *hash
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
