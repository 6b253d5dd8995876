// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connecting

Open supports PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite):

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

SQLite connections are limited to one so writers queue instead of failing
with SQLITE_BUSY.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
Statements use $n placeholders, which both drivers accept.

# Tables

  - app_user: Accounts, admin and verified flags
  - election: Metadata, active flag, dates, optional vote password hash
  - election_allowed_email, election_allowed_domain: Eligibility allow-lists
  - candidate: Name, bio, cached vote_count
  - election_roster: Ordered candidate ids per election
  - election_voter: Participation list
  - vote: The ledger, UNIQUE (voter_id, election_id)
  - voter_log: voted/attempted audit trail

# Relationships

	app_user 1──* election
	election 1──* candidate
	election 1──* election_roster *──1 candidate
	election 1──* vote
	election 1──* election_voter

# Unique Violations

IsUniqueViolation recognizes both pq code 23505 and SQLite's unique and
primary key constraint codes. The vote ledger relies on it to turn a
duplicate vote into AlreadyVoted.
*/
package db
