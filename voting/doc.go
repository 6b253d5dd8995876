// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting implements election state, vote casting and result aggregation.

# Election Lifecycle

An election is open while its active flag is set and its end date has not
passed. Either condition closes it:

	POST /elections              → CreateElection (active, empty roster)
	POST /elections/{id}/candidates → AddCandidate (owner only, open only)
	PATCH /elections/{id}        → UpdateElection (roster replacement, password rotation)
	POST /elections/{id}/close   → CloseElection (active=false, end_date=now)

There is no draft state: a new election accepts candidates and votes at once.

# Eligibility

Evaluate is a pure function over an election's rules. Identity allow-lists
take precedence over the vote password; when either allow-list is configured
the password is never consulted:

	err := voting.Evaluate(voting.RulesFor(election), user.Email, password)

Domain entries match the address's host and its subdomains.

# Vote Casting

Service.Cast runs the checks, then records the ledger entry, the tally
increment and the participation entry in one SQL transaction. The ledger's
UNIQUE (voter_id, election_id) constraint is the only serialization point;
concurrent casts by the same voter yield one success and ErrAlreadyVoted for
the rest. Each accepted vote is published to the injected Publisher without
blocking the response.

# Results

Results are computed from ledger counts, never from the cached candidate
tallies. Ties keep roster order. CheckTallies reports and optionally repairs
cache drift.

# Errors

Every failure is a *Error carrying a Kind for the transport layer and a
stable reason code. Storage failures wrap ErrUnavailable and may be retried.
*/
package voting
