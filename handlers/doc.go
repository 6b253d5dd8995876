// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the VoteVerse API.

# Handler Types

Each handler is a struct holding its dependencies:

  - UserHandler: registration, login and the current user
  - ElectionHandler: election lifecycle and candidate roster
  - VotingHandler: vote casting
  - ResultsHandler: results, owner ledger and voter activity log
  - LiveHandler: websocket subscription to tally updates
  - AdminHandler: user flags, election oversight and tally repair

Election, vote and result handlers delegate to voting.Service:

	svc := voting.NewService(voting.NewStore(db), publisher, metrics)
	elections := handlers.NewElectionHandler(svc)

# Election Lifecycle

An election is open while it is active and before its end date:

	POST   /elections                      → CreateElection
	PATCH  /elections/{id}                 → UpdateElection (owner)
	POST   /elections/{id}/candidates      → AddCandidate (owner, open only)
	DELETE /elections/{id}/candidates/{candidateId} → RemoveCandidate
	POST   /elections/{id}/close           → CloseElection (owner)

# Voting

	POST /votes → CastVote

The caller must be authenticated. Eligibility is checked against the
election's allow-lists first, then its vote password. A second vote in
the same election answers 409 with reason "already_voted".

# Results

	GET /elections/{id}/result → GetResult

Results are sealed until the election is closed. Standings are counted from
the ledger; ties keep roster order.

# Errors

Domain errors go through middleware.WriteError, which picks the status from
the error kind and adds a machine-readable reason.
*/
package handlers
