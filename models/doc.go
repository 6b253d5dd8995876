// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - User: identity record; PasswordHash is never serialized
  - Election: lifecycle state, roster ids, allow-lists; PasswordHash is never serialized
  - Candidate: name, bio and cached VoteCount
  - Vote: one ledger entry per voter per election
  - VoterLog: voted/attempted audit row
  - TallyUpdate: live channel event

# Election State

An election is open while Active is set and the end date lies in the future:

	if !election.IsOpen(time.Now()) {
		// closed explicitly or by elapsed time
	}

# Results

ElectionResult lists Standings ranked by ledger count. CachedTally carries
the candidate counter for comparison; Winner is nil for an empty roster.
*/
package models
