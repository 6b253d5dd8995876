package models

import "time"

// Election status constants, derived from the active flag and end date
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Voter log status constants
const (
	LogStatusVoted     = "voted"
	LogStatusAttempted = "attempted"
)

// Request types

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateElectionRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        time.Time  `json:"end_date"`
	VotePassword   string     `json:"vote_password,omitempty"`
	AllowedEmails  []string   `json:"allowed_emails,omitempty"`
	AllowedDomains []string   `json:"allowed_domains,omitempty"`
}

// Nil fields are left unchanged
type UpdateElectionRequest struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Candidates     *[]string  `json:"candidates,omitempty"`
	VotePassword   *string    `json:"vote_password,omitempty"`
	AllowedEmails  *[]string  `json:"allowed_emails,omitempty"`
	AllowedDomains *[]string  `json:"allowed_domains,omitempty"`
}

type AddCandidateRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

type CastVoteRequest struct {
	ElectionID   string `json:"election_id"`
	CandidateID  string `json:"candidate_id"`
	VotePassword string `json:"vote_password,omitempty"`
}

// Response types

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type CastVoteResponse struct {
	VoteID    string `json:"vote_id"`
	VoteCount int    `json:"vote_count"`
}

type ElectionView struct {
	Election   Election    `json:"election"`
	Status     string      `json:"status"`
	ClosesIn   string      `json:"closes_in,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

type ElectionList struct {
	Count     int        `json:"count"`
	Elections []Election `json:"elections"`
}

type CandidateList struct {
	Count      int         `json:"count"`
	Candidates []Candidate `json:"candidates"`
}

type LedgerResponse struct {
	ElectionID string        `json:"election_id"`
	TotalVotes int           `json:"total_votes"`
	Votes      []LedgerEntry `json:"votes"`
}

type VoterLogResponse struct {
	ElectionID string     `json:"election_id"`
	Logs       []VoterLog `json:"logs"`
}

type TallyCheckResponse struct {
	ElectionID string          `json:"election_id"`
	Drift      []TallyMismatch `json:"drift"`
	Rebuilt    bool            `json:"rebuilt"`
}

// Domain types

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Verified     bool      `json:"verified"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type Election struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	OwnerID           string     `json:"owner_id"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	Active            bool       `json:"active"`
	PasswordHash      *string    `json:"-"` // Never expose in JSON
	PasswordProtected bool       `json:"password_protected"`
	AllowedEmails     []string   `json:"-"`
	AllowedDomains    []string   `json:"-"`
	Restricted        bool       `json:"restricted"`
	AllowList         *AllowList `json:"allow_list,omitempty"` // owner responses only
	CandidateIDs      []string   `json:"candidate_ids"`
	Participants      int        `json:"participants"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AllowList is the voter allow-list as shown to the election's owner
type AllowList struct {
	Emails  []string `json:"emails"`
	Domains []string `json:"domains"`
}

// RevealAllowList copies the allow-lists into the serialized view. Call it
// only on responses addressed to the owner.
func (e *Election) RevealAllowList() {
	list := &AllowList{Emails: e.AllowedEmails, Domains: e.AllowedDomains}
	if list.Emails == nil {
		list.Emails = []string{}
	}
	if list.Domains == nil {
		list.Domains = []string{}
	}
	e.AllowList = list
}

// IsOpen reports whether votes and candidates may still be added.
// Both the explicit flag and the end date must agree; either one closes.
func (e *Election) IsOpen(now time.Time) bool {
	return e.Active && now.Before(e.EndDate)
}

func (e *Election) Status(now time.Time) string {
	if e.IsOpen(now) {
		return StatusOpen
	}
	return StatusClosed
}

type Candidate struct {
	ID         string    `json:"id"`
	ElectionID string    `json:"election_id"`
	Name       string    `json:"name"`
	Bio        string    `json:"bio"`
	VoteCount  int       `json:"vote_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type Vote struct {
	ID          string    `json:"id"`
	VoterID     string    `json:"voter_id"`
	ElectionID  string    `json:"election_id"`
	CandidateID string    `json:"candidate_id"`
	VotedAt     time.Time `json:"voted_at"`
}

// LedgerEntry is a vote joined with voter and candidate names for the owner view
type LedgerEntry struct {
	Vote
	VoterName     string `json:"voter_name"`
	VoterEmail    string `json:"voter_email"`
	CandidateName string `json:"candidate_name"`
}

type VoterLog struct {
	ID         string    `json:"id"`
	VoterID    string    `json:"voter_id"`
	VoterName  string    `json:"voter_name,omitempty"`
	VoterEmail string    `json:"voter_email,omitempty"`
	ElectionID string    `json:"election_id"`
	Status     string    `json:"status"`
	IPAddress  string    `json:"ip_address"`
	LoggedAt   time.Time `json:"logged_at"`
}

// TallyUpdate is broadcast on an election's live channel after each accepted vote
type TallyUpdate struct {
	ElectionID        string    `json:"election_id"`
	CandidateID       string    `json:"candidate_id"`
	NewTally          int       `json:"new_tally"`
	TotalParticipants int       `json:"total_participants"`
	VoterDisplayName  string    `json:"voter_display_name"`
	Timestamp         time.Time `json:"timestamp"`
}

// Result types

type Standing struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`        // Counted from the ledger
	CachedTally int    `json:"cached_tally"` // Candidate.VoteCount at read time
	Rank        int    `json:"rank"`         // 1-indexed ranking
}

type ElectionResult struct {
	ElectionID string     `json:"election_id"`
	Title      string     `json:"title"`
	ClosedAt   time.Time  `json:"closed_at"`
	TotalVotes int        `json:"total_votes"`
	Standings  []Standing `json:"standings"`
	Winner     *Standing  `json:"winner"`
}

type TallyMismatch struct {
	CandidateID string `json:"candidate_id"`
	Cached      int    `json:"cached"`
	Ledger      int    `json:"ledger"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
