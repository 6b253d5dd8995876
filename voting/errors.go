// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindValidation
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error pairs a reason with its kind. Reason is a stable machine-readable code.
type Error struct {
	Kind   Kind
	Reason string
	msg    string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, msg: msg}
}

var (
	ErrElectionNotFound  = newError(KindNotFound, "election_not_found", "election not found")
	ErrCandidateNotFound = newError(KindNotFound, "candidate_not_found", "candidate not found")
	ErrUserNotFound      = newError(KindNotFound, "user_not_found", "user not found")
	ErrInvalidCandidate  = newError(KindValidation, "invalid_candidate", "invalid candidate for this election")
	ErrElectionNotActive = newError(KindValidation, "election_not_active", "election is not active")
	ErrElectionClosed    = newError(KindValidation, "election_closed", "election has ended")
	ErrAlreadyClosed     = newError(KindValidation, "already_closed", "election is already ended")
	ErrElectionOpen      = newError(KindValidation, "election_still_open", "election has not ended yet")
	ErrInvalidReference  = newError(KindValidation, "invalid_reference", "candidate reference is invalid")
	ErrInvalidInput      = newError(KindValidation, "invalid_input", "invalid input")
	ErrNotEligible       = newError(KindForbidden, "not_eligible", "you are not eligible to vote in this election")
	ErrPasswordRequired  = newError(KindForbidden, "password_required", "election password is required")
	ErrInvalidPassword   = newError(KindForbidden, "invalid_password", "election password is incorrect")
	ErrNotOwner          = newError(KindForbidden, "not_owner", "only the election owner may do this")
	ErrAlreadyVoted      = newError(KindConflict, "already_voted", "you have already voted in this election")
	ErrDuplicateEmail    = newError(KindConflict, "duplicate_email", "email is already registered")
	ErrUnavailable       = newError(KindUnavailable, "storage_unavailable", "storage unavailable")
)

// Invalid returns a validation error with a specific message that still
// matches ErrInvalidInput under errors.Is.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// unavailable wraps a storage failure so callers can retry
// Unavailable marks err as a storage failure so callers outside this
// package answer with a retryable status.
func Unavailable(op string, err error) error {
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason code of the first *Error in err's chain
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
