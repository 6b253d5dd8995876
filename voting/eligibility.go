// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"strings"

	"github.com/voteverse/server/auth"
	"github.com/voteverse/server/models"
)

// EligibilityRules is the subset of an election that gates voters
type EligibilityRules struct {
	AllowedEmails  []string
	AllowedDomains []string
	PasswordHash   string // empty when not password protected
}

func RulesFor(e *models.Election) EligibilityRules {
	rules := EligibilityRules{
		AllowedEmails:  e.AllowedEmails,
		AllowedDomains: e.AllowedDomains,
	}
	if e.PasswordHash != nil {
		rules.PasswordHash = *e.PasswordHash
	}
	return rules
}

// Restricted reports whether identity allow-lists are configured
func (r EligibilityRules) Restricted() bool {
	return len(r.AllowedEmails) > 0 || len(r.AllowedDomains) > 0
}

// Evaluate decides whether a voter may vote. It returns nil when allowed, or
// one of ErrNotEligible, ErrPasswordRequired, ErrInvalidPassword.
//
// Precedence, first match wins:
//  1. allow-lists configured: email must be listed or its domain must match;
//     any password on the election is ignored
//  2. password configured: supplied password must match the hash
//  3. otherwise open to every authenticated voter
func Evaluate(rules EligibilityRules, email, password string) error {
	if rules.Restricted() {
		if emailAllowed(rules, email) {
			return nil
		}
		return ErrNotEligible
	}

	if rules.PasswordHash != "" {
		if password == "" {
			return ErrPasswordRequired
		}
		if !auth.CheckPassword(rules.PasswordHash, password) {
			return ErrInvalidPassword
		}
	}

	return nil
}

func emailAllowed(rules EligibilityRules, email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}

	for _, allowed := range rules.AllowedEmails {
		if NormalizeEmail(allowed) == email {
			return true
		}
	}

	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	host := email[at+1:]
	for _, d := range rules.AllowedDomains {
		d = NormalizeDomain(d)
		if d == "" {
			continue
		}
		// Subdomains of an allowed domain also match
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeDomain lower-cases and strips a leading "@" so "@Corp.com" and
// "corp.com" compare equal.
func NormalizeDomain(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "@")
}
