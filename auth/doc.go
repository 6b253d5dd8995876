// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credential and identifier utilities.

# Session Tokens

Session tokens are HS256 JWTs carrying a user_id claim:

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	token, err := issuer.Issue(user.ID)
	userID, err := issuer.Verify(token)

Verify rejects tokens signed with another secret or algorithm and expired tokens.

# Passwords

User passwords and election vote passwords are stored as bcrypt hashes:

	hash, err := auth.HashPassword(plain)
	ok := auth.CheckPassword(hash, plain)

# ID Generation

Random UUIDs for database records:

	id, err := auth.GenerateID()
*/
package auth
