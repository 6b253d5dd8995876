// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the VoteVerse API server.

VoteVerse runs online elections: owners create elections and candidates,
authenticated users cast one vote per election, observers watch tallies
change live, and results are published once an election ends.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=voteverse.db JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --jwt-secret ...

A .env file in the working directory is loaded if present.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string
  - JWT_SECRET (--jwt-secret): Session token signing secret

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - TOKEN_TTL (--token-ttl): Session lifetime (default: 24h)
  - REDIS_URL (--redis): Share live updates between instances
  - KAFKA_BROKERS (--kafka): Emit accepted votes as Kafka events
  - KAFKA_TOPIC (--kafka-topic): Event topic (default: votes)
  - ALLOWED_ORIGIN (--origin): CORS and websocket origin

# Architecture

The server uses a handler-based architecture with dependency injection:

  - voting: Election lifecycle, eligibility, vote casting and results
  - live: Per-election tally channels (websocket hub, Redis relay, fan-out)
  - events: Kafka vote event publisher
  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: Identity, error mapping, CORS, logging, JSON helpers
  - metrics: Prometheus collectors
  - models: Request/response and domain types
  - auth: IDs, password hashing and session tokens
  - db: Connection setup and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
