// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded before flags are parsed.

# CLI Flags and Environment Variables

	-p            PORT           Server port (default 3318)
	-d            DATABASE_URL   Database URL (required)
	-t            DATABASE_TYPE  sqlite or postgres (default sqlite)
	-jwt-secret   JWT_SECRET     Session token signing secret (required)
	-token-ttl    TOKEN_TTL      Session token lifetime (default 24h)
	-redis        REDIS_URL      Enables cross-instance live updates
	-kafka        KAFKA_BROKERS  Enables the vote event stream
	-kafka-topic  KAFKA_TOPIC    Vote event topic (default votes)
	-origin       ALLOWED_ORIGIN CORS origin

CLI flags take precedence over environment variables.
*/
package cliparse
