// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package events publishes accepted votes to Kafka. One message per vote,
// keyed by election id, JSON-encoded TallyUpdate as the value.
package events
