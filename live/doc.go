// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package live fans tally updates out to observers of an election.

Each election has one logical channel. A Hub holds the subscribers of every
channel in this process and is constructed once and passed to whoever needs
it:

	hub := live.NewHub(m)
	sub := hub.Subscribe(electionID)
	defer sub.Close()
	for update := range sub.C { ... }

Publishing never blocks. A subscriber whose buffer is full is dropped and its
channel closed. Nothing is stored, so late joiners only see later updates.

ServeWS exposes a channel over a websocket as JSON text messages.

With several server instances, RedisRelay carries updates through the Redis
channel election:{id}:tally and feeds them into each instance's Hub. Fanout
combines sinks (relay, hub, Kafka) behind one Publisher.
*/
package live
