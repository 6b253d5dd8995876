// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/voteverse/server/models"
)

func TestChannel(t *testing.T) {
	if got := Channel("abc"); got != "election:abc:tally" {
		t.Errorf("Channel() = %q, want election:abc:tally", got)
	}
}

func TestDecodeUpdate(t *testing.T) {
	valid, _ := json.Marshal(models.TallyUpdate{ElectionID: "abc", CandidateID: "c", NewTally: 3})

	tests := []struct {
		name    string
		channel string
		payload string
		wantErr bool
	}{
		{"valid", Channel("abc"), string(valid), false},
		{"wrong channel", Channel("other"), string(valid), true},
		{"garbage", Channel("abc"), "{not json", true},
		{"missing election", Channel(""), `{"new_tally": 1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := decodeUpdate(tt.channel, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && u.NewTally != 3 {
				t.Errorf("NewTally = %d, want 3", u.NewTally)
			}
		})
	}
}

func TestRedisRelay_ForwardsIntoHub(t *testing.T) {
	hub := NewHub(nil)
	relay := &RedisRelay{hub: hub}

	sub := hub.Subscribe("abc")
	defer sub.Close()

	payload, _ := json.Marshal(models.TallyUpdate{ElectionID: "abc", CandidateID: "c", NewTally: 7})
	relay.forward(context.Background(), &redis.Message{Channel: Channel("abc"), Payload: string(payload)})
	relay.forward(context.Background(), &redis.Message{Channel: Channel("abc"), Payload: "junk"})

	if got := receive(t, sub); got.NewTally != 7 {
		t.Errorf("NewTally = %d, want 7", got.NewTally)
	}
	select {
	case u := <-sub.C:
		t.Errorf("malformed message was forwarded: %+v", u)
	default:
	}
}

func TestNewRedisRelay_BadURL(t *testing.T) {
	if _, err := NewRedisRelay(context.Background(), "not-a-redis-url", NewHub(nil)); err == nil {
		t.Error("expected error for invalid URL")
	}
}
