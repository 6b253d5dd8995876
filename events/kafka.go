// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/voteverse/server/models"
)

// KafkaPublisher streams accepted votes to a Kafka topic for downstream
// consumers (analytics, audit archives).
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a writer for topic on brokers.
//
// Messages are keyed by election id and balanced with kafka.Hash, so every
// update of one election lands on the same partition in publish order.
// RequireAll waits for all in-sync replicas before a write counts as done.
// Payloads are JSON and compress well with Snappy.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}

	return &KafkaPublisher{writer: w}
}

func (kp *KafkaPublisher) Publish(ctx context.Context, update models.TallyUpdate) error {
	msg, err := message(update)
	if err != nil {
		return err
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func message(update models.TallyUpdate) (kafka.Message, error) {
	value, err := json.Marshal(update)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal tally update: %w", err)
	}

	return kafka.Message{
		Key:   []byte(update.ElectionID),
		Value: value,
		Time:  update.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("vote.accepted")},
			{Key: "candidate_id", Value: []byte(update.CandidateID)},
		},
	}, nil
}

func (kp *KafkaPublisher) Close() error {
	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
