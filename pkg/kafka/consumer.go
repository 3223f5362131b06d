// Package kafka provides producer and consumer clients backed by
// segmentio/kafka-go. Values travel as JSON; the consumer hands raw payloads
// to a MessageHandler.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
)

// MessageHandler is invoked for each fetched message. A nil return commits
// the message. An error leaves it uncommitted and the same message is handed
// over again after a backoff, so the offset never moves past a failure.
// Handlers must therefore return errors only for transient conditions.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from one topic as a member of the configured
// consumer group.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	backoff time.Duration
}

// NewConsumer creates a Consumer for topic. New groups start at the earliest
// offset so no queued request is skipped.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		backoff: time.Second,
	}
}

// Start runs the consume loop until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		logger.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))

		if !handleUntilDone(ctx, c.handler, msg, c.backoff, logger) {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error("failed to commit message", "error", err)
		}
	}
}

// handleUntilDone runs handler on msg until it succeeds. It reports false
// when ctx ended first, in which case msg must not be committed.
func handleUntilDone(ctx context.Context, handler MessageHandler, msg kafka.Message, backoff time.Duration, logger *slog.Logger) bool {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Error("failed to process message, retrying", "attempt", attempt, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
