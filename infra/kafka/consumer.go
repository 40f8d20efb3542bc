// Package kafka wraps the consumer side of the event stream. The
// publishing side lives with the broadcaster job.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one consumed event frame.
type Message struct {
	Key   []byte
	Value []byte
	Time  time.Time
}

// Consumer reads the settlement event topic within a consumer group,
// committing offsets only after the caller processed the message.
type Consumer struct {
	reader  *kafka.Reader
	pending kafka.Message
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			CommitInterval: 0, // synchronous commits
		}),
	}
}

// Fetch blocks for the next message without committing it.
func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	c.pending = m
	return Message{Key: m.Key, Value: m.Value, Time: m.Time}, nil
}

// Commit acknowledges the message returned by the last Fetch.
func (c *Consumer) Commit(ctx context.Context) error {
	return c.reader.CommitMessages(ctx, c.pending)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
