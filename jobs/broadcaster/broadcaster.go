// Package broadcaster drains the event outbox to Kafka. Delivery is
// at-least-once: an entry is only acked after the broker confirmed it,
// so a crash between send and ack redelivers.
package broadcaster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"folio/infra/outbox"
)

// producer is the slice of sarama.SyncProducer the broadcaster needs.
type producer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type Broadcaster struct {
	log      *slog.Logger
	outbox   *outbox.Outbox
	producer producer
	topic    string
	interval time.Duration
}

// New connects a synchronous producer requiring acknowledgement from
// all in-sync replicas before an entry leaves the outbox.
func New(log *slog.Logger, ob *outbox.Outbox, brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("broadcaster: connect %v: %w", brokers, err)
	}
	return newWith(log, ob, p, topic), nil
}

func newWith(log *slog.Logger, ob *outbox.Outbox, p producer, topic string) *Broadcaster {
	return &Broadcaster{
		log:      log,
		outbox:   ob,
		producer: p,
		topic:    topic,
		interval: 250 * time.Millisecond,
	}
}

// Run drains pending entries until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started", "topic", b.topic)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := b.drainOnce(); err != nil {
				b.log.Error("outbox drain failed", "err", err)
			} else if n > 0 {
				b.log.Debug("events published", "count", n)
			}
		}
	}
}

// drainOnce publishes every pending entry in sequence order. A send
// failure skips the ack so the entry comes around on the next tick.
func (b *Broadcaster) drainOnce() (int, error) {
	published := 0
	err := b.outbox.ScanPending(func(e outbox.Entry) error {
		if err := b.outbox.MarkSent(e.Seq, time.Now().UnixNano()); err != nil {
			return err
		}
		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(fmt.Sprintf("%d", e.Seq)),
			Value: sarama.ByteEncoder(e.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("publish failed, will retry", "seq", e.Seq, "retries", e.Retries, "err", err)
			return nil
		}
		if err := b.outbox.MarkAcked(e.Seq, time.Now().UnixNano()); err != nil {
			return err
		}
		published++
		return nil
	})
	return published, err
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
