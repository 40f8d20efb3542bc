// Package indexer consumes the settlement event topic and persists
// each event into the SQLite index for querying.
package indexer

import (
	"context"
	"errors"
	"log/slog"

	"folio/infra/kafka"
	"folio/infra/storage"
	"folio/service"
)

// consumer is the slice of the Kafka consumer the indexer needs,
// narrow enough to fake in tests.
type consumer interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context) error
}

type Indexer struct {
	log   *slog.Logger
	src   consumer
	store *storage.Storage
}

func New(log *slog.Logger, src consumer, store *storage.Storage) *Indexer {
	return &Indexer{log: log, src: src, store: store}
}

// Run consumes until ctx is canceled. Offsets commit only after the
// row is stored, so redelivered events hit the index's dedupe instead
// of getting lost.
func (ix *Indexer) Run(ctx context.Context) error {
	ix.log.Info("indexer started")
	for {
		msg, err := ix.src.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := ix.index(msg); err != nil {
			// Malformed payloads are logged and skipped; blocking the
			// partition on one bad message would stall the index forever.
			ix.log.Error("unindexable event", "err", err)
		}
		if err := ix.src.Commit(ctx); err != nil {
			return err
		}
	}
}

func (ix *Indexer) index(msg kafka.Message) error {
	ev, err := service.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}
	return ix.store.SaveEvent(&storage.EventRow{
		Seq:       ev.Seq,
		EventID:   ev.ID,
		Type:      ev.Type,
		Payload:   msg.Value,
		EventTime: ev.Time,
	})
}
