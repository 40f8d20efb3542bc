package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"folio/infra/config"
	"folio/infra/kafka"
	"folio/infra/logging"
	"folio/infra/storage"
	"folio/jobs/indexer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.Logging.Dir, cfg.Logging.Level)

	if len(cfg.Kafka.Brokers) == 0 {
		log.Error("indexer requires kafka brokers")
		os.Exit(1)
	}

	store, err := storage.New(cfg.Index.DBPath)
	if err != nil {
		log.Error("open index db", "err", err)
		os.Exit(1)
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ix := indexer.New(log, consumer, store)
	if err := ix.Run(ctx); err != nil {
		log.Error("indexer stopped", "err", err)
		os.Exit(1)
	}
}
