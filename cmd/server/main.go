package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"folio/api"
	"folio/domain/book"
	"folio/infra/config"
	"folio/infra/ledger"
	"folio/infra/logging"
	"folio/infra/outbox"
	"folio/infra/registry"
	"folio/infra/wal"
	"folio/jobs/broadcaster"
	"folio/service"
)

const (
	bookAddress     = "book"
	treasuryAddress = "treasury"
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

	// ---------------- Collaborators ----------------

	reg := registry.New()
	traded := ledger.NewMemory(cfg.Book.TradedSymbol)
	base := ledger.NewMemory(cfg.Book.BaseSymbol)

	// The book and treasury accounts are fixed out-of-band so they
	// hold ids 1 and 2 on every boot, before any journaled register.
	bookID, err := reg.Register(bookAddress)
	if err != nil {
		log.Error("register book account", "err", err)
		os.Exit(1)
	}
	treasuryID, err := reg.Register(treasuryAddress)
	if err != nil {
		log.Error("register treasury account", "err", err)
		os.Exit(1)
	}

	b := book.New(book.Config{
		PriceTick:    cfg.Book.PriceTick,
		ContractSize: cfg.Book.ContractSize,
		FeeRate:      cfg.Book.FeeRate,
		Account:      bookID,
		Treasury:     treasuryID,
	}, traded, base, reg)

	// ---------------- Durability ----------------

	w, err := wal.Open(wal.Config{
		Dir:             cfg.WAL.Dir,
		SegmentSize:     cfg.WAL.SegmentSize,
		SegmentDuration: cfg.WAL.SegmentDuration,
	})
	if err != nil {
		log.Error("open wal", "err", err)
		os.Exit(1)
	}
	defer w.Close()

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Error("open outbox", "err", err)
		os.Exit(1)
	}
	defer ob.Close()

	// ---------------- Service + replay ----------------

	genesis := make(map[string]service.GenesisBalances, len(cfg.Genesis.Accounts))
	for _, a := range cfg.Genesis.Accounts {
		genesis[a.Address] = service.GenesisBalances{Traded: a.Traded, Base: a.Base}
	}

	svc := service.New(service.Deps{
		Log:      log,
		Book:     b,
		Registry: reg,
		Traded:   traded,
		Base:     base,
		Genesis:  genesis,
		WAL:      w,
		Outbox:   ob,
	})
	if n, err := svc.ReplayWAL(cfg.WAL.Dir); err != nil {
		log.Error("wal replay failed", "records", n, "err", err)
		os.Exit(1)
	}

	// ---------------- Broadcaster ----------------

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) > 0 {
		bc, err := broadcaster.New(log, ob, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect broadcaster", "err", err)
			os.Exit(1)
		}
		defer bc.Close()
		go bc.Run(ctx)
	} else {
		log.Warn("no kafka brokers configured, events stay in the outbox")
	}

	// ---------------- HTTP ----------------

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(log, svc).Router(),
	}
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
