package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradelane/contract-ledger/internal/chain"
	"github.com/tradelane/contract-ledger/internal/config"
	"github.com/tradelane/contract-ledger/internal/httpx"
	"github.com/tradelane/contract-ledger/internal/notify"
	repo "github.com/tradelane/contract-ledger/internal/repo/mongo"
	"github.com/tradelane/contract-ledger/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(config.Getenv("CONFIG", "config.yaml"))
	if err != nil {
		logger.Error("config_error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := repo.New(ctx, repo.Config{
		URI:         cfg.Mongo.URI,
		DB:          cfg.Mongo.DB,
		Contracts:   cfg.Mongo.Contracts,
		Idempotency: cfg.Mongo.Idempotency,
		Outbox:      cfg.Mongo.Outbox,
	})
	if err != nil {
		logger.Error("mongo_error", "err", err)
		os.Exit(1)
	}

	var verifier service.ChainVerifier = chain.Disabled{}
	if cfg.ChainCheck != "" {
		verifier = chain.NewHTTPVerifier(cfg.ChainCheck)
	}

	svc := service.New(r, service.Options{
		Admins: cfg.Admins,
		Outbox: r,
		Chain:  verifier,
		Logger: logger,
	})

	var notifier notify.Notifier = &notify.LogNotifier{Log: logger}
	if cfg.Webhook.URL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	}
	dispatcher := notify.NewDispatcher(r, notifier, logger, cfg.Outbox.SweepInterval, cfg.Outbox.Batch)
	go dispatcher.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewMux(logger, svc, cfg.APIKeys, cfg.Rate),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http_error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	logger.Info("http_shutdown")
}
