package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/internal/config"
	"github.com/quorumsig/multisigd/pkg/aggregator"
	"github.com/quorumsig/multisigd/pkg/api"
	"github.com/quorumsig/multisigd/pkg/app"
	"github.com/quorumsig/multisigd/pkg/authn"
	"github.com/quorumsig/multisigd/pkg/blockchain"
	"github.com/quorumsig/multisigd/pkg/cache"
	"github.com/quorumsig/multisigd/pkg/core"
	"github.com/quorumsig/multisigd/pkg/memstorage"
	"github.com/quorumsig/multisigd/pkg/pgstorage"
	"github.com/quorumsig/multisigd/pkg/sentry"
	"github.com/quorumsig/multisigd/pkg/wallet"
)

type storage interface {
	SaveWallet(ctx context.Context, w core.Wallet) error
	GetWallet(ctx context.Context, id string) (core.Wallet, error)
	ListWallets(ctx context.Context) ([]core.Wallet, error)

	CreateTransaction(ctx context.Context, tx core.PendingTransaction) error
	GetTransaction(ctx context.Context, id string) (core.PendingTransaction, error)
	ListTransactions(ctx context.Context, walletID string) ([]core.PendingTransaction, error)
	UpdateTransaction(ctx context.Context, prior, next core.PendingTransaction) error

	CreateSignable(ctx context.Context, sg core.Signable) error
	GetSignable(ctx context.Context, id string) (core.Signable, error)
	ListSignables(ctx context.Context, walletID string) ([]core.Signable, error)
	UpdateSignable(ctx context.Context, prior, next core.Signable) error
}

func openStorage(ctx context.Context, log *zap.Logger, cfg config.Config) (storage, func(), error) {
	if cfg.Storage.DatabaseURL == "" {
		log.Warn("DATABASE_URL is empty, records are kept in memory")
		return memstorage.New(), func() {}, nil
	}
	s, err := pgstorage.New(ctx, log, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, s.Close, nil
}

func main() {
	cfg := config.Load()
	log := app.Logger(cfg.App.LogLevel)

	if err := sentry.Init(cfg.App.SentryDSN); err != nil {
		log.Warn("sentry init", zap.Error(err))
	}
	defer sentry.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStorage, err := openStorage(ctx, log, cfg)
	if err != nil {
		log.Fatal("storage init", zap.Error(err))
	}
	defer closeStorage()

	walletCache, err := cache.NewCache[core.Wallet](cfg.Cache.WalletItems)
	if err != nil {
		log.Fatal("wallet cache init", zap.Error(err))
	}
	registry := wallet.NewRegistry(log, store,
		wallet.WithWalletCache(walletCache, cfg.Cache.WalletTTL),
		wallet.WithIdentityCache(cfg.Cache.IdentitySize, cfg.Cache.IdentityTTL))

	var senderOpts []blockchain.Option
	if cfg.Submit.ProjectID != "" {
		senderOpts = append(senderOpts, blockchain.WithProjectID(cfg.Submit.ProjectID))
	}
	senderOpts = append(senderOpts, blockchain.WithAttempts(cfg.Submit.Attempts, app.RetryDelay))
	sender := blockchain.NewMsgSender(log, cfg.Submit.URL, senderOpts...)

	agg := aggregator.New(log, store, registry, sender, aggregator.WithSubmitTimeout(cfg.Submit.Timeout))

	handlerOpts := []api.Option{api.WithDefaultNetwork(cfg.App.Network)}
	if cfg.Auth.Secret != "" {
		handlerOpts = append(handlerOpts, api.WithAuthenticator(authn.New(cfg.Auth.Secret, cfg.Auth.TokenTTL)))
	} else {
		log.Warn("AUTH_SECRET is empty, claimed addresses are trusted")
	}
	h := api.NewHandler(log, registry, agg, handlerOpts...)
	server := api.NewServer(log, h, fmt.Sprintf(":%v", cfg.API.Port))

	metricServer := http.Server{
		Addr:    fmt.Sprintf(":%v", cfg.App.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listen and serve", zap.Error(err))
		}
	}()

	app.Run(ctx, log, server, &metricServer)
}
