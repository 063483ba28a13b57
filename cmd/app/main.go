// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"webnovel-billing/internal/config"
	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/domain/ports/repository"
	payAdapters "webnovel-billing/internal/infra/adapters/payment"
	pg "webnovel-billing/internal/infra/db/postgres"
	httpapi "webnovel-billing/internal/infra/http"
	"webnovel-billing/internal/infra/logging"
	"webnovel-billing/internal/infra/metrics"
	red "webnovel-billing/internal/infra/redis"
	"webnovel-billing/internal/infra/sched"
	"webnovel-billing/internal/infra/web"
	"webnovel-billing/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop payment gateway)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	notifRepo := pg.NewNotificationRepo(pool)
	tm := pg.NewTxManager(pool)

	var catalogRepo repository.PackageRepository = pg.NewPackageRepo(pool)

	// ---- Redis (optional: catalog cache + lazy-expiry work dedup) ----
	var locker *red.RedisLocker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		catalogRepo = pg.NewPackageRepoCacheDecorator(catalogRepo, redisClient, cfg.Redis.TTL)
	}
	packages := usecase.NewPackageUseCase(catalogRepo)

	// ---- Payment gateways ----
	gateways := map[string]adapter.PaymentGateway{}
	if cfg.Payment.PayPal.ClientID != "" {
		ppReturn := cfg.HTTP.PublicURL + "/api/v1/paypal/return"
		ppCancel := cfg.HTTP.PublicURL + "/api/v1/paypal/cancel"
		gw := payAdapters.NewPayPalGateway(cfg.Payment.PayPal.ClientID, cfg.Payment.PayPal.Secret, cfg.Payment.PayPal.Sandbox, ppReturn, ppCancel, cfg.Payment.Timeout)
		gateways[gw.Name()] = gw
		logger.Info().Bool("sandbox", cfg.Payment.PayPal.Sandbox).Msg("payment gateway: paypal")
	}
	if cfg.Payment.Cryptomus.MerchantID != "" {
		gw := payAdapters.NewCryptomusGateway(cfg.Payment.Cryptomus.MerchantID, cfg.Payment.Cryptomus.APIKey, cfg.Payment.Cryptomus.BaseURL, cfg.Payment.Timeout)
		gateways[gw.Name()] = gw
		logger.Info().Msg("payment gateway: cryptomus")
	}
	if cfg.Runtime.Dev {
		gw := payAdapters.NewNoopGateway()
		gateways[gw.Name()] = gw
		logger.Warn().Msg("payment gateway: noop (dev mode)")
	}
	if len(gateways) == 0 {
		logger.Fatal().Msg("no payment gateway configured")
	}

	// ---- Use cases ----
	account := usecase.NewAccountUseCase(userRepo, notifRepo, tm, logger)
	membership := usecase.NewMembershipUseCase(userRepo, notifRepo, tm, nil, logger)
	if locker != nil {
		membership = usecase.NewMembershipUseCase(userRepo, notifRepo, tm, locker, logger)
	}
	ledger := usecase.NewLedgerUseCase(purchaseRepo, userRepo, catalogRepo, notifRepo, account, membership, gateways, tm, logger)

	// ---- Servers ----
	publicSrv := httpapi.NewServer(cfg, ledger, membership, gateways, logger)
	adminSrv := web.NewServer(cfg, account, ledger, packages, notifRepo, logger)

	go func() {
		if err := publicSrv.Start(); err != nil {
			logger.Error().Err(err).Msg("public server stopped")
			stop()
		}
	}()
	go func() {
		if err := adminSrv.Start(); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
			stop()
		}
	}()

	// ---- Workers ----
	expiry := sched.NewExpiryWorker(cfg.Sweep.Interval, membership, logger)
	go func() { _ = expiry.Run(ctx) }()

	reconciler := sched.NewPurchaseReconciler(ledger, purchaseRepo, gateways, cfg.Sweep.ReconcileInterval, cfg.Sweep.ReconcileStaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	logger.Info().Msg("billing engine up")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Payment.Timeout)
	defer cancel()
	_ = publicSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)
	logger.Info().Msg("billing engine down")
}
