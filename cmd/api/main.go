package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wildlife-governance/config"
	httpHandler "wildlife-governance/internal/adapter/http/handler"
	"wildlife-governance/internal/adapter/queue"
	"wildlife-governance/internal/adapter/scoring"
	"wildlife-governance/internal/adapter/storage/memory"
	pgStorage "wildlife-governance/internal/adapter/storage/postgres"
	redisStorage "wildlife-governance/internal/adapter/storage/redis"
	wshub "wildlife-governance/internal/adapter/websocket"
	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/internal/observability"
	"wildlife-governance/internal/service"
	"wildlife-governance/pkg/logger"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

const (
	screeningQueueSize = 256
	auditQueueSize     = 1024
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("api", cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("screening", cfg.Screening.Mode).
		Msg("Starting wildlife governance engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		store          ports.GovernanceStore
		healthCheckers []ports.HealthChecker
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if cfg.Database.Migrate {
			if err := pgStorage.Migrate(ctx, pool, log); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
		}
		store = pgStorage.NewGovernanceStore(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealth(pool))
	default:
		mem := memory.New()
		store = mem.GovernanceStore()
		healthCheckers = append(healthCheckers, mem)
		log.Warn().Msg("Using in-memory storage; state is lost on restart")
	}

	// Redis is optional. Interface-typed so a disabled cache stays a true nil.
	var (
		idempCache     ports.IdempotencyCache
		voteCache      ports.VoteCache
		statsCache     ports.StatsCache
		rateLimitStore ports.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		idempCache = redisStorage.NewIdempotencyCache(rdb)
		voteCache = redisStorage.NewVoteCache(rdb)
		statsCache = redisStorage.NewStatsCache(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealth(rdb))
	}

	clock := service.SystemClock{}
	eventLog := logger.Component(log, "events")
	bus := service.NewEventBus(store.Events, eventLog)

	// Event subscribers
	hub := wshub.NewHub(eventLog)
	bus.Subscribe(hub)

	var metrics *observability.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(cfg.Metrics.Namespace, reg)
		metricsHandler = observability.Handler(reg)
		bus.Subscribe(metrics)
	}

	var notifier *service.WebhookNotifier
	if len(cfg.Webhooks.URLs) > 0 {
		notifier = service.NewWebhookNotifier(
			cfg.Webhooks.URLs,
			cfg.Webhooks.Secret,
			service.NewHMACSignatureService(),
			&http.Client{Timeout: 10 * time.Second},
			nil,
			logger.Component(log, "webhook"),
		)
		notifier.Start(ctx)
		bus.Subscribe(notifier)
		log.Info().Int("count", len(cfg.Webhooks.URLs)).Msg("Webhook subscribers registered")
	}

	policy := service.GovernancePolicy{
		VotingPeriod:              cfg.Governance.VotingPeriod,
		ValidationThreshold:       cfg.Governance.ValidationThreshold,
		AutoValidateAfter:         cfg.Governance.AutoValidateAfter,
		ParticipationThresholdBps: cfg.Governance.ParticipationThresholdBps,
	}

	// AI pre-screening. The worker records through a registry without a
	// dispatcher so a screened project is never queued again.
	var (
		dispatcher      ports.ScreeningDispatcher
		localDispatcher *service.LocalScreeningDispatcher
	)
	switch cfg.Screening.Mode {
	case "local":
		screenLog := logger.Component(log, "screening")
		recorder := service.NewRegistryService(store, nil, bus, clock, policy, screenLog)
		scorer := scoring.NewClient(cfg.Screening.ScorerURL, cfg.Screening.ScorerToken, cfg.Screening.Timeout)
		worker := service.NewScreeningWorker(scorer, recorder, clock, screenLog)
		localDispatcher = service.NewLocalScreeningDispatcher(worker, screeningQueueSize, screenLog)
		dispatcher = localDispatcher
	case "sqs":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		dispatcher = queue.NewSQSDispatcher(sqs.NewFromConfig(awsCfg), cfg.Screening.QueueURL)
	}

	// Core services
	hashSvc := service.NewArgon2HashService(service.Argon2Params{
		MemoryKiB:  cfg.Auth.HashMemoryKiB,
		Iterations: cfg.Auth.HashIterations,
		Threads:    cfg.Auth.HashThreads,
	})
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer, clock)
	authSvc := service.NewAuthService(store.Members, hashSvc, tokenSvc, clock, cfg.Auth.Operators, cfg.Auth.Validators)
	memberSvc := service.NewMemberService(store.Members, log)
	auditSvc := service.NewAuditTrail(store.Audit, auditQueueSize, logger.Component(log, "audit"))

	ledgerSvc := service.NewLedgerService(store, clock, log)
	exchangeSvc := service.NewExchangeService(store, ledgerSvc, idempCache, bus, clock, log)
	registrySvc := service.NewRegistryService(store, dispatcher, bus, clock, policy, log)
	votingSvc := service.NewVotingService(store, registrySvc, voteCache, bus, clock, cfg.Governance.MinVotePower, log)
	statsSvc := service.NewStatsService(store, statsCache, clock, log)

	rate, err := decimal.NewFromString(cfg.Exchange.Rate)
	if err != nil {
		log.Fatal().Err(err).Str("rate", cfg.Exchange.Rate).Msg("Invalid exchange rate")
	}
	if err := exchangeSvc.EnsureConfig(ctx, domain.ExchangeConfig{
		Rate:           rate,
		FeeBasisPoints: cfg.Exchange.FeeBasisPoints,
		MinDonation:    cfg.Exchange.MinDonation,
		MaxDonation:    cfg.Exchange.MaxDonation,
		UpdatedBy:      "config",
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed exchange config")
	}

	// A ledger that does not add up must not serve traffic.
	if err := ledgerSvc.VerifySupply(ctx); err != nil {
		log.Fatal().Err(err).Msg("Ledger supply check failed")
	}

	corrupted := make(chan error, 1)
	onCorruption := func(err error) {
		if metrics != nil {
			metrics.RecordLedgerCorruption(err)
		}
		select {
		case corrupted <- err:
		default:
		}
	}

	sweeper := service.NewSweeper(
		registrySvc,
		ledgerSvc,
		cfg.Governance.AutoValidateInterval,
		cfg.Governance.SupplyCheckInterval,
		onCorruption,
		logger.Component(log, "sweeper"),
	)
	sweeper.Start(ctx)
	auditSvc.Start(ctx)
	if localDispatcher != nil {
		localDispatcher.Start(ctx)
	}

	deps := httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		MemberSvc:      memberSvc,
		TokenSvc:       tokenSvc,
		LedgerSvc:      ledgerSvc,
		ExchangeSvc:    exchangeSvc,
		RegistrySvc:    registrySvc,
		VotingSvc:      votingSvc,
		StatsSvc:       statsSvc,
		EventFeed:      bus,
		Hub:            hub,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		MetricsHandler: metricsHandler,
		HealthCheckers: healthCheckers,
		Logger:         log,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	router := httpHandler.SetupRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serveErr:
		log.Error().Err(err).Msg("HTTP server failed")
		exitCode = 1
	case err := <-corrupted:
		log.Error().Err(err).Msg("Ledger corrupted, stopping")
		exitCode = 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancel()
	sweeper.Wait()
	if localDispatcher != nil {
		localDispatcher.Wait()
	}
	if notifier != nil {
		notifier.Wait()
	}
	auditSvc.Wait()

	log.Info().Msg("Server exited")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
