package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"treasury-reconciler/internal/broker"
	"treasury-reconciler/internal/cache"
	"treasury-reconciler/internal/config"
	"treasury-reconciler/internal/database"
	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"
	"treasury-reconciler/internal/models"
	"treasury-reconciler/internal/provider/ponto"
	"treasury-reconciler/internal/repositories/kafkarepo"
	"treasury-reconciler/internal/repositories/postgresrepo"
	"treasury-reconciler/internal/repositories/redisrepo"
	"treasury-reconciler/internal/resolver"
	"treasury-reconciler/internal/scheduler"
	"treasury-reconciler/internal/services"
	"treasury-reconciler/internal/transport/http/handler"
	"treasury-reconciler/internal/worker"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
)

type App struct {
	cfg              *config.Config
	logger           logging.Logger
	db               *sqlx.DB
	kafkaWriter      *kafka.Writer
	httpServer       *http.Server
	partitionManager *worker.PartitionManager
	scheduler        *scheduler.Scheduler
}

// @title Treasury Reconciler API
// @version 1.0
// @description Bank-feed reconciliation and periodic settlement of community treasuries.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func New() (*App, error) {
	a := new(App)

	// Initialize config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.NewLoggerWithService("treasury-reconciler")

	policy, err := services.ParseRewardPolicy(a.cfg.Sync.RewardPolicy)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	// Connect to database
	a.db, err = database.NewPostgres(a.cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", err)
	}
	if err := database.EnsureSchema(context.Background(), a.db); err != nil {
		return nil, err
	}

	// Connect to cache
	redis, err := cache.NewRedis(a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("cache connection error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize repositories
	operationRepo := postgresrepo.NewOperationRepo(a.db)
	accountRepo := postgresrepo.NewAccountRepo(a.db)
	treasuryRepo := postgresrepo.NewTreasuryRepo(a.db)
	lockRepo := redisrepo.NewLockRepository(redis)

	// Settlement notifications are optional
	var notifier services.SettlementNotifier
	if a.cfg.Kafka.KafkaEnabled() {
		a.kafkaWriter, err = broker.NewKafkaWriter(a.cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("broker connection error: %w", err)
		}
		notifier = kafkarepo.NewSettlementRepository(a.kafkaWriter)
	} else {
		a.logger.Warn("No Kafka brokers configured, settlement notifications and card events are disabled")
	}

	// Initialize services
	pontoClient := ponto.NewClient(a.cfg.Ponto, &http.Client{Timeout: 30 * time.Second})
	accountResolver := resolver.New(accountRepo)

	payg := services.NewPaygReconciler(operationRepo, pontoClient, accountResolver, notifier, m, a.logger)
	periodic := services.NewPeriodicReconciler(
		operationRepo, pontoClient, accountResolver, accountRepo, notifier, m, a.logger,
		services.PeriodicOptions{
			Locker:  lockRepo,
			LockTTL: a.cfg.Sync.LockTTL,
			Policy:  policy,
		},
	)
	syncService := services.NewSyncService(
		treasuryRepo, payg, periodic, ponto.NewTokenHolder(time.Now),
		a.cfg.Sync.TreasuryTimeout, m, a.logger,
	)
	operationService := services.NewOperationService(operationRepo, treasuryRepo)
	accountService := services.NewAccountService(accountRepo, treasuryRepo, a.logger)

	if a.cfg.Kafka.KafkaEnabled() {
		cardEventService := services.NewCardEventService(operationRepo, accountRepo, treasuryRepo, notifier, m, a.logger)
		a.partitionManager = worker.NewPartitionManager(a.cfg, cardEventService, m, a.logger)
	}

	if a.cfg.Sync.Cron != "" {
		a.scheduler = scheduler.New(a.logger)
		job := scheduler.NewSyncJob(syncService, models.SyncProviderPonto, a.cfg.Sync.RunTimeout)
		if err := a.scheduler.AddJob(a.cfg.Sync.Cron, job); err != nil {
			return nil, fmt.Errorf("invalid SYNC_CRON: %w", err)
		}
	}

	// Initialize mux and handlers
	mux := http.NewServeMux()

	handler.NewSync(mux, syncService, a.cfg.Server.TriggerToken, a.cfg.Sync.RunTimeout, a.logger)
	handler.NewTreasury(mux, operationService, accountService, a.logger)
	handler.NewSystem(mux, registry)

	// Initialize http server; a sync run may take up to the run timeout
	a.httpServer = &http.Server{
		Addr:         a.cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: a.cfg.Sync.RunTimeout + 10*time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return a, nil
}

// Run serves until SIGINT or SIGTERM, then drains the workers and the server.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if a.partitionManager != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.partitionManager.Start(ctx); err != nil {
				a.logger.WithError(err).Error("Card event workers stopped")
			}
		}()
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", a.cfg.Server.Port).Info("Starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("http server error: %w", err)
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	case runErr = <-serverErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("HTTP server shutdown")
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	wg.Wait()

	a.close()
	return runErr
}

func (a *App) close() {
	if a.kafkaWriter != nil {
		if err := a.kafkaWriter.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close kafka writer")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}
