package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"housekeeper/internal/api"
	"housekeeper/internal/config"
	"housekeeper/internal/database"
	"housekeeper/internal/domain"
	"housekeeper/internal/events"
	"housekeeper/internal/export"
	"housekeeper/internal/logging"
	"housekeeper/internal/metrics"
	"housekeeper/internal/models"
	"housekeeper/internal/notify"
	"housekeeper/internal/pms"
	"housekeeper/internal/price"
	"housekeeper/internal/repository"
	"housekeeper/internal/syncer"
	"housekeeper/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	locker := initLocker(redisClient, &logger)

	bus := events.NewEventBus()
	wireTaskMetrics(bus)

	pmsClient := pms.NewClient(cfg.PMS)
	auth := models.PMSAuth{Token: cfg.PMS.Token, PropKey: cfg.PMS.PropKey}
	calculator := price.NewCalculator(cfg.Pricing.MaxNights)
	dispatcher := initDispatcher(cfg, &logger)

	reconciler := syncer.NewReconciler(db, db, pmsClient, auth, bus, &logger)
	orchestrator := syncer.NewOrchestrator(reconciler, db, db, db, dispatcher, locker, bus, syncer.OrchestratorOptions{
		PropertyIDs:      cfg.PMS.PropertyIDs,
		WindowPastDays:   cfg.Sync.WindowPastDays,
		WindowFutureDays: cfg.Sync.WindowFutureDays,
		LockTTL:          time.Duration(cfg.Sync.LockTTLSeconds) * time.Second,
	}, &logger)

	exporter := export.NewExporter(db, db, cfg.Exports.Path, &logger)
	httpServer := api.NewHTTPServer(*cfg, orchestrator, calculator, pmsClient, db, db, dispatcher, exporter, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	if cfg.Sync.ScheduleEnabled {
		interval := time.Duration(cfg.Sync.ScheduleIntervalMinutes) * time.Minute
		scheduler := worker.NewScheduler(orchestrator, interval, &logger)
		scheduler.Start(ctx)
		defer scheduler.Wait()
	}

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "main")

	return cfg, logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	// Teams come from config; the database is the runtime source of truth.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := range cfg.Teams {
		if err := db.UpsertTeam(ctx, &cfg.Teams[i]); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed team %d: %w", cfg.Teams[i].ID, err)
		}
	}

	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initLocker(redisClient *redis.Client, logger *zerolog.Logger) domain.RunLocker {
	local := repository.NewLocalRunLock()
	if redisClient == nil {
		return local
	}
	return repository.NewFailoverRunLock(repository.NewRedisRunLock(redisClient), local, logger)
}

func initDispatcher(cfg *config.Config, logger *zerolog.Logger) *notify.Dispatcher {
	senders := []domain.ChannelSender{
		notify.NewWebhookSender(10 * time.Second),
	}

	if cfg.Notify.Telegram.BotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Notify.Telegram.BotToken)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram channel")
		} else {
			senders = append(senders, notify.NewTelegramSender(botAPI))
		}
	}

	if cfg.Notify.Email.Host != "" {
		senders = append(senders, notify.NewEmailSender(cfg.Notify.Email))
	}

	policy := notify.RetryPolicy{
		MaxRetries:    cfg.Notify.MaxRetries,
		InitialDelay:  time.Duration(cfg.Notify.RetryDelaySeconds) * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
	return notify.NewDispatcher(policy, logger, senders...)
}

func wireTaskMetrics(bus *events.EventBus) {
	bus.Subscribe(events.EventTaskCreated, func(*events.Event) error {
		metrics.IncTask("created")
		return nil
	})
	bus.Subscribe(events.EventTaskUpdated, func(*events.Event) error {
		metrics.IncTask("updated")
		return nil
	})
	bus.Subscribe(events.EventTaskCancelled, func(*events.Event) error {
		metrics.IncTask("cancelled")
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}
