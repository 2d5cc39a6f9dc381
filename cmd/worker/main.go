package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/i18n"
	pgRepo "github.com/EngSayh/Fixzit-sub003/internal/infra/adapter/persistence/postgres"
	"github.com/EngSayh/Fixzit-sub003/internal/infra/db"
	"github.com/EngSayh/Fixzit-sub003/internal/infra/messaging"
	"github.com/EngSayh/Fixzit-sub003/internal/infra/notifier"
	"github.com/EngSayh/Fixzit-sub003/internal/infra/tokenstore"
	workerPkg "github.com/EngSayh/Fixzit-sub003/internal/infra/worker"
	"github.com/EngSayh/Fixzit-sub003/internal/link"
	"github.com/EngSayh/Fixzit-sub003/internal/observability/logging"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
	"github.com/EngSayh/Fixzit-sub003/internal/resilience/circuitbreaker"
	"github.com/EngSayh/Fixzit-sub003/internal/resilience/retry"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
	"github.com/EngSayh/Fixzit-sub003/pkg/config"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.Any("error", err))
	}

	logger := logging.NewLogger()
	if config.GetEnvString("LOG_FORMAT", "json") == "text" {
		logger = logging.NewTextLogger()
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	workerMetrics := workerPkg.NewNotifierMetrics()
	workerConfig, _ := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.Int("max_retries", workerConfig.MaxRetries),
		slog.Duration("provider_timeout", workerConfig.ProviderTimeout),
		slog.String("reprocess_schedule", workerConfig.ReprocessSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("reprocess_batch", workerConfig.ReprocessBatch),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Bool("dry_run", workerConfig.DryRun))

	database, err := initDatabase(ctx, logger)
	if err != nil {
		logger.Error("database unavailable", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	guarded := circuitbreaker.NewDBCircuitBreaker(database)
	logStore := pgRepo.NewNotificationRepo(guarded)
	deadLetters := pgRepo.NewDeadLetterRepo(guarded)

	tokens, closeRedis := setupTokenStore(logger)
	defer closeRedis()

	sink, closeKafka := setupDeadLetterSink(logger, deadLetters)
	defer closeKafka()

	links := link.NewBuilder(loadLinkConfig())
	catalog, err := loadCatalog()
	if err != nil {
		logger.Error("failed to load message catalogue", slog.Any("error", err))
		os.Exit(1)
	}

	senders := setupSenders(logger, workerConfig, tokens, links.Sanitizer())

	dispatcherConfig := notify.DefaultDispatcherConfig()
	dispatcherConfig.MaxRetries = workerConfig.MaxRetries
	dispatcherConfig.ProviderTimeout = workerConfig.ProviderTimeout
	dispatcherConfig.Backoff.InitialDelay = workerConfig.RetryInitialDelay
	dispatcher := notify.NewDispatcher(senders, logStore, sink, logger, dispatcherConfig)

	builder := notify.NewBuilder(catalog, links, logStore, logger)
	service := notify.NewService(builder, dispatcher, logger)
	logger.Info("notification service initialized", slog.Int("channels", len(senders)))

	startMetricsServer(ctx, logger)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), dispatcher, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	reprocessor := notify.NewReprocessor(deadLetters, logStore, dispatcher, logger,
		workerConfig.ReprocessBatch, workerConfig.MaxRetries)
	scheduler, err := startReprocessCron(ctx, reprocessor, workerConfig, workerMetrics)
	if err != nil {
		logger.Error("failed to schedule dead-letter reprocessing", slog.Any("error", err))
		os.Exit(1)
	}

	consumerDone := startEventConsumer(ctx, logger, service)

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", workerConfig.ReprocessSchedule),
		slog.String("timezone", workerConfig.Timezone))

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	<-scheduler.Stop().Done()
	<-consumerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerConfig.ShutdownTimeout)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("in-flight dispatches did not drain", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

// initDatabase opens the database with retries and applies the schema.
func initDatabase(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	var database *sql.DB
	err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		d, err := db.Open(ctx)
		if err != nil {
			return err
		}
		database = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// setupTokenStore connects to REDIS_URL when set. Without Redis, invalid push
// tokens are only logged.
func setupTokenStore(logger *slog.Logger) (notifier.TokenStore, func()) {
	redisURL := config.GetEnvString("REDIS_URL", "")
	if redisURL == "" {
		logger.Info("push token store disabled")
		return nil, func() {}
	}

	store, client, err := tokenstore.Dial(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, push token store disabled", slog.Any("error", err))
		return nil, func() {}
	}
	logger.Info("push token store initialized")
	return store, func() { closeRedisClient(logger, client) }
}

func closeRedisClient(logger *slog.Logger, client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close redis client", slog.Any("error", err))
	}
}

// setupDeadLetterSink fans dead letters out to Kafka when KAFKA_BROKERS is set.
func setupDeadLetterSink(logger *slog.Logger, primary repository.DeadLetterSink) (repository.DeadLetterSink, func()) {
	brokers := config.GetEnvStringList("KAFKA_BROKERS", nil)
	if len(brokers) == 0 {
		return primary, func() {}
	}

	topic := config.GetEnvString("KAFKA_DEAD_LETTER_TOPIC", messaging.DefaultDeadLetterTopic)
	publisher := messaging.NewDeadLetterPublisher(brokers, topic, logger)
	logger.Info("dead-letter publisher initialized",
		slog.Any("brokers", brokers),
		slog.String("topic", topic))

	return notify.MultiDeadLetterSink{primary, publisher}, func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close dead-letter publisher", slog.Any("error", err))
		}
	}
}

// startEventConsumer feeds domain events from Kafka into the service when
// KAFKA_BROKERS is set. The returned channel closes once the consumer stopped.
func startEventConsumer(ctx context.Context, logger *slog.Logger, service *notify.Service) <-chan struct{} {
	done := make(chan struct{})
	brokers := config.GetEnvStringList("KAFKA_BROKERS", nil)
	if len(brokers) == 0 {
		logger.Info("event consumer disabled")
		close(done)
		return done
	}

	consumer := messaging.NewEventConsumer(brokers,
		config.GetEnvString("KAFKA_EVENT_TOPIC", messaging.DefaultEventTopic),
		config.GetEnvString("KAFKA_CONSUMER_GROUP", "fixzit-notifier"),
		service, logger)

	go func() {
		defer close(done)
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close event consumer", slog.Any("error", err))
			}
		}()
		if err := consumer.Run(ctx); err != nil {
			logger.Error("event consumer stopped", slog.Any("error", err))
		}
	}()
	logger.Info("event consumer started", slog.Any("brokers", brokers))
	return done
}

func loadLinkConfig() link.Config {
	return link.Config{
		WebBaseURL:     config.GetEnvString("LINK_WEB_BASE_URL", ""),
		DeepLinkScheme: config.GetEnvString("LINK_DEEP_LINK_SCHEME", ""),
		TrustedHosts:   config.GetEnvStringList("LINK_TRUSTED_HOSTS", nil),
	}
}

func loadCatalog() (*i18n.Catalog, error) {
	if path := config.GetEnvString("LOCALE_CATALOG_PATH", ""); path != "" {
		return i18n.LoadFile(path)
	}
	return i18n.Default()
}

// setupSenders builds one sender per enabled channel. In dry-run mode every
// provider is replaced with a logging sender.
func setupSenders(logger *slog.Logger, cfg *workerPkg.NotifierConfig, tokens notifier.TokenStore, sanitizer notifier.LinkSanitizer) []notify.Sender {
	if cfg.DryRun {
		logger.Warn("dry run enabled, notifications will only be logged")
		return []notify.Sender{
			notifier.NewNoOpSender(entity.ChannelPush, logger),
			notifier.NewNoOpSender(entity.ChannelEmail, logger),
			notifier.NewNoOpSender(entity.ChannelSMS, logger),
			notifier.NewNoOpSender(entity.ChannelWhatsApp, logger),
		}
	}

	var senders []notify.Sender

	if config.GetEnvBool("PUSH_ENABLED", false) {
		senders = append(senders, notifier.NewPushSender(notifier.PushConfig{
			Endpoint:          providerEndpoint(logger, "PUSH_ENDPOINT"),
			AccessToken:       config.GetEnvString("PUSH_ACCESS_TOKEN", ""),
			Timeout:           cfg.ProviderTimeout,
			RequestsPerSecond: 10,
			Burst:             5,
		}, tokens, logger))
		logger.Info("push channel initialized")
	}

	if config.GetEnvBool("EMAIL_ENABLED", false) {
		apiKey := config.GetEnvString("SENDGRID_API_KEY", "")
		if apiKey == "" {
			logger.Warn("SENDGRID_API_KEY is empty, disabling email channel")
		} else {
			senders = append(senders, notifier.NewEmailSender(notifier.EmailConfig{
				Endpoint:          providerEndpoint(logger, "EMAIL_ENDPOINT"),
				APIKey:            apiKey,
				FromAddress:       config.GetEnvString("EMAIL_FROM_ADDRESS", "noreply@fixzit.co"),
				FromName:          config.GetEnvString("EMAIL_FROM_NAME", "Fixzit"),
				Timeout:           cfg.ProviderTimeout,
				RequestsPerSecond: 10,
				Burst:             5,
			}, sanitizer, logger))
			logger.Info("email channel initialized")
		}
	}

	twilio := notifier.TwilioConfig{
		BaseURL:           providerEndpoint(logger, "TWILIO_BASE_URL"),
		AccountSID:        config.GetEnvString("TWILIO_ACCOUNT_SID", ""),
		AuthToken:         config.GetEnvString("TWILIO_AUTH_TOKEN", ""),
		Timeout:           cfg.ProviderTimeout,
		RequestsPerSecond: 1,
		Burst:             1,
	}
	twilioReady := twilio.AccountSID != "" && twilio.AuthToken != ""

	if config.GetEnvBool("SMS_ENABLED", false) {
		if !twilioReady {
			logger.Warn("Twilio credentials missing, disabling SMS channel")
		} else {
			sms := twilio
			sms.From = config.GetEnvString("TWILIO_SMS_FROM", "")
			senders = append(senders, notifier.NewSMSSender(sms))
			logger.Info("SMS channel initialized")
		}
	}

	if config.GetEnvBool("WHATSAPP_ENABLED", false) {
		if !twilioReady {
			logger.Warn("Twilio credentials missing, disabling WhatsApp channel")
		} else {
			wa := twilio
			wa.From = config.GetEnvString("TWILIO_WHATSAPP_FROM", "")
			senders = append(senders, notifier.NewWhatsAppSender(wa))
			logger.Info("WhatsApp channel initialized")
		}
	}

	if len(senders) == 0 {
		logger.Warn("no notification channels enabled")
	}
	return senders
}

// providerEndpoint returns the override in key, or "" for the provider default
// when it is unset or fails validation.
func providerEndpoint(logger *slog.Logger, key string) string {
	raw := config.GetEnvString(key, "")
	if raw == "" {
		return ""
	}
	if err := entity.ValidateProviderEndpoint(key, raw); err != nil {
		logger.Warn("ignoring provider endpoint override", slog.Any("error", err))
		return ""
	}
	return raw
}

// startReprocessCron schedules dead-letter reprocessing. Jobs log through the
// logger carried by ctx.
func startReprocessCron(ctx context.Context, reprocessor *notify.Reprocessor, cfg *workerPkg.NotifierConfig, metrics *workerPkg.NotifierMetrics) (*cron.Cron, error) {
	logger := logging.FromContext(ctx)
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(cfg.ReprocessSchedule, func() {
		runReprocessJob(logging.WithLogger(context.Background(), logger), reprocessor, metrics)
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// runReprocessJob runs one reprocess pass, bounded to ten minutes.
func runReprocessJob(ctx context.Context, reprocessor *notify.Reprocessor, metrics *workerPkg.NotifierMetrics) {
	logger := logging.FromContext(ctx)
	startTime := time.Now()
	metrics.RecordRun("started")
	logger.Info("dead-letter reprocess started")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	stats, err := reprocessor.Run(ctx)
	metrics.RecordDuration(time.Since(startTime).Seconds())
	metrics.RecordEntries(stats.Resolved, stats.Failed, stats.Skipped)
	if err != nil {
		logger.Error("dead-letter reprocess failed", slog.Any("error", err))
		metrics.RecordRun("failure")
		return
	}

	metrics.RecordRun("success")
	metrics.RecordLastSuccess()
	logger.Info("dead-letter reprocess completed",
		slog.Int("listed", stats.Listed),
		slog.Int("resolved", stats.Resolved),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("duration", time.Since(startTime)))
}
