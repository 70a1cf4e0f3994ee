package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"payments/internal/app/idempotency"
	"payments/internal/app/payments"
	"payments/internal/config"
	"payments/internal/gateway/payos"
	payments_http "payments/internal/handler/http/payments"
	kafka_handler "payments/internal/handler/kafka"
	"payments/internal/infrastructure/database"
	kafka_infra "payments/internal/infrastructure/kafka"
	"payments/internal/invoice"
	"payments/internal/metrics"
	"payments/internal/outbox"
	"payments/internal/repository/outbox_repo"
	"payments/internal/repository/payments_repo"
	"payments/internal/repository/processed_repo"
	"payments/internal/saga"

	"payments/internal/domain"
)

func ensureKafkaTopics(ctx context.Context, brokerURLs []string, topics []string, logger *zap.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", brokerURLs[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker for admin operations: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		if err == kafka.TopicAlreadyExists {
			logger.Info("One or more Kafka topics already exist, skipping creation.")
		} else {
			return fmt.Errorf("failed to create Kafka topics: %w", err)
		}
	} else {
		logger.Info("Kafka topics ensured successfully.", zap.Strings("topics", topics))
	}

	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Payment Service starting...")

	dbConfig := database.Config{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}
	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	kafkaBrokers := cfg.GetKafkaBrokers()
	requiredTopics := []string{
		domain.TopicPaymentCompleted,
		domain.TopicPaymentFailed,
		domain.TopicRevenueRecorded,
		domain.TopicCompensationRequired,
		domain.TopicPaymentRefunded,
		cfg.KafkaUserEventsTopic,
	}

	topicCtx, cancelTopics := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTopics()
	if err := ensureKafkaTopics(topicCtx, kafkaBrokers, requiredTopics, appLogger); err != nil {
		appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
	}

	paymentRepository := payments_repo.NewPaymentRepository(db)
	outboxRepository := outbox_repo.NewOutboxRepository(db)
	processedRepository := processed_repo.NewProcessedEventRepository(db)

	gatewayClient := payos.NewClient(payos.Config{
		BaseURL:     cfg.PayOSBaseURL,
		ClientID:    cfg.PayOSClientID,
		APIKey:      cfg.PayOSAPIKey,
		ChecksumKey: cfg.PayOSChecksumKey,
	}, appLogger.With(zap.String("component", "PayOSClient")))

	invoiceClient := invoice.NewClient(cfg.InvoiceServiceURL, appLogger.With(zap.String("component", "InvoiceClient")))

	paymentService := payments.NewPaymentService(
		db,
		paymentRepository,
		outboxRepository,
		gatewayClient,
		invoiceClient,
		cfg.PayOSReturnURL,
		cfg.PayOSCancelURL,
		appLogger.With(zap.String("component", "PaymentService")),
	)
	appLogger.Info("Payment Service initialized.")

	guard := idempotency.NewGuard(db, processedRepository, appLogger.With(zap.String("component", "IdempotencyGuard")))

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", promhttp.Handler())
	payments_http.RegisterRoutes(router, paymentService, appLogger.With(zap.String("component", "HTTPHandler")))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	kafkaProducer := kafka_infra.NewProducer(
		kafkaBrokers,
		appLogger.With(zap.String("component", "KafkaProducer")),
	)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	outboxPublisher := outbox.NewPublisher(
		db,
		outboxRepository,
		kafkaProducer,
		outbox.Config{
			PollInterval:    cfg.OutboxPollInterval,
			BatchSize:       cfg.OutboxBatchSize,
			CleanupInterval: cfg.OutboxCleanupInterval,
			Retention:       cfg.OutboxRetention,
		},
		appLogger.With(zap.String("component", "OutboxPublisher")),
	)

	sagaMonitor := saga.NewMonitor(
		db,
		paymentRepository,
		outboxRepository,
		saga.Config{
			SweepInterval:    cfg.SagaSweepInterval,
			ProcessingExpiry: cfg.SagaProcessingExpiry,
			SuccessAckExpiry: cfg.SagaSuccessAckExpiry,
			AuditInterval:    cfg.SagaAuditInterval,
			AuditWindow:      cfg.SagaAuditWindow,
			BatchSize:        cfg.SagaBatchSize,
		},
		appLogger.With(zap.String("component", "SagaTimeoutMonitor")),
	)

	userEventsHandler := kafka_handler.UserRegisteredMessageHandler(
		guard,
		appLogger.With(zap.String("component", "UserEventHandler")),
	)
	userEventsConsumer := kafka_infra.NewConsumer(
		kafkaBrokers,
		cfg.KafkaUserEventsTopic,
		cfg.KafkaConsumerGroup,
		userEventsHandler,
		appLogger.With(zap.String("component", "UserEventsConsumer")),
	)

	ctxMain, cancelMain := context.WithCancel(context.Background())

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go outboxPublisher.Start(ctxMain)
	go outboxPublisher.StartCleanup(ctxMain)
	go sagaMonitor.Start(ctxMain)
	go sagaMonitor.StartAudit(ctxMain)

	go func() {
		ticker := time.NewTicker(cfg.ProcessedEventCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctxMain.Done():
				return
			case <-ticker.C:
				deleted, err := guard.CleanupOldMarkers(ctxMain, cfg.ProcessedEventRetention)
				if err != nil {
					appLogger.Error("Processed event cleanup failed", zap.Error(err))
					continue
				}
				metrics.ProcessedMarkersCleaned.Add(float64(deleted))
				if _, err := guard.AuditRecentFailures(ctxMain, cfg.ProcessedEventCleanupInterval); err != nil {
					appLogger.Error("Processed event failure audit failed", zap.Error(err))
				}
			}
		}
	}()

	go func() {
		if err := userEventsConsumer.Consume(ctxMain); err != nil {
			if err != context.Canceled && err != context.DeadlineExceeded && err != kafka.ErrGroupClosed {
				appLogger.Error("User Events Kafka Consumer failed", zap.Error(err))
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	appLogger.Info("Shutting down application...")

	cancelMain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
	if err := userEventsConsumer.Close(); err != nil {
		appLogger.Error("Error closing Kafka consumer", zap.Error(err))
	}

	appLogger.Info("Application gracefully shut down.")
}
