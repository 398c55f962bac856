package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/charter-notify/cmd/mainconfig"
	"github.com/wolfman30/charter-notify/internal/api/router"
	"github.com/wolfman30/charter-notify/internal/app/bootstrap"
	"github.com/wolfman30/charter-notify/internal/archive"
	"github.com/wolfman30/charter-notify/internal/audit"
	appconfig "github.com/wolfman30/charter-notify/internal/config"
	"github.com/wolfman30/charter-notify/internal/http/handlers"
	"github.com/wolfman30/charter-notify/internal/notify"
	"github.com/wolfman30/charter-notify/internal/observability/metrics"
	"github.com/wolfman30/charter-notify/internal/queue"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting charter-notify API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, dispatchMetrics := setupMetrics()
	svc, err := bootstrap.BuildServices(cfg, pool, redisClient, dispatchMetrics, logger)
	if err != nil {
		logger.Error("failed to build dispatch services", "error", err)
		os.Exit(1)
	}

	auditReader := audit.NewReader(sqlDB)
	aws, err := setupAWS(ctx, cfg, auditReader, logger)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if aws.Email != nil {
		svc.Notifier.WithOwnerEmail(aws.Email)
	}

	webhookSecret := cfg.TwilioWebhookSecret
	if webhookSecret == "" {
		webhookSecret = cfg.TwilioAuthToken
	}

	r := router.New(&router.Config{
		Logger:    logger,
		Dispatch:  handlers.NewDispatchHandler(svc.Notifier, aws.Publisher, logger),
		Logs:      handlers.NewLogsHandler(auditReader, aws.Exporter, logger),
		Templates: handlers.NewTemplatesHandler(svc.Templates, logger),
		Inbound: handlers.NewInboundHandler(handlers.InboundConfig{
			Consent:       svc.Registry,
			Sites:         svc.Reference,
			WebhookSecret: webhookSecret,
			Metrics:       dispatchMetrics,
			Logger:        logger,
		}),
		HealthChecks:       healthChecks(pool, redisClient),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.DispatchMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewDispatchMetrics(reg)
}

// awsServices holds the optional AWS-backed collaborators. Each stays nil when
// its queue URL, bucket or email provider is unset.
type awsServices struct {
	Publisher handlers.JobPublisher
	Exporter  handlers.Exporter
	Email     notify.EmailSender
}

func setupAWS(ctx context.Context, cfg *appconfig.Config, source archive.AuditSource, logger *logging.Logger) (awsServices, error) {
	var out awsServices
	queueURL := strings.TrimSpace(cfg.DispatchQueueURL)
	bucket := strings.TrimSpace(cfg.AuditExportBucket)
	if queueURL == "" && bucket == "" && cfg.EmailProvider != "ses" {
		logger.Info("async dispatch and audit export disabled")
		out.Email = bootstrap.BuildEmailSender(cfg, nil, logger)
		return out, nil
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return out, err
	}

	if queueURL != "" {
		out.Publisher = queue.NewPublisher(queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), queueURL))
		logger.Info("async dispatch enabled", "queue_url", queueURL)
	}
	if bucket != "" {
		out.Exporter = archive.NewStore(mainconfig.NewS3Client(awsCfg, cfg), bucket, source, logger)
		logger.Info("audit export enabled", "bucket", bucket)
	}
	out.Email = bootstrap.BuildEmailSender(cfg, sesv2.NewFromConfig(awsCfg), logger)
	return out, nil
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"postgres": pool.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}
