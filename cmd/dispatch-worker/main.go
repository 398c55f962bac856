package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/charter-notify/cmd/mainconfig"
	"github.com/wolfman30/charter-notify/internal/app/bootstrap"
	appconfig "github.com/wolfman30/charter-notify/internal/config"
	"github.com/wolfman30/charter-notify/internal/observability/metrics"
	"github.com/wolfman30/charter-notify/internal/queue"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	if cfg.DispatchQueueURL == "" {
		logger.Error("dispatch worker requires DISPATCH_QUEUE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	reg := prometheus.NewRegistry()
	svc, err := bootstrap.BuildServices(cfg, pool, redisClient, metrics.NewDispatchMetrics(reg), logger)
	if err != nil {
		logger.Error("failed to build dispatch services", "error", err)
		os.Exit(1)
	}

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	jobs := queue.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.DispatchQueueURL)
	if email := bootstrap.BuildEmailSender(cfg, sesv2.NewFromConfig(awsConfig), logger); email != nil {
		svc.Notifier.WithOwnerEmail(email)
	}

	worker := queue.NewWorker(
		jobs,
		svc.Notifier,
		logger,
		queue.WithWorkerCount(cfg.WorkerConcurrency),
		queue.WithReceiveWait(cfg.WorkerPollWait),
		queue.WithBatchSize(cfg.WorkerBatchSize),
		queue.WithClaimer(queue.NewProcessedStore(pool)),
	)
	worker.Start(ctx)
	logger.Info("dispatch worker started", "queue_url", cfg.DispatchQueueURL, "workers", cfg.WorkerConcurrency)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down dispatch worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = metricsSrv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("dispatch worker stopped")
	case <-doneCtx.Done():
		logger.Error("dispatch worker shutdown timed out", "error", doneCtx.Err())
	}
}
