package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/charter-notify/internal/dispatch"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

const (
	defaultWorkerCount = 4
	defaultWaitSeconds = 20
	defaultBatchSize   = 10
)

type consumer interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Notifier is the business-event surface the worker drives.
type Notifier interface {
	BookingConfirmed(ctx context.Context, siteID string, booking dispatch.Booking) dispatch.BookingResults
	BookingCancelled(ctx context.Context, siteID string, booking dispatch.Booking) dispatch.Result
	Reminder(ctx context.Context, siteID string, booking dispatch.Booking) dispatch.Result
	Campaign(ctx context.Context, siteID string, campaign dispatch.Campaign) []dispatch.Result
}

// Claimer deduplicates redelivered jobs.
type Claimer interface {
	Claim(ctx context.Context, jobID string) (bool, error)
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	claimer          Claimer
}

// WorkerOption customizes a Worker.
type WorkerOption func(*workerConfig)

func WithWorkerCount(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

func WithReceiveWait(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds >= 0 {
			cfg.receiveWaitSecs = seconds
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(cfg *workerConfig) {
		if n > 0 {
			cfg.receiveBatchSize = n
		}
	}
}

// WithClaimer skips jobs whose id was already claimed.
func WithClaimer(c Claimer) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.claimer = c
	}
}

// Worker consumes dispatch jobs and runs them through the notifier.
type Worker struct {
	queue    consumer
	notifier Notifier
	logger   *logging.Logger
	cfg      workerConfig
	wg       sync.WaitGroup
}

func NewWorker(q consumer, notifier Notifier, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if q == nil {
		panic("queue: consumer cannot be nil")
	}
	if notifier == nil {
		panic("queue: notifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: q, notifier: notifier, logger: logger, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive dispatch jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode dispatch job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	if err := job.validate(); err != nil {
		w.logger.Error("invalid dispatch job", "error", err, "job_id", job.ID, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	dedupKey := job.ID
	if dedupKey == "" {
		dedupKey = msg.ID
	}
	if w.cfg.claimer != nil && dedupKey != "" {
		claimed, err := w.cfg.claimer.Claim(ctx, dedupKey)
		if err != nil {
			// Leave the message for redelivery once the store recovers.
			w.logger.Error("failed to claim dispatch job", "error", err, "job_id", dedupKey)
			return
		}
		if !claimed {
			w.logger.Info("skipping duplicate dispatch job", "job_id", dedupKey)
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	logger := w.logger.WithSite(job.SiteID)
	switch job.Type {
	case JobBookingConfirmed:
		out := w.notifier.BookingConfirmed(ctx, job.SiteID, *job.Booking)
		logger.Info("booking confirmation job done", "job_id", dedupKey, "status", out.Customer.Status)
	case JobBookingCancelled:
		res := w.notifier.BookingCancelled(ctx, job.SiteID, *job.Booking)
		logger.Info("cancellation job done", "job_id", dedupKey, "status", res.Status)
	case JobReminder:
		res := w.notifier.Reminder(ctx, job.SiteID, *job.Booking)
		logger.Info("reminder job done", "job_id", dedupKey, "status", res.Status)
	case JobCampaign:
		results := w.notifier.Campaign(ctx, job.SiteID, *job.Campaign)
		logger.Info("campaign job done", "job_id", dedupKey, "recipients", len(results))
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete dispatch job", "error", err)
	}
}
