// Package worker drains the notification queue and hands each recipient to
// a deliverer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
)

// JobSource is the queue side the processor needs.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
}

// Deliverer reaches one user.
type Deliverer interface {
	Deliver(ctx context.Context, userID string, n models.Notification) error
}

// LogDeliverer writes each delivery to the log. Real channels (email, push)
// plug in behind Deliverer.
type LogDeliverer struct {
	logger *zap.Logger
}

// NewLogDeliverer creates a LogDeliverer.
func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDeliverer{logger: logger}
}

// Deliver logs the notification for userID.
func (d *LogDeliverer) Deliver(_ context.Context, userID string, n models.Notification) error {
	d.logger.Info("notification delivered",
		zap.String("user_id", userID),
		zap.String("event_id", n.EventID),
		zap.String("kind", n.Kind),
		zap.String("subject", n.Subject),
	)
	return nil
}

// NotificationProcessor processes notify jobs.
type NotificationProcessor struct {
	source      JobSource
	deliverer   Deliverer
	concurrency int
	backoff     time.Duration
	poll        time.Duration
	logger      *zap.Logger
}

// NewNotificationProcessor creates a processor delivering to up to
// concurrency recipients at once.
func NewNotificationProcessor(source JobSource, deliverer Deliverer, concurrency int, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &NotificationProcessor{
		source:      source,
		deliverer:   deliverer,
		concurrency: concurrency,
		backoff:     queue.RetryBackoff,
		poll:        queue.PollTimeout,
		logger:      logger,
	}
}

// DeliveryError lists the recipients a job failed to reach.
type DeliveryError struct {
	Failed []string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for %d recipient(s): %v", len(e.Failed), e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Process executes one notify job. On partial failure the returned
// *DeliveryError names the recipients that were not reached.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	n, err := job.NotificationPayload()
	if err != nil {
		return err
	}
	var (
		mu     sync.Mutex
		failed []string
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, userID := range n.Recipients {
		userID := userID
		g.Go(func() error {
			if err := p.deliverer.Deliver(gctx, userID, n); err != nil {
				mu.Lock()
				failed = append(failed, userID)
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(failed) > 0 {
		return &DeliveryError{Failed: failed, Err: errors.Join(errs...)}
	}
	p.logger.Info("notification job completed",
		zap.String("job_id", job.ID),
		zap.String("event_id", n.EventID),
		zap.Int("recipients", len(n.Recipients)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			p.requeue(ctx, job, err)
			sleep(ctx, p.backoff)
		}
	}
}

// requeue retries only the recipients that were not reached.
func (p *NotificationProcessor) requeue(ctx context.Context, job *queue.Job, cause error) {
	var de *DeliveryError
	if errors.As(cause, &de) {
		if n, err := job.NotificationPayload(); err == nil {
			n.Recipients = de.Failed
			if body, err := json.Marshal(n); err == nil {
				job.Payload = body
			}
		}
	}
	if _, err := p.source.Retry(ctx, job, cause); err != nil {
		p.logger.Error("retry enqueue failed", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
