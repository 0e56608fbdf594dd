package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"DocRelay/internal/metrics"
	"DocRelay/internal/models"
)

// Dispatcher runs one job. A returned error asks for redelivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.DeliveryJob) error
}

var retryInitialInterval = 500 * time.Millisecond

func StartPool(
	ctx context.Context,
	wg *sync.WaitGroup,
	workers int,
	jobs <-chan models.DeliveryJob,
	dispatcher Dispatcher,
	limiter *rate.Limiter,
	logger *zap.Logger,
	retries int,
) {

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()

			logger.Info("worker started", zap.Int("worker_id", id))

			// Workers drain jobs until the channel is closed, even after ctx
			// is cancelled. Cancellation only cuts retries short.
			for job := range jobs {

				// ----------------------------
				// Rate Limit
				// ----------------------------
				if err := limiter.Wait(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("rate limiter wait failed",
						zap.Int("worker_id", id),
						zap.Error(err),
					)
				}

				// ----------------------------
				// Dispatch with redelivery
				// ----------------------------
				err := runWithRetry(ctx, dispatcher, job, retries, logger)
				if err != nil {
					reason := "retries_exhausted"
					if ctx.Err() != nil {
						reason = "shutdown"
					}
					logger.Error("dead letter: job failed",
						zap.Int("worker_id", id),
						zap.String("job_id", job.ID),
						zap.String("kind", string(job.Kind)),
						zap.String("reason", reason),
						zap.Error(err),
					)
					metrics.DeadLetters.WithLabelValues(reason).Inc()
					continue
				}

				logger.Debug("job done",
					zap.Int("worker_id", id),
					zap.String("job_id", job.ID),
				)
			}

			logger.Info("job channel closed", zap.Int("worker_id", id))
		}(i)
	}
}

// runWithRetry dispatches job until it succeeds or retries redeliveries
// have failed. A started attempt is never cancelled; ctx only stops the
// wait between attempts.
func runWithRetry(
	ctx context.Context,
	dispatcher Dispatcher,
	job models.DeliveryJob,
	retries int,
	logger *zap.Logger,
) error {

	attemptCtx := context.WithoutCancel(ctx)
	attempt := job.Attempt

	operation := func() error {
		job.Attempt = attempt
		attempt++

		err := dispatcher.Dispatch(attemptCtx, job)
		if err != nil {
			logger.Warn("job attempt failed",
				zap.String("job_id", job.ID),
				zap.Int("attempt", job.Attempt),
				zap.Error(err),
			)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxElapsedTime = 0

	if retries < 0 {
		retries = 0
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
}
