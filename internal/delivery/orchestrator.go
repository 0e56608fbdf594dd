// Package delivery forwards verified candidate documents to clients.
//
// A SingleForward job sends one stored delivery and records the outcome on
// its history record. A BulkForward job walks a batch of candidate
// selections, mirrors or attaches each candidate's documents, advances the
// candidate's pipeline status and closes with one summary email.
//
// Failures are isolated by scope. Setup failures (project lookup, cloud
// availability) and the final send abort the job and are returned so the
// queue can redeliver. Failures confined to one document or one candidate
// are logged and the rest of the batch continues.
package delivery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"DocRelay/internal/metrics"
	"DocRelay/internal/models"
)

var (
	// ErrCloudUnavailable is returned when a batch asks for cloud delivery
	// but no cloud folder service is configured.
	ErrCloudUnavailable = errors.New("cloud folder service is not configured")
)

// Deps are the collaborators an Orchestrator runs jobs against.
type Deps struct {
	Store  Store
	Blobs  BlobStore
	Cloud  CloudFolders
	Mail   MailTransport
	Render Renderer
	Status StatusAdvancer
	Guard  Guard
	Log    *zap.Logger

	// BulkConcurrency bounds how many selections of one batch are handled
	// at once. Values below 1 mean sequential.
	BulkConcurrency int
	Now             func() time.Time
}

// Orchestrator dispatches delivery jobs to the single and bulk flows.
type Orchestrator struct {
	store    Store
	blobs    BlobStore
	cloud    CloudFolders
	folders  folderBuilder
	composer *Composer
	resolver *Resolver
	status   StatusAdvancer
	guard    Guard
	log      *zap.Logger

	bulkConcurrency int
	now             func() time.Time
}

// New builds an Orchestrator. A nil logger or clock falls back to a no-op
// logger and time.Now.
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		store:           d.Store,
		blobs:           d.Blobs,
		cloud:           d.Cloud,
		folders:         folderBuilder{cloud: d.Cloud},
		composer:        NewComposer(d.Mail, d.Render),
		resolver:        NewResolver(d.Store),
		status:          d.Status,
		guard:           d.Guard,
		log:             d.Log,
		bulkConcurrency: d.BulkConcurrency,
		now:             d.Now,
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.bulkConcurrency < 1 {
		o.bulkConcurrency = 1
	}
	return o
}

// Dispatch runs one queue record. A returned error asks the queue to
// redeliver; unrecognized records are dead-lettered and return nil.
func (o *Orchestrator) Dispatch(ctx context.Context, job models.DeliveryJob) error {
	start := time.Now()

	var (
		kind string
		err  error
	)

	switch j := Decode(job).(type) {
	case SingleForward:
		kind = string(models.KindSingleForward)
		if j.Legacy {
			o.log.Warn("job without kind routed as single forward",
				zap.String("job_id", j.JobID),
				zap.String("kind", string(job.Kind)),
			)
		}
		err = o.forwardSingle(ctx, j)

	case BulkForward:
		kind = string(models.KindBulkForward)
		err = o.forwardBulk(ctx, j)

	case Unrecognized:
		o.log.Error("dead letter: unrecognized job",
			zap.String("job_id", j.JobID),
			zap.String("kind", string(j.Kind)),
			zap.String("reason", j.Reason),
		)
		metrics.DeadLetters.WithLabelValues("unrecognized").Inc()
		return nil
	}

	metrics.JobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.JobsProcessed.WithLabelValues(kind, "failed").Inc()
		return err
	}
	metrics.JobsProcessed.WithLabelValues(kind, "succeeded").Inc()
	return nil
}

// claim reports whether the caller may run the job behind key. Guard
// failures fall through to running the job.
func (o *Orchestrator) claim(ctx context.Context, key string, log *zap.Logger) bool {
	if o.guard == nil || key == "" {
		return true
	}
	ok, err := o.guard.Claim(ctx, key)
	if err != nil {
		log.Warn("idempotency claim failed, proceeding", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}

func (o *Orchestrator) complete(ctx context.Context, key string, log *zap.Logger) {
	if o.guard == nil || key == "" {
		return
	}
	if err := o.guard.Complete(ctx, key); err != nil {
		log.Warn("idempotency complete failed", zap.String("key", key), zap.Error(err))
	}
}

// completed reports whether key was already completed by an earlier
// attempt. Guard failures count as not completed.
func (o *Orchestrator) completed(ctx context.Context, key string, log *zap.Logger) bool {
	if o.guard == nil || key == "" {
		return false
	}
	done, err := o.guard.Completed(ctx, key)
	if err != nil {
		log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return done
}

func (o *Orchestrator) release(ctx context.Context, key string, log *zap.Logger) {
	if o.guard == nil || key == "" {
		return
	}
	if err := o.guard.Release(ctx, key); err != nil {
		log.Warn("idempotency release failed", zap.String("key", key), zap.Error(err))
	}
}
