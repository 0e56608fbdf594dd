package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"DocRelay/internal/metrics"
	"DocRelay/internal/models"
)

func init() {
	retryInitialInterval = time.Millisecond
}

type flakyDispatcher struct {
	mu       sync.Mutex
	failures int
	attempts []int
	done     chan string
}

func (d *flakyDispatcher) Dispatch(_ context.Context, job models.DeliveryJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts = append(d.attempts, job.Attempt)
	if d.failures > 0 {
		d.failures--
		return errors.New("transient")
	}
	if d.done != nil {
		d.done <- job.ID
	}
	return nil
}

func TestRunWithRetry_RedeliversUntilSuccess(t *testing.T) {
	d := &flakyDispatcher{failures: 2}

	err := runWithRetry(context.Background(), d, models.DeliveryJob{ID: "j1"}, 3, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("runWithRetry: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, d.attempts); diff != "" {
		t.Fatalf("attempts mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithRetry_GivesUp(t *testing.T) {
	d := &flakyDispatcher{failures: 10}

	err := runWithRetry(context.Background(), d, models.DeliveryJob{ID: "j1"}, 2, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected error after retries are exhausted")
	}
	if len(d.attempts) != 3 {
		t.Fatalf("attempts = %d, want 1 + 2 retries", len(d.attempts))
	}
}

func TestRunWithRetry_ZeroRetries(t *testing.T) {
	d := &flakyDispatcher{failures: 1}

	if err := runWithRetry(context.Background(), d, models.DeliveryJob{ID: "j1"}, 0, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error without retries")
	}
	if len(d.attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(d.attempts))
	}
}

func TestStartPool_ProcessesAndDeadLetters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	before := testutil.ToFloat64(metrics.DeadLetters.WithLabelValues("retries_exhausted"))

	d := &flakyDispatcher{failures: 2, done: make(chan string, 4)}
	jobs := make(chan models.DeliveryJob, 4)

	var wg sync.WaitGroup
	StartPool(ctx, &wg, 1, jobs, d, rate.NewLimiter(rate.Inf, 1), zaptest.NewLogger(t), 1)

	// j1 fails twice with one retry allowed, so it is dead-lettered.
	jobs <- models.DeliveryJob{ID: "j1", Kind: models.KindSingleForward}
	jobs <- models.DeliveryJob{ID: "j2", Kind: models.KindSingleForward}

	select {
	case id := <-d.done:
		if id != "j2" {
			t.Fatalf("completed job = %s, want j2", id)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for j2")
	}

	close(jobs)
	wg.Wait()

	after := testutil.ToFloat64(metrics.DeadLetters.WithLabelValues("retries_exhausted"))
	if after-before != 1 {
		t.Fatalf("dead letters delta = %v, want 1", after-before)
	}
}

func TestStartPool_DrainsQueueAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	before := testutil.ToFloat64(metrics.DeadLetters.WithLabelValues("shutdown"))

	d := &flakyDispatcher{failures: 1, done: make(chan string, 4)}
	jobs := make(chan models.DeliveryJob, 4)

	// j1 fails once; after cancellation it is not retried.
	jobs <- models.DeliveryJob{ID: "j1", Kind: models.KindSingleForward}
	jobs <- models.DeliveryJob{ID: "j2", Kind: models.KindSingleForward}
	jobs <- models.DeliveryJob{ID: "j3", Kind: models.KindBulkForward}
	cancel()

	var wg sync.WaitGroup
	StartPool(ctx, &wg, 1, jobs, d, rate.NewLimiter(rate.Every(time.Millisecond), 1), zaptest.NewLogger(t), 3)
	close(jobs)
	wg.Wait()

	close(d.done)
	var completed []string
	for id := range d.done {
		completed = append(completed, id)
	}
	if diff := cmp.Diff([]string{"j2", "j3"}, completed); diff != "" {
		t.Fatalf("completed jobs mismatch (-want +got):\n%s", diff)
	}

	after := testutil.ToFloat64(metrics.DeadLetters.WithLabelValues("shutdown"))
	if after-before != 1 {
		t.Fatalf("shutdown dead letters delta = %v, want 1", after-before)
	}
}
