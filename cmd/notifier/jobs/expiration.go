package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// batchSize bounds the rows one sweep touches.
const batchSize = 100

type ReservationExpirer interface {
	ExpirePending(ctx context.Context, limit int) (int, error)
}

type PaymentExpirer interface {
	ExpirePayments(ctx context.Context, limit int) (int, error)
}

// ExpirationJob cancels stale pending reservations and checkout payments
type ExpirationJob struct {
	interval     time.Duration
	reservations ReservationExpirer
	payments     PaymentExpirer
	ticker       *time.Ticker
	done         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewExpirationJob(interval time.Duration, reservations ReservationExpirer, payments PaymentExpirer) *ExpirationJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpirationJob{
		interval:     interval,
		reservations: reservations,
		payments:     payments,
		done:         make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval. Sweeps never
// overlap.
func (j *ExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting expiration job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.RunOnce(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				slog.Info("Expiration job stopped")
				return
			case <-j.done:
				slog.Info("Expiration job stopped")
				return
			}
		}
	}()
}

// Stop waits for the running sweep to finish. Repeated calls are no-ops.
func (j *ExpirationJob) Stop() {
	j.stopOnce.Do(func() {
		if j.ticker != nil {
			j.ticker.Stop()
		}
		close(j.done)
	})
	j.wg.Wait()
}

// RunOnce drains both queues in batches until a batch comes back short.
func (j *ExpirationJob) RunOnce(ctx context.Context) {
	if j.reservations != nil {
		drain(ctx, "reservations", j.reservations.ExpirePending)
	}
	if j.payments != nil {
		drain(ctx, "payments", j.payments.ExpirePayments)
	}
}

func drain(ctx context.Context, kind string, expire func(context.Context, int) (int, error)) {
	total := 0
	for ctx.Err() == nil {
		n, err := expire(ctx, batchSize)
		total += n
		if err != nil {
			slog.Error("Failed to expire stale entries", "kind", kind, "error", err, "expired", total)
			return
		}
		if n < batchSize {
			break
		}
	}
	if total > 0 {
		slog.Info("Expired stale entries", "kind", kind, "count", total)
	} else {
		slog.Debug("Nothing to expire", "kind", kind)
	}
}
