// Package worker runs the background jobs of the publication pipeline.
package worker

import (
	"context"
	"log/slog"
	"time"

	"sphere/internal/publication/service"
	"sphere/pkg/requestcontext"
)

// Sweeper is the part of the publication service the expiry job needs.
type Sweeper interface {
	SweepExpired(ctx context.Context, olderThan time.Time) (*service.SweepResult, error)
	PendingTTL() time.Duration
}

// ExpirySweeper periodically fails entities whose verification window lapsed
// without a callback.
type ExpirySweeper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
	clock    func() time.Time
}

type Option func(*ExpirySweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(w *ExpirySweeper) {
		w.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(w *ExpirySweeper) {
		w.clock = clock
	}
}

func NewExpirySweeper(sweeper Sweeper, interval time.Duration, opts ...Option) *ExpirySweeper {
	w := &ExpirySweeper{
		sweeper:  sweeper,
		interval: interval,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start sweeps every interval until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (w *ExpirySweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = w.SweepOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepOnce expires everything pending for longer than the service's TTL and
// returns how many entities it failed.
func (w *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := w.clock()
	ctx = requestcontext.WithTime(ctx, now)
	result, err := w.sweeper.SweepExpired(ctx, now.Add(-w.sweeper.PendingTTL()))
	if err != nil {
		w.logger.ErrorContext(ctx, "pending sweep failed", "error", err)
		if result == nil {
			return 0, err
		}
		return result.Total(), err
	}
	if n := result.Total(); n > 0 {
		w.logger.InfoContext(ctx, "expired pending verifications",
			"posts", len(result.Posts),
			"comments", len(result.Comments),
		)
	}
	return result.Total(), nil
}
