package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 10 * time.Second
	maxBackoff          = 30 * time.Second
)

// Refresher reloads host-side state into the store. *store.Clans
// implements it.
type Refresher interface {
	RefreshActive(ctx context.Context) error
}

// StartPoller launches a background goroutine that refreshes the active
// clan at a fixed cadence, backing off while the host keeps failing. Each
// refresh is bounded by timeout when it is positive. It returns immediately;
// the returned channel closes once the goroutine exits.
func StartPoller(ctx context.Context, r Refresher, interval, timeout time.Duration, logger *zap.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		failures := 0
		for {
			if err := refresh(ctx, r, timeout); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				logger.Warn("status refresh failed",
					zap.Error(err),
					zap.Int("failures", failures),
				)
			} else if failures > 0 {
				logger.Info("status refresh recovered", zap.Int("failures", failures))
				failures = 0
			}

			timer := time.NewTimer(calculateBackoff(failures, interval))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return done
}

func refresh(ctx context.Context, r Refresher, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.RefreshActive(ctx)
}

// calculateBackoff doubles the interval per consecutive failure, capped at
// maxBackoff. An interval above the cap is used as is.
func calculateBackoff(failures int, interval time.Duration) time.Duration {
	if failures <= 0 || interval >= maxBackoff {
		return interval
	}
	d := interval
	for i := 0; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
