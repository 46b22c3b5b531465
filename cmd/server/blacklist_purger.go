package main

import (
	"context"
	"log/slog"
	"time"
)

type blacklistPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) purgeTicker

// runBlacklistPurger removes expired revoked token ids every interval until
// ctx is cancelled.
func runBlacklistPurger(ctx context.Context, logger *slog.Logger, store blacklistPurger, interval time.Duration) {
	runBlacklistPurgerWithTicker(ctx, logger, store, interval, time.Now, func(d time.Duration) purgeTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func runBlacklistPurgerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	store blacklistPurger,
	interval time.Duration,
	now func() time.Time,
	newTicker tickerFactory,
) {
	if store == nil || interval <= 0 {
		return
	}
	ticker := newTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			removed, err := store.PurgeExpired(ctx, now())
			if logger == nil {
				continue
			}
			if err != nil {
				logger.Error("failed to purge expired blacklist entries", "error", err)
			} else if removed > 0 {
				logger.Debug("purged expired blacklist entries", "removed", removed)
			}
		}
	}
}
