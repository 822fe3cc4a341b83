package main

import (
	"context"
	"log/slog"
	"time"
)

type sessionPurger interface {
	PurgeExpired() error
}

// runSessionPurger sweeps expired sessions on a fixed interval until the
// context is cancelled. A nil purger or non-positive interval disables the
// worker.
func runSessionPurger(ctx context.Context, logger *slog.Logger, sessions sessionPurger, interval time.Duration) {
	if sessions == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.PurgeExpired(); err != nil && logger != nil {
				logger.Error("failed to purge expired sessions", "error", err)
			}
		}
	}
}
