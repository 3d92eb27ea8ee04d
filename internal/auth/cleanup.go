package auth

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes expired tokens and revocations.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunCleanup purges expired credentials once immediately and then every
// interval until ctx is done.
func RunCleanup(ctx context.Context, p Purger, interval time.Duration) {
	slog.Info("starting token cleanup", "interval", interval)

	purge := func() {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		n, err := p.PurgeExpired(pctx, time.Now())
		if err != nil {
			slog.Error("purging expired tokens", "error", err)
			return
		}
		if n > 0 {
			slog.Info("purged expired tokens", "count", n)
		}
	}

	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-ctx.Done():
			slog.Info("token cleanup stopped")
			return
		}
	}
}
