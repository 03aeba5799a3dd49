package escalation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/supportline/supportline/internal/store"
)

const sweepInterval = 5 * time.Minute

// StartPendingSweeper runs a background goroutine that periodically marks
// pending help requests older than ttl as unresolved. A request a supervisor
// resolves while a sweep is in flight stays resolved; the race loser is
// skipped.
func StartPendingSweeper(ctx context.Context, repo store.Repository, svc *Service, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Pending sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredPending(ctx, repo, svc, ttl)
			case <-ctx.Done():
				slog.Info("Pending sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredPending(ctx context.Context, repo store.Repository, svc *Service, ttl time.Duration) {
	expired, err := repo.ListExpiredPending(ctx, ttl)
	if err != nil {
		slog.Error("Pending sweeper failed to list expired requests", "error", err)
		return
	}

	if len(expired) == 0 {
		return
	}

	slog.Info("Pending sweeper found expired requests", "count", len(expired))

	marked := 0
	for _, req := range expired {
		if _, err := svc.MarkUnresolved(ctx, req.ID); err != nil {
			if errors.Is(err, ErrAlreadyClosed) || errors.Is(err, ErrNotFound) {
				continue
			}
			slog.Error("Pending sweeper failed to mark request unresolved",
				"error", err,
				"id", req.ID)
			continue
		}
		marked++
	}

	slog.Info("Pending sweeper completed", "marked_unresolved", marked)
}
