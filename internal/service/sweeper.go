package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/repository"
)

// Sweeper deletes refresh-token rows past their expiry. Those rows are
// already unusable, so the sweep is pure cleanup: it can be interrupted at
// any point and simply leaves more rows for the next run.
type Sweeper struct {
	tokens   repository.RefreshTokenRepository
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(tokens repository.RefreshTokenRepository, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{tokens: tokens, interval: interval, logger: logger}
}

// SweepOnce removes expired rows and returns how many were deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := s.tokens.DeleteExpired()
	if err != nil {
		return removed, err
	}
	observability.RecordTokenSweep(removed)
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired refresh tokens removed", "count", removed)
	}
	return removed, nil
}

// Run sweeps on a ticker until the context is cancelled. Cancellation is
// the normal way to stop it and is not an error.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "refresh token sweep failed", "error", err)
			}
		}
	}
}
