package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
)

// Sweeper periodically deletes refresh tokens whose expiry has passed.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	interval    time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, interval time.Duration, logger logging.Logger, opts ...Option) *Sweeper {
	o := buildOptions(opts)
	return &Sweeper{
		db:          db,
		repomanager: m,
		interval:    interval,
		logger:      logger.With("module", "sweeper"),
		now:         o.now,
	}
}

// SweepOnce removes expired refresh tokens and returns how many were deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error(ctx, "sweeping expired refresh tokens failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "expired refresh tokens removed", "count", n)
			}
		}
	}
}
