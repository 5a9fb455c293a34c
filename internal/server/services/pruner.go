package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/logging"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/repomanager"
)

// Pruner deletes refresh records that are expired or revoked and reset
// records that are expired or used. Both lookups scan every live record, so
// keeping the ledgers small keeps refresh and reset latency bounded.
type Pruner struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	interval    time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewPruner(db dbx.DBTX, m repomanager.RepositoryManager, interval time.Duration, logger logging.Logger) *Pruner {
	return &Pruner{
		db:          db,
		repomanager: m,
		interval:    interval,
		logger:      logger.With("module", "pruner"),
		now:         time.Now,
	}
}

// PruneOnce runs a single pass and reports how many rows went away.
func (p *Pruner) PruneOnce(ctx context.Context) (refresh int64, resets int64, err error) {
	now := p.now()

	refresh, err = p.repomanager.RefreshTokens(p.db).DeleteStale(ctx, now)
	if err != nil {
		return 0, 0, err
	}

	resets, err = p.repomanager.PasswordResets(p.db).DeleteStale(ctx, now)
	if err != nil {
		return refresh, 0, err
	}

	return refresh, resets, nil
}

// Run prunes on every tick until ctx is done. A zero interval disables it.
func (p *Pruner) Run(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info(ctx, "pruning disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh, resets, err := p.PruneOnce(ctx)
			if err != nil {
				p.logger.Error(ctx, "prune failed", "error", err)
				continue
			}
			p.logger.Debug(ctx, "pruned", "refresh_tokens", refresh, "password_resets", resets)
		}
	}
}
