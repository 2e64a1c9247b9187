package service

import (
	"context"
	"fmt"
	"time"

	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/rs/zerolog"
)

const statsCacheTTL = 15 * time.Second

type statsService struct {
	store ports.GovernanceStore
	cache ports.StatsCache
	clock ports.Clock
	log   zerolog.Logger
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(store ports.GovernanceStore, cache ports.StatsCache, clock ports.Clock, log zerolog.Logger) ports.StatsService {
	return &statsService{store: store, cache: cache, clock: clock, log: log}
}

// GetStats returns supply, TVL, holder count and projects per status.
// Results are served from cache for a few seconds.
func (s *statsService) GetStats(ctx context.Context) (*ports.GovernanceStats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("stats cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	state, err := s.store.Ledger.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read ledger: %w", err))
	}
	holders, err := s.store.Accounts.CountHolders(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count holders: %w", err))
	}
	byStatus, err := s.store.Projects.CountByStatus(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count projects: %w", err))
	}

	stats := &ports.GovernanceStats{
		Holders:     holders,
		Projects:    byStatus,
		GeneratedAt: s.clock.Now(),
	}
	if state != nil {
		stats.TotalSupply = state.TotalSupply
		stats.TotalValueLocked = state.TotalValueLocked
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats, statsCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("stats cache write failed")
		}
	}
	return stats, nil
}
