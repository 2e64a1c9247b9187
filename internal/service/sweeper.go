package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/rs/zerolog"
)

// autoValidateRunner is the slice of the registry the sweeper drives.
type autoValidateRunner interface {
	AutoValidateDue(ctx context.Context) (int, error)
}

// Sweeper runs periodic maintenance: auto-validation of stale projects and
// the supply invariant check. A zero interval disables that job.
type Sweeper struct {
	registry           autoValidateRunner
	ledger             ports.LedgerService
	autoValidateEvery  time.Duration
	supplyCheckEvery   time.Duration
	onLedgerCorruption func(error)
	log                zerolog.Logger
	wg                 sync.WaitGroup
}

// NewSweeper creates a Sweeper. onLedgerCorruption is called when the supply
// check fails with SYS_002; the process is expected to stop.
func NewSweeper(
	registry autoValidateRunner,
	ledger ports.LedgerService,
	autoValidateEvery, supplyCheckEvery time.Duration,
	onLedgerCorruption func(error),
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		registry:           registry,
		ledger:             ledger,
		autoValidateEvery:  autoValidateEvery,
		supplyCheckEvery:   supplyCheckEvery,
		onLedgerCorruption: onLedgerCorruption,
		log:                log,
	}
}

// Start launches the enabled jobs. They stop when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.registry != nil && s.autoValidateEvery > 0 {
		s.every(ctx, s.autoValidateEvery, s.autoValidate)
	}
	if s.ledger != nil && s.supplyCheckEvery > 0 {
		s.every(ctx, s.supplyCheckEvery, s.checkSupply)
	}
}

// Wait blocks until every job started by Start has returned.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) every(ctx context.Context, interval time.Duration, job func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()
}

func (s *Sweeper) autoValidate(ctx context.Context) {
	n, err := s.registry.AutoValidateDue(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("auto-validation sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("validated", n).Msg("auto-validation sweep")
	}
}

func (s *Sweeper) checkSupply(ctx context.Context) {
	err := s.ledger.VerifySupply(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, apperror.ErrLedgerCorrupted(nil)) {
		if s.onLedgerCorruption != nil {
			s.onLedgerCorruption(err)
		}
		return
	}
	if ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("supply check failed")
	}
}
