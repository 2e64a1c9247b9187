package memory

import (
	"context"
	"fmt"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

type donationRepo struct{ s *Store }

func (r *donationRepo) Create(_ context.Context, tx pgx.Tx, d *domain.Donation) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	if d.ReferenceID != nil {
		for _, pending := range mt.donations {
			if pending.ReferenceID != nil && pending.Donor == d.Donor && *pending.ReferenceID == *d.ReferenceID {
				return fmt.Errorf("insert donation: %w", ports.ErrDuplicateKey)
			}
		}
		r.s.mu.RLock()
		_, taken := r.s.donationRef[donationKey{d.Donor, *d.ReferenceID}]
		r.s.mu.RUnlock()
		if taken {
			return fmt.Errorf("insert donation: %w", ports.ErrDuplicateKey)
		}
	}
	mt.donations = append(mt.donations, *d)
	return nil
}

func (r *donationRepo) GetByReference(_ context.Context, donor, referenceID string) (*domain.Donation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	idx, ok := r.s.donationRef[donationKey{donor, referenceID}]
	if !ok {
		return nil, nil
	}
	d := r.s.donations[idx]
	return &d, nil
}

// ListByDonor returns newest first.
func (r *donationRepo) ListByDonor(_ context.Context, donor string, limit, offset int) ([]domain.Donation, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var (
		out   []domain.Donation
		total int64
	)
	for i := len(r.s.donations) - 1; i >= 0; i-- {
		d := r.s.donations[i]
		if d.Donor != donor {
			continue
		}
		if total >= int64(offset) && len(out) < limit {
			out = append(out, d)
		}
		total++
	}
	return out, total, nil
}

type exchangeRepo struct{ s *Store }

func (r *exchangeRepo) Get(context.Context) (*domain.ExchangeConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.exchange == nil {
		return nil, nil
	}
	cfg := *r.s.exchange
	return &cfg, nil
}

func (r *exchangeRepo) Save(_ context.Context, tx pgx.Tx, cfg *domain.ExchangeConfig) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	next := *cfg
	mt.exchange = &next
	return nil
}

func (r *exchangeRepo) Seed(_ context.Context, cfg *domain.ExchangeConfig) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.exchange != nil {
		return false, nil
	}
	seed := *cfg
	r.s.exchange = &seed
	return true, nil
}

type eventRepo struct{ s *Store }

func (r *eventRepo) Append(_ context.Context, tx pgx.Tx, ev *domain.Event) error {
	mt, err := r.s.txOf(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	r.s.nextEventSeq++
	ev.Seq = r.s.nextEventSeq
	r.s.mu.Unlock()
	mt.events = append(mt.events, *ev)
	return nil
}

// ListAfter relies on events being committed in seq order, which holds
// because transactions are serialized.
func (r *eventRepo) ListAfter(_ context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Event
	for _, ev := range r.s.events {
		if ev.Seq <= afterSeq {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
