package memory

import (
	"context"
	"sort"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// memTx buffers writes until Commit. Only the methods the repositories need
// are implemented; the embedded pgx.Tx is nil.
type memTx struct {
	pgx.Tx

	store *Store
	done  bool

	balances    map[string]int64
	ledger      *domain.LedgerState
	projects    map[int64]*domain.Project
	newProjects []int64
	validations []domain.Validation
	votes       []domain.Vote
	donations   []domain.Donation
	exchange    *domain.ExchangeConfig
	events      []domain.Event
}

func newTx(s *Store) *memTx {
	return &memTx{
		store:    s,
		balances: make(map[string]int64),
		projects: make(map[int64]*domain.Project),
	}
}

// Commit publishes every buffered write atomically.
func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.apply()
	t.finish()
	return nil
}

// Rollback discards buffered writes. Calling it after Commit is a no-op.
func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	<-t.store.txSem
}

func (t *memTx) apply() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for addr, balance := range t.balances {
		acct, ok := s.accounts[addr]
		if !ok {
			acct = &domain.Account{Address: addr, CreatedAt: now}
			s.accounts[addr] = acct
		}
		acct.Balance = balance
		acct.UpdatedAt = now
	}
	if t.ledger != nil {
		s.ledger = *t.ledger
	}

	sort.Slice(t.newProjects, func(i, j int) bool { return t.newProjects[i] < t.newProjects[j] })
	for _, id := range t.newProjects {
		s.externalIDs[t.projects[id].ExternalID] = id
	}
	for id, p := range t.projects {
		s.projects[id] = p
	}
	for _, v := range t.validations {
		s.validations[ballotKey{v.ProjectID, v.Validator}] = v
	}
	for _, v := range t.votes {
		s.votes[ballotKey{v.ProjectID, v.Voter}] = v
	}
	for _, d := range t.donations {
		if d.ReferenceID != nil {
			s.donationRef[donationKey{d.Donor, *d.ReferenceID}] = len(s.donations)
		}
		s.donations = append(s.donations, d)
	}
	if t.exchange != nil {
		cfg := *t.exchange
		s.exchange = &cfg
	}
	s.events = append(s.events, t.events...)
}

func (t *memTx) balance(addr string) int64 {
	if b, ok := t.balances[addr]; ok {
		return b
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if acct, ok := t.store.accounts[addr]; ok {
		return acct.Balance
	}
	return 0
}

func (t *memTx) project(id int64) *domain.Project {
	if p, ok := t.projects[id]; ok {
		return p
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if p, ok := t.store.projects[id]; ok {
		return p
	}
	return nil
}
