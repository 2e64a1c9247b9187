// Package memory is an in-process GovernanceStore. Transactions are
// serialized store-wide and buffer their writes until Commit, so readers
// outside a transaction only ever see committed state.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory store: transaction was not started by this store")

type donationKey struct {
	donor     string
	reference string
}

type ballotKey struct {
	projectID int64
	account   string
}

// Store holds every table of the governance model.
type Store struct {
	// txSem admits one transaction at a time. It is a channel so Begin can honour ctx.
	txSem chan struct{}

	mu          sync.RWMutex
	accounts    map[string]*domain.Account
	ledger      domain.LedgerState
	projects    map[int64]*domain.Project
	externalIDs map[string]int64
	validations map[ballotKey]domain.Validation
	votes       map[ballotKey]domain.Vote
	donations   []domain.Donation
	donationRef map[donationKey]int
	exchange    *domain.ExchangeConfig
	events      []domain.Event
	members     map[uuid.UUID]*domain.Member
	audit       []domain.AuditLog

	// Sequences are not rolled back, matching database sequences.
	nextProjectID int64
	nextEventSeq  int64
}

// New creates an empty store with a zeroed ledger.
func New() *Store {
	return &Store{
		txSem:       make(chan struct{}, 1),
		accounts:    make(map[string]*domain.Account),
		ledger:      domain.LedgerState{UpdatedAt: time.Now().UTC()},
		projects:    make(map[int64]*domain.Project),
		externalIDs: make(map[string]int64),
		validations: make(map[ballotKey]domain.Validation),
		votes:       make(map[ballotKey]domain.Vote),
		donationRef: make(map[donationKey]int),
		members:     make(map[uuid.UUID]*domain.Member),
	}
}

// NewGovernanceStore returns a fresh, isolated in-memory GovernanceStore.
func NewGovernanceStore() ports.GovernanceStore {
	return New().GovernanceStore()
}

// GovernanceStore exposes s through the repository ports.
func (s *Store) GovernanceStore() ports.GovernanceStore {
	return ports.GovernanceStore{
		Transactor:  s,
		Accounts:    &accountRepo{s},
		Ledger:      &ledgerRepo{s},
		Projects:    &projectRepo{s},
		Validations: &validationRepo{s},
		Votes:       &voteRepo{s},
		Donations:   &donationRepo{s},
		Exchange:    &exchangeRepo{s},
		Events:      &eventRepo{s},
		Members:     &memberRepo{s},
		Audit:       &auditRepo{s},
	}
}

// Begin waits for the running transaction, if any, to finish.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return newTx(s), nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) txOf(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func cloneProject(p *domain.Project) *domain.Project {
	c := *p
	if p.Screening != nil {
		sc := *p.Screening
		c.Screening = &sc
	}
	return &c
}
