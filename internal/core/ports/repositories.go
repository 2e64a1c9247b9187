package ports

import (
	"context"
	"errors"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateKey is returned by repositories when a unique constraint rejects an insert.
var ErrDuplicateKey = errors.New("duplicate key")

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountRepository persists token balances.
// Methods accepting pgx.Tx are used inside transaction blocks.
type AccountRepository interface {
	GetByAddress(ctx context.Context, address string) (*domain.Account, error)
	// GetBalanceForShare reads the balance under a shared row lock held until the tx ends.
	GetBalanceForShare(ctx context.Context, tx pgx.Tx, address string) (int64, error)
	// Credit adds amount to the balance, creating the account on first touch.
	Credit(ctx context.Context, tx pgx.Tx, address string, amount int64) error
	SumBalances(ctx context.Context) (int64, error)
	CountHolders(ctx context.Context) (int64, error)
}

// LedgerRepository persists the singleton supply/TVL row.
type LedgerRepository interface {
	Get(ctx context.Context) (*domain.LedgerState, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx) (*domain.LedgerState, error)
	Update(ctx context.Context, tx pgx.Tx, state *domain.LedgerState) error
}

// ProjectRepository persists projects. Create assigns the sequential ID.
type ProjectRepository interface {
	Create(ctx context.Context, tx pgx.Tx, project *domain.Project) error
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Project, error)
	ExistsByExternalID(ctx context.Context, tx pgx.Tx, externalID string) (bool, error)
	Update(ctx context.Context, tx pgx.Tx, project *domain.Project) error
	UpdateScreening(ctx context.Context, tx pgx.Tx, id int64, result *domain.ScreeningResult) error
	List(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, int64, error)
	// ListAwaitingValidation returns IDs of PENDING/VALIDATING projects submitted at or before cutoff.
	ListAwaitingValidation(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
	CountByStatus(ctx context.Context) (map[domain.ProjectStatus]int64, error)
}

// ValidationRepository persists validator approvals, unique per (project, validator).
type ValidationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, v *domain.Validation) error
	Exists(ctx context.Context, tx pgx.Tx, projectID int64, validator string) (bool, error)
}

// VoteRepository persists ballots, unique per (project, voter).
type VoteRepository interface {
	Create(ctx context.Context, tx pgx.Tx, v *domain.Vote) error
	Exists(ctx context.Context, tx pgx.Tx, projectID int64, voter string) (bool, error)
	Get(ctx context.Context, projectID int64, voter string) (*domain.Vote, error)
	ListByProject(ctx context.Context, projectID int64) ([]domain.Vote, error)
}

// DonationRepository persists the append-only donation history.
type DonationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, d *domain.Donation) error
	GetByReference(ctx context.Context, donor, referenceID string) (*domain.Donation, error)
	ListByDonor(ctx context.Context, donor string, limit, offset int) ([]domain.Donation, int64, error)
}

// ExchangeConfigRepository persists the singleton exchange policy.
type ExchangeConfigRepository interface {
	Get(ctx context.Context) (*domain.ExchangeConfig, error)
	Save(ctx context.Context, tx pgx.Tx, cfg *domain.ExchangeConfig) error
	// Seed stores cfg only when no config exists yet. It reports whether cfg was stored.
	Seed(ctx context.Context, cfg *domain.ExchangeConfig) (bool, error)
}

// EventRepository is the governance event outbox. Append assigns Seq.
type EventRepository interface {
	Append(ctx context.Context, tx pgx.Tx, ev *domain.Event) error
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error)
}

// MemberRepository persists member logins.
type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) error
	GetByUsername(ctx context.Context, username string) (*domain.Member, error)
	GetByAccount(ctx context.Context, account string) (*domain.Member, error)
	UpdateRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// GovernanceStore bundles every repository behind one backend so a process,
// or a test, can run several isolated instances side by side.
type GovernanceStore struct {
	Transactor  DBTransactor
	Accounts    AccountRepository
	Ledger      LedgerRepository
	Projects    ProjectRepository
	Validations ValidationRepository
	Votes       VoteRepository
	Donations   DonationRepository
	Exchange    ExchangeConfigRepository
	Events      EventRepository
	Members     MemberRepository
	Audit       AuditRepository
}
