package ports

import (
	"context"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Clock is the single authoritative time source for window checks.
type Clock interface {
	Now() time.Time
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(memberID uuid.UUID, principal domain.Principal) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MemberID uuid.UUID
	Account  string
	Roles    []domain.Role
}

// Principal returns the caller identity carried by the token.
func (c *TokenClaims) Principal() domain.Principal {
	return domain.Principal{Account: c.Account, Roles: c.Roles}
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// VoteCache remembers committed ballots so HasVoted can skip the database.
type VoteCache interface {
	// MarkVoted records the ballot. It reports false if it was already recorded.
	MarkVoted(ctx context.Context, projectID int64, voter string, ttl time.Duration) (bool, error)
	HasVoted(ctx context.Context, projectID int64, voter string) (bool, error)
}

// StatsCache holds the last computed governance stats.
type StatsCache interface {
	Get(ctx context.Context) (*GovernanceStats, error) // nil on miss
	Set(ctx context.Context, stats *GovernanceStats, ttl time.Duration) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// EventPublisher fans committed events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// EventSubscriber receives committed events. Handle must not block for long.
type EventSubscriber interface {
	Name() string
	Handle(ctx context.Context, ev domain.Event) error
}

// ScreeningDispatcher hands a project to AI pre-screening without waiting for the result.
type ScreeningDispatcher interface {
	Dispatch(ctx context.Context, job domain.ScreeningJob) error
}

// Scorer calls the external AI scoring endpoint.
type Scorer interface {
	Score(ctx context.Context, text string) (*domain.ScreeningResult, error)
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// LedgerService owns balances and supply.
type LedgerService interface {
	Mint(ctx context.Context, principal domain.Principal, account string, amount int64) error
	BalanceOf(ctx context.Context, account string) (int64, error)
	TotalSupply(ctx context.Context) (int64, error)
	VerifySupply(ctx context.Context) error
}

// TxMinter mints inside a transaction owned by the caller.
type TxMinter interface {
	MintTx(ctx context.Context, tx pgx.Tx, principal domain.Principal, account string, amount int64) error
}

// ExchangeService converts donations into tokens.
type ExchangeService interface {
	Donate(ctx context.Context, principal domain.Principal, req DonateRequest) (*domain.DonationResult, error)
	Quote(ctx context.Context, usdAmount int64) (*domain.Quote, error)
	TotalValueLocked(ctx context.Context) (int64, error)
	ListDonations(ctx context.Context, donor string, limit, offset int) ([]domain.Donation, int64, error)
	GetConfig(ctx context.Context) (*domain.ExchangeConfig, error)
	UpdateConfig(ctx context.Context, principal domain.Principal, req UpdateExchangeConfigRequest) (*domain.ExchangeConfig, error)
}

// DonateRequest holds validated input for a donation. Recipient defaults to the donor.
type DonateRequest struct {
	USDAmount   int64
	Recipient   string
	ReferenceID *string
}

// UpdateExchangeConfigRequest replaces the exchange policy.
type UpdateExchangeConfigRequest struct {
	Rate           decimal.Decimal
	FeeBasisPoints int64
	MinDonation    int64
	MaxDonation    int64
}

// RegistryService drives the project lifecycle.
type RegistryService interface {
	SubmitProject(ctx context.Context, principal domain.Principal, req SubmitProjectRequest) (*domain.Project, error)
	ValidateProject(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error)
	AutoValidate(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error)
	AutoValidateDue(ctx context.Context) (int, error)
	ResolveVoting(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error)
	ExecuteProject(ctx context.Context, principal domain.Principal, id int64) (*domain.Project, error)
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
	ListProjects(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, int64, error)
	ProjectVotes(ctx context.Context, id int64) (*VoteTally, error)
	RecordScreening(ctx context.Context, id int64, result *domain.ScreeningResult) error
}

// VoteRecorder applies a ballot's weight to a locked project.
type VoteRecorder interface {
	RecordVote(ctx context.Context, tx pgx.Tx, project *domain.Project, support bool, weight int64, now time.Time) error
}

// SubmitProjectRequest holds validated input for a project submission.
type SubmitProjectRequest struct {
	ExternalID      string
	Title           string
	Description     string
	FundingRequired int64
	Metadata        domain.ProjectMetadata
}

// VoteTally is the public view of a project's ballot counts.
type VoteTally struct {
	ProjectID     int64      `json:"project_id"`
	ForVotes      int64      `json:"for_votes"`
	AgainstVotes  int64      `json:"against_votes"`
	SupportBps    int64      `json:"support_bps"`
	VotingEndTime *time.Time `json:"voting_end_time,omitempty"`
}

// VotingService casts and inspects ballots.
type VotingService interface {
	VoteOnProject(ctx context.Context, principal domain.Principal, projectID int64, support bool) (*domain.VoteReceipt, error)
	HasVoted(ctx context.Context, projectID int64, voter string) bool
	CheckEligibility(ctx context.Context, projectID int64, voter string) *domain.Eligibility
	ListVotes(ctx context.Context, projectID int64) ([]domain.Vote, error)
}

// AuthService defines member authentication.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
}

// RegisterRequest holds input for member registration.
type RegisterRequest struct {
	Username string
	Password string
	Account  string
}

// AuthResult is returned on successful registration or login.
type AuthResult struct {
	Member    *domain.Member
	Token     string
	ExpiresAt time.Time
}

// MemberService manages member roles.
type MemberService interface {
	GrantRole(ctx context.Context, principal domain.Principal, account string, role domain.Role) (*domain.Member, error)
}

// StatsService reports aggregate governance figures.
type StatsService interface {
	GetStats(ctx context.Context) (*GovernanceStats, error)
}

// GovernanceStats is the dashboard summary.
type GovernanceStats struct {
	TotalSupply      int64                          `json:"total_supply"`
	TotalValueLocked int64                          `json:"total_value_locked"`
	Holders          int64                          `json:"holders"`
	Projects         map[domain.ProjectStatus]int64 `json:"projects"`
	GeneratedAt      time.Time                      `json:"generated_at"`
}

// EventFeed serves the event read model.
type EventFeed interface {
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error)
}
