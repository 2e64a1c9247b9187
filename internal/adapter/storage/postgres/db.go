package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"wildlife-governance/config"
	"wildlife-governance/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool is the subset of *pgxpool.Pool the repositories use. pgxmock satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

const applicationName = "wildlife-governance"

// poolConfig turns cfg into pgxpool settings. Every connection is tagged
// with the application name and carries the configured statement_timeout.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	params := poolCfg.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	return poolCfg, nil
}

// NewPool opens the pgx pool and pings it once.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("dbname", cfg.DBName).
		Int32("max_conns", cfg.MaxConns).
		Dur("statement_timeout", cfg.StatementTimeout).
		Msg("PostgreSQL pool ready")

	return pool, nil
}

// NewGovernanceStore wires every repository to pool.
func NewGovernanceStore(pool Pool) ports.GovernanceStore {
	return ports.GovernanceStore{
		Transactor:  NewTransactor(pool),
		Accounts:    NewAccountRepo(pool),
		Ledger:      NewLedgerRepo(pool),
		Projects:    NewProjectRepo(pool),
		Validations: NewValidationRepo(pool),
		Votes:       NewVoteRepo(pool),
		Donations:   NewDonationRepo(pool),
		Exchange:    NewExchangeConfigRepo(pool),
		Events:      NewEventRepo(pool),
		Members:     NewMemberRepo(pool),
		Audit:       NewAuditRepository(pool),
	}
}

// mapWriteError turns unique violations into ports.ErrDuplicateKey.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, ports.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Health pings PostgreSQL by reading the ledger row, so a database that is
// reachable but was never migrated reports unhealthy.
type Health struct {
	pool Pool
}

func NewHealth(pool Pool) *Health {
	return &Health{pool: pool}
}

func (h *Health) Ping(ctx context.Context) error {
	var supply int64
	if err := h.pool.QueryRow(ctx, `SELECT total_supply FROM ledger_state WHERE id = 1`).Scan(&supply); err != nil {
		return fmt.Errorf("postgres health: %w", err)
	}
	return nil
}

func (h *Health) Name() string { return "postgresql" }
