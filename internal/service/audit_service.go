package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/rs/zerolog"
)

const auditDrainTimeout = 5 * time.Second

// AuditTrail writes audit entries through a bounded queue so request
// handlers never wait on the audit table. Every entry is logged at once;
// persistence happens on the goroutine started by Start.
type AuditTrail struct {
	repo    ports.AuditRepository
	entries chan domain.AuditLog
	log     zerolog.Logger
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// NewAuditTrail buffers up to size entries. A nil repo only logs.
func NewAuditTrail(repo ports.AuditRepository, size int, log zerolog.Logger) *AuditTrail {
	if size <= 0 {
		size = 256
	}
	return &AuditTrail{
		repo:    repo,
		entries: make(chan domain.AuditLog, size),
		log:     log,
	}
}

// Log records entry without blocking. When the queue is full the entry is
// dropped from storage, still logged, and counted in Dropped.
func (a *AuditTrail) Log(_ context.Context, entry *domain.AuditLog) {
	a.log.Info().
		Str("actor", entry.Actor).
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress).
		Msg("audit")

	if a.repo == nil {
		return
	}
	select {
	case a.entries <- *entry:
	default:
		a.dropped.Add(1)
		a.log.Warn().Str("action", string(entry.Action)).Msg("audit queue full, entry not persisted")
	}
}

// Dropped reports how many entries were never queued for storage.
func (a *AuditTrail) Dropped() int64 {
	return a.dropped.Load()
}

// Start persists queued entries until ctx is done, then flushes whatever is
// still queued within auditDrainTimeout.
func (a *AuditTrail) Start(ctx context.Context) {
	if a.repo == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case entry := <-a.entries:
				a.persist(ctx, entry)
			case <-ctx.Done():
				a.drain()
				return
			}
		}
	}()
}

func (a *AuditTrail) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), auditDrainTimeout)
	defer cancel()
	for {
		select {
		case entry := <-a.entries:
			a.persist(ctx, entry)
		default:
			return
		}
	}
}

func (a *AuditTrail) persist(ctx context.Context, entry domain.AuditLog) {
	if err := a.repo.Create(ctx, &entry); err != nil {
		a.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
	}
}

// Wait blocks until the goroutine started by Start has flushed and returned.
func (a *AuditTrail) Wait() {
	a.wg.Wait()
}

var _ ports.AuditService = (*AuditTrail)(nil)
