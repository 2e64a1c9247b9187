package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func auditEntry(action domain.AuditAction) *domain.AuditLog {
	return &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        "0xvoter",
		Action:       action,
		ResourceType: "project",
		ResourceID:   "7",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	}
}

// recordingAuditRepo keeps persisted entries in order.
type recordingAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *recordingAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

func TestAuditTrail_PersistsInOrder(t *testing.T) {
	repo := &recordingAuditRepo{}
	trail := NewAuditTrail(repo, 8, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	trail.Start(ctx)

	trail.Log(context.Background(), auditEntry(domain.AuditActionDonate))
	trail.Log(context.Background(), auditEntry(domain.AuditActionVote))

	require.Eventually(t, func() bool { return len(repo.actions()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.AuditAction{domain.AuditActionDonate, domain.AuditActionVote}, repo.actions())

	cancel()
	trail.Wait()
}

func TestAuditTrail_FlushesQueueOnShutdown(t *testing.T) {
	repo := &recordingAuditRepo{}
	trail := NewAuditTrail(repo, 8, newTestLogger())

	for i := 0; i < 3; i++ {
		trail.Log(context.Background(), auditEntry(domain.AuditActionVote))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trail.Start(ctx)
	trail.Wait()

	assert.Len(t, repo.actions(), 3)
}

func TestAuditTrail_DropsWhenQueueFull(t *testing.T) {
	repo := &recordingAuditRepo{}
	trail := NewAuditTrail(repo, 2, newTestLogger())

	for i := 0; i < 5; i++ {
		trail.Log(context.Background(), auditEntry(domain.AuditActionLogin))
	}
	assert.Equal(t, int64(3), trail.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trail.Start(ctx)
	trail.Wait()
	assert.Len(t, repo.actions(), 2)
}

func TestAuditTrail_RepoErrorDoesNotStopWriter(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAuditRepository(ctrl)
	trail := NewAuditTrail(repo, 4, newTestLogger())

	done := make(chan struct{})
	gomock.InOrder(
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("audit table locked")),
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionExecute, e.Action)
			close(done)
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	trail.Start(ctx)
	trail.Log(context.Background(), auditEntry(domain.AuditActionResolve))
	trail.Log(context.Background(), auditEntry(domain.AuditActionExecute))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second audit entry not persisted")
	}
	cancel()
	trail.Wait()
}

func TestAuditTrail_NilRepoOnlyLogs(t *testing.T) {
	trail := NewAuditTrail(nil, 1, newTestLogger())
	trail.Start(context.Background())

	trail.Log(context.Background(), auditEntry(domain.AuditActionLogin))
	trail.Log(context.Background(), auditEntry(domain.AuditActionLogin))

	assert.Zero(t, trail.Dropped())
	trail.Wait()
}
