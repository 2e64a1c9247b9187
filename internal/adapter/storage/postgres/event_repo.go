package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"wildlife-governance/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository. Events are written in the same
// transaction as the state change they describe; seq gives the feed order.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append stores ev and sets ev.Seq.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, ev *domain.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	query := `INSERT INTO events (id, type, project_id, account, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`

	if err := tx.QueryRow(ctx, query,
		ev.ID, string(ev.Type), ev.ProjectID, ev.Account, data, ev.OccurredAt,
	).Scan(&ev.Seq); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListAfter returns up to limit events with seq greater than afterSeq.
// Data comes back as raw JSON.
func (r *EventRepo) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	query := `SELECT seq, id, type, project_id, account, data, occurred_at
		FROM events WHERE seq > $1 ORDER BY seq LIMIT $2`

	rows, err := r.pool.Query(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			ev   domain.Event
			typ  string
			data []byte
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &typ, &ev.ProjectID, &ev.Account, &data, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.Data = json.RawMessage(data)
		events = append(events, ev)
	}
	return events, rows.Err()
}
