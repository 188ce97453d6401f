package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const outboxColumns = `id, owner_id, event_type, payload, status, error_message, retry_count,
	created_at, processed_at, updated_at`

type outboxRepository struct {
	conn sqlx.ExtContext
}

func NewOutboxRepository(conn sqlx.ExtContext) repository.OutboxRepository {
	return &outboxRepository{conn: conn}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, owner_id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	event.ID = uuid.New()
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	_, err := r.conn.ExecContext(ctx, query,
		event.ID,
		event.OwnerID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ClaimPending flips the claimed rows to processing in one statement.
// SKIP LOCKED keeps concurrent relays from claiming the same rows.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $2 OR (status = $1 AND updated_at < $3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	events := []*model.OutboxEvent{}
	err := sqlx.SelectContext(ctx, r.conn, &events, query,
		model.OutboxStatusProcessing, model.OutboxStatusPending, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (r *outboxRepository) ListByStatus(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	events := []*model.OutboxEvent{}
	if err := sqlx.SelectContext(ctx, r.conn, &events, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = CASE WHEN $2::text IS NULL THEN retry_count ELSE retry_count + 1 END,
			processed_at = CASE WHEN $1 = 'processed' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $3
	`
	result, err := r.conn.ExecContext(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "outbox event")
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.conn.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
