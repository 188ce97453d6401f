package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type outboxRepository struct {
	conn
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	return r.run(ctx, "outbox.Create", func(st *state) error {
		event.ID = uuid.New()
		event.CreatedAt = time.Now().UTC()
		event.UpdatedAt = event.CreatedAt
		event.Status = model.OutboxStatusPending
		st.outbox[event.ID] = *event
		return nil
	})
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.run(ctx, "outbox.ClaimPending", func(st *state) error {
		events = selectEvents(st, limit, func(e model.OutboxEvent) bool {
			return e.Status == model.OutboxStatusPending ||
				(e.Status == model.OutboxStatusProcessing && e.UpdatedAt.Before(staleBefore))
		})
		now := time.Now().UTC()
		for _, e := range events {
			e.Status = model.OutboxStatusProcessing
			e.UpdatedAt = now
			st.outbox[e.ID] = *e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) ListByStatus(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.run(ctx, "outbox.ListByStatus", func(st *state) error {
		events = selectEvents(st, limit, func(e model.OutboxEvent) bool { return e.Status == status })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// selectEvents returns copies of the oldest events matching keep.
func selectEvents(st *state, limit int, keep func(model.OutboxEvent) bool) []*model.OutboxEvent {
	events := []*model.OutboxEvent{}
	for _, e := range st.outbox {
		if keep(e) {
			e := e
			events = append(events, &e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	return r.run(ctx, "outbox.UpdateStatus", func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return apperrors.NewNotFound("outbox event", nil)
		}
		now := time.Now().UTC()
		e.Status = status
		e.ErrorMessage = errorMessage
		if errorMessage != nil {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &now
		}
		e.UpdatedAt = now
		st.outbox[id] = e
		return nil
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.run(ctx, "outbox.DeleteProcessedBefore", func(st *state) error {
		for id, e := range st.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				delete(st.outbox, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
