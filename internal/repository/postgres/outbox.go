package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	now := time.Now().UTC()
	event.ID = uuid.NewString()
	event.Status = string(model.OutboxStatusPending)
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEventsWithLock claims a batch of events by moving them to
// processing in one statement. Rows left in processing for longer than
// reclaimAfter are claimed again. Rows locked by another relay are skipped.
func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int, reclaimAfter time.Duration) (_ []*model.OutboxEvent, err error) {
	start := time.Now()
	defer func() { r.observe("get_pending_events", start, err) }()

	query := `
		UPDATE outbox_events
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $2
				OR (status = $1 AND updated_at < $4)
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count, created_at, processed_at, updated_at
	`
	events := []*model.OutboxEvent{}
	err = r.db.SelectContext(ctx, &events, query,
		string(model.OutboxStatusProcessing),
		string(model.OutboxStatusPending),
		limit,
		time.Now().UTC().Add(-reclaimAfter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

// UpdateStatus records the outcome of a delivery. A non-nil errMsg counts as
// one failed attempt.
func (r *outboxRepository) UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string) (err error) {
	start := time.Now()
	defer func() { r.observe("update_event_status", start, err) }()

	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = retry_count + CASE WHEN $2::text IS NULL THEN 0 ELSE 1 END,
			processed_at = CASE WHEN $1 = 'processed' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	err = expectAffected(res)
	return err
}
