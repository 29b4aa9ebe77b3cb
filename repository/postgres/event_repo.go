package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a Postgres-backed EventRepository.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Append(ctx context.Context, event domain.Event) error {
	const query = `
	INSERT INTO schedule_events (id, name, subject_id, payload, metadata, occurred_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	var payload []byte
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Name,
		event.SubjectID,
		payload,
		marshalMap(event.Metadata),
		nullTime(event.OccurredAt),
	)
	return err
}

func (r *eventRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Event, error) {
	const query = `
	SELECT id::text, name, subject_id, payload, metadata, occurred_at
	FROM schedule_events
	WHERE ($1 = '' OR subject_id = $1)
	ORDER BY occurred_at ASC
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, subjectID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Event{}
	for rows.Next() {
		var (
			e        domain.Event
			payload  []byte
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.SubjectID, &payload, &metadata, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			e.Payload = append(json.RawMessage(nil), payload...)
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &e.Metadata)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
