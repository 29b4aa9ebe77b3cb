package repository

import (
	"context"

	"github.com/fastygo/sanctuary/domain"
)

// EventRepository is the durable log of scheduling changes.
type EventRepository interface {
	Append(ctx context.Context, event domain.Event) error
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]domain.Event, error)
}
