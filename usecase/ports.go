package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/sanctuary/domain"
)

// OperationBuffer abstracts the buffer processor so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferAttendance(ctx context.Context, attendance *domain.Attendance) error
	BufferPrayerRequest(ctx context.Context, request *domain.PrayerRequest) error
}

// EventPublisher delivers domain events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }

// FanOut publishes to every publisher and joins their errors.
type FanOut []EventPublisher

func (f FanOut) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewEvent builds an event with a JSON payload.
func NewEvent(name, subjectID string, payload interface{}, at time.Time) domain.Event {
	event := domain.Event{
		ID:         uuid.NewString(),
		Name:       name,
		SubjectID:  subjectID,
		OccurredAt: at.UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			event.Payload = raw
		}
	}
	return event
}

// RequireScheduler rejects principals that may not manage the schedule.
func RequireScheduler(actor domain.Principal) error {
	if !actor.IsAuthenticated() {
		return domain.ErrUnauthorized
	}
	if !actor.CanManageSchedule() {
		return domain.ErrForbidden
	}
	return nil
}

// Bufferable reports whether a failed write may be parked in the offline
// buffer. Domain errors are final answers and are never buffered.
func Bufferable(err error) bool {
	if err == nil {
		return false
	}
	var dErr *domain.Error
	return !errors.As(err, &dErr)
}
