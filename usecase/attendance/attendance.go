// Package attendance records members joining live activities.
package attendance

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/internal/observability"
	"github.com/fastygo/sanctuary/pkg/clock"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/usecase"
)

type Deps struct {
	Activities repository.ActivityRepository
	Attendance repository.AttendanceRepository
	Buffer     usecase.OperationBuffer
	Clock      clock.Clock
	Events     usecase.EventPublisher
}

type UseCase struct {
	activities repository.ActivityRepository
	attendance repository.AttendanceRepository
	buffer     usecase.OperationBuffer
	clock      clock.Clock
	events     usecase.EventPublisher
	logger     *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Events == nil {
		deps.Events = usecase.NopPublisher{}
	}
	return &UseCase{
		activities: deps.Activities,
		attendance: deps.Attendance,
		buffer:     deps.Buffer,
		clock:      deps.Clock,
		events:     deps.Events,
		logger:     logger,
	}
}

// Join records that actor joined the activity and returns how to get there.
// Joining is only possible while the activity is in progress; joining twice
// returns the first record.
func (uc *UseCase) Join(ctx context.Context, actor domain.Principal, activityID string) (*domain.JoinResult, error) {
	if !actor.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	activity, err := uc.activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now()
	if status := activity.Status(now); status != domain.StatusInProgress {
		return nil, domain.ErrNotLive.WithDetail("status", string(status))
	}

	record := &domain.Attendance{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		ActivityID: activity.ID,
		JoinedAt:   now.UTC(),
	}
	result := &domain.JoinResult{Action: activity.Venue.JoinAction()}

	stored, created, err := uc.attendance.Record(ctx, record)
	if err != nil {
		if !uc.shouldBuffer(ctx, record, err) {
			return nil, err
		}
		result.Attendance = *record
		return result, nil
	}
	result.Attendance = *stored
	if created {
		observability.RecordAttendance()
		uc.publish(ctx, usecase.NewEvent(domain.EventAttendanceRecorded, activity.ID, stored, now))
	}
	return result, nil
}

func (uc *UseCase) shouldBuffer(ctx context.Context, record *domain.Attendance, cause error) bool {
	if uc.buffer == nil || !usecase.Bufferable(cause) {
		return false
	}
	if err := uc.buffer.BufferAttendance(ctx, record); err != nil {
		uc.logger.Error("failed to buffer attendance", zap.String("activity_id", record.ActivityID), zap.Error(err))
		return false
	}
	uc.logger.Warn("attendance buffered", zap.String("activity_id", record.ActivityID), zap.Error(cause))
	return true
}

// Attendees lists who joined the activity. Pastors and admins only.
func (uc *UseCase) Attendees(ctx context.Context, actor domain.Principal, activityID string) ([]domain.Attendance, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	if _, err := uc.activities.GetByID(ctx, activityID); err != nil {
		return nil, err
	}
	items, err := uc.attendance.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Attendance{}
	}
	return items, nil
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	err := uc.events.Publish(ctx, event)
	observability.RecordEventPublished(event.Name, err)
	if err != nil {
		uc.logger.Warn("event publish failed", zap.String("event", event.Name), zap.Error(err))
	}
}
