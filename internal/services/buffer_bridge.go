package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/internal/infrastructure/buffer"
	"github.com/fastygo/sanctuary/usecase"
)

// BufferBridge adapts the processor to the use-case OperationBuffer port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferAttendance(ctx context.Context, attendance *domain.Attendance) error {
	if b.processor == nil || attendance == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(attendance)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ID:        attendance.ID,
		UserID:    attendance.UserID,
		SubjectID: attendance.ActivityID,
		Entity:    buffer.EntityAttendance,
		Operation: buffer.OperationRecord,
		Data:      payload,
		Priority:  buffer.PriorityAttendance,
	}
	return b.processor.BufferOperation(ctx, item)
}

func (b *BufferBridge) BufferPrayerRequest(ctx context.Context, request *domain.PrayerRequest) error {
	if b.processor == nil || request == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ID:        request.ID,
		UserID:    request.AuthorID,
		SubjectID: request.ID,
		Entity:    buffer.EntityPrayerRequest,
		Operation: buffer.OperationSubmit,
		Data:      payload,
		Priority:  buffer.PriorityPrayerRequest,
	}
	return b.processor.BufferOperation(ctx, item)
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
