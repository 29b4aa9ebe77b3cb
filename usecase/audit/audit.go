// Package audit keeps the durable change log of scheduling records.
package audit

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/usecase"
)

const defaultLimit = 100

// UseCase appends published events to the event log and serves their history.
type UseCase struct {
	repo   repository.EventRepository
	logger *zap.Logger
}

func New(repo repository.EventRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{repo: repo, logger: logger}
}

// Publish implements usecase.EventPublisher.
func (uc *UseCase) Publish(ctx context.Context, event domain.Event) error {
	if err := uc.repo.Append(ctx, event); err != nil {
		uc.logger.Error("append event", zap.String("event", event.Name), zap.String("subject", event.SubjectID), zap.Error(err))
		return fmt.Errorf("audit: append %s: %w", event.Name, err)
	}
	return nil
}

// History lists the events recorded for one subject, oldest first.
func (uc *UseCase) History(ctx context.Context, actor domain.Principal, subjectID string, limit int) ([]domain.Event, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, domain.NewValidationError("id", "subject id is required")
	}
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	events, err := uc.repo.ListBySubject(ctx, subjectID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
