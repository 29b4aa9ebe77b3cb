package prayerrequest

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
	Requests repository.PrayerRequestRepository
	Buffer   usecase.OperationBuffer
	Clock    clock.Clock
	Events   usecase.EventPublisher
}

type UseCase struct {
	requests repository.PrayerRequestRepository
	buffer   usecase.OperationBuffer
	clock    clock.Clock
	events   usecase.EventPublisher
	logger   *zap.Logger
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
		requests: deps.Requests,
		buffer:   deps.Buffer,
		clock:    deps.Clock,
		events:   deps.Events,
		logger:   logger,
	}
}

type SubmitInput struct {
	Text       string                   `json:"text"`
	Visibility domain.RequestVisibility `json:"visibility"`
}

// ListQuery selects requests. Mine restricts the list to the caller's own
// requests; otherwise pastors see every request and members see public
// requests plus their own private ones.
type ListQuery struct {
	Mine   bool
	Status domain.RequestStatus
	Limit  int
	Offset int
}

// Submission is the stored request as seen by its author.
type Submission struct {
	Request  domain.PrayerRequestView `json:"request"`
	Buffered bool                     `json:"buffered"`
}

// Submit stores a new request authored by actor, snapshotting the display
// name and username for audit. When storage is unreachable the request is
// parked in the offline buffer under its pre-assigned id.
func (uc *UseCase) Submit(ctx context.Context, actor domain.Principal, in SubmitInput) (*Submission, error) {
	if !actor.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	now := uc.clock.Now().UTC()
	req := &domain.PrayerRequest{
		ID:             uuid.NewString(),
		AuthorID:       actor.UserID,
		AuthorName:     actor.Name,
		AuthorUsername: actor.Username,
		Text:           in.Text,
		Visibility:     in.Visibility,
		Status:         domain.RequestSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	created, err := uc.requests.Create(ctx, req)
	if err != nil {
		if uc.shouldBuffer(ctx, req, err) {
			return &Submission{Request: req.ViewFor(actor), Buffered: true}, nil
		}
		return nil, err
	}
	return &Submission{Request: created.ViewFor(actor)}, nil
}

func (uc *UseCase) shouldBuffer(ctx context.Context, req *domain.PrayerRequest, cause error) bool {
	if uc.buffer == nil || !usecase.Bufferable(cause) {
		return false
	}
	if err := uc.buffer.BufferPrayerRequest(ctx, req); err != nil {
		uc.logger.Error("failed to buffer prayer request", zap.String("request_id", req.ID), zap.Error(err))
		return false
	}
	uc.logger.Warn("prayer request buffered", zap.String("request_id", req.ID), zap.Error(cause))
	return true
}

func (uc *UseCase) List(ctx context.Context, actor domain.Principal, q ListQuery) ([]domain.PrayerRequestView, error) {
	if !actor.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	filter := repository.PrayerRequestFilter{Status: q.Status, Limit: q.Limit, Offset: q.Offset}
	switch {
	case q.Mine:
		filter.AuthorID = actor.UserID
	case !actor.CanManageSchedule():
		filter.VisibleTo = actor.UserID
	}

	items, err := uc.requests.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PrayerRequestView, 0, len(items))
	for _, r := range items {
		if !r.CanView(actor) {
			continue
		}
		out = append(out, r.ViewFor(actor))
	}
	return out, nil
}

// Get hides requests the actor may not read behind NotFound.
func (uc *UseCase) Get(ctx context.Context, actor domain.Principal, id string) (*domain.PrayerRequestView, error) {
	if !actor.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	req, err := uc.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.CanView(actor) {
		return nil, domain.ErrPrayerRequestNotFound
	}
	view := req.ViewFor(actor)
	return &view, nil
}

// MarkPrayed archives a submitted request, anonymizing it when private.
func (uc *UseCase) MarkPrayed(ctx context.Context, actor domain.Principal, id string) (*domain.PrayerRequestView, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	req, err := uc.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := req.Status
	now := uc.clock.Now()
	if err := req.MarkPrayed(now); err != nil {
		return nil, err
	}
	if err := uc.requests.Transition(ctx, req, from); err != nil {
		return nil, err
	}

	observability.RecordPrayerRequestArchived(string(req.Visibility))
	uc.logger.Info("prayer request archived",
		zap.String("request_id", req.ID),
		zap.String("visibility", string(req.Visibility)),
		zap.String("pastor_id", actor.UserID))
	uc.publish(ctx, usecase.NewEvent(domain.EventPrayerRequestArchived, req.ID, map[string]interface{}{
		"visibility": req.Visibility,
		"anonymized": req.Anonymized,
		"prayed_by":  actor.UserID,
	}, now))

	view := req.ViewFor(actor)
	return &view, nil
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	err := uc.events.Publish(ctx, event)
	observability.RecordEventPublished(event.Name, err)
	if err != nil {
		uc.logger.Warn("event publish failed", zap.String("event", event.Name), zap.Error(err))
	}
}
