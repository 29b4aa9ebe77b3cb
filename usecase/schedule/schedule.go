// Package schedule serves reads and single-activity mutations of the
// schedule and routes series-wide changes to the series maintainer.
package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/internal/observability"
	"github.com/fastygo/sanctuary/pkg/clock"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/usecase"
	"github.com/fastygo/sanctuary/usecase/series"
)

// PropagationMode selects how far an edit or delete of a series occurrence reaches.
type PropagationMode string

const (
	ModeThis          PropagationMode = "this"
	ModeThisAndFuture PropagationMode = "this_and_future"
)

// ParseMode maps a query value onto a mode. Empty means ModeThis.
func ParseMode(value string) (PropagationMode, error) {
	switch PropagationMode(value) {
	case "", ModeThis:
		return ModeThis, nil
	case ModeThisAndFuture:
		return ModeThisAndFuture, nil
	default:
		return "", domain.NewValidationError("mode", "mode must be this or this_and_future")
	}
}

type Config struct {
	Location     *time.Location
	DefaultLimit int
}

type Deps struct {
	Activities repository.ActivityRepository
	Series     *series.UseCase
	Clock      clock.Clock
	Events     usecase.EventPublisher
}

type UseCase struct {
	activities repository.ActivityRepository
	series     *series.UseCase
	clock      clock.Clock
	events     usecase.EventPublisher
	logger     *zap.Logger
	cfg        Config
}

func New(deps Deps, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 200
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Events == nil {
		deps.Events = usecase.NopPublisher{}
	}
	return &UseCase{
		activities: deps.Activities,
		series:     deps.Series,
		clock:      deps.Clock,
		events:     deps.Events,
		logger:     logger,
		cfg:        cfg,
	}
}

// ListQuery selects activities for a read. An empty Tab returns every
// activity overlapping [From, To) in ascending start order.
type ListQuery struct {
	Tab      domain.Tab
	From     *time.Time
	To       *time.Time
	Category domain.Category
	SeriesID string
	Location *time.Location
	Limit    int
	Offset   int
}

// Dashboard is the home screen: what is live and what is still to come today.
type Dashboard struct {
	LiveNow       []domain.ActivityView `json:"live_now"`
	UpcomingToday []domain.ActivityView `json:"upcoming_today"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

// EditRequest carries the proposed changes. Nil fields are left as they are.
type EditRequest struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Venue       *domain.Venue `json:"venue,omitempty"`
	StartAt     *time.Time    `json:"start_at,omitempty"`
	EndAt       *time.Time    `json:"end_at,omitempty"`
}

func (r EditRequest) template() domain.SeriesTemplate {
	return domain.SeriesTemplate{Title: r.Title, Description: r.Description, Venue: r.Venue}
}

func (r EditRequest) empty() bool {
	return r.template().Empty() && r.StartAt == nil && r.EndAt == nil
}

// EditResult describes what an edit changed. Series is set when the edit
// created a continuation series.
type EditResult struct {
	Mode     PropagationMode          `json:"mode"`
	Activity *domain.ActivityView     `json:"activity,omitempty"`
	Report   series.PropagationReport `json:"report"`
	Series   *domain.ActivitySeries   `json:"series,omitempty"`
	Previous *domain.ActivitySeries   `json:"previous_series,omitempty"`
	Warnings []error                  `json:"-"`
}

// DeleteResult counts the removed occurrences.
type DeleteResult struct {
	Mode   PropagationMode          `json:"mode"`
	Report series.PropagationReport `json:"report"`
}

// Location is the default viewer timezone.
func (uc *UseCase) Location() *time.Location {
	return uc.cfg.Location
}

func (uc *UseCase) location(loc *time.Location) *time.Location {
	if loc != nil {
		return loc
	}
	return uc.cfg.Location
}

// List returns the activities of a tab with status and permissions resolved
// at the instant of the read.
func (uc *UseCase) List(ctx context.Context, q ListQuery) ([]domain.ActivityView, error) {
	if q.Tab != "" && !q.Tab.Valid() {
		return nil, domain.NewValidationError("tab", "unknown tab")
	}
	if q.Category != "" && !q.Category.Valid() {
		return nil, domain.NewValidationError("category", "category must be prayer or event")
	}
	uc.extendLazily(ctx)

	now := uc.clock.Now()
	loc := uc.location(q.Location)
	filter := repository.ActivityFilter{
		Category: q.Category,
		SeriesID: q.SeriesID,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = uc.cfg.DefaultLimit
	}
	from, to := tabWindow(q.Tab, now, loc)
	filter.From = latest(from, q.From)
	filter.To = earliest(to, q.To)
	if q.Tab == domain.TabPast {
		filter.EndedBy = &now
		filter.Descending = true
	}

	items, err := uc.activities.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if q.Tab != "" {
		items = domain.FilterTab(items, q.Tab, now, loc)
	} else {
		domain.SortForTab(items, q.Tab)
	}
	return views(items, now), nil
}

// tabWindow is the storage window that is a superset of the tab at now.
func tabWindow(tab domain.Tab, now time.Time, loc *time.Location) (*time.Time, *time.Time) {
	_, todayEnd := domain.DayBounds(now, loc)
	justAfter := now.Add(time.Nanosecond)
	switch tab {
	case domain.TabToday:
		return &now, &todayEnd
	case domain.TabUpcoming:
		return &todayEnd, nil
	case domain.TabPast:
		return nil, &now
	case domain.TabLiveNow:
		return &now, &justAfter
	case domain.TabUpcomingToday:
		return &now, &todayEnd
	default:
		return nil, nil
	}
}

func latest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

func views(items []domain.ScheduledActivity, now time.Time) []domain.ActivityView {
	out := make([]domain.ActivityView, 0, len(items))
	for _, a := range items {
		out = append(out, a.ViewAt(now))
	}
	return out
}

// extendLazily keeps the horizon fresh on reads. A failing sweep never fails the read.
func (uc *UseCase) extendLazily(ctx context.Context) {
	if uc.series == nil {
		return
	}
	if err := uc.series.ExtendIfStale(ctx); err != nil {
		uc.logger.Warn("lazy horizon extension failed", zap.Error(err))
	}
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.ActivityView, error) {
	activity, err := uc.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := activity.ViewAt(uc.clock.Now())
	return &view, nil
}

func (uc *UseCase) Dashboard(ctx context.Context, loc *time.Location) (*Dashboard, error) {
	live, err := uc.List(ctx, ListQuery{Tab: domain.TabLiveNow, Location: loc})
	if err != nil {
		return nil, err
	}
	today, err := uc.List(ctx, ListQuery{Tab: domain.TabUpcomingToday, Location: loc})
	if err != nil {
		return nil, err
	}
	return &Dashboard{LiveNow: live, UpcomingToday: today, GeneratedAt: uc.clock.Now().UTC()}, nil
}

// Feed returns every activity starting after now-lookback, ascending, for
// calendar export, together with the instant it was resolved at.
func (uc *UseCase) Feed(ctx context.Context, lookback time.Duration, limit int) ([]domain.ActivityView, time.Time, error) {
	now := uc.clock.Now()
	from := now.Add(-lookback)
	items, err := uc.List(ctx, ListQuery{From: &from, Limit: limit})
	if err != nil {
		return nil, now, err
	}
	return items, now, nil
}

// CreateSingle schedules a one-off activity outside any series.
func (uc *UseCase) CreateSingle(ctx context.Context, actor domain.Principal, activity *domain.ScheduledActivity) (*domain.ActivityView, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, domain.ErrInvalidPayload
	}
	now := uc.clock.Now()
	activity.ID = ""
	activity.SeriesID = nil
	activity.RecurrenceLabel = ""
	activity.Detached = false
	activity.CreatedBy = actor.UserID
	activity.StartAt = domain.NormalizeTimestamp(activity.StartAt)
	activity.EndAt = domain.NormalizeTimestamp(activity.EndAt)
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateNotPast(activity.StartAt, now); err != nil {
		return nil, err
	}

	created, err := uc.activities.Create(ctx, activity)
	if err != nil {
		return nil, err
	}
	view := created.ViewAt(now)
	uc.publish(ctx, usecase.NewEvent(domain.EventActivityUpdated, created.ID, view, now))
	return &view, nil
}

// Edit applies req to the activity. The guard is consulted on the stored
// window first; a moved start must additionally not be in the past.
func (uc *UseCase) Edit(ctx context.Context, actor domain.Principal, id string, mode PropagationMode, req EditRequest) (*EditResult, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	if req.empty() {
		return nil, domain.NewValidationError("body", "nothing to update")
	}
	current, err := uc.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	if err := uc.guard(current, domain.ActionEdit, now); err != nil {
		return nil, err
	}

	startAt, endAt := current.StartAt, current.EndAt
	if req.StartAt != nil {
		startAt = domain.NormalizeTimestamp(*req.StartAt)
	}
	if req.EndAt != nil {
		endAt = domain.NormalizeTimestamp(*req.EndAt)
	}
	moved := !startAt.Equal(current.StartAt) || !endAt.Equal(current.EndAt)
	if moved {
		if err := domain.ValidateWindow(startAt, endAt); err != nil {
			return nil, err
		}
		if err := domain.ValidateNotPast(startAt, now); err != nil {
			return nil, err
		}
	}

	tpl := req.template()
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	if mode != ModeThisAndFuture || current.SeriesID == nil {
		return uc.editOne(ctx, current, tpl, startAt, endAt, now)
	}
	if moved {
		return uc.editSplit(ctx, actor, current, tpl, startAt, endAt)
	}
	return uc.editFuture(ctx, actor, current, tpl)
}

func (uc *UseCase) editOne(ctx context.Context, current *domain.ScheduledActivity, tpl domain.SeriesTemplate, startAt, endAt, now time.Time) (*EditResult, error) {
	next := *current
	tpl.ApplyToActivity(&next)
	next.StartAt, next.EndAt = startAt, endAt
	if next.SeriesID != nil {
		next.Detached = true
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := uc.activities.UpdateIfNotStarted(ctx, &next, uc.clock.Now()); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeStaleWrite) {
			observability.RecordStaleWrite()
		}
		return nil, err
	}

	view := next.ViewAt(now)
	uc.publish(ctx, usecase.NewEvent(domain.EventActivityUpdated, next.ID, view, now))
	return &EditResult{Mode: ModeThis, Activity: &view, Report: series.PropagationReport{Affected: 1}}, nil
}

func (uc *UseCase) editFuture(ctx context.Context, actor domain.Principal, current *domain.ScheduledActivity, tpl domain.SeriesTemplate) (*EditResult, error) {
	seriesID := *current.SeriesID
	updated, report, err := uc.series.PropagateTemplate(ctx, actor, seriesID, tpl, current.StartAt, current.ID)
	if err != nil {
		return nil, err
	}
	out := &EditResult{Mode: ModeThisAndFuture, Report: report, Series: updated}
	if view, err := uc.Get(ctx, current.ID); err == nil {
		out.Activity = view
	}
	return out, nil
}

func (uc *UseCase) editSplit(ctx context.Context, actor domain.Principal, current *domain.ScheduledActivity, tpl domain.SeriesTemplate, startAt, endAt time.Time) (*EditResult, error) {
	seriesID := *current.SeriesID
	old, err := uc.series.Get(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	next, err := uc.series.Continuation(*old, *current, startAt, endAt, tpl)
	if err != nil {
		return nil, err
	}
	split, err := uc.series.Split(ctx, actor, seriesID, current.ID, next)
	if err != nil {
		return nil, err
	}

	out := &EditResult{
		Mode:     ModeThisAndFuture,
		Report:   series.PropagationReport{Affected: split.Removed},
		Series:   split.Series,
		Previous: split.Previous,
	}
	if split.Materialization.Warning != nil {
		out.Warnings = append(out.Warnings, split.Materialization.Warning)
	}
	now := uc.clock.Now()
	occurrences, err := uc.activities.ListSeriesFrom(ctx, split.Series.ID, split.Series.StartAt)
	if err == nil && len(occurrences) > 0 {
		view := occurrences[0].ViewAt(now)
		out.Activity = &view
	}
	return out, nil
}

// Delete removes the activity, or with ModeThisAndFuture the occurrence
// and every later upcoming one of its series.
func (uc *UseCase) Delete(ctx context.Context, actor domain.Principal, id string, mode PropagationMode) (*DeleteResult, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	current, err := uc.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now()
	if err := uc.guard(current, domain.ActionDelete, now); err != nil {
		return nil, err
	}

	if mode == ModeThisAndFuture && current.SeriesID != nil {
		report, err := uc.series.StopFrom(ctx, actor, *current.SeriesID, *current)
		if err != nil {
			return nil, err
		}
		return &DeleteResult{Mode: ModeThisAndFuture, Report: report}, nil
	}

	if err := uc.activities.DeleteIfNotStarted(ctx, id, uc.clock.Now()); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeStaleWrite) {
			observability.RecordStaleWrite()
		}
		return nil, err
	}
	uc.publish(ctx, usecase.NewEvent(domain.EventActivityDeleted, id, current, now))
	return &DeleteResult{Mode: ModeThis, Report: series.PropagationReport{Affected: 1}}, nil
}

func (uc *UseCase) guard(activity *domain.ScheduledActivity, action domain.Action, now time.Time) error {
	decision := domain.CheckMutation(activity.Status(now), action)
	if decision.Allowed {
		return nil
	}
	observability.RecordGuardDenial(string(action), decision.Reason)
	uc.logger.Debug("mutation denied",
		zap.String("activity_id", activity.ID),
		zap.String("action", string(action)),
		zap.String("reason", decision.Reason))
	return decision.Err()
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	err := uc.events.Publish(ctx, event)
	observability.RecordEventPublished(event.Name, err)
	if err != nil {
		uc.logger.Warn("event publish failed", zap.String("event", event.Name), zap.String("subject_id", event.SubjectID), zap.Error(err))
	}
}
