// Package series owns recurring series and keeps their occurrences
// materialized across a rolling horizon.
package series

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/internal/observability"
	"github.com/fastygo/sanctuary/internal/recurrence"
	"github.com/fastygo/sanctuary/pkg/clock"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/usecase"
)

const sweepPageSize = 100

type Config struct {
	HorizonMonths int
	SweepInterval time.Duration
	LockTimeout   time.Duration
}

type Deps struct {
	Series     repository.SeriesRepository
	Activities repository.ActivityRepository
	Locker     repository.SeriesLocker
	Expander   *recurrence.Expander
	Clock      clock.Clock
	Events     usecase.EventPublisher
}

type UseCase struct {
	series     repository.SeriesRepository
	activities repository.ActivityRepository
	locker     repository.SeriesLocker
	expander   *recurrence.Expander
	clock      clock.Clock
	events     usecase.EventPublisher
	logger     *zap.Logger
	cfg        Config

	sweepMu   sync.Mutex
	lastSweep atomic.Int64
}

func New(deps Deps, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HorizonMonths <= 0 {
		cfg.HorizonMonths = 3
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 6 * time.Hour
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	if deps.Expander == nil {
		deps.Expander = recurrence.NewExpander()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Events == nil {
		deps.Events = usecase.NopPublisher{}
	}
	return &UseCase{
		series:     deps.Series,
		activities: deps.Activities,
		locker:     deps.Locker,
		expander:   deps.Expander,
		clock:      deps.Clock,
		events:     deps.Events,
		logger:     logger,
		cfg:        cfg,
	}
}

// Materialization reports one horizon extension of a series.
type Materialization struct {
	SeriesID         string     `json:"series_id"`
	Inserted         int        `json:"inserted"`
	GeneratedThrough *time.Time `json:"generated_through,omitempty"`
	Truncated        bool       `json:"truncated,omitempty"`
	Warning          error      `json:"-"`
}

// PropagationReport counts occurrences touched by a series-wide change.
type PropagationReport struct {
	Affected int `json:"affected"`
	Skipped  int `json:"skipped"`
}

type CreateResult struct {
	Series          *domain.ActivitySeries `json:"series"`
	Materialization Materialization        `json:"materialization"`
}

type SplitResult struct {
	Previous        *domain.ActivitySeries `json:"previous"`
	Series          *domain.ActivitySeries `json:"series"`
	Removed         int                    `json:"removed"`
	Materialization Materialization        `json:"materialization"`
}

// SweepReport summarizes an ExtendAll pass.
type SweepReport struct {
	Series   int `json:"series"`
	Inserted int `json:"inserted"`
	Warnings int `json:"warnings"`
	Failures int `json:"failures"`
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.ActivitySeries, error) {
	return uc.series.Get(ctx, id)
}

func (uc *UseCase) List(ctx context.Context, filter repository.SeriesFilter) ([]domain.ActivitySeries, error) {
	return uc.series.List(ctx, filter)
}

// Create stores a new series and materializes its initial horizon.
func (uc *UseCase) Create(ctx context.Context, actor domain.Principal, series *domain.ActivitySeries) (*CreateResult, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	if series == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := uc.prepare(series, actor, uc.clock.Now()); err != nil {
		return nil, err
	}

	created, err := uc.series.Create(ctx, series)
	if err != nil {
		return nil, err
	}

	m := uc.initialHorizon(ctx, created.ID)
	created.GeneratedThrough = m.GeneratedThrough
	return &CreateResult{Series: created, Materialization: m}, nil
}

// initialHorizon materializes a freshly stored series. The series row is
// already committed, so a failure is reported as a warning and the
// occurrences are left to the next horizon sweep.
func (uc *UseCase) initialHorizon(ctx context.Context, seriesID string) Materialization {
	m, err := uc.EnsureHorizon(ctx, seriesID)
	if err == nil {
		return m
	}
	uc.logger.Error("initial materialization failed, deferring to sweep", zap.String("series_id", seriesID), zap.Error(err))
	observability.RecordGenerationWarning()
	m.SeriesID = seriesID
	m.Warning = domain.ErrMaterializationDeferred.WithDetail("series_id", seriesID)
	return m
}

func (uc *UseCase) prepare(series *domain.ActivitySeries, actor domain.Principal, now time.Time) error {
	series.ID = ""
	series.StartAt = domain.NormalizeTimestamp(series.StartAt)
	series.EndAt = domain.NormalizeTimestamp(series.EndAt)
	series.Active = true
	series.GeneratedThrough = nil
	series.CreatedBy = actor.UserID
	if err := series.Validate(); err != nil {
		return err
	}
	return domain.ValidateNotPast(series.StartAt, now)
}

// EnsureHorizon materializes the occurrences of one series up to the rolling
// horizon. Only starts strictly after the stored watermark are generated, so
// occurrences that were deleted or moved are never recreated.
func (uc *UseCase) EnsureHorizon(ctx context.Context, seriesID string) (Materialization, error) {
	var out Materialization
	err := uc.withLock(ctx, seriesID, func(ctx context.Context) error {
		series, err := uc.series.Get(ctx, seriesID)
		if err != nil {
			return err
		}
		out, err = uc.materialize(ctx, series, uc.clock.Now())
		return err
	})
	return out, err
}

func (uc *UseCase) horizonEnd(now time.Time) time.Time {
	return now.AddDate(0, uc.cfg.HorizonMonths, 0)
}

func (uc *UseCase) materialize(ctx context.Context, series *domain.ActivitySeries, now time.Time) (Materialization, error) {
	out := Materialization{SeriesID: series.ID, GeneratedThrough: series.GeneratedThrough}
	if !series.Active {
		return out, nil
	}

	horizon := uc.horizonEnd(now)
	first := series.GeneratedThrough == nil

	var (
		res recurrence.Result
		err error
	)
	if first {
		res, err = uc.expander.Expand(*series, series.StartAt, horizon)
	} else {
		if !horizon.After(*series.GeneratedThrough) {
			return out, nil
		}
		res, err = uc.expander.ExpandAfter(*series, *series.GeneratedThrough, horizon)
	}
	if err != nil {
		return out, err
	}

	occurrences := make([]domain.ScheduledActivity, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		occurrences = append(occurrences, series.Occurrence(o.StartAt, o.EndAt))
	}
	inserted, err := uc.activities.InsertOccurrences(ctx, occurrences)
	if err != nil {
		return out, fmt.Errorf("materialize series %s: %w", series.ID, err)
	}

	through := horizon
	if last, ok := res.Last(); ok && res.Truncated {
		through = last
	}
	if err := uc.series.AdvanceWatermark(ctx, series.ID, through); err != nil {
		return out, fmt.Errorf("advance watermark of series %s: %w", series.ID, err)
	}
	series.GeneratedThrough = &through

	out.Inserted = inserted
	out.GeneratedThrough = &through
	out.Truncated = res.Truncated

	if first && len(res.Occurrences) == 0 {
		out.Warning = domain.ErrNoOccurrences.WithDetail("series_id", series.ID)
		observability.RecordGenerationWarning()
		uc.logger.Warn("series produced no occurrences within the horizon",
			zap.String("series_id", series.ID),
			zap.String("frequency", string(series.Rule.Frequency)),
			zap.Time("horizon", horizon))
	}
	if res.Truncated {
		uc.logger.Warn("series expansion truncated", zap.String("series_id", series.ID), zap.Time("through", through))
	}
	if inserted > 0 {
		observability.RecordMaterialized(string(series.Category), inserted)
		uc.publish(ctx, usecase.NewEvent(domain.EventSeriesMaterialized, series.ID, out, now))
		uc.logger.Debug("series materialized",
			zap.String("series_id", series.ID),
			zap.Int("inserted", inserted),
			zap.Time("through", through))
	}
	return out, nil
}

// ExtendAll extends the horizon of every active series. A failing series is
// logged and counted; the sweep carries on with the rest.
func (uc *UseCase) ExtendAll(ctx context.Context) (SweepReport, error) {
	started := time.Now()
	var (
		report SweepReport
		errs   []error
	)

	for offset := 0; ; offset += sweepPageSize {
		page, err := uc.series.List(ctx, repository.SeriesFilter{ActiveOnly: true, Limit: sweepPageSize, Offset: offset})
		if err != nil {
			return report, fmt.Errorf("list active series: %w", err)
		}
		for _, s := range page {
			report.Series++
			m, err := uc.EnsureHorizon(ctx, s.ID)
			if err != nil {
				report.Failures++
				errs = append(errs, fmt.Errorf("series %s: %w", s.ID, err))
				uc.logger.Error("horizon extension failed", zap.String("series_id", s.ID), zap.Error(err))
				continue
			}
			report.Inserted += m.Inserted
			if m.Warning != nil {
				report.Warnings++
			}
		}
		if len(page) < sweepPageSize {
			break
		}
	}

	uc.lastSweep.Store(uc.clock.Now().UnixNano())
	observability.RecordSweep(started, time.Now())
	uc.logger.Info("horizon sweep finished",
		zap.Int("series", report.Series),
		zap.Int("inserted", report.Inserted),
		zap.Int("failures", report.Failures))
	return report, errors.Join(errs...)
}

// ExtendIfStale runs ExtendAll when the previous sweep is older than the
// configured interval. Concurrent callers do not wait for a running sweep.
func (uc *UseCase) ExtendIfStale(ctx context.Context) error {
	last := uc.lastSweep.Load()
	if last != 0 && uc.clock.Now().Sub(time.Unix(0, last)) < uc.cfg.SweepInterval {
		return nil
	}
	if !uc.sweepMu.TryLock() {
		return nil
	}
	defer uc.sweepMu.Unlock()

	if last = uc.lastSweep.Load(); last != 0 && uc.clock.Now().Sub(time.Unix(0, last)) < uc.cfg.SweepInterval {
		return nil
	}
	_, err := uc.ExtendAll(ctx)
	return err
}

// UpdateTemplate edits the template fields of a series and carries them to
// every upcoming, non-detached occurrence.
func (uc *UseCase) UpdateTemplate(ctx context.Context, actor domain.Principal, seriesID string, tpl domain.SeriesTemplate) (*domain.ActivitySeries, PropagationReport, error) {
	return uc.PropagateTemplate(ctx, actor, seriesID, tpl, uc.clock.Now(), "")
}

// PropagateTemplate is UpdateTemplate restricted to occurrences starting at or
// after from. The pivot occurrence is updated even when detached.
func (uc *UseCase) PropagateTemplate(ctx context.Context, actor domain.Principal, seriesID string, tpl domain.SeriesTemplate, from time.Time, pivotID string) (*domain.ActivitySeries, PropagationReport, error) {
	var (
		report  PropagationReport
		updated *domain.ActivitySeries
	)
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, report, err
	}
	if err := tpl.Validate(); err != nil {
		return nil, report, err
	}
	if tpl.Empty() {
		return nil, report, domain.NewValidationError("template", "nothing to update")
	}

	err := uc.withLock(ctx, seriesID, func(ctx context.Context) error {
		series, err := uc.series.Get(ctx, seriesID)
		if err != nil {
			return err
		}
		tpl.ApplyToSeries(series)
		if err := uc.series.Update(ctx, series); err != nil {
			return err
		}
		updated = series

		now := uc.clock.Now()
		targets, skipped, err := uc.propagationTargets(ctx, seriesID, from, domain.ActionEdit, now, func(a *domain.ScheduledActivity) bool {
			return !a.Detached || a.ID == pivotID
		})
		if err != nil {
			return err
		}
		report.Skipped = skipped
		for i := range targets {
			occ := &targets[i]
			tpl.ApplyToActivity(occ)
			if err := uc.activities.UpdateIfNotStarted(ctx, occ, now); err != nil {
				if skippable(err) {
					report.Skipped++
					continue
				}
				return err
			}
			report.Affected++
		}
		return nil
	})
	if err != nil {
		return nil, report, err
	}

	uc.publish(ctx, usecase.NewEvent(domain.EventSeriesUpdated, seriesID, report, uc.clock.Now()))
	return updated, report, nil
}

// StopFrom deletes the pivot and every later upcoming occurrence, then
// deactivates the series so nothing is regenerated.
func (uc *UseCase) StopFrom(ctx context.Context, actor domain.Principal, seriesID string, pivot domain.ScheduledActivity) (PropagationReport, error) {
	var report PropagationReport
	if err := usecase.RequireScheduler(actor); err != nil {
		return report, err
	}
	if !pivot.InSeries(seriesID) {
		return report, domain.NewValidationError("activity_id", "occurrence does not belong to the series")
	}

	err := uc.withLock(ctx, seriesID, func(ctx context.Context) error {
		now := uc.clock.Now()
		if decision := domain.CheckMutation(pivot.Status(now), domain.ActionDelete); !decision.Allowed {
			observability.RecordGuardDenial(string(domain.ActionDelete), decision.Reason)
			return decision.Err()
		}
		series, err := uc.series.Get(ctx, seriesID)
		if err != nil {
			return err
		}
		report, err = uc.removeFrom(ctx, seriesID, pivot.StartAt, now)
		if err != nil {
			return err
		}
		series.Active = false
		return uc.series.Update(ctx, series)
	})
	if err != nil {
		return report, err
	}

	uc.publish(ctx, usecase.NewEvent(domain.EventSeriesDeactivated, seriesID, report, uc.clock.Now()))
	return report, nil
}

// Deactivate soft-disables generation. Existing occurrences are kept.
func (uc *UseCase) Deactivate(ctx context.Context, actor domain.Principal, seriesID string) (*domain.ActivitySeries, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}
	var out *domain.ActivitySeries
	err := uc.withLock(ctx, seriesID, func(ctx context.Context) error {
		series, err := uc.series.Get(ctx, seriesID)
		if err != nil {
			return err
		}
		if !series.Active {
			out = series
			return nil
		}
		series.Active = false
		if err := uc.series.Update(ctx, series); err != nil {
			return err
		}
		out = series
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, usecase.NewEvent(domain.EventSeriesDeactivated, seriesID, nil, uc.clock.Now()))
	return out, nil
}

// Split ends a series at the pivot occurrence and continues it as a new series
// defined by next. The pivot and later upcoming occurrences of the old series
// are removed; everything before the pivot is left untouched.
func (uc *UseCase) Split(ctx context.Context, actor domain.Principal, seriesID, pivotID string, next domain.ActivitySeries) (*SplitResult, error) {
	if err := usecase.RequireScheduler(actor); err != nil {
		return nil, err
	}

	result := &SplitResult{}
	err := uc.withLock(ctx, seriesID, func(ctx context.Context) error {
		old, err := uc.series.Get(ctx, seriesID)
		if err != nil {
			return err
		}
		if !old.Active {
			return domain.ErrSeriesInactive
		}
		pivot, err := uc.activities.GetByID(ctx, pivotID)
		if err != nil {
			return err
		}
		if !pivot.InSeries(seriesID) {
			return domain.NewValidationError("pivot_id", "occurrence does not belong to the series")
		}

		now := uc.clock.Now()
		if decision := domain.CheckMutation(pivot.Status(now), domain.ActionEdit); !decision.Allowed {
			observability.RecordGuardDenial(string(domain.ActionEdit), decision.Reason)
			return decision.Err()
		}

		next.Category = old.Category
		if err := uc.prepare(&next, actor, now); err != nil {
			return err
		}

		report, err := uc.removeFrom(ctx, seriesID, pivot.StartAt, now)
		if err != nil {
			return err
		}
		old.Active = false
		if err := uc.series.Update(ctx, old); err != nil {
			return err
		}
		created, err := uc.series.Create(ctx, &next)
		if err != nil {
			return err
		}

		result.Previous = old
		result.Series = created
		result.Removed = report.Affected
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := uc.initialHorizon(ctx, result.Series.ID)
	result.Series.GeneratedThrough = m.GeneratedThrough
	result.Materialization = m

	uc.publish(ctx, usecase.NewEvent(domain.EventSeriesSplit, seriesID, map[string]string{
		"previous_series_id": seriesID,
		"series_id":          result.Series.ID,
		"pivot_id":           pivotID,
	}, uc.clock.Now()))
	return result, nil
}

// Continuation derives the series that replaces old from the pivot onward
// when the pivot is moved to [startAt, endAt). Weekday and day-of-month
// anchors shift with the move; an occurrence count keeps counting the
// occurrences the old series already produced.
func (uc *UseCase) Continuation(old domain.ActivitySeries, pivot domain.ScheduledActivity, startAt, endAt time.Time, tpl domain.SeriesTemplate) (domain.ActivitySeries, error) {
	next := old
	next.ID = ""
	next.GeneratedThrough = nil
	next.StartAt = startAt
	next.EndAt = endAt
	next.Rule.DaysOfWeek = append([]time.Weekday(nil), old.Rule.DaysOfWeek...)
	tpl.ApplyToSeries(&next)

	loc := old.Location()
	delta := calendarDays(pivot.StartAt.In(loc), startAt.In(loc))
	switch old.Rule.Frequency {
	case domain.FrequencyWeekly:
		if delta != 0 {
			for i, d := range next.Rule.DaysOfWeek {
				next.Rule.DaysOfWeek[i] = time.Weekday(((int(d)+delta)%7 + 7) % 7)
			}
		}
	case domain.FrequencyMonthly:
		if delta != 0 {
			next.Rule.DayOfMonth = startAt.In(loc).Day()
		}
	}

	if old.End.Type == domain.EndAfterCount {
		before := pivot.StartAt.Add(-time.Nanosecond)
		prior := 0
		if before.After(old.StartAt) || before.Equal(old.StartAt) {
			res, err := uc.expander.Expand(old, old.StartAt, before)
			if err != nil {
				return next, err
			}
			prior = len(res.Occurrences)
		}
		remaining := old.End.Count - prior
		if remaining < 1 {
			remaining = 1
		}
		next.End = domain.EndCondition{Type: domain.EndAfterCount, Count: remaining}
	}
	return next, nil
}

func calendarDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (uc *UseCase) removeFrom(ctx context.Context, seriesID string, from, now time.Time) (PropagationReport, error) {
	var report PropagationReport
	targets, skipped, err := uc.propagationTargets(ctx, seriesID, from, domain.ActionDelete, now, nil)
	if err != nil {
		return report, err
	}
	report.Skipped = skipped
	for i := range targets {
		occ := &targets[i]
		if err := uc.activities.DeleteIfNotStarted(ctx, occ.ID, now); err != nil {
			if skippable(err) {
				report.Skipped++
				continue
			}
			return report, err
		}
		report.Affected++
	}
	return report, nil
}

// propagationTargets lists the occurrences of a series starting at or after
// from that the guard still allows action on at now. Occurrences rejected by
// keep or by the guard are counted as skipped.
func (uc *UseCase) propagationTargets(ctx context.Context, seriesID string, from time.Time, action domain.Action, now time.Time, keep func(*domain.ScheduledActivity) bool) ([]domain.ScheduledActivity, int, error) {
	occurrences, err := uc.activities.ListSeriesFrom(ctx, seriesID, from)
	if err != nil {
		return nil, 0, err
	}
	targets := occurrences[:0]
	skipped := 0
	for i := range occurrences {
		occ := occurrences[i]
		if keep != nil && !keep(&occ) {
			skipped++
			continue
		}
		if !domain.CheckMutation(occ.Status(now), action).Allowed {
			skipped++
			continue
		}
		targets = append(targets, occ)
	}
	return targets, skipped, nil
}

func skippable(err error) bool {
	if domain.IsDomainError(err, domain.ErrCodeStaleWrite) {
		observability.RecordStaleWrite()
		return true
	}
	return errors.Is(err, domain.ErrActivityNotFound)
}

func (uc *UseCase) withLock(ctx context.Context, seriesID string, fn func(ctx context.Context) error) error {
	if uc.locker == nil {
		return fn(ctx)
	}
	lockCtx, cancel := context.WithTimeout(ctx, uc.cfg.LockTimeout)
	release, err := uc.locker.Lock(lockCtx, seriesID)
	cancel()
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeConflict) {
			return err
		}
		return domain.WrapError(domain.ErrCodeConflict, domain.ErrSeriesBusy.Message, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			uc.logger.Warn("series lock release failed", zap.String("series_id", seriesID), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	err := uc.events.Publish(ctx, event)
	observability.RecordEventPublished(event.Name, err)
	if err != nil {
		uc.logger.Warn("event publish failed", zap.String("event", event.Name), zap.String("subject_id", event.SubjectID), zap.Error(err))
	}
}
