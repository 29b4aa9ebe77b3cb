package repository

import (
	"context"
	"time"

	"github.com/fastygo/sanctuary/domain"
)

// ActivityFilter narrows activity listings. From/To select activities whose
// window overlaps [From, To). Results are ordered by start, newest first when
// Descending is set.
// ActivityFilter selects activities overlapping [From, To): end_at > From and
// start_at < To. EndedBy additionally requires end_at <= EndedBy.
type ActivityFilter struct {
	Category   domain.Category
	SeriesID   string
	From       *time.Time
	To         *time.Time
	EndedBy    *time.Time
	Descending bool
	Limit      int
	Offset     int
}

type ActivityRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ScheduledActivity, error)
	List(ctx context.Context, filter ActivityFilter) ([]domain.ScheduledActivity, error)
	Create(ctx context.Context, activity *domain.ScheduledActivity) (*domain.ScheduledActivity, error)

	// UpdateIfNotStarted writes the activity only while its stored start is
	// still after now. A row that has since started yields a StaleWrite error.
	UpdateIfNotStarted(ctx context.Context, activity *domain.ScheduledActivity, now time.Time) error
	// DeleteIfNotStarted has the same condition as UpdateIfNotStarted.
	DeleteIfNotStarted(ctx context.Context, id string, now time.Time) error

	// InsertOccurrences stores occurrences that do not yet exist for their
	// (series_id, start_at) key and returns how many were inserted.
	InsertOccurrences(ctx context.Context, occurrences []domain.ScheduledActivity) (int, error)
	// ListSeriesFrom returns the series occurrences starting at or after from, ordered by start.
	ListSeriesFrom(ctx context.Context, seriesID string, from time.Time) ([]domain.ScheduledActivity, error)
}
