package repository

import (
	"context"
	"time"

	"github.com/fastygo/sanctuary/domain"
)

type SeriesFilter struct {
	Category   domain.Category
	ActiveOnly bool
	Limit      int
	Offset     int
}

type SeriesRepository interface {
	Get(ctx context.Context, id string) (*domain.ActivitySeries, error)
	List(ctx context.Context, filter SeriesFilter) ([]domain.ActivitySeries, error)
	Create(ctx context.Context, series *domain.ActivitySeries) (*domain.ActivitySeries, error)
	// Update persists template fields and the active flag.
	Update(ctx context.Context, series *domain.ActivitySeries) error
	// AdvanceWatermark moves GeneratedThrough forward; it never moves it back.
	AdvanceWatermark(ctx context.Context, id string, through time.Time) error
}

// SeriesLocker serializes horizon maintenance per series across processes.
type SeriesLocker interface {
	// Lock blocks until the series lock is held or ctx is done. The returned
	// release func must be called once.
	Lock(ctx context.Context, seriesID string) (release func(context.Context) error, err error)
}
