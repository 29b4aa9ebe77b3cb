package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

// SeriesStore is an in-memory SeriesRepository.
type SeriesStore struct {
	mu     sync.RWMutex
	series map[string]domain.ActivitySeries
}

func NewSeriesStore() *SeriesStore {
	return &SeriesStore{series: make(map[string]domain.ActivitySeries)}
}

var _ repository.SeriesRepository = (*SeriesStore)(nil)

func cloneSeries(s domain.ActivitySeries) domain.ActivitySeries {
	if s.GeneratedThrough != nil {
		t := *s.GeneratedThrough
		s.GeneratedThrough = &t
	}
	if s.End.OnDate != nil {
		t := *s.End.OnDate
		s.End.OnDate = &t
	}
	s.Rule.DaysOfWeek = append([]time.Weekday(nil), s.Rule.DaysOfWeek...)
	return s
}

func (s *SeriesStore) Get(_ context.Context, id string) (*domain.ActivitySeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[id]
	if !ok {
		return nil, domain.ErrSeriesNotFound
	}
	out := cloneSeries(series)
	return &out, nil
}

func (s *SeriesStore) List(_ context.Context, filter repository.SeriesFilter) ([]domain.ActivitySeries, error) {
	s.mu.RLock()
	out := make([]domain.ActivitySeries, 0, len(s.series))
	for _, series := range s.series {
		if filter.Category != "" && series.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !series.Active {
			continue
		}
		out = append(out, cloneSeries(series))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (s *SeriesStore) Create(_ context.Context, series *domain.ActivitySeries) (*domain.ActivitySeries, error) {
	if series == nil {
		return nil, domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if series.ID == "" {
		series.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	series.CreatedAt, series.UpdatedAt = now, now
	s.series[series.ID] = cloneSeries(*series)
	return series, nil
}

func (s *SeriesStore) Update(_ context.Context, series *domain.ActivitySeries) error {
	if series == nil {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.series[series.ID]
	if !ok {
		return domain.ErrSeriesNotFound
	}
	current.Title = series.Title
	current.Description = series.Description
	current.Venue = series.Venue
	current.Active = series.Active
	current.UpdatedAt = time.Now().UTC()
	series.UpdatedAt = current.UpdatedAt
	s.series[series.ID] = current
	return nil
}

func (s *SeriesStore) AdvanceWatermark(_ context.Context, id string, through time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.series[id]
	if !ok {
		return domain.ErrSeriesNotFound
	}
	if current.GeneratedThrough != nil && !through.After(*current.GeneratedThrough) {
		return nil
	}
	t := through.UTC()
	current.GeneratedThrough = &t
	s.series[id] = current
	return nil
}
