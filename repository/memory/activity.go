// Package memory holds in-process repository implementations used for
// single-node deployments and tests.
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

type occurrenceKey struct {
	seriesID string
	startAt  int64
}

// ActivityStore is an in-memory ActivityRepository.
type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]domain.ScheduledActivity
	keys       map[occurrenceKey]string
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		activities: make(map[string]domain.ScheduledActivity),
		keys:       make(map[occurrenceKey]string),
	}
}

var _ repository.ActivityRepository = (*ActivityStore)(nil)

func keyOf(a domain.ScheduledActivity) (occurrenceKey, bool) {
	if a.SeriesID == nil {
		return occurrenceKey{}, false
	}
	return occurrenceKey{seriesID: *a.SeriesID, startAt: a.StartAt.UnixNano()}, true
}

func cloneActivity(a domain.ScheduledActivity) domain.ScheduledActivity {
	if a.SeriesID != nil {
		id := *a.SeriesID
		a.SeriesID = &id
	}
	return a
}

func (s *ActivityStore) GetByID(_ context.Context, id string) (*domain.ScheduledActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	out := cloneActivity(a)
	return &out, nil
}

func (s *ActivityStore) List(_ context.Context, filter repository.ActivityFilter) ([]domain.ScheduledActivity, error) {
	s.mu.RLock()
	out := make([]domain.ScheduledActivity, 0, len(s.activities))
	for _, a := range s.activities {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.SeriesID != "" && !a.InSeries(filter.SeriesID) {
			continue
		}
		if filter.From != nil && !a.EndAt.After(*filter.From) {
			continue
		}
		if filter.To != nil && !a.StartAt.Before(*filter.To) {
			continue
		}
		if filter.EndedBy != nil && a.EndAt.After(*filter.EndedBy) {
			continue
		}
		out = append(out, cloneActivity(a))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		if filter.Descending {
			return out[i].StartAt.After(out[j].StartAt)
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (s *ActivityStore) Create(_ context.Context, activity *domain.ScheduledActivity) (*domain.ScheduledActivity, error) {
	if activity == nil {
		return nil, domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if key, ok := keyOf(*activity); ok {
		if _, exists := s.keys[key]; exists {
			return nil, domain.NewError(domain.ErrCodeConflict, "occurrence already exists")
		}
		s.keys[key] = activity.ID
	}
	now := time.Now().UTC()
	activity.CreatedAt, activity.UpdatedAt = now, now
	s.activities[activity.ID] = cloneActivity(*activity)
	return activity, nil
}

func (s *ActivityStore) UpdateIfNotStarted(_ context.Context, activity *domain.ScheduledActivity, now time.Time) error {
	if activity == nil {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.activities[activity.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if !current.StartAt.After(now) {
		return domain.NewStaleWrite(current.Status(now))
	}

	if key, ok := keyOf(current); ok {
		delete(s.keys, key)
	}
	if key, ok := keyOf(*activity); ok {
		if other, exists := s.keys[key]; exists && other != activity.ID {
			if old, ok := keyOf(current); ok {
				s.keys[old] = current.ID
			}
			return domain.NewError(domain.ErrCodeConflict, "another occurrence of the series already starts at that time")
		}
		s.keys[key] = activity.ID
	}
	activity.CreatedAt = current.CreatedAt
	activity.UpdatedAt = time.Now().UTC()
	s.activities[activity.ID] = cloneActivity(*activity)
	return nil
}

func (s *ActivityStore) DeleteIfNotStarted(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if !current.StartAt.After(now) {
		return domain.NewStaleWrite(current.Status(now))
	}
	if key, ok := keyOf(current); ok {
		delete(s.keys, key)
	}
	delete(s.activities, id)
	return nil
}

func (s *ActivityStore) InsertOccurrences(_ context.Context, occurrences []domain.ScheduledActivity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	now := time.Now().UTC()
	for _, occ := range occurrences {
		key, ok := keyOf(occ)
		if !ok {
			return inserted, domain.NewValidationError("series_id", "occurrence must reference a series")
		}
		if _, exists := s.keys[key]; exists {
			continue
		}
		if occ.ID == "" {
			occ.ID = uuid.NewString()
		}
		occ.CreatedAt, occ.UpdatedAt = now, now
		s.keys[key] = occ.ID
		s.activities[occ.ID] = cloneActivity(occ)
		inserted++
	}
	return inserted, nil
}

func (s *ActivityStore) ListSeriesFrom(_ context.Context, seriesID string, from time.Time) ([]domain.ScheduledActivity, error) {
	s.mu.RLock()
	var out []domain.ScheduledActivity
	for _, a := range s.activities {
		if a.InSeries(seriesID) && !a.StartAt.Before(from) {
			out = append(out, cloneActivity(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
