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

// PrayerRequestStore is an in-memory PrayerRequestRepository.
type PrayerRequestStore struct {
	mu       sync.RWMutex
	requests map[string]domain.PrayerRequest
}

func NewPrayerRequestStore() *PrayerRequestStore {
	return &PrayerRequestStore{requests: make(map[string]domain.PrayerRequest)}
}

var _ repository.PrayerRequestRepository = (*PrayerRequestStore)(nil)

func (s *PrayerRequestStore) GetByID(_ context.Context, id string) (*domain.PrayerRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrPrayerRequestNotFound
	}
	return &req, nil
}

func (s *PrayerRequestStore) List(_ context.Context, filter repository.PrayerRequestFilter) ([]domain.PrayerRequest, error) {
	s.mu.RLock()
	out := make([]domain.PrayerRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.AuthorID != "" && req.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.VisibleTo != "" && req.Visibility != domain.VisibilityPublic && req.AuthorID != filter.VisibleTo {
			continue
		}
		out = append(out, req)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (s *PrayerRequestStore) Create(_ context.Context, request *domain.PrayerRequest) (*domain.PrayerRequest, error) {
	if request == nil {
		return nil, domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if _, exists := s.requests[request.ID]; exists {
		stored := s.requests[request.ID]
		return &stored, nil
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.UpdatedAt = request.CreatedAt
	s.requests[request.ID] = *request
	return request, nil
}

func (s *PrayerRequestStore) Transition(_ context.Context, request *domain.PrayerRequest, from domain.RequestStatus) error {
	if request == nil {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[request.ID]
	if !ok {
		return domain.ErrPrayerRequestNotFound
	}
	if current.Status != from {
		return domain.ErrInvalidTransition.WithDetail("status", string(current.Status))
	}
	s.requests[request.ID] = *request
	return nil
}
