package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

type favoriteKey struct {
	userID   string
	seriesID string
}

// FavoriteStore is an in-memory FavoriteRepository.
type FavoriteStore struct {
	mu        sync.RWMutex
	favorites map[favoriteKey]domain.Favorite
}

func NewFavoriteStore() *FavoriteStore {
	return &FavoriteStore{favorites: make(map[favoriteKey]domain.Favorite)}
}

var _ repository.FavoriteRepository = (*FavoriteStore)(nil)

func (s *FavoriteStore) Add(_ context.Context, favorite *domain.Favorite) (*domain.Favorite, bool, error) {
	if favorite == nil {
		return nil, false, domain.ErrInvalidPayload
	}
	key := favoriteKey{userID: favorite.UserID, seriesID: favorite.SeriesID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.favorites[key]; ok {
		return &existing, false, nil
	}
	if favorite.ID == "" {
		favorite.ID = uuid.NewString()
	}
	s.favorites[key] = *favorite
	return favorite, true, nil
}

func (s *FavoriteStore) Remove(_ context.Context, userID, seriesID string) (bool, error) {
	key := favoriteKey{userID: userID, seriesID: seriesID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.favorites[key]; !ok {
		return false, nil
	}
	delete(s.favorites, key)
	return true, nil
}

func (s *FavoriteStore) Get(_ context.Context, userID, seriesID string) (*domain.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	favorite, ok := s.favorites[favoriteKey{userID: userID, seriesID: seriesID}]
	if !ok {
		return nil, domain.ErrFavoriteNotFound
	}
	return &favorite, nil
}

func (s *FavoriteStore) ListByUser(_ context.Context, userID string) ([]domain.Favorite, error) {
	s.mu.RLock()
	out := []domain.Favorite{}
	for key, favorite := range s.favorites {
		if key.userID == userID {
			out = append(out, favorite)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
