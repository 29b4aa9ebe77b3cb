// Package favorite lets members bookmark series for quick access.
package favorite

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
	Favorites repository.FavoriteRepository
	Series    repository.SeriesRepository
	Clock     clock.Clock
	Events    usecase.EventPublisher
}

type UseCase struct {
	favorites repository.FavoriteRepository
	series    repository.SeriesRepository
	clock     clock.Clock
	events    usecase.EventPublisher
	logger    *zap.Logger
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
		favorites: deps.Favorites,
		series:    deps.Series,
		clock:     deps.Clock,
		events:    deps.Events,
		logger:    logger,
	}
}

// Add favorites an active series for actor. Adding twice returns the first
// record with created=false.
func (uc *UseCase) Add(ctx context.Context, actor domain.Principal, seriesID string) (*domain.Favorite, bool, error) {
	if !actor.IsAuthenticated() {
		return nil, false, domain.ErrUnauthorized
	}
	series, err := uc.series.Get(ctx, seriesID)
	if err != nil {
		return nil, false, err
	}
	if !series.Active {
		return nil, false, domain.ErrSeriesInactive
	}

	now := uc.clock.Now()
	stored, created, err := uc.favorites.Add(ctx, &domain.Favorite{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		SeriesID:  series.ID,
		CreatedAt: now.UTC(),
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		observability.RecordFavorite(true)
		uc.publish(ctx, usecase.NewEvent(domain.EventFavoriteAdded, series.ID, stored, now))
	}
	return stored, created, nil
}

// Remove clears actor's favorite. Removing a favorite that does not exist is not an error.
func (uc *UseCase) Remove(ctx context.Context, actor domain.Principal, seriesID string) (domain.FavoriteState, error) {
	if !actor.IsAuthenticated() {
		return domain.FavoriteState{}, domain.ErrUnauthorized
	}
	if _, err := uc.series.Get(ctx, seriesID); err != nil {
		return domain.FavoriteState{}, err
	}
	removed, err := uc.favorites.Remove(ctx, actor.UserID, seriesID)
	if err != nil {
		return domain.FavoriteState{}, err
	}
	if removed {
		observability.RecordFavorite(false)
		uc.publish(ctx, usecase.NewEvent(domain.EventFavoriteRemoved, seriesID,
			domain.FavoriteState{SeriesID: seriesID}, uc.clock.Now()))
	}
	return domain.FavoriteState{SeriesID: seriesID}, nil
}

// State reports whether actor has favorited the series.
func (uc *UseCase) State(ctx context.Context, actor domain.Principal, seriesID string) (domain.FavoriteState, error) {
	if !actor.IsAuthenticated() {
		return domain.FavoriteState{}, domain.ErrUnauthorized
	}
	if _, err := uc.series.Get(ctx, seriesID); err != nil {
		return domain.FavoriteState{}, err
	}
	state := domain.FavoriteState{SeriesID: seriesID}
	_, err := uc.favorites.Get(ctx, actor.UserID, seriesID)
	switch {
	case err == nil:
		state.Favorited = true
	case !domain.IsDomainError(err, domain.ErrCodeNotFound):
		return domain.FavoriteState{}, err
	}
	return state, nil
}

// Mine lists actor's favorites with their series, newest first. Favorites
// whose series no longer exists are left out.
func (uc *UseCase) Mine(ctx context.Context, actor domain.Principal) ([]domain.FavoriteView, error) {
	if !actor.IsAuthenticated() {
		return nil, domain.ErrUnauthorized
	}
	favorites, err := uc.favorites.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FavoriteView, 0, len(favorites))
	for _, favorite := range favorites {
		series, err := uc.series.Get(ctx, favorite.SeriesID)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				uc.logger.Debug("favorite points at missing series", zap.String("series_id", favorite.SeriesID))
				continue
			}
			return nil, err
		}
		out = append(out, domain.FavoriteView{Favorite: favorite, Series: *series})
	}
	return out, nil
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	err := uc.events.Publish(ctx, event)
	observability.RecordEventPublished(event.Name, err)
	if err != nil {
		uc.logger.Warn("event publish failed", zap.String("event", event.Name), zap.Error(err))
	}
}
