package repository

import (
	"context"

	"github.com/fastygo/sanctuary/domain"
)

type FavoriteRepository interface {
	// Add stores the favorite once per (user, series). When one already
	// exists it is returned with created=false.
	Add(ctx context.Context, favorite *domain.Favorite) (stored *domain.Favorite, created bool, err error)
	// Remove reports whether a favorite was deleted.
	Remove(ctx context.Context, userID, seriesID string) (bool, error)
	// Get returns domain.ErrFavoriteNotFound when the user has not favorited the series.
	Get(ctx context.Context, userID, seriesID string) (*domain.Favorite, error)
	// ListByUser returns the user's favorites, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error)
}
