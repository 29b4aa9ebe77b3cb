package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

type favoriteRepository struct {
	pool *pgxpool.Pool
}

// NewFavoriteRepository returns a Postgres-backed FavoriteRepository.
func NewFavoriteRepository(pool *pgxpool.Pool) repository.FavoriteRepository {
	return &favoriteRepository{pool: pool}
}

const favoriteColumns = `id::text, user_id, series_id::text, created_at`

func scanFavorite(row scanner) (*domain.Favorite, error) {
	var f domain.Favorite
	if err := row.Scan(&f.ID, &f.UserID, &f.SeriesID, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *favoriteRepository) Add(ctx context.Context, favorite *domain.Favorite) (*domain.Favorite, bool, error) {
	if favorite == nil {
		return nil, false, domain.ErrInvalidPayload
	}
	if !validID(favorite.SeriesID) {
		return nil, false, domain.ErrSeriesNotFound
	}
	if favorite.ID == "" {
		favorite.ID = uuid.NewString()
	}

	const insert = `
	INSERT INTO favorites (id, user_id, series_id, created_at)
	VALUES ($1, $2, $3, COALESCE($4, NOW()))
	ON CONFLICT (user_id, series_id) DO NOTHING
	RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, insert,
		favorite.ID,
		favorite.UserID,
		favorite.SeriesID,
		nullTime(favorite.CreatedAt),
	).Scan(&favorite.CreatedAt)
	if err == nil {
		return favorite, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	stored, err := r.Get(ctx, favorite.UserID, favorite.SeriesID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, seriesID string) (bool, error) {
	if !validID(seriesID) {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND series_id = $2`, userID, seriesID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *favoriteRepository) Get(ctx context.Context, userID, seriesID string) (*domain.Favorite, error) {
	if !validID(seriesID) {
		return nil, domain.ErrFavoriteNotFound
	}
	query := `SELECT ` + favoriteColumns + ` FROM favorites WHERE user_id = $1 AND series_id = $2`
	favorite, err := scanFavorite(r.pool.QueryRow(ctx, query, userID, seriesID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFavoriteNotFound
		}
		return nil, err
	}
	return favorite, nil
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error) {
	query := `SELECT ` + favoriteColumns + ` FROM favorites WHERE user_id = $1 ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Favorite{}
	for rows.Next() {
		favorite, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *favorite)
	}
	return out, rows.Err()
}
