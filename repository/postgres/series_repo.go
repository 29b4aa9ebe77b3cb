package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

const seriesColumns = `
	id::text, category, title, description, venue_kind, location, join_info, start_at, end_at, timezone,
	frequency, days_of_week, day_of_month, end_type, end_on_date, end_count, active, generated_through,
	created_by, created_at, updated_at`

type seriesRepository struct {
	pool *pgxpool.Pool
}

// NewSeriesRepository returns a Postgres-backed implementation of SeriesRepository.
func NewSeriesRepository(pool *pgxpool.Pool) repository.SeriesRepository {
	return &seriesRepository{pool: pool}
}

func (r *seriesRepository) Get(ctx context.Context, id string) (*domain.ActivitySeries, error) {
	if !validID(id) {
		return nil, domain.ErrSeriesNotFound
	}
	query := `SELECT ` + seriesColumns + ` FROM activity_series WHERE id = $1`
	return scanSeries(r.pool.QueryRow(ctx, query, id))
}

func (r *seriesRepository) List(ctx context.Context, filter repository.SeriesFilter) ([]domain.ActivitySeries, error) {
	query := `SELECT ` + seriesColumns + `
	FROM activity_series
	WHERE ($1 = '' OR category = $1)
	  AND (NOT $2 OR active)
	ORDER BY created_at ASC, id ASC
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, string(filter.Category), filter.ActiveOnly, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ActivitySeries{}
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *seriesRepository) Create(ctx context.Context, series *domain.ActivitySeries) (*domain.ActivitySeries, error) {
	if series == nil {
		return nil, domain.ErrInvalidPayload
	}
	if series.ID == "" {
		series.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO activity_series (id, category, title, description, venue_kind, location, join_info, start_at, end_at,
		timezone, frequency, days_of_week, day_of_month, end_type, end_on_date, end_count, active, generated_through, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	RETURNING created_at, updated_at
	`
	days := make([]int16, 0, len(series.Rule.DaysOfWeek))
	for _, d := range series.Rule.DaysOfWeek {
		days = append(days, int16(d))
	}

	if err := r.pool.QueryRow(ctx, query,
		series.ID,
		string(series.Category),
		series.Title,
		series.Description,
		string(series.Venue.Kind),
		series.Venue.Location,
		series.Venue.JoinInfo,
		series.StartAt,
		series.EndAt,
		series.Timezone,
		string(series.Rule.Frequency),
		days,
		series.Rule.DayOfMonth,
		string(series.End.Type),
		nullTimePtr(series.End.OnDate),
		series.End.Count,
		series.Active,
		nullTimePtr(series.GeneratedThrough),
		series.CreatedBy,
	).Scan(&series.CreatedAt, &series.UpdatedAt); err != nil {
		return nil, err
	}
	return series, nil
}

func (r *seriesRepository) Update(ctx context.Context, series *domain.ActivitySeries) error {
	if series == nil {
		return domain.ErrInvalidPayload
	}
	if !validID(series.ID) {
		return domain.ErrSeriesNotFound
	}

	const query = `
	UPDATE activity_series
	SET title = $2,
		description = $3,
		venue_kind = $4,
		location = $5,
		join_info = $6,
		active = $7,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		series.ID,
		series.Title,
		series.Description,
		string(series.Venue.Kind),
		series.Venue.Location,
		series.Venue.JoinInfo,
		series.Active,
	).Scan(&series.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSeriesNotFound
		}
		return err
	}
	return nil
}

func (r *seriesRepository) AdvanceWatermark(ctx context.Context, id string, through time.Time) error {
	if !validID(id) {
		return domain.ErrSeriesNotFound
	}
	const query = `
	UPDATE activity_series
	SET generated_through = GREATEST(COALESCE(generated_through, $2), $2),
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, through)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSeriesNotFound
	}
	return nil
}

func scanSeries(row scanner) (*domain.ActivitySeries, error) {
	var (
		s         domain.ActivitySeries
		category  string
		kind      string
		frequency string
		endType   string
		days      []int16
		dayOfMon  int16
	)
	if err := row.Scan(
		&s.ID,
		&category,
		&s.Title,
		&s.Description,
		&kind,
		&s.Venue.Location,
		&s.Venue.JoinInfo,
		&s.StartAt,
		&s.EndAt,
		&s.Timezone,
		&frequency,
		&days,
		&dayOfMon,
		&endType,
		&s.End.OnDate,
		&s.End.Count,
		&s.Active,
		&s.GeneratedThrough,
		&s.CreatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSeriesNotFound
		}
		return nil, err
	}

	s.Category = domain.Category(category)
	s.Venue.Kind = domain.Kind(kind)
	s.Rule.Frequency = domain.Frequency(frequency)
	s.Rule.DayOfMonth = int(dayOfMon)
	for _, d := range days {
		s.Rule.DaysOfWeek = append(s.Rule.DaysOfWeek, time.Weekday(d))
	}
	s.End.Type = domain.EndType(endType)
	s.StartAt = s.StartAt.UTC()
	s.EndAt = s.EndAt.UTC()
	return &s, nil
}
