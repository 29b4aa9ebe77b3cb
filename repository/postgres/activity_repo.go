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

const activityColumns = `
	id::text, category, series_id::text, title, description, venue_kind, location, join_info,
	start_at, end_at, recurrence_label, detached, stored_status, created_by, created_at, updated_at`

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns a Postgres-backed implementation of ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) repository.ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledActivity, error) {
	if !validID(id) {
		return nil, domain.ErrActivityNotFound
	}
	query := `SELECT ` + activityColumns + ` FROM scheduled_activities WHERE id = $1`
	return scanActivity(r.pool.QueryRow(ctx, query, id))
}

func (r *activityRepository) List(ctx context.Context, filter repository.ActivityFilter) ([]domain.ScheduledActivity, error) {
	if filter.SeriesID != "" && !validID(filter.SeriesID) {
		return []domain.ScheduledActivity{}, nil
	}
	order := "start_at ASC, id ASC"
	if filter.Descending {
		order = "start_at DESC, id ASC"
	}
	query := `SELECT ` + activityColumns + `
	FROM scheduled_activities
	WHERE ($1 = '' OR category = $1)
	  AND ($2 = '' OR series_id::text = $2)
	  AND ($3::timestamptz IS NULL OR end_at > $3)
	  AND ($4::timestamptz IS NULL OR start_at < $4)
	  AND ($7::timestamptz IS NULL OR end_at <= $7)
	ORDER BY ` + order + `
	LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		string(filter.Category),
		filter.SeriesID,
		nullTimePtr(filter.From),
		nullTimePtr(filter.To),
		clampLimit(filter.Limit),
		filter.Offset,
		nullTimePtr(filter.EndedBy),
	)
	if err != nil {
		return nil, err
	}
	return collectActivities(rows)
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.ScheduledActivity) (*domain.ScheduledActivity, error) {
	if activity == nil {
		return nil, domain.ErrInvalidPayload
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO scheduled_activities (id, category, series_id, title, description, venue_kind, location, join_info,
		start_at, end_at, recurrence_label, detached, stored_status, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query, activityArgs(activity, time.Now())...).
		Scan(&activity.CreatedAt, &activity.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.WrapError(domain.ErrCodeConflict, "occurrence already exists", err)
		}
		return nil, err
	}
	return activity, nil
}

func (r *activityRepository) UpdateIfNotStarted(ctx context.Context, activity *domain.ScheduledActivity, now time.Time) error {
	if activity == nil {
		return domain.ErrInvalidPayload
	}
	if !validID(activity.ID) {
		return domain.ErrActivityNotFound
	}

	const query = `
	UPDATE scheduled_activities
	SET title = $2,
		description = $3,
		venue_kind = $4,
		location = $5,
		join_info = $6,
		start_at = $7,
		end_at = $8,
		detached = $9,
		stored_status = $10,
		updated_at = NOW()
	WHERE id = $1 AND start_at > $11
	RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		activity.ID,
		activity.Title,
		activity.Description,
		string(activity.Venue.Kind),
		activity.Venue.Location,
		activity.Venue.JoinInfo,
		activity.StartAt,
		activity.EndAt,
		activity.Detached,
		string(activity.Status(now)),
		now,
	).Scan(&activity.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.staleOrMissing(ctx, activity.ID, now)
	case isUniqueViolation(err):
		return domain.WrapError(domain.ErrCodeConflict, "another occurrence of the series already starts at that time", err)
	default:
		return err
	}
}

func (r *activityRepository) DeleteIfNotStarted(ctx context.Context, id string, now time.Time) error {
	if !validID(id) {
		return domain.ErrActivityNotFound
	}
	const query = `DELETE FROM scheduled_activities WHERE id = $1 AND start_at > $2`
	tag, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id, now)
	}
	return nil
}

// staleOrMissing explains why a conditional write matched no row.
func (r *activityRepository) staleOrMissing(ctx context.Context, id string, now time.Time) error {
	const query = `SELECT start_at, end_at FROM scheduled_activities WHERE id = $1`
	var startAt, endAt time.Time
	if err := r.pool.QueryRow(ctx, query, id).Scan(&startAt, &endAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		return err
	}
	return domain.NewStaleWrite(domain.ResolveStatus(startAt, endAt, now))
}

func (r *activityRepository) InsertOccurrences(ctx context.Context, occurrences []domain.ScheduledActivity) (int, error) {
	if len(occurrences) == 0 {
		return 0, nil
	}

	const query = `
	INSERT INTO scheduled_activities (id, category, series_id, title, description, venue_kind, location, join_info,
		start_at, end_at, recurrence_label, detached, stored_status, created_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (series_id, start_at) WHERE series_id IS NOT NULL DO NOTHING
	`

	now := time.Now()
	batch := &pgx.Batch{}
	for i := range occurrences {
		occ := &occurrences[i]
		if occ.SeriesID == nil {
			return 0, domain.NewValidationError("series_id", "occurrence must reference a series")
		}
		if occ.ID == "" {
			occ.ID = uuid.NewString()
		}
		batch.Queue(query, activityArgs(occ, now)...)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for range occurrences {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *activityRepository) ListSeriesFrom(ctx context.Context, seriesID string, from time.Time) ([]domain.ScheduledActivity, error) {
	if !validID(seriesID) {
		return []domain.ScheduledActivity{}, nil
	}
	query := `SELECT ` + activityColumns + `
	FROM scheduled_activities
	WHERE series_id = $1 AND start_at >= $2
	ORDER BY start_at ASC
	`
	rows, err := r.pool.Query(ctx, query, seriesID, from)
	if err != nil {
		return nil, err
	}
	return collectActivities(rows)
}

func activityArgs(a *domain.ScheduledActivity, now time.Time) []interface{} {
	return []interface{}{
		a.ID,
		string(a.Category),
		nullString(a.SeriesID),
		a.Title,
		a.Description,
		string(a.Venue.Kind),
		a.Venue.Location,
		a.Venue.JoinInfo,
		a.StartAt,
		a.EndAt,
		a.RecurrenceLabel,
		a.Detached,
		string(a.Status(now)),
		a.CreatedBy,
	}
}

func collectActivities(rows pgx.Rows) ([]domain.ScheduledActivity, error) {
	defer rows.Close()

	activities := []domain.ScheduledActivity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func scanActivity(row scanner) (*domain.ScheduledActivity, error) {
	var (
		a        domain.ScheduledActivity
		seriesID *string
		category string
		kind     string
		status   string
	)
	if err := row.Scan(
		&a.ID,
		&category,
		&seriesID,
		&a.Title,
		&a.Description,
		&kind,
		&a.Venue.Location,
		&a.Venue.JoinInfo,
		&a.StartAt,
		&a.EndAt,
		&a.RecurrenceLabel,
		&a.Detached,
		&status,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, err
	}

	a.Category = domain.Category(category)
	a.Venue.Kind = domain.Kind(kind)
	a.SeriesID = seriesID
	a.StoredStatus = domain.Status(status)
	a.StartAt = a.StartAt.UTC()
	a.EndAt = a.EndAt.UTC()
	return &a, nil
}
