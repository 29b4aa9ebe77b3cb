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

const prayerRequestColumns = `
	id::text, author_id, author_name, author_username, text, visibility, status, anonymized,
	created_at, prayed_at, archived_at, updated_at`

type prayerRequestRepository struct {
	pool *pgxpool.Pool
}

// NewPrayerRequestRepository returns a Postgres-backed PrayerRequestRepository.
func NewPrayerRequestRepository(pool *pgxpool.Pool) repository.PrayerRequestRepository {
	return &prayerRequestRepository{pool: pool}
}

func (r *prayerRequestRepository) GetByID(ctx context.Context, id string) (*domain.PrayerRequest, error) {
	if !validID(id) {
		return nil, domain.ErrPrayerRequestNotFound
	}
	query := `SELECT ` + prayerRequestColumns + ` FROM prayer_requests WHERE id = $1`
	return scanPrayerRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *prayerRequestRepository) List(ctx context.Context, filter repository.PrayerRequestFilter) ([]domain.PrayerRequest, error) {
	query := `SELECT ` + prayerRequestColumns + `
	FROM prayer_requests
	WHERE ($1 = '' OR author_id = $1)
	  AND ($2 = '' OR status = $2)
	  AND ($3 = '' OR visibility = 'public' OR author_id = $3)
	ORDER BY created_at DESC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		filter.AuthorID,
		string(filter.Status),
		filter.VisibleTo,
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.PrayerRequest{}
	for rows.Next() {
		req, err := scanPrayerRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// Create is idempotent on id so buffered submissions can be replayed.
func (r *prayerRequestRepository) Create(ctx context.Context, request *domain.PrayerRequest) (*domain.PrayerRequest, error) {
	if request == nil {
		return nil, domain.ErrInvalidPayload
	}
	if request.ID == "" {
		request.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO prayer_requests (id, author_id, author_name, author_username, text, visibility, status, anonymized, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	ON CONFLICT (id) DO NOTHING
	RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		request.ID,
		request.AuthorID,
		request.AuthorName,
		request.AuthorUsername,
		request.Text,
		string(request.Visibility),
		string(request.Status),
		request.Anonymized,
		nullTime(request.CreatedAt),
	).Scan(&request.CreatedAt, &request.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetByID(ctx, request.ID)
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *prayerRequestRepository) Transition(ctx context.Context, request *domain.PrayerRequest, from domain.RequestStatus) error {
	if request == nil {
		return domain.ErrInvalidPayload
	}
	if !validID(request.ID) {
		return domain.ErrPrayerRequestNotFound
	}

	const query = `
	UPDATE prayer_requests
	SET text = $2,
		status = $3,
		anonymized = $4,
		prayed_at = $5,
		archived_at = $6,
		updated_at = NOW()
	WHERE id = $1 AND status = $7
	RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		request.ID,
		request.Text,
		string(request.Status),
		request.Anonymized,
		nullTimePtr(request.PrayedAt),
		nullTimePtr(request.ArchivedAt),
		string(from),
	).Scan(&request.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	current, getErr := r.GetByID(ctx, request.ID)
	if getErr != nil {
		return getErr
	}
	return domain.ErrInvalidTransition.WithDetail("status", string(current.Status))
}

func scanPrayerRequest(row scanner) (*domain.PrayerRequest, error) {
	var (
		req        domain.PrayerRequest
		visibility string
		status     string
	)
	if err := row.Scan(
		&req.ID,
		&req.AuthorID,
		&req.AuthorName,
		&req.AuthorUsername,
		&req.Text,
		&visibility,
		&status,
		&req.Anonymized,
		&req.CreatedAt,
		&req.PrayedAt,
		&req.ArchivedAt,
		&req.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPrayerRequestNotFound
		}
		return nil, err
	}
	req.Visibility = domain.RequestVisibility(visibility)
	req.Status = domain.RequestStatus(status)
	return &req, nil
}
