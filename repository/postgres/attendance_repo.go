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

type attendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository returns a Postgres-backed AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) repository.AttendanceRepository {
	return &attendanceRepository{pool: pool}
}

func (r *attendanceRepository) Record(ctx context.Context, attendance *domain.Attendance) (*domain.Attendance, bool, error) {
	if attendance == nil {
		return nil, false, domain.ErrInvalidPayload
	}
	if !validID(attendance.ActivityID) {
		return nil, false, domain.ErrActivityNotFound
	}
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}

	const insert = `
	INSERT INTO attendances (id, user_id, activity_id, joined_at)
	VALUES ($1, $2, $3, COALESCE($4, NOW()))
	ON CONFLICT (user_id, activity_id) DO NOTHING
	RETURNING joined_at
	`
	err := r.pool.QueryRow(ctx, insert,
		attendance.ID,
		attendance.UserID,
		attendance.ActivityID,
		nullTime(attendance.JoinedAt),
	).Scan(&attendance.JoinedAt)
	if err == nil {
		return attendance, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	const existing = `
	SELECT id::text, user_id, activity_id::text, joined_at
	FROM attendances
	WHERE user_id = $1 AND activity_id = $2
	`
	var stored domain.Attendance
	if err := r.pool.QueryRow(ctx, existing, attendance.UserID, attendance.ActivityID).
		Scan(&stored.ID, &stored.UserID, &stored.ActivityID, &stored.JoinedAt); err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (r *attendanceRepository) ListByActivity(ctx context.Context, activityID string) ([]domain.Attendance, error) {
	if !validID(activityID) {
		return []domain.Attendance{}, nil
	}
	const query = `
	SELECT id::text, user_id, activity_id::text, joined_at
	FROM attendances
	WHERE activity_id = $1
	ORDER BY joined_at ASC
	`
	rows, err := r.pool.Query(ctx, query, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Attendance{}
	for rows.Next() {
		var a domain.Attendance
		if err := rows.Scan(&a.ID, &a.UserID, &a.ActivityID, &a.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
