package repository

import (
	"context"

	"github.com/fastygo/sanctuary/domain"
)

type AttendanceRepository interface {
	// Record stores the attendance once per (user, activity). When a record
	// already exists it is returned with created=false.
	Record(ctx context.Context, attendance *domain.Attendance) (stored *domain.Attendance, created bool, err error)
	ListByActivity(ctx context.Context, activityID string) ([]domain.Attendance, error)
}
