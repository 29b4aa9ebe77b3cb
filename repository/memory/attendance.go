package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

type attendanceKey struct {
	userID     string
	activityID string
}

// AttendanceStore is an in-memory AttendanceRepository.
type AttendanceStore struct {
	mu      sync.RWMutex
	records map[attendanceKey]domain.Attendance
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[attendanceKey]domain.Attendance)}
}

var _ repository.AttendanceRepository = (*AttendanceStore)(nil)

func (s *AttendanceStore) Record(_ context.Context, attendance *domain.Attendance) (*domain.Attendance, bool, error) {
	if attendance == nil {
		return nil, false, domain.ErrInvalidPayload
	}
	key := attendanceKey{userID: attendance.UserID, activityID: attendance.ActivityID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok {
		return &existing, false, nil
	}
	if attendance.ID == "" {
		attendance.ID = uuid.NewString()
	}
	s.records[key] = *attendance
	return attendance, true, nil
}

func (s *AttendanceStore) ListByActivity(_ context.Context, activityID string) ([]domain.Attendance, error) {
	s.mu.RLock()
	var out []domain.Attendance
	for key, rec := range s.records {
		if key.activityID == activityID {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}
