package domain

import "time"

// Status is the lifecycle state of a scheduled activity. It is always derived
// from the stored timestamps and the current instant, never trusted from storage.
type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ResolveStatus maps (startAt, endAt, now) onto exactly one status.
// Transition instants belong to the later state: now == startAt is in progress,
// now == endAt is completed.
func ResolveStatus(startAt, endAt, now time.Time) Status {
	switch {
	case now.Before(startAt):
		return StatusUpcoming
	case now.Before(endAt):
		return StatusInProgress
	default:
		return StatusCompleted
	}
}

// Rank orders statuses along the only permitted direction of travel.
func (s Status) Rank() int {
	switch s {
	case StatusUpcoming:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}
