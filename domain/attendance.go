package domain

import "time"

// Attendance records that a member tapped "join" on a live activity.
type Attendance struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ActivityID string    `json:"activity_id"`
	JoinedAt   time.Time `json:"joined_at"`
}

// JoinResult is returned to the member who joined.
type JoinResult struct {
	Attendance Attendance `json:"attendance"`
	Action     JoinAction `json:"action"`
}
