package buffer

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entities that may be parked while primary storage is unreachable. Only
// idempotent inserts are buffered; schedule mutations are never deferred.
const (
	EntityAttendance    = "attendance"
	EntityPrayerRequest = "prayer_request"

	OperationRecord = "record"
	OperationSubmit = "submit"
)

// Drain priorities, lower first.
const (
	PriorityAttendance    = 2
	PriorityPrayerRequest = 3
)

// ErrFull is returned by Enqueue once the store holds MaxSize items.
var ErrFull = errors.New("buffer: store is full")

// Item is an operation waiting to be replayed against primary storage.
// SubjectID is the id the operation writes, so replays stay idempotent.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	SubjectID string          `json:"subject_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
