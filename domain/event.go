package domain

import (
	"encoding/json"
	"time"
)

// Event names published when scheduling state changes.
const (
	EventSeriesMaterialized    = "series.materialized"
	EventSeriesUpdated         = "series.updated"
	EventSeriesSplit           = "series.split"
	EventSeriesDeactivated     = "series.deactivated"
	EventActivityUpdated       = "activity.updated"
	EventActivityDeleted       = "activity.deleted"
	EventPrayerRequestArchived = "prayer_request.archived"
	EventAttendanceRecorded    = "attendance.recorded"
	EventFavoriteAdded         = "favorite.added"
	EventFavoriteRemoved       = "favorite.removed"
)

// Event represents a change applied to a scheduling record.
type Event struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	SubjectID  string            `json:"subject_id"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
