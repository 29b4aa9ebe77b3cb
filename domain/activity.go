package domain

import (
	"strings"
	"time"
)

// Category distinguishes the two families of scheduled gatherings.
type Category string

const (
	CategoryPrayer Category = "prayer"
	CategoryEvent  Category = "event"
)

func (c Category) Valid() bool {
	return c == CategoryPrayer || c == CategoryEvent
}

// Kind tags how a gathering is attended.
type Kind string

const (
	KindOffline Kind = "offline"
	KindOnline  Kind = "online"
)

// Venue is a tagged variant: offline venues carry a Location, online venues a JoinInfo.
type Venue struct {
	Kind     Kind   `json:"kind"`
	Location string `json:"location,omitempty"`
	JoinInfo string `json:"join_info,omitempty"`
}

// OfflineAt builds an in-person venue.
func OfflineAt(location string) Venue {
	return Venue{Kind: KindOffline, Location: location}
}

// OnlineVia builds a remote venue reachable through joinInfo (link or instructions).
func OnlineVia(joinInfo string) Venue {
	return Venue{Kind: KindOnline, JoinInfo: joinInfo}
}

// Validate enforces the per-kind required field and drops the field of the other variant.
func (v *Venue) Validate() error {
	switch v.Kind {
	case KindOffline:
		v.Location = strings.TrimSpace(v.Location)
		v.JoinInfo = ""
		if v.Location == "" {
			return NewValidationError("location", "location is required for offline gatherings")
		}
	case KindOnline:
		v.JoinInfo = strings.TrimSpace(v.JoinInfo)
		v.Location = ""
		if v.JoinInfo == "" {
			return NewValidationError("join_info", "join info is required for online gatherings")
		}
	default:
		return NewValidationError("kind", "kind must be offline or online")
	}
	return nil
}

// JoinAction tells a client how to join: open a map or follow a link.
type JoinAction struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

func (v Venue) JoinAction() JoinAction {
	switch v.Kind {
	case KindOnline:
		return JoinAction{Type: "link", Target: v.JoinInfo}
	case KindOffline:
		return JoinAction{Type: "map", Target: v.Location}
	default:
		return JoinAction{}
	}
}

// ScheduledActivity is one concrete, time-bounded gathering: a single prayer,
// or an occurrence materialized from a series.
type ScheduledActivity struct {
	ID              string    `json:"id"`
	Category        Category  `json:"category"`
	SeriesID        *string   `json:"series_id,omitempty"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	Venue           Venue     `json:"venue"`
	RecurrenceLabel string    `json:"recurrence_label,omitempty"`
	Detached        bool      `json:"detached,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// StoredStatus mirrors the denormalized status column. It is advisory only.
	StoredStatus Status `json:"-"`
}

// Status resolves the lifecycle state at now.
func (a *ScheduledActivity) Status(now time.Time) Status {
	return ResolveStatus(a.StartAt, a.EndAt, now)
}

// InSeries reports whether the activity was materialized from seriesID.
func (a *ScheduledActivity) InSeries(seriesID string) bool {
	return a != nil && a.SeriesID != nil && *a.SeriesID == seriesID
}

// Validate checks the structural invariants of the record.
func (a *ScheduledActivity) Validate() error {
	if a == nil {
		return ErrInvalidPayload
	}
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return NewValidationError("title", "title is required")
	}
	if !a.Category.Valid() {
		return NewValidationError("category", "category must be prayer or event")
	}
	if err := ValidateWindow(a.StartAt, a.EndAt); err != nil {
		return err
	}
	return a.Venue.Validate()
}

// ValidateWindow enforces endAt > startAt with both present.
func ValidateWindow(startAt, endAt time.Time) error {
	if startAt.IsZero() {
		return NewValidationError("start_at", "start time is required")
	}
	if endAt.IsZero() {
		return NewValidationError("end_at", "end time is required")
	}
	if !endAt.After(startAt) {
		return NewValidationError("end_at", "end time must be after start time")
	}
	return nil
}

// ValidateNotPast rejects a proposed start that has already passed.
func ValidateNotPast(startAt, now time.Time) error {
	if startAt.Before(now) {
		return NewValidationError("start_at", "start time cannot be in the past")
	}
	return nil
}

// NormalizeTimestamp stores instants in UTC at minute granularity.
func NormalizeTimestamp(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Minute)
}

// Permissions are the actions a caller may attempt at the instant of the read.
type Permissions struct {
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanJoin   bool `json:"can_join"`
}

// ActivityView is the read model returned to callers: the record plus the
// status and permissions recomputed for the instant of the read.
type ActivityView struct {
	ScheduledActivity
	Status      Status      `json:"status"`
	Permissions Permissions `json:"permissions"`
	JoinAction  *JoinAction `json:"join_action,omitempty"`
}

// ViewAt projects the activity for a read at now.
func (a *ScheduledActivity) ViewAt(now time.Time) ActivityView {
	status := a.Status(now)
	view := ActivityView{
		ScheduledActivity: *a,
		Status:            status,
		Permissions: Permissions{
			CanEdit:   CheckMutation(status, ActionEdit).Allowed,
			CanDelete: CheckMutation(status, ActionDelete).Allowed,
			CanJoin:   status == StatusInProgress,
		},
	}
	if view.Permissions.CanJoin {
		join := a.Venue.JoinAction()
		view.JoinAction = &join
	}
	return view
}
