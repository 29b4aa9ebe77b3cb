package domain

import (
	"strings"
	"time"
)

// AnonymizedText replaces the text of private requests once they are prayed for.
const AnonymizedText = "This private prayer request has been prayed for and archived."

// AnonymousName is shown in place of a suppressed author display name.
const AnonymousName = "Anonymous"

// RequestVisibility decides who may read a prayer request.
type RequestVisibility string

const (
	VisibilityPublic  RequestVisibility = "public"
	VisibilityPrivate RequestVisibility = "private"
)

// RequestStatus is the forward-only state of a prayer request.
type RequestStatus string

const (
	RequestSubmitted RequestStatus = "submitted"
	RequestPrayed    RequestStatus = "prayed"
	RequestArchived  RequestStatus = "archived"
)

// PrayerRequest is a member-to-pastor message. AuthorID is always kept;
// only its display is ever suppressed.
type PrayerRequest struct {
	ID             string            `json:"id"`
	AuthorID       string            `json:"author_id"`
	AuthorName     string            `json:"author_name"`
	AuthorUsername string            `json:"author_username"`
	Text           string            `json:"text"`
	Visibility     RequestVisibility `json:"visibility"`
	Status         RequestStatus     `json:"status"`
	Anonymized     bool              `json:"anonymized"`
	CreatedAt      time.Time         `json:"created_at"`
	PrayedAt       *time.Time        `json:"prayed_at,omitempty"`
	ArchivedAt     *time.Time        `json:"archived_at,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Validate checks a submission before it is stored.
func (r *PrayerRequest) Validate() error {
	if r == nil {
		return ErrInvalidPayload
	}
	if r.AuthorID == "" {
		return NewValidationError("author_id", "author is required")
	}
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return NewValidationError("text", "request text is required")
	}
	switch r.Visibility {
	case "":
		r.Visibility = VisibilityPublic
	case VisibilityPublic, VisibilityPrivate:
	default:
		return NewValidationError("visibility", "visibility must be public or private")
	}
	return nil
}

// MarkPrayed moves a submitted request through prayed to archived in one step.
// Private requests are anonymized in the same step; the original text is discarded.
func (r *PrayerRequest) MarkPrayed(now time.Time) error {
	if r.Status != RequestSubmitted {
		return ErrInvalidTransition.WithDetail("status", string(r.Status))
	}
	at := now.UTC()
	r.PrayedAt = &at
	r.ArchivedAt = &at
	r.Status = RequestArchived
	if r.Visibility == VisibilityPrivate {
		r.Text = AnonymizedText
		r.Anonymized = true
	}
	r.UpdatedAt = at
	return nil
}

// CanView reports whether viewer may read the request at all. Private
// requests are readable by their author and by pastors.
func (r *PrayerRequest) CanView(viewer Principal) bool {
	if r.Visibility == VisibilityPublic {
		return true
	}
	return viewer.UserID == r.AuthorID || viewer.CanManageSchedule()
}

// PrayerRequestView is a prayer request as projected for one viewer.
type PrayerRequestView struct {
	ID         string            `json:"id"`
	AuthorID   string            `json:"author_id,omitempty"`
	AuthorName string            `json:"author_name"`
	Text       string            `json:"text"`
	Visibility RequestVisibility `json:"visibility"`
	Status     RequestStatus     `json:"status"`
	Anonymized bool              `json:"anonymized"`
	IsOwner    bool              `json:"is_owner"`
	CreatedAt  time.Time         `json:"created_at"`
	PrayedAt   *time.Time        `json:"prayed_at,omitempty"`
	ArchivedAt *time.Time        `json:"archived_at,omitempty"`
}

// ViewFor projects the request for viewer. The stored text is shown as is
// (anonymized text included, for the owner too). Once anonymized, the author
// name is suppressed for every viewer except the owner; pastors still receive
// the AuthorID.
func (r PrayerRequest) ViewFor(viewer Principal) PrayerRequestView {
	owner := viewer.UserID == r.AuthorID
	view := PrayerRequestView{
		ID:         r.ID,
		AuthorName: r.AuthorName,
		Text:       r.Text,
		Visibility: r.Visibility,
		Status:     r.Status,
		Anonymized: r.Anonymized,
		IsOwner:    owner,
		CreatedAt:  r.CreatedAt,
		PrayedAt:   r.PrayedAt,
		ArchivedAt: r.ArchivedAt,
	}
	if owner || viewer.CanManageSchedule() {
		view.AuthorID = r.AuthorID
	}
	if r.Anonymized && !owner {
		view.AuthorName = AnonymousName
	}
	return view
}
