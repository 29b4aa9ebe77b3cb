package domain

import (
	"sort"
	"strings"
	"time"
)

// Frequency is the recurrence cadence of a series.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// RecurrenceRule describes how a series repeats. DaysOfWeek applies to weekly
// rules, DayOfMonth to monthly ones.
type RecurrenceRule struct {
	Frequency  Frequency      `json:"frequency"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	DayOfMonth int            `json:"day_of_month,omitempty"`
}

// Validate checks the sub-fields each frequency requires and normalizes weekdays.
func (r *RecurrenceRule) Validate() error {
	switch r.Frequency {
	case FrequencyNone, FrequencyDaily:
		r.DaysOfWeek = nil
		r.DayOfMonth = 0
	case FrequencyWeekly:
		if len(r.DaysOfWeek) == 0 {
			return NewValidationError("days_of_week", "weekly recurrence requires at least one day of week")
		}
		seen := make(map[time.Weekday]struct{}, len(r.DaysOfWeek))
		days := make([]time.Weekday, 0, len(r.DaysOfWeek))
		for _, d := range r.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return NewValidationError("days_of_week", "day of week out of range")
			}
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			days = append(days, d)
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		r.DaysOfWeek = days
		r.DayOfMonth = 0
	case FrequencyMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return NewValidationError("day_of_month", "monthly recurrence requires a day of month between 1 and 31")
		}
		r.DaysOfWeek = nil
	default:
		return NewValidationError("frequency", "frequency must be none, daily, weekly or monthly")
	}
	return nil
}

// Label is the human-readable cadence shown next to occurrences.
func (r RecurrenceRule) Label() string {
	switch r.Frequency {
	case FrequencyDaily:
		return "Daily"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyMonthly:
		return "Monthly"
	default:
		return ""
	}
}

// EndType selects how a series terminates.
type EndType string

const (
	EndNever      EndType = "never"
	EndOnDate     EndType = "on_date"
	EndAfterCount EndType = "after_count"
)

// EndCondition bounds a series. OnDate is a calendar date (time part ignored)
// in the series timezone; Count is counted across the whole series history.
type EndCondition struct {
	Type   EndType    `json:"type"`
	OnDate *time.Time `json:"on_date,omitempty"`
	Count  int        `json:"count,omitempty"`
}

func (e *EndCondition) Validate() error {
	switch e.Type {
	case "", EndNever:
		e.Type = EndNever
		e.OnDate = nil
		e.Count = 0
	case EndOnDate:
		if e.OnDate == nil || e.OnDate.IsZero() {
			return NewValidationError("end.on_date", "end date is required")
		}
		e.Count = 0
	case EndAfterCount:
		if e.Count < 1 {
			return NewValidationError("end.count", "occurrence count must be at least 1")
		}
		e.OnDate = nil
	default:
		return NewValidationError("end.type", "end type must be never, on_date or after_count")
	}
	return nil
}

// ActivitySeries is a recurrence definition owning its generated occurrences.
// StartAt/EndAt describe the first occurrence; every occurrence keeps that
// duration and wall-clock start time in Timezone.
type ActivitySeries struct {
	ID               string         `json:"id"`
	Category         Category       `json:"category"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Venue            Venue          `json:"venue"`
	StartAt          time.Time      `json:"start_at"`
	EndAt            time.Time      `json:"end_at"`
	Timezone         string         `json:"timezone"`
	Rule             RecurrenceRule `json:"rule"`
	End              EndCondition   `json:"end"`
	Active           bool           `json:"active"`
	GeneratedThrough *time.Time     `json:"generated_through,omitempty"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Duration of every occurrence of the series.
func (s *ActivitySeries) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}

// Location resolves the series timezone, falling back to UTC.
func (s *ActivitySeries) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *ActivitySeries) Validate() error {
	if s == nil {
		return ErrInvalidPayload
	}
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return NewValidationError("title", "title is required")
	}
	if !s.Category.Valid() {
		return NewValidationError("category", "category must be prayer or event")
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return NewValidationError("timezone", "unknown timezone")
	}
	if err := ValidateWindow(s.StartAt, s.EndAt); err != nil {
		return err
	}
	if err := s.Venue.Validate(); err != nil {
		return err
	}
	if err := s.Rule.Validate(); err != nil {
		return err
	}
	if err := s.End.Validate(); err != nil {
		return err
	}
	if s.End.Type == EndOnDate {
		loc := s.Location()
		first := s.StartAt.In(loc)
		firstDay := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
		d := s.End.OnDate.In(loc)
		if time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).Before(firstDay) {
			return NewValidationError("end.on_date", "end date is before the first occurrence")
		}
	}
	return nil
}

// Occurrence builds the materialized activity for one expanded start/end pair,
// inheriting the series template fields.
func (s *ActivitySeries) Occurrence(startAt, endAt time.Time) ScheduledActivity {
	id := s.ID
	return ScheduledActivity{
		Category:        s.Category,
		SeriesID:        &id,
		Title:           s.Title,
		Description:     s.Description,
		StartAt:         startAt.UTC(),
		EndAt:           endAt.UTC(),
		Venue:           s.Venue,
		RecurrenceLabel: s.Rule.Label(),
		CreatedBy:       s.CreatedBy,
	}
}

// SeriesTemplate holds the in-place editable fields of a series.
type SeriesTemplate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Venue       *Venue  `json:"venue,omitempty"`
}

// Empty reports whether the template patch changes nothing.
func (t SeriesTemplate) Empty() bool {
	return t.Title == nil && t.Description == nil && t.Venue == nil
}

// Validate normalizes the patch and rejects blank titles or malformed venues.
func (t *SeriesTemplate) Validate() error {
	if t.Title != nil {
		title := strings.TrimSpace(*t.Title)
		if title == "" {
			return NewValidationError("title", "title is required")
		}
		t.Title = &title
	}
	if t.Venue != nil {
		venue := *t.Venue
		if err := venue.Validate(); err != nil {
			return err
		}
		t.Venue = &venue
	}
	return nil
}

// ApplyToSeries copies the patch onto the series.
func (t SeriesTemplate) ApplyToSeries(s *ActivitySeries) {
	if t.Title != nil {
		s.Title = *t.Title
	}
	if t.Description != nil {
		s.Description = *t.Description
	}
	if t.Venue != nil {
		s.Venue = *t.Venue
	}
}

// ApplyToActivity copies the patch onto an occurrence.
func (t SeriesTemplate) ApplyToActivity(a *ScheduledActivity) {
	if t.Title != nil {
		a.Title = *t.Title
	}
	if t.Description != nil {
		a.Description = *t.Description
	}
	if t.Venue != nil {
		a.Venue = *t.Venue
	}
}
