package transport

import (
	"strconv"
	"strings"
	"time"

	"github.com/fastygo/sanctuary/domain"
)

// ActivityRequest creates a standalone activity.
type ActivityRequest struct {
	Category    string       `json:"category"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Venue       domain.Venue `json:"venue"`
	StartAt     time.Time    `json:"start_at"`
	EndAt       time.Time    `json:"end_at"`
}

func (r ActivityRequest) Activity() *domain.ScheduledActivity {
	return &domain.ScheduledActivity{
		Category:    domain.Category(r.Category),
		Title:       r.Title,
		Description: r.Description,
		Venue:       r.Venue,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
	}
}

// ActivityUpdateRequest patches an activity. Omitted fields stay unchanged.
type ActivityUpdateRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Venue       *domain.Venue `json:"venue"`
	StartAt     *time.Time    `json:"start_at"`
	EndAt       *time.Time    `json:"end_at"`
}

// RuleRequest accepts weekdays as numbers (0 = Sunday) or English names.
type RuleRequest struct {
	Frequency  string   `json:"frequency"`
	DaysOfWeek []string `json:"days_of_week"`
	DayOfMonth int      `json:"day_of_month"`
}

func (r RuleRequest) Rule() (domain.RecurrenceRule, error) {
	rule := domain.RecurrenceRule{
		Frequency:  domain.Frequency(strings.ToLower(r.Frequency)),
		DayOfMonth: r.DayOfMonth,
	}
	for _, raw := range r.DaysOfWeek {
		day, ok := ParseWeekday(raw)
		if !ok {
			return rule, domain.NewValidationError("days_of_week", "unknown day of week "+strconv.Quote(raw))
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, day)
	}
	return rule, nil
}

// EndRequest bounds a series. OnDate is a YYYY-MM-DD calendar date.
type EndRequest struct {
	Type   string `json:"type"`
	OnDate string `json:"on_date"`
	Count  int    `json:"count"`
}

func (r EndRequest) Condition(loc *time.Location) (domain.EndCondition, error) {
	end := domain.EndCondition{Type: domain.EndType(r.Type), Count: r.Count}
	if r.OnDate != "" {
		if loc == nil {
			loc = time.UTC
		}
		d, err := time.ParseInLocation("2006-01-02", r.OnDate, loc)
		if err != nil {
			return end, domain.NewValidationError("end.on_date", "end date must be YYYY-MM-DD")
		}
		end.OnDate = &d
	}
	return end, nil
}

// SeriesRequest defines a recurring series.
type SeriesRequest struct {
	Category    string       `json:"category"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Venue       domain.Venue `json:"venue"`
	StartAt     time.Time    `json:"start_at"`
	EndAt       time.Time    `json:"end_at"`
	Timezone    string       `json:"timezone"`
	Rule        RuleRequest  `json:"rule"`
	End         EndRequest   `json:"end"`
}

func (r SeriesRequest) Series() (*domain.ActivitySeries, error) {
	rule, err := r.Rule.Rule()
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if r.Timezone != "" {
		loaded, err := time.LoadLocation(r.Timezone)
		if err != nil {
			return nil, domain.NewValidationError("timezone", "unknown timezone")
		}
		loc = loaded
	}
	end, err := r.End.Condition(loc)
	if err != nil {
		return nil, err
	}
	return &domain.ActivitySeries{
		Category:    domain.Category(r.Category),
		Title:       r.Title,
		Description: r.Description,
		Venue:       r.Venue,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
		Timezone:    r.Timezone,
		Rule:        rule,
		End:         end,
	}, nil
}

// TemplateRequest patches the fields shared by every occurrence of a series.
type TemplateRequest struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Venue       *domain.Venue `json:"venue"`
}

func (r TemplateRequest) Template() domain.SeriesTemplate {
	return domain.SeriesTemplate{Title: r.Title, Description: r.Description, Venue: r.Venue}
}

// SplitRequest ends a series at PivotID and continues it with the given definition.
type SplitRequest struct {
	PivotID string `json:"pivot_id"`
	SeriesRequest
}

// PrayerRequestRequest submits a prayer request.
type PrayerRequestRequest struct {
	Text       string `json:"text"`
	Visibility string `json:"visibility"`
}

var weekdays = map[string]time.Weekday{
	"su": time.Sunday, "sun": time.Sunday, "sunday": time.Sunday,
	"mo": time.Monday, "mon": time.Monday, "monday": time.Monday,
	"tu": time.Tuesday, "tue": time.Tuesday, "tuesday": time.Tuesday,
	"we": time.Wednesday, "wed": time.Wednesday, "wednesday": time.Wednesday,
	"th": time.Thursday, "thu": time.Thursday, "thursday": time.Thursday,
	"fr": time.Friday, "fri": time.Friday, "friday": time.Friday,
	"sa": time.Saturday, "sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts 0-6 (Sunday first), two-letter iCalendar codes and English names.
func ParseWeekday(value string) (time.Weekday, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 || n > 6 {
			return 0, false
		}
		return time.Weekday(n), true
	}
	day, ok := weekdays[value]
	return day, ok
}
