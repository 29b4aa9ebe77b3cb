// Package calendar renders schedule occurrences as an iCalendar feed.
package calendar

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/fastygo/sanctuary/domain"
)

// Config names the published calendar.
type Config struct {
	Name   string
	ProdID string
	// Domain qualifies event UIDs so they stay unique across feeds.
	Domain  string
	Refresh time.Duration
}

// Feed builds iCalendar documents.
type Feed struct {
	cfg Config
}

func NewFeed(cfg Config) *Feed {
	if cfg.Name == "" {
		cfg.Name = "Church schedule"
	}
	if cfg.ProdID == "" {
		cfg.ProdID = "-//sanctuary//schedule//EN"
	}
	if cfg.Domain == "" {
		cfg.Domain = "sanctuary"
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = 6 * time.Hour
	}
	return &Feed{cfg: cfg}
}

// Render serializes the activities as VEVENTs stamped at now.
func (f *Feed) Render(items []domain.ActivityView, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(f.cfg.ProdID)
	cal.SetName(f.cfg.Name)
	cal.SetXWRCalName(f.cfg.Name)
	cal.SetRefreshInterval(isoDuration(f.cfg.Refresh))

	for _, item := range items {
		f.addEvent(cal, item, now)
	}
	return cal.Serialize()
}

func (f *Feed) addEvent(cal *ical.Calendar, item domain.ActivityView, now time.Time) {
	event := cal.AddEvent(item.ID + "@" + f.cfg.Domain)
	event.SetDtStampTime(now.UTC())
	if !item.CreatedAt.IsZero() {
		event.SetCreatedTime(item.CreatedAt.UTC())
	}
	if !item.UpdatedAt.IsZero() {
		event.SetModifiedAt(item.UpdatedAt.UTC())
	}
	event.SetStartAt(item.StartAt.UTC())
	event.SetEndAt(item.EndAt.UTC())
	event.SetSummary(item.Title)
	event.SetStatus(ical.ObjectStatusConfirmed)
	event.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(item.Category)))

	description := item.Description
	switch item.Venue.Kind {
	case domain.KindOffline:
		event.SetLocation(item.Venue.Location)
	case domain.KindOnline:
		if isLink(item.Venue.JoinInfo) {
			event.SetURL(item.Venue.JoinInfo)
			event.SetLocation("Online")
		} else {
			description = joinLines(description, "Join: "+item.Venue.JoinInfo)
		}
	}
	if item.RecurrenceLabel != "" {
		description = joinLines(description, item.RecurrenceLabel)
	}
	if description != "" {
		event.SetDescription(description)
	}
}

func isLink(value string) bool {
	return strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://")
}

func joinLines(head, tail string) string {
	if head == "" {
		return tail
	}
	return head + "\n" + tail
}

// isoDuration formats whole hours and minutes as an RFC 5545 duration.
func isoDuration(d time.Duration) string {
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	var b strings.Builder
	b.WriteString("PT")
	if hours > 0 {
		b.WriteString(strconv.Itoa(hours))
		b.WriteString("H")
	}
	if minutes > 0 || hours == 0 {
		b.WriteString(strconv.Itoa(minutes))
		b.WriteString("M")
	}
	return b.String()
}
