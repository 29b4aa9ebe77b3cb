package domain

import (
	"sort"
	"time"
)

// Tab is a UI bucket. Today, Upcoming and Past partition every record; the
// dashboard buckets LiveNow and UpcomingToday are overlapping views.
type Tab string

const (
	TabToday         Tab = "today"
	TabUpcoming      Tab = "upcoming"
	TabPast          Tab = "past"
	TabLiveNow       Tab = "live_now"
	TabUpcomingToday Tab = "upcoming_today"
)

func (t Tab) Valid() bool {
	switch t {
	case TabToday, TabUpcoming, TabPast, TabLiveNow, TabUpcomingToday:
		return true
	}
	return false
}

// DayBounds returns [start, end) of the local day containing now in loc.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// InTab reports membership of the activity in tab at now, with day
// boundaries taken in the viewer's location.
func InTab(a ScheduledActivity, tab Tab, now time.Time, loc *time.Location) bool {
	status := a.Status(now)
	todayStart, todayEnd := DayBounds(now, loc)
	startsToday := !a.StartAt.Before(todayStart) && a.StartAt.Before(todayEnd)

	switch tab {
	case TabToday:
		if status != StatusInProgress && status != StatusUpcoming {
			return false
		}
		overlaps := a.StartAt.Before(todayEnd) && a.EndAt.After(todayStart)
		return overlaps || startsToday
	case TabUpcoming:
		return status == StatusUpcoming && !a.StartAt.Before(todayEnd)
	case TabPast:
		// endAt < now implies completed; kept so a disagreeing status cannot hide a record
		return status == StatusCompleted || a.EndAt.Before(now)
	case TabLiveNow:
		return status == StatusInProgress
	case TabUpcomingToday:
		return status == StatusUpcoming && startsToday
	default:
		return false
	}
}

// Classify returns the single partition tab (today, upcoming or past) of the activity.
func Classify(a ScheduledActivity, now time.Time, loc *time.Location) Tab {
	switch {
	case InTab(a, TabPast, now, loc):
		return TabPast
	case InTab(a, TabToday, now, loc):
		return TabToday
	default:
		return TabUpcoming
	}
}

// FilterTab keeps the activities belonging to tab, sorted for display.
func FilterTab(items []ScheduledActivity, tab Tab, now time.Time, loc *time.Location) []ScheduledActivity {
	out := make([]ScheduledActivity, 0, len(items))
	for _, a := range items {
		if InTab(a, tab, now, loc) {
			out = append(out, a)
		}
	}
	SortForTab(out, tab)
	return out
}

// SortForTab orders Past most recent first and every other tab soonest first.
func SortForTab(items []ScheduledActivity, tab Tab) {
	if tab == TabPast {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].StartAt.After(items[j].StartAt)
		})
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartAt.Before(items[j].StartAt)
	})
}
