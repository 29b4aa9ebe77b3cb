package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validSeries() ActivitySeries {
	start := time.Date(2026, time.January, 5, 18, 0, 0, 0, time.UTC)
	return ActivitySeries{
		Category: CategoryPrayer,
		Title:    "  Intercession  ",
		Venue:    OnlineVia("https://chat.whatsapp.com/abc"),
		StartAt:  start,
		EndAt:    start.Add(time.Hour),
		Rule:     RecurrenceRule{Frequency: FrequencyWeekly, DaysOfWeek: []time.Weekday{time.Wednesday, time.Monday, time.Monday}},
		End:      EndCondition{Type: EndAfterCount, Count: 4},
	}
}

func TestSeriesValidateNormalizes(t *testing.T) {
	s := validSeries()
	require.NoError(t, s.Validate())
	require.Equal(t, "Intercession", s.Title)
	require.Equal(t, "UTC", s.Timezone)
	require.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, s.Rule.DaysOfWeek)
	require.Equal(t, "Weekly", s.Rule.Label())
}

func TestSeriesValidateRejections(t *testing.T) {
	cases := map[string]func(s *ActivitySeries){
		"days_of_week": func(s *ActivitySeries) { s.Rule.DaysOfWeek = nil },
		"day_of_month": func(s *ActivitySeries) { s.Rule = RecurrenceRule{Frequency: FrequencyMonthly} },
		"frequency":    func(s *ActivitySeries) { s.Rule = RecurrenceRule{Frequency: "yearly"} },
		"end_at":       func(s *ActivitySeries) { s.EndAt = s.StartAt },
		"join_info":    func(s *ActivitySeries) { s.Venue = Venue{Kind: KindOnline} },
		"location":     func(s *ActivitySeries) { s.Venue = Venue{Kind: KindOffline, JoinInfo: "x"} },
		"kind":         func(s *ActivitySeries) { s.Venue = Venue{} },
		"end.count":    func(s *ActivitySeries) { s.End = EndCondition{Type: EndAfterCount} },
		"end.on_date": func(s *ActivitySeries) {
			d := s.StartAt.AddDate(0, 0, -1)
			s.End = EndCondition{Type: EndOnDate, OnDate: &d}
		},
		"timezone": func(s *ActivitySeries) { s.Timezone = "Mars/Olympus" },
		"category": func(s *ActivitySeries) { s.Category = "retreat" },
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			s := validSeries()
			mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			require.True(t, IsDomainError(err, ErrCodeInvalid))
			require.Equal(t, field, DetailOf(err, "field"))
		})
	}
}

func TestSeriesOccurrenceInheritsTemplate(t *testing.T) {
	s := validSeries()
	s.ID = "series-1"
	s.Description = "Bring your requests"
	require.NoError(t, s.Validate())

	start := s.StartAt.AddDate(0, 0, 2)
	occ := s.Occurrence(start, start.Add(s.Duration()))
	require.True(t, occ.InSeries("series-1"))
	require.Equal(t, s.Title, occ.Title)
	require.Equal(t, s.Description, occ.Description)
	require.Equal(t, s.Venue, occ.Venue)
	require.Equal(t, "Weekly", occ.RecurrenceLabel)
	require.Equal(t, time.Hour, occ.EndAt.Sub(occ.StartAt))
}

func TestSeriesTemplateApply(t *testing.T) {
	title := "Morning watch"
	venue := OfflineAt("Chapel")
	patch := SeriesTemplate{Title: &title, Venue: &venue}
	require.False(t, patch.Empty())
	require.True(t, SeriesTemplate{}.Empty())

	s := validSeries()
	patch.ApplyToSeries(&s)
	require.Equal(t, "Morning watch", s.Title)
	require.Equal(t, KindOffline, s.Venue.Kind)

	var a ScheduledActivity
	patch.ApplyToActivity(&a)
	require.Equal(t, "Chapel", a.Venue.Location)
}
