package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sanctuary/domain"
)

func TestParseWeekday(t *testing.T) {
	for _, in := range []string{"1", "mo", "Mon", " monday "} {
		day, ok := ParseWeekday(in)
		require.True(t, ok, in)
		assert.Equal(t, time.Monday, day)
	}
	_, ok := ParseWeekday("7")
	assert.False(t, ok)
	_, ok = ParseWeekday("someday")
	assert.False(t, ok)
}

func TestSeriesRequestConversion(t *testing.T) {
	req := SeriesRequest{
		Category: "prayer",
		Title:    "Evening Prayer",
		Timezone: "Europe/Berlin",
		Rule:     RuleRequest{Frequency: "Weekly", DaysOfWeek: []string{"mon", "3"}},
		End:      EndRequest{Type: "on_date", OnDate: "2026-03-31"},
	}
	s, err := req.Series()
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyWeekly, s.Rule.Frequency)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, s.Rule.DaysOfWeek)
	require.NotNil(t, s.End.OnDate)
	assert.Equal(t, "Europe/Berlin", s.End.OnDate.Location().String())

	req.Rule.DaysOfWeek = []string{"someday"}
	_, err = req.Series()
	assert.Equal(t, "days_of_week", domain.DetailOf(err, "field"))

	req.Rule.DaysOfWeek = nil
	req.End.OnDate = "31/03/2026"
	_, err = req.Series()
	assert.Equal(t, "end.on_date", domain.DetailOf(err, "field"))

	req.Timezone = "Mars/Olympus"
	_, err = req.Series()
	assert.Equal(t, "timezone", domain.DetailOf(err, "field"))
}

func TestErrorBodyAndWarnings(t *testing.T) {
	denied := domain.NewMutationDenied(domain.StatusCompleted, domain.ReasonAuditSafety)
	body := ErrorBodyOf(denied)
	assert.Equal(t, domain.ReasonAuditSafety, body.Details["reason"])
	assert.Equal(t, "completed", body.Details["status"])

	assert.Equal(t, "boom", ErrorBodyOf(errors.New("boom")).Message)

	ws := WarningsOf(nil, domain.ErrNoOccurrences)
	require.Len(t, ws, 1)
	assert.Equal(t, string(domain.ErrCodeSeriesGeneration), ws[0].Code)
}
