// Package recurrence turns series definitions into concrete occurrence windows.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/fastygo/sanctuary/domain"
)

// DefaultMaxOccurrences caps a single expansion call.
const DefaultMaxOccurrences = 1000

// Occurrence is one expanded start/end pair in UTC.
type Occurrence struct {
	StartAt time.Time
	EndAt   time.Time
}

// Result is the ordered output of one expansion. Truncated is set when the
// cap cut the window short.
type Result struct {
	Occurrences []Occurrence
	Truncated   bool
}

// Last returns the start of the final occurrence, if any.
func (r Result) Last() (time.Time, bool) {
	if len(r.Occurrences) == 0 {
		return time.Time{}, false
	}
	return r.Occurrences[len(r.Occurrences)-1].StartAt, true
}

// Expander expands series rules over time windows.
type Expander struct {
	MaxOccurrences int
}

// NewExpander returns an expander with the default cap.
func NewExpander() *Expander {
	return &Expander{MaxOccurrences: DefaultMaxOccurrences}
}

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Expand returns occurrences whose start lies in [from, to].
func (e *Expander) Expand(series domain.ActivitySeries, from, to time.Time) (Result, error) {
	return e.expand(series, from, to, true)
}

// ExpandAfter returns occurrences whose start lies in (after, until]. It is
// the delta primitive used when extending a horizon past a watermark.
func (e *Expander) ExpandAfter(series domain.ActivitySeries, after, until time.Time) (Result, error) {
	return e.expand(series, after, until, false)
}

func (e *Expander) expand(series domain.ActivitySeries, from, to time.Time, inclusiveFrom bool) (Result, error) {
	if to.Before(from) {
		return Result{}, nil
	}
	duration := series.Duration()
	if duration <= 0 {
		return Result{}, domain.NewValidationError("end_at", "end time must be after start time")
	}

	if series.Rule.Frequency == domain.FrequencyNone || series.Rule.Frequency == "" {
		start := series.StartAt.UTC()
		if inWindow(start, from, to, inclusiveFrom) {
			return Result{Occurrences: []Occurrence{{StartAt: start, EndAt: start.Add(duration)}}}, nil
		}
		return Result{}, nil
	}

	rule, err := e.build(series)
	if err != nil {
		return Result{}, err
	}

	starts := rule.Between(from, to, true)
	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}

	var res Result
	var prev time.Time
	for _, start := range starts {
		if !inWindow(start, from, to, inclusiveFrom) {
			continue
		}
		start = start.UTC()
		if !prev.IsZero() && !start.After(prev) {
			continue
		}
		if len(res.Occurrences) == limit {
			res.Truncated = true
			break
		}
		res.Occurrences = append(res.Occurrences, Occurrence{StartAt: start, EndAt: start.Add(duration)})
		prev = start
	}
	return res, nil
}

func inWindow(t, from, to time.Time, inclusiveFrom bool) bool {
	if t.After(to) {
		return false
	}
	if inclusiveFrom {
		return !t.Before(from)
	}
	return t.After(from)
}

// build maps the series rule onto RFC 5545 options anchored at the series
// start in its own timezone, so wall-clock time is kept across DST changes.
func (e *Expander) build(series domain.ActivitySeries) (*rrule.RRule, error) {
	loc := series.Location()
	opt := rrule.ROption{
		Dtstart:  series.StartAt.In(loc),
		Interval: 1,
	}

	switch series.Rule.Frequency {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range series.Rule.DaysOfWeek {
			wd, ok := weekdays[d]
			if !ok {
				return nil, domain.NewValidationError("days_of_week", "day of week out of range")
			}
			opt.Byweekday = append(opt.Byweekday, wd)
		}
		if len(opt.Byweekday) == 0 {
			return nil, domain.NewValidationError("days_of_week", "weekly recurrence requires at least one day of week")
		}
	case domain.FrequencyMonthly:
		if series.Rule.DayOfMonth < 1 || series.Rule.DayOfMonth > 31 {
			return nil, domain.NewValidationError("day_of_month", "monthly recurrence requires a day of month between 1 and 31")
		}
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{series.Rule.DayOfMonth}
	default:
		return nil, domain.NewValidationError("frequency", fmt.Sprintf("unsupported frequency %q", series.Rule.Frequency))
	}

	switch series.End.Type {
	case domain.EndOnDate:
		if series.End.OnDate != nil {
			opt.Until = EndOfDay(*series.End.OnDate, loc)
		}
	case domain.EndAfterCount:
		opt.Count = series.End.Count
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid recurrence rule", err)
	}
	return rule, nil
}

// RuleString renders the series rule as an RRULE value for calendar export.
// Single activities have no rule and render empty.
func (e *Expander) RuleString(series domain.ActivitySeries) (string, error) {
	if series.Rule.Frequency == domain.FrequencyNone || series.Rule.Frequency == "" {
		return "", nil
	}
	rule, err := e.build(series)
	if err != nil {
		return "", err
	}
	return rule.OrigOptions.RRuleString(), nil
}

// EndOfDay returns the last second of the calendar date of d in loc.
func EndOfDay(d time.Time, loc *time.Location) time.Time {
	local := d.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.Add(-time.Second)
}
