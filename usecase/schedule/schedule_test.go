package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/clock"
	"github.com/fastygo/sanctuary/repository/memory"
	"github.com/fastygo/sanctuary/usecase/series"
)

var (
	pastor = domain.Principal{UserID: "pastor-1", Name: "Pastor Paul", Role: domain.RolePastor}
	admin  = domain.Principal{UserID: "admin-1", Name: "Root", Role: domain.RoleAdmin}
	member = domain.Principal{UserID: "member-1", Name: "Grace", Role: domain.RoleMember}

	ctxBg = context.Background()
)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.January, day, hour, minute, 0, 0, time.UTC)
}

type harness struct {
	clock      *clock.Mock
	activities *memory.ActivityStore
	series     *series.UseCase
	uc         *UseCase
}

func newHarness(now time.Time) *harness {
	return newHarnessWithClock(clock.NewMock(now), nil)
}

func newHarnessWithClock(mock *clock.Mock, c clock.Clock) *harness {
	if c == nil {
		c = mock
	}
	h := &harness{clock: mock, activities: memory.NewActivityStore()}
	h.series = series.New(series.Deps{
		Series:     memory.NewSeriesStore(),
		Activities: h.activities,
		Locker:     memory.NewLocker(),
		Clock:      c,
	}, series.Config{HorizonMonths: 3}, nil)
	h.uc = New(Deps{Activities: h.activities, Series: h.series, Clock: c}, Config{}, nil)
	return h
}

func (h *harness) single(t *testing.T, startAt, endAt time.Time) domain.ActivityView {
	t.Helper()
	view, err := h.uc.CreateSingle(ctxBg, pastor, &domain.ScheduledActivity{
		Category: domain.CategoryPrayer,
		Title:    "Evening prayer",
		StartAt:  startAt,
		EndAt:    endAt,
		Venue:    domain.OfflineAt("Main hall"),
	})
	require.NoError(t, err)
	return *view
}

func (h *harness) weekly(t *testing.T) []domain.ScheduledActivity {
	t.Helper()
	res, err := h.series.Create(ctxBg, pastor, &domain.ActivitySeries{
		Category: domain.CategoryEvent,
		Title:    "Bible study",
		Venue:    domain.OnlineVia("https://meet.example/study"),
		StartAt:  at(5, 18, 0),
		EndAt:    at(5, 19, 30),
		Rule:     domain.RecurrenceRule{Frequency: domain.FrequencyWeekly, DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday}},
	})
	require.NoError(t, err)
	occ, err := h.activities.ListSeriesFrom(ctxBg, res.Series.ID, time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, occ)
	return occ
}

func (h *harness) ids(t *testing.T, tab domain.Tab) []string {
	t.Helper()
	items, err := h.uc.List(ctxBg, ListQuery{Tab: tab})
	require.NoError(t, err)
	out := make([]string, 0, len(items))
	for _, v := range items {
		out = append(out, v.ID)
	}
	return out
}

func TestSingleActivityLifecycle(t *testing.T) {
	h := newHarness(at(19, 12, 0))
	created := h.single(t, at(20, 15, 0), at(20, 16, 0))
	assert.Equal(t, domain.StatusUpcoming, created.Status)
	assert.Equal(t, pastor.UserID, created.CreatedBy)

	h.clock.Set(at(20, 14, 59))
	view, err := h.uc.Get(ctxBg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUpcoming, view.Status)
	assert.True(t, view.Permissions.CanEdit)
	assert.False(t, view.Permissions.CanJoin)
	assert.Contains(t, h.ids(t, domain.TabToday), created.ID)
	assert.Contains(t, h.ids(t, domain.TabUpcomingToday), created.ID)

	h.clock.Set(at(20, 15, 30))
	view, err = h.uc.Get(ctxBg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, view.Status)
	assert.False(t, view.Permissions.CanEdit)
	assert.True(t, view.Permissions.CanJoin)
	require.NotNil(t, view.JoinAction)
	assert.Equal(t, "Main hall", view.JoinAction.Target)
	assert.Contains(t, h.ids(t, domain.TabLiveNow), created.ID)
	assert.Contains(t, h.ids(t, domain.TabToday), created.ID)

	title := "Late prayer"
	_, err = h.uc.Edit(ctxBg, pastor, created.ID, ModeThis, EditRequest{Title: &title})
	require.True(t, domain.IsDomainError(err, domain.ErrCodeMutationDenied))
	assert.Equal(t, domain.ReasonAlreadyStarted, domain.DetailOf(err, "reason"))

	h.clock.Set(at(20, 16, 1))
	view, err = h.uc.Get(ctxBg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	assert.False(t, view.Permissions.CanDelete)
	assert.Equal(t, []string{created.ID}, h.ids(t, domain.TabPast))
	assert.Empty(t, h.ids(t, domain.TabToday))
	assert.Empty(t, h.ids(t, domain.TabUpcoming))
	assert.Empty(t, h.ids(t, domain.TabLiveNow))

	_, err = h.uc.Delete(ctxBg, pastor, created.ID, ModeThis)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeMutationDenied))
	assert.Equal(t, domain.ReasonAuditSafety, domain.DetailOf(err, "reason"))
	assert.Equal(t, string(domain.StatusCompleted), domain.DetailOf(err, "status"))
}

func TestCreateSingleValidates(t *testing.T) {
	h := newHarness(at(19, 12, 0))

	_, err := h.uc.CreateSingle(ctxBg, member, &domain.ScheduledActivity{})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.uc.CreateSingle(ctxBg, domain.Principal{}, &domain.ScheduledActivity{})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = h.uc.CreateSingle(ctxBg, pastor, &domain.ScheduledActivity{
		Category: domain.CategoryPrayer,
		Title:    "Yesterday",
		StartAt:  at(18, 10, 0),
		EndAt:    at(18, 11, 0),
		Venue:    domain.OfflineAt("Chapel"),
	})
	assert.Equal(t, "start_at", domain.DetailOf(err, "field"))

	_, err = h.uc.CreateSingle(ctxBg, pastor, &domain.ScheduledActivity{
		Category: domain.CategoryPrayer,
		Title:    "Online",
		StartAt:  at(20, 10, 0),
		EndAt:    at(20, 11, 0),
		Venue:    domain.Venue{Kind: domain.KindOnline},
	})
	assert.Equal(t, "join_info", domain.DetailOf(err, "field"))
}

func TestEditToPastStartIsRejected(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)
	target := occ[0]

	past := at(1, 9, 0)
	end := at(1, 10, 0)
	_, err := h.uc.Edit(ctxBg, pastor, target.ID, ModeThis, EditRequest{StartAt: &past, EndAt: &end})
	require.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Equal(t, "start_at", domain.DetailOf(err, "field"))

	stored, err := h.activities.GetByID(ctxBg, target.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartAt.Equal(target.StartAt))
	assert.False(t, stored.Detached)
}

func TestAdminCannotChangeCompletedActivity(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)
	h.clock.Set(at(6, 9, 0))

	title := "Rewritten history"
	for _, mode := range []PropagationMode{ModeThis, ModeThisAndFuture} {
		_, err := h.uc.Edit(ctxBg, admin, occ[0].ID, mode, EditRequest{Title: &title})
		require.True(t, domain.IsDomainError(err, domain.ErrCodeMutationDenied), "edit %s", mode)
		assert.Equal(t, domain.ReasonAuditSafety, domain.DetailOf(err, "reason"))

		_, err = h.uc.Delete(ctxBg, admin, occ[0].ID, mode)
		require.True(t, domain.IsDomainError(err, domain.ErrCodeMutationDenied), "delete %s", mode)
		assert.Equal(t, domain.ReasonAuditSafety, domain.DetailOf(err, "reason"))
	}

	stored, err := h.activities.GetByID(ctxBg, occ[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Bible study", stored.Title)
}

func TestMembersCannotMutate(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)

	title := "Mine now"
	_, err := h.uc.Edit(ctxBg, member, occ[0].ID, ModeThis, EditRequest{Title: &title})
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.uc.Delete(ctxBg, member, occ[0].ID, ModeThis)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

// steppingClock advances by step on every read after the first.
type steppingClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	reads int
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reads > 0 {
		c.now = c.now.Add(c.step)
	}
	c.reads++
	return c.now
}

func TestEditRacingStartIsStaleWrite(t *testing.T) {
	h := newHarness(at(19, 12, 0))
	created := h.single(t, at(19, 12, 1), at(19, 13, 0))

	step := &steppingClock{now: at(19, 12, 0), step: time.Minute}
	uc := New(Deps{Activities: h.activities, Clock: step}, Config{}, nil)

	title := "Renamed"
	_, err := uc.Edit(ctxBg, pastor, created.ID, ModeThis, EditRequest{Title: &title})
	require.True(t, domain.IsDomainError(err, domain.ErrCodeStaleWrite))
	assert.Equal(t, string(domain.StatusInProgress), domain.DetailOf(err, "status"))

	stored, err := h.activities.GetByID(ctxBg, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening prayer", stored.Title)
}

func TestEditThisDetachesOccurrence(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)

	title := "Study with guest speaker"
	start, end := at(6, 18, 0), at(6, 20, 0)
	res, err := h.uc.Edit(ctxBg, pastor, occ[0].ID, ModeThis, EditRequest{Title: &title, StartAt: &start, EndAt: &end})
	require.NoError(t, err)
	assert.Equal(t, ModeThis, res.Mode)
	require.NotNil(t, res.Activity)
	assert.True(t, res.Activity.Detached)
	assert.True(t, res.Activity.StartAt.Equal(start))

	// A later template change leaves the detached occurrence alone.
	newTitle := "Study night"
	_, report, err := h.series.UpdateTemplate(ctxBg, pastor, *occ[0].SeriesID, domain.SeriesTemplate{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	stored, err := h.activities.GetByID(ctxBg, occ[0].ID)
	require.NoError(t, err)
	assert.Equal(t, title, stored.Title)
}

func TestEditThisAndFuturePropagatesFromPivot(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)
	pivot := occ[2]

	title := "Study night"
	res, err := h.uc.Edit(ctxBg, pastor, pivot.ID, ModeThisAndFuture, EditRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, ModeThisAndFuture, res.Mode)
	assert.Equal(t, len(occ)-2, res.Report.Affected)
	require.NotNil(t, res.Series)
	assert.Equal(t, title, res.Series.Title)

	after, err := h.activities.ListSeriesFrom(ctxBg, *pivot.SeriesID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "Bible study", after[0].Title)
	assert.Equal(t, "Bible study", after[1].Title)
	for _, o := range after[2:] {
		assert.Equal(t, title, o.Title)
	}
}

func TestEditThisAndFutureMoveSplitsSeries(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)
	pivot := occ[2] // Mon Jan 12

	start, end := at(12, 19, 0), at(12, 20, 30)
	res, err := h.uc.Edit(ctxBg, pastor, pivot.ID, ModeThisAndFuture, EditRequest{StartAt: &start, EndAt: &end})
	require.NoError(t, err)
	require.NotNil(t, res.Series)
	require.NotNil(t, res.Previous)
	assert.False(t, res.Previous.Active)
	assert.NotEqual(t, res.Previous.ID, res.Series.ID)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, res.Series.Rule.DaysOfWeek)
	require.NotNil(t, res.Activity)
	assert.True(t, res.Activity.StartAt.Equal(start))

	kept, err := h.activities.ListSeriesFrom(ctxBg, res.Previous.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, kept, 2)

	_, err = h.activities.GetByID(ctxBg, pivot.ID)
	assert.ErrorIs(t, err, domain.ErrActivityNotFound)
}

func TestDeleteThisIsNotRegenerated(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)

	res, err := h.uc.Delete(ctxBg, pastor, occ[1].ID, ModeThis)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Affected)

	h.clock.Advance(30 * 24 * time.Hour)
	_, err = h.series.ExtendAll(ctxBg)
	require.NoError(t, err)

	_, err = h.activities.GetByID(ctxBg, occ[1].ID)
	assert.ErrorIs(t, err, domain.ErrActivityNotFound)
	all, err := h.activities.ListSeriesFrom(ctxBg, *occ[1].SeriesID, time.Time{})
	require.NoError(t, err)
	for _, o := range all {
		assert.False(t, o.StartAt.Equal(occ[1].StartAt))
	}
}

func TestDeleteThisAndFutureStopsSeries(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)

	res, err := h.uc.Delete(ctxBg, pastor, occ[2].ID, ModeThisAndFuture)
	require.NoError(t, err)
	assert.Equal(t, ModeThisAndFuture, res.Mode)
	assert.Equal(t, len(occ)-2, res.Report.Affected)

	s, err := h.series.Get(ctxBg, *occ[2].SeriesID)
	require.NoError(t, err)
	assert.False(t, s.Active)
}

func TestTabsPartitionActivities(t *testing.T) {
	h := newHarness(at(19, 8, 0))
	early := h.single(t, at(19, 9, 0), at(19, 10, 0))
	live := h.single(t, at(19, 11, 0), at(19, 13, 0))
	later := h.single(t, at(19, 18, 0), at(19, 19, 0))
	overnight := h.single(t, at(19, 23, 0), at(20, 2, 0))
	tomorrow := h.single(t, at(20, 9, 0), at(20, 10, 0))

	h.clock.Set(at(19, 12, 0))
	today := h.ids(t, domain.TabToday)
	upcoming := h.ids(t, domain.TabUpcoming)
	past := h.ids(t, domain.TabPast)

	assert.Equal(t, []string{live.ID, later.ID, overnight.ID}, today)
	assert.Equal(t, []string{tomorrow.ID}, upcoming)
	assert.Equal(t, []string{early.ID}, past)

	for _, id := range []string{early.ID, live.ID, later.ID, overnight.ID, tomorrow.ID} {
		n := 0
		for _, tab := range [][]string{today, upcoming, past} {
			for _, got := range tab {
				if got == id {
					n++
				}
			}
		}
		assert.Equal(t, 1, n, "activity %s in %d tabs", id, n)
	}

	// The overnight activity is still today while running past midnight.
	h.clock.Set(at(20, 1, 0))
	assert.Contains(t, h.ids(t, domain.TabToday), overnight.ID)
	assert.Equal(t, []string{live.ID, early.ID}, h.ids(t, domain.TabPast)[1:])
}

func TestPastPageIsNotShortenedByRunningActivities(t *testing.T) {
	h := newHarness(at(10, 8, 0))
	first := h.single(t, at(10, 9, 0), at(10, 10, 0))
	second := h.single(t, at(10, 11, 0), at(10, 12, 0))
	h.single(t, at(10, 13, 0), at(10, 15, 0))
	h.single(t, at(10, 13, 30), at(10, 16, 0))

	h.clock.Set(at(10, 14, 0))
	items, err := h.uc.List(ctxBg, ListQuery{Tab: domain.TabPast, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)

	items, err = h.uc.List(ctxBg, ListQuery{Tab: domain.TabToday, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, v := range items {
		assert.Equal(t, domain.StatusInProgress, v.Status)
	}
}

func TestListUsesViewerTimezone(t *testing.T) {
	h := newHarness(at(20, 12, 0))
	a := h.single(t, at(21, 10, 0), at(21, 11, 0))
	h.clock.Set(at(20, 20, 0))

	utc, err := h.uc.List(ctxBg, ListQuery{Tab: domain.TabToday})
	require.NoError(t, err)
	assert.Empty(t, utc)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	local, err := h.uc.List(ctxBg, ListQuery{Tab: domain.TabToday, Location: tokyo})
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, a.ID, local[0].ID)
}

func TestListFiltersAndValidates(t *testing.T) {
	h := newHarness(at(1, 12, 0))
	occ := h.weekly(t)
	h.single(t, at(5, 7, 0), at(5, 8, 0))

	items, err := h.uc.List(ctxBg, ListQuery{Category: domain.CategoryEvent, SeriesID: *occ[0].SeriesID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, v := range items {
		assert.Equal(t, domain.CategoryEvent, v.Category)
		assert.Equal(t, "Weekly", v.RecurrenceLabel)
	}

	_, err = h.uc.List(ctxBg, ListQuery{Tab: "tomorrow"})
	assert.Equal(t, "tab", domain.DetailOf(err, "field"))
	_, err = h.uc.List(ctxBg, ListQuery{Category: "concert"})
	assert.Equal(t, "category", domain.DetailOf(err, "field"))
}

func TestDashboard(t *testing.T) {
	h := newHarness(at(19, 8, 0))
	live := h.single(t, at(19, 9, 0), at(19, 11, 0))
	soon := h.single(t, at(19, 17, 0), at(19, 18, 0))
	h.single(t, at(20, 9, 0), at(20, 10, 0))

	h.clock.Set(at(19, 10, 0))
	dash, err := h.uc.Dashboard(ctxBg, nil)
	require.NoError(t, err)
	require.Len(t, dash.LiveNow, 1)
	assert.Equal(t, live.ID, dash.LiveNow[0].ID)
	assert.True(t, dash.LiveNow[0].Permissions.CanJoin)
	require.Len(t, dash.UpcomingToday, 1)
	assert.Equal(t, soon.ID, dash.UpcomingToday[0].ID)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeThis, m)

	m, err = ParseMode("this_and_future")
	require.NoError(t, err)
	assert.Equal(t, ModeThisAndFuture, m)

	_, err = ParseMode("all")
	assert.Equal(t, "mode", domain.DetailOf(err, "field"))
}
