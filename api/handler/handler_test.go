package handler_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/sanctuary/api/handler"
	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/internal/calendar"
	"github.com/fastygo/sanctuary/internal/infrastructure/monitor"
	"github.com/fastygo/sanctuary/internal/router"
	"github.com/fastygo/sanctuary/pkg/clock"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	"github.com/fastygo/sanctuary/repository/memory"
	"github.com/fastygo/sanctuary/usecase"
	attendanceUC "github.com/fastygo/sanctuary/usecase/attendance"
	auditUC "github.com/fastygo/sanctuary/usecase/audit"
	favoriteUC "github.com/fastygo/sanctuary/usecase/favorite"
	prayerUC "github.com/fastygo/sanctuary/usecase/prayerrequest"
	scheduleUC "github.com/fastygo/sanctuary/usecase/schedule"
	seriesUC "github.com/fastygo/sanctuary/usecase/series"
)

type identity struct {
	id   string
	role string
}

var (
	pastor  = identity{"pastor-1", "pastor"}
	admin   = identity{"admin-1", "admin"}
	member  = identity{"member-1", "member"}
	member2 = identity{"member-2", "member"}
	nobody  = identity{}
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta struct {
		Count    *int `json:"count"`
		Warnings []struct {
			Code string `json:"code"`
		} `json:"warnings"`
	} `json:"meta"`
}

type stubStatus struct{ status monitor.Status }

func (s stubStatus) GetStatus() monitor.Status { return s.status }

type server struct {
	t       *testing.T
	clock   *clock.Mock
	handler fasthttp.RequestHandler
}

func passthrough(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }

func newServer(t *testing.T, status monitor.Status) *server {
	t.Helper()
	mock := clock.NewMock(time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC))
	activities := memory.NewActivityStore()
	audit := auditUC.New(memory.NewEventLog(), nil)
	events := usecase.FanOut{audit}
	seriesStore := memory.NewSeriesStore()

	series := seriesUC.New(seriesUC.Deps{
		Series:     seriesStore,
		Activities: activities,
		Locker:     memory.NewLocker(),
		Clock:      mock,
		Events:     events,
	}, seriesUC.Config{HorizonMonths: 3}, nil)
	schedule := scheduleUC.New(scheduleUC.Deps{Activities: activities, Series: series, Clock: mock, Events: events}, scheduleUC.Config{}, nil)
	attendance := attendanceUC.New(attendanceUC.Deps{Activities: activities, Attendance: memory.NewAttendanceStore(), Clock: mock, Events: events}, nil)
	prayers := prayerUC.New(prayerUC.Deps{Requests: memory.NewPrayerRequestStore(), Clock: mock, Events: events}, nil)
	favorites := favoriteUC.New(favoriteUC.Deps{Favorites: memory.NewFavoriteStore(), Series: seriesStore, Clock: mock, Events: events}, nil)

	adapter := httpcontext.NewAdapter(time.Second)
	r := router.New(router.Handlers{
		Activity:      apiHandler.NewActivityHandler(schedule, attendance, adapter, nil),
		Series:        apiHandler.NewSeriesHandler(series, adapter, nil),
		PrayerRequest: apiHandler.NewPrayerRequestHandler(prayers, adapter, nil),
		Dashboard:     apiHandler.NewDashboardHandler(schedule, adapter, nil),
		Calendar:      apiHandler.NewCalendarHandler(schedule, calendar.NewFeed(calendar.Config{}), adapter, nil),
		History:       apiHandler.NewHistoryHandler(audit, adapter, nil),
		Favorite:      apiHandler.NewFavoriteHandler(favorites, adapter, nil),
		Health:        apiHandler.NewHealthHandler(stubStatus{status}, adapter, nil),
	}, passthrough)
	return &server{t: t, clock: mock, handler: r.Handler}
}

func (s *server) do(method, uri string, who identity, body interface{}) (*fasthttp.RequestCtx, envelope) {
	s.t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if who.id != "" {
		ctx.Request.Header.Set(httpcontext.HeaderUserID, who.id)
		ctx.Request.Header.Set(httpcontext.HeaderUserRole, who.role)
	}
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(s.t, err)
			raw = string(encoded)
		}
		ctx.Request.SetBodyString(raw)
		ctx.Request.Header.SetContentType("application/json")
	}
	s.handler(&ctx)

	var env envelope
	if strings.HasPrefix(string(ctx.Response.Header.ContentType()), "application/json") {
		require.NoError(s.t, json.Unmarshal(ctx.Response.Body(), &env), string(ctx.Response.Body()))
	}
	return &ctx, env
}

func (s *server) createActivity(start time.Time) domain.ActivityView {
	s.t.Helper()
	ctx, env := s.do(http.MethodPost, "/api/v1/activities", pastor, map[string]interface{}{
		"category": "prayer",
		"title":    "Morning prayer",
		"venue":    map[string]string{"kind": "online", "join_info": "https://meet.example.org/morning"},
		"start_at": start,
		"end_at":   start.Add(time.Hour),
	})
	require.Equal(s.t, http.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var view domain.ActivityView
	require.NoError(s.t, json.Unmarshal(env.Data, &view))
	return view
}

func TestActivityLifecycleOverHTTP(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})
	start := time.Date(2026, time.January, 2, 10, 0, 0, 0, time.UTC)
	created := s.createActivity(start)
	assert.Equal(t, domain.StatusUpcoming, created.Status)
	assert.True(t, created.Permissions.CanEdit)

	ctx, env := s.do(http.MethodGet, "/api/v1/activities?tab=upcoming", member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.NotNil(t, env.Meta.Count)
	assert.Equal(t, 1, *env.Meta.Count)

	s.clock.Set(start.Add(10 * time.Minute))

	ctx, env = s.do(http.MethodPut, "/api/v1/activities/"+created.ID, pastor, map[string]string{"title": "Renamed"})
	assert.Equal(t, http.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeMutationDenied), env.Code)
	assert.Equal(t, domain.ReasonAlreadyStarted, env.Error.Details["reason"])
	assert.Equal(t, string(domain.StatusInProgress), env.Error.Details["status"])

	ctx, env = s.do(http.MethodPost, "/api/v1/activities/"+created.ID+"/join", member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var joined domain.JoinResult
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "link", joined.Action.Type)

	ctx, env = s.do(http.MethodGet, "/api/v1/activities/"+created.ID+"/attendance", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, 1, *env.Meta.Count)

	s.clock.Set(start.Add(2 * time.Hour))

	ctx, env = s.do(http.MethodDelete, "/api/v1/activities/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, domain.ReasonAuditSafety, env.Error.Details["reason"])

	ctx, env = s.do(http.MethodGet, "/api/v1/activities/"+created.ID, member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var view domain.ActivityView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, domain.StatusCompleted, view.Status)
	assert.False(t, view.Permissions.CanDelete)
}

func TestListDateRangeIncludesNamedDay(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})
	created := s.createActivity(time.Date(2026, time.January, 2, 10, 0, 0, 0, time.UTC))

	ctx, env := s.do(http.MethodGet, "/api/v1/activities?from=2026-01-02&to=2026-01-02", member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var items []domain.ActivityView
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	_, env = s.do(http.MethodGet, "/api/v1/activities?to=2026-01-01", member, nil)
	assert.Equal(t, 0, *env.Meta.Count)

	_, env = s.do(http.MethodGet, "/api/v1/activities?to=2026-01-02T10:00:00Z", member, nil)
	assert.Equal(t, 0, *env.Meta.Count)
}

func TestRequestValidationOverHTTP(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})

	ctx, env := s.do(http.MethodPost, "/api/v1/activities", pastor, "{not json")
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeInvalid), env.Code)

	ctx, env = s.do(http.MethodGet, "/api/v1/activities?tz=Mars/Olympus", member, nil)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "tz", env.Error.Details["field"])

	ctx, env = s.do(http.MethodDelete, "/api/v1/activities/x?mode=everything", pastor, nil)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "mode", env.Error.Details["field"])

	ctx, _ = s.do(http.MethodPost, "/api/v1/activities", member, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())

	ctx, _ = s.do(http.MethodGet, "/api/v1/activities/missing", member, nil)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())

	ctx, _ = s.do(http.MethodPost, "/api/v1/prayer-requests", nobody, map[string]string{"text": "x", "visibility": "public"})
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestSeriesOverHTTP(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})
	start := time.Date(2026, time.January, 5, 18, 0, 0, 0, time.UTC)

	ctx, env := s.do(http.MethodPost, "/api/v1/series", pastor, map[string]interface{}{
		"category": "prayer",
		"title":    "Evening prayer",
		"venue":    map[string]string{"kind": "offline", "location": "Chapel"},
		"start_at": start,
		"end_at":   start.Add(time.Hour),
		"rule":     map[string]interface{}{"frequency": "weekly", "days_of_week": []string{"mon", "wed"}},
		"end":      map[string]interface{}{"type": "after_count", "count": 4},
	})
	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var created seriesUC.CreateResult
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 4, created.Materialization.Inserted)
	seriesID := created.Series.ID

	ctx, env = s.do(http.MethodGet, "/api/v1/activities?series_id="+seriesID, member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var occurrences []domain.ActivityView
	require.NoError(t, json.Unmarshal(env.Data, &occurrences))
	require.Len(t, occurrences, 4)
	assert.Equal(t, "Weekly", occurrences[0].RecurrenceLabel)

	ctx, _ = s.do(http.MethodPut, "/api/v1/activities/"+occurrences[1].ID+"?mode=this_and_future", pastor, map[string]string{"title": "Vespers"})
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	_, env = s.do(http.MethodGet, "/api/v1/activities?series_id="+seriesID, member, nil)
	require.NoError(t, json.Unmarshal(env.Data, &occurrences))
	assert.Equal(t, "Evening prayer", occurrences[0].Title)
	assert.Equal(t, "Vespers", occurrences[3].Title)

	ctx, _ = s.do(http.MethodDelete, "/api/v1/activities/"+occurrences[2].ID+"?mode=this_and_future", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	_, env = s.do(http.MethodGet, "/api/v1/activities?series_id="+seriesID, member, nil)
	assert.Equal(t, 2, *env.Meta.Count)

	ctx, env = s.do(http.MethodGet, "/api/v1/series/"+seriesID+"/history", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.GreaterOrEqual(t, *env.Meta.Count, 1)

	ctx, _ = s.do(http.MethodPost, "/api/v1/series/"+seriesID+"/deactivate", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	ctx, env = s.do(http.MethodPost, "/api/v1/series/"+seriesID+"/extend", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	assert.Empty(t, env.Meta.Warnings)

	ctx, _ = s.do(http.MethodPost, "/api/v1/series/"+seriesID+"/split", pastor, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
}

func TestFavoritesOverHTTP(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})
	start := time.Date(2026, time.January, 6, 7, 0, 0, 0, time.UTC)

	ctx, env := s.do(http.MethodPost, "/api/v1/series", pastor, map[string]interface{}{
		"category": "event",
		"title":    "Bible study",
		"venue":    map[string]string{"kind": "offline", "location": "Hall B"},
		"start_at": start,
		"end_at":   start.Add(90 * time.Minute),
		"rule":     map[string]interface{}{"frequency": "weekly", "days_of_week": []string{"tue"}},
	})
	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var created seriesUC.CreateResult
	require.NoError(t, json.Unmarshal(env.Data, &created))
	path := "/api/v1/series/" + created.Series.ID + "/favorite"

	ctx, _ = s.do(http.MethodPost, path, member, nil)
	assert.Equal(t, http.StatusCreated, ctx.Response.StatusCode())
	ctx, _ = s.do(http.MethodPost, path, member, nil)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	ctx, env = s.do(http.MethodGet, path, member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var state domain.FavoriteState
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.True(t, state.Favorited)

	_, env = s.do(http.MethodGet, path, member2, nil)
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.False(t, state.Favorited)

	ctx, env = s.do(http.MethodGet, "/api/v1/favorites", member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var mine []domain.FavoriteView
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Bible study", mine[0].Series.Title)

	ctx, _ = s.do(http.MethodDelete, path, member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	_, env = s.do(http.MethodGet, "/api/v1/favorites", member, nil)
	assert.Equal(t, 0, *env.Meta.Count)

	ctx, _ = s.do(http.MethodPost, "/api/v1/series/missing/favorite", member, nil)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())
	ctx, _ = s.do(http.MethodPost, path, nobody, nil)
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())

	ctx, _ = s.do(http.MethodPost, "/api/v1/series/"+created.Series.ID+"/deactivate", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	ctx, env = s.do(http.MethodPost, path, member2, nil)
	assert.Equal(t, http.StatusConflict, ctx.Response.StatusCode())
	assert.Equal(t, string(domain.ErrCodeConflict), env.Code)
}

func TestPrayerRequestsOverHTTP(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})

	ctx, env := s.do(http.MethodPost, "/api/v1/prayer-requests", member, map[string]string{
		"text":       "Please pray for my family",
		"visibility": "private",
	})
	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	var sub prayerUC.Submission
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	id := sub.Request.ID

	ctx, _ = s.do(http.MethodGet, "/api/v1/prayer-requests/"+id, member2, nil)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())

	ctx, _ = s.do(http.MethodPost, "/api/v1/prayer-requests/"+id+"/prayed", member, nil)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())

	ctx, env = s.do(http.MethodPost, "/api/v1/prayer-requests/"+id+"/prayed", pastor, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var view domain.PrayerRequestView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Anonymized)
	assert.Equal(t, domain.AnonymizedText, view.Text)

	ctx, _ = s.do(http.MethodPost, "/api/v1/prayer-requests/"+id+"/prayed", pastor, nil)
	assert.Equal(t, http.StatusConflict, ctx.Response.StatusCode())
}

func TestDashboardAndCalendar(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true})
	start := time.Date(2026, time.January, 1, 11, 30, 0, 0, time.UTC)
	s.clock.Set(start.Add(-time.Hour))
	live := s.createActivity(start)
	later := s.createActivity(start.Add(5 * time.Hour))
	s.clock.Set(start.Add(30 * time.Minute))

	ctx, env := s.do(http.MethodGet, "/api/v1/dashboard", member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	var dash scheduleUC.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	require.Len(t, dash.LiveNow, 1)
	assert.Equal(t, live.ID, dash.LiveNow[0].ID)
	require.Len(t, dash.UpcomingToday, 1)
	assert.Equal(t, later.ID, dash.UpcomingToday[0].ID)

	ctx, _ = s.do(http.MethodGet, router.CalendarPath, member, nil)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "text/calendar")
	body := string(ctx.Response.Body())
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, live.ID+"@sanctuary")
}

func TestHealth(t *testing.T) {
	s := newServer(t, monitor.Status{Online: true, Components: map[string]bool{"postgres": true}})
	ctx, env := s.do(http.MethodGet, "/health", nobody, nil)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "success", env.Status)

	s = newServer(t, monitor.Status{Online: false, Components: map[string]bool{"postgres": false}})
	ctx, env = s.do(http.MethodGet, "/health", nobody, nil)
	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
	assert.Equal(t, "DEGRADED", env.Code)
}

func TestMetricsHandler(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	apiHandler.MetricsHandler(nil)(&ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "sanctuary_")
}
