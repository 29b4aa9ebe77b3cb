package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/sanctuary/api/handler"
)

type Handlers struct {
	Activity      *apiHandler.ActivityHandler
	Series        *apiHandler.SeriesHandler
	PrayerRequest *apiHandler.PrayerRequestHandler
	Dashboard     *apiHandler.DashboardHandler
	Calendar      *apiHandler.CalendarHandler
	History       *apiHandler.HistoryHandler
	Favorite      *apiHandler.FavoriteHandler
	Health        *apiHandler.HealthHandler
	Metrics       fasthttp.RequestHandler
}

// CalendarPath may carry its token in the query string.
const CalendarPath = "/api/v1/calendar.ics"

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	// Activities
	r.GET("/api/v1/activities", authMiddleware(handlers.Activity.List))
	r.POST("/api/v1/activities", authMiddleware(handlers.Activity.Create))
	r.GET("/api/v1/activities/{id}", authMiddleware(handlers.Activity.Get))
	r.PUT("/api/v1/activities/{id}", authMiddleware(handlers.Activity.Update))
	r.DELETE("/api/v1/activities/{id}", authMiddleware(handlers.Activity.Delete))
	r.POST("/api/v1/activities/{id}/join", authMiddleware(handlers.Activity.Join))
	r.GET("/api/v1/activities/{id}/attendance", authMiddleware(handlers.Activity.Attendees))
	r.GET("/api/v1/activities/{id}/history", authMiddleware(handlers.History.Get))

	r.GET("/api/v1/dashboard", authMiddleware(handlers.Dashboard.Get))
	r.GET(CalendarPath, authMiddleware(handlers.Calendar.Feed))

	// Series
	r.GET("/api/v1/series", authMiddleware(handlers.Series.List))
	r.POST("/api/v1/series", authMiddleware(handlers.Series.Create))
	r.GET("/api/v1/series/{id}", authMiddleware(handlers.Series.Get))
	r.PUT("/api/v1/series/{id}", authMiddleware(handlers.Series.Update))
	r.POST("/api/v1/series/{id}/split", authMiddleware(handlers.Series.Split))
	r.POST("/api/v1/series/{id}/deactivate", authMiddleware(handlers.Series.Deactivate))
	r.POST("/api/v1/series/{id}/extend", authMiddleware(handlers.Series.Extend))
	r.GET("/api/v1/series/{id}/history", authMiddleware(handlers.History.Get))

	// Favorites
	r.GET("/api/v1/series/{id}/favorite", authMiddleware(handlers.Favorite.State))
	r.POST("/api/v1/series/{id}/favorite", authMiddleware(handlers.Favorite.Add))
	r.DELETE("/api/v1/series/{id}/favorite", authMiddleware(handlers.Favorite.Remove))
	r.GET("/api/v1/favorites", authMiddleware(handlers.Favorite.Mine))

	// Prayer requests
	r.GET("/api/v1/prayer-requests", authMiddleware(handlers.PrayerRequest.List))
	r.POST("/api/v1/prayer-requests", authMiddleware(handlers.PrayerRequest.Submit))
	r.GET("/api/v1/prayer-requests/{id}", authMiddleware(handlers.PrayerRequest.Get))
	r.POST("/api/v1/prayer-requests/{id}/prayed", authMiddleware(handlers.PrayerRequest.MarkPrayed))

	return r
}
