package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/internal/calendar"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	scheduleUC "github.com/fastygo/sanctuary/usecase/schedule"
)

const (
	calendarLookback = 30 * 24 * time.Hour
	calendarLimit    = 2000
)

type CalendarHandler struct {
	baseHandler
	uc   *scheduleUC.UseCase
	feed *calendar.Feed
}

func NewCalendarHandler(uc *scheduleUC.UseCase, feed *calendar.Feed, adapter *httpcontext.Adapter, logger *zap.Logger) *CalendarHandler {
	return &CalendarHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		feed:        feed,
	}
}

// @Summary iCalendar feed of the schedule
// @Tags calendar
// @Router /api/v1/calendar.ics [get]
func (h *CalendarHandler) Feed(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, now, err := h.uc.Feed(stdCtx, calendarLookback, calendarLimit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Response.Header.SetContentType("text/calendar; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", `inline; filename="schedule.ics"`)
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBodyString(h.feed.Render(items, now))
}
