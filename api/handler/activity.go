package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/api/transport"
	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	attendanceUC "github.com/fastygo/sanctuary/usecase/attendance"
	scheduleUC "github.com/fastygo/sanctuary/usecase/schedule"
)

type ActivityHandler struct {
	baseHandler
	schedule   *scheduleUC.UseCase
	attendance *attendanceUC.UseCase
}

func NewActivityHandler(schedule *scheduleUC.UseCase, attendance *attendanceUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		schedule:    schedule,
		attendance:  attendance,
	}
}

// @Summary List activities
// @Tags activities
// @Router /api/v1/activities [get]
func (h *ActivityHandler) List(ctx *fasthttp.RequestCtx) {
	q, ok := h.listQuery(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.schedule.List(stdCtx, q)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, items, len(items), q.Limit, q.Offset)
}

func (h *ActivityHandler) listQuery(ctx *fasthttp.RequestCtx) (scheduleUC.ListQuery, bool) {
	loc, err := viewerLocation(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return scheduleUC.ListQuery{}, false
	}
	parseLoc := loc
	if parseLoc == nil {
		parseLoc = h.schedule.Location()
	}
	from, err := parseTimeQuery(ctx, "from", parseLoc, false)
	if err != nil {
		h.respondError(ctx, err)
		return scheduleUC.ListQuery{}, false
	}
	to, err := parseTimeQuery(ctx, "to", parseLoc, true)
	if err != nil {
		h.respondError(ctx, err)
		return scheduleUC.ListQuery{}, false
	}
	return scheduleUC.ListQuery{
		Tab:      domain.Tab(query(ctx, "tab")),
		From:     from,
		To:       to,
		Category: domain.Category(query(ctx, "category")),
		SeriesID: query(ctx, "series_id"),
		Location: loc,
		Limit:    parseInt(query(ctx, "limit"), 0),
		Offset:   parseInt(query(ctx, "offset"), 0),
	}, true
}

// @Summary Create a standalone activity
// @Tags activities
// @Router /api/v1/activities [post]
func (h *ActivityHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.ActivityRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.schedule.CreateSingle(stdCtx, principal(stdCtx), req.Activity())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Info("activity created", zap.String("activity_id", created.ID))
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Get activity
// @Tags activities
// @Router /api/v1/activities/{id} [get]
func (h *ActivityHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.schedule.Get(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Update activity, optionally with every later occurrence of its series
// @Tags activities
// @Router /api/v1/activities/{id} [put]
func (h *ActivityHandler) Update(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	mode, err := scheduleUC.ParseMode(query(ctx, "mode"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	var req transport.ActivityUpdateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.schedule.Edit(stdCtx, principal(stdCtx), id, mode, scheduleUC.EditRequest{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Info("activity updated",
		zap.String("activity_id", id),
		zap.String("mode", string(mode)),
		zap.Int("affected", result.Report.Affected))
	h.respondWithMeta(ctx, http.StatusOK, result, transport.Meta{Warnings: transport.WarningsOf(result.Warnings...)})
}

// @Summary Delete activity, optionally with every later occurrence of its series
// @Tags activities
// @Router /api/v1/activities/{id} [delete]
func (h *ActivityHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	mode, err := scheduleUC.ParseMode(query(ctx, "mode"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.schedule.Delete(stdCtx, principal(stdCtx), id, mode)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Info("activity deleted",
		zap.String("activity_id", id),
		zap.String("mode", string(mode)),
		zap.Int("affected", result.Report.Affected))
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Join a live activity
// @Tags activities
// @Router /api/v1/activities/{id}/join [post]
func (h *ActivityHandler) Join(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.attendance.Join(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary List attendees of an activity
// @Tags activities
// @Router /api/v1/activities/{id}/attendance [get]
func (h *ActivityHandler) Attendees(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.attendance.Attendees(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, items, len(items), 0, 0)
}
