package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/api/transport"
	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/usecase"
	seriesUC "github.com/fastygo/sanctuary/usecase/series"
)

type SeriesHandler struct {
	baseHandler
	uc *seriesUC.UseCase
}

func NewSeriesHandler(uc *seriesUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *SeriesHandler {
	return &SeriesHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List series
// @Tags series
// @Router /api/v1/series [get]
func (h *SeriesHandler) List(ctx *fasthttp.RequestCtx) {
	filter := repository.SeriesFilter{
		Category:   domain.Category(query(ctx, "category")),
		ActiveOnly: query(ctx, "active") == "true",
		Limit:      parseInt(query(ctx, "limit"), 50),
		Offset:     parseInt(query(ctx, "offset"), 0),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		h.respondInvalid(ctx, "category", "category must be prayer or event")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if items == nil {
		items = []domain.ActivitySeries{}
	}
	h.respondList(ctx, items, len(items), filter.Limit, filter.Offset)
}

// @Summary Create series and materialize its horizon
// @Tags series
// @Router /api/v1/series [post]
func (h *SeriesHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.SeriesRequest
	if !h.decode(ctx, &req) {
		return
	}
	series, err := req.Series()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Create(stdCtx, principal(stdCtx), series)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Info("series created",
		zap.String("series_id", result.Series.ID),
		zap.Int("inserted", result.Materialization.Inserted))
	h.respondWithMeta(ctx, http.StatusCreated, result, transport.Meta{Warnings: transport.WarningsOf(result.Materialization.Warning)})
}

// @Summary Get series
// @Tags series
// @Router /api/v1/series/{id} [get]
func (h *SeriesHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	series, err := h.uc.Get(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, series)
}

// @Summary Update series template fields
// @Tags series
// @Router /api/v1/series/{id} [put]
func (h *SeriesHandler) Update(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	var req transport.TemplateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	series, report, err := h.uc.UpdateTemplate(stdCtx, principal(stdCtx), id, req.Template())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"series": series,
		"report": report,
	})
}

// @Summary Split series at an occurrence
// @Tags series
// @Router /api/v1/series/{id}/split [post]
func (h *SeriesHandler) Split(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	var req transport.SplitRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.PivotID == "" {
		h.respondInvalid(ctx, "pivot_id", "pivot_id is required")
		return
	}
	next, err := req.Series()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Split(stdCtx, principal(stdCtx), id, req.PivotID, *next)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.log(stdCtx).Info("series split",
		zap.String("series_id", id),
		zap.String("continuation_id", result.Series.ID),
		zap.Int("removed", result.Removed))
	h.respondWithMeta(ctx, http.StatusCreated, result, transport.Meta{Warnings: transport.WarningsOf(result.Materialization.Warning)})
}

// @Summary Deactivate series
// @Tags series
// @Router /api/v1/series/{id}/deactivate [post]
func (h *SeriesHandler) Deactivate(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	series, err := h.uc.Deactivate(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, series)
}

// @Summary Materialize series occurrences up to the horizon
// @Tags series
// @Router /api/v1/series/{id}/extend [post]
func (h *SeriesHandler) Extend(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := usecase.RequireScheduler(principal(stdCtx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	m, err := h.uc.EnsureHorizon(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondWithMeta(ctx, http.StatusOK, m, transport.Meta{Warnings: transport.WarningsOf(m.Warning)})
}
