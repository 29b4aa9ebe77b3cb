package handler

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/pkg/httpcontext"
	auditUC "github.com/fastygo/sanctuary/usecase/audit"
)

type HistoryHandler struct {
	baseHandler
	uc *auditUC.UseCase
}

func NewHistoryHandler(uc *auditUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Change log of an activity or series
// @Tags history
// @Router /api/v1/activities/{id}/history [get]
// @Router /api/v1/series/{id}/history [get]
func (h *HistoryHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	limit := parseInt(query(ctx, "limit"), 0)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.History(stdCtx, principal(stdCtx), id, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, events, len(events), limit, 0)
}
