package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/api/transport"
	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	prayerUC "github.com/fastygo/sanctuary/usecase/prayerrequest"
)

type PrayerRequestHandler struct {
	baseHandler
	uc *prayerUC.UseCase
}

func NewPrayerRequestHandler(uc *prayerUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *PrayerRequestHandler {
	return &PrayerRequestHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List prayer requests visible to the caller
// @Tags prayer-requests
// @Router /api/v1/prayer-requests [get]
func (h *PrayerRequestHandler) List(ctx *fasthttp.RequestCtx) {
	q := prayerUC.ListQuery{
		Mine:   query(ctx, "mine") == "true",
		Status: domain.RequestStatus(query(ctx, "status")),
		Limit:  parseInt(query(ctx, "limit"), 50),
		Offset: parseInt(query(ctx, "offset"), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.List(stdCtx, principal(stdCtx), q)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, items, len(items), q.Limit, q.Offset)
}

// @Summary Submit a prayer request
// @Tags prayer-requests
// @Router /api/v1/prayer-requests [post]
func (h *PrayerRequestHandler) Submit(ctx *fasthttp.RequestCtx) {
	var req transport.PrayerRequestRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	sub, err := h.uc.Submit(stdCtx, principal(stdCtx), prayerUC.SubmitInput{
		Text:       req.Text,
		Visibility: domain.RequestVisibility(req.Visibility),
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	status := http.StatusCreated
	if sub.Buffered {
		status = http.StatusAccepted
	}
	h.respondSuccess(ctx, status, sub)
}

// @Summary Get prayer request
// @Tags prayer-requests
// @Router /api/v1/prayer-requests/{id} [get]
func (h *PrayerRequestHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.uc.Get(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Mark a prayer request as prayed for
// @Tags prayer-requests
// @Router /api/v1/prayer-requests/{id}/prayed [post]
func (h *PrayerRequestHandler) MarkPrayed(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.uc.MarkPrayed(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}
