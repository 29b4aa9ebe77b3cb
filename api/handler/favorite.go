package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	favoriteUC "github.com/fastygo/sanctuary/usecase/favorite"
)

type FavoriteHandler struct {
	baseHandler
	uc *favoriteUC.UseCase
}

func NewFavoriteHandler(uc *favoriteUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Favorite a series
// @Tags favorites
// @Router /api/v1/series/{id}/favorite [post]
func (h *FavoriteHandler) Add(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	favorite, created, err := h.uc.Add(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.respondSuccess(ctx, status, favorite)
}

// @Summary Remove a series from favorites
// @Tags favorites
// @Router /api/v1/series/{id}/favorite [delete]
func (h *FavoriteHandler) Remove(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Remove(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Whether the caller has favorited a series
// @Tags favorites
// @Router /api/v1/series/{id}/favorite [get]
func (h *FavoriteHandler) State(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.State(stdCtx, principal(stdCtx), id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary My favorite series
// @Tags favorites
// @Router /api/v1/favorites [get]
func (h *FavoriteHandler) Mine(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := h.uc.Mine(stdCtx, principal(stdCtx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if items == nil {
		items = []domain.FavoriteView{}
	}
	h.respondList(ctx, items, len(items), 0, 0)
}
