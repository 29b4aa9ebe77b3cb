package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/api/transport"
	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	appLogger "github.com/fastygo/sanctuary/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondWithMeta(ctx *fasthttp.RequestCtx, status int, data interface{}, meta transport.Meta) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, meta))
}

func (h baseHandler) respondList(ctx *fasthttp.RequestCtx, data interface{}, count, limit, offset int) {
	h.respondWithMeta(ctx, http.StatusOK, data, transport.Meta{Count: &count, Limit: limit, Offset: offset})
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", string(ctx.Method())),
			zap.String("path", string(ctx.Path())),
			zap.String("request_id", string(ctx.Response.Header.Peek("X-Request-ID"))),
			zap.Error(err))
		h.respondJSON(ctx, status, transport.NewError(code, transport.ErrorBody{Message: "internal error"}, nil))
		return
	}
	h.respondJSON(ctx, status, transport.NewError(code, transport.ErrorBodyOf(err), nil))
}

func (h baseHandler) respondInvalid(ctx *fasthttp.RequestCtx, field, message string) {
	h.respondError(ctx, domain.NewValidationError(field, message))
}

// log returns the handler logger enriched with the request metadata in stdCtx.
func (h baseHandler) log(stdCtx context.Context) *zap.Logger {
	return appLogger.WithRequestID(stdCtx, h.logger)
}

func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), transport.ErrorBody{Message: "invalid payload"}, nil))
		return false
	}
	return true
}

func (h baseHandler) pathID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if strings.TrimSpace(id) == "" {
		h.respondInvalid(ctx, "id", "missing id")
		return "", false
	}
	return id, true
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeMutationDenied):
		return http.StatusConflict, string(domain.ErrCodeMutationDenied)
	case domain.IsDomainError(err, domain.ErrCodeStaleWrite):
		return http.StatusConflict, string(domain.ErrCodeStaleWrite)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	case domain.IsDomainError(err, domain.ErrCodeSeriesGeneration):
		return http.StatusUnprocessableEntity, string(domain.ErrCodeSeriesGeneration)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func query(ctx *fasthttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

// parseTimeQuery reads an RFC 3339 instant or a YYYY-MM-DD date in loc. A date
// means its midnight, or the following midnight when endOfDay is set so an
// exclusive upper bound still covers the named day.
func parseTimeQuery(ctx *fasthttp.RequestCtx, key string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	raw := query(ctx, key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1)
		}
		return &t, nil
	}
	return nil, domain.NewValidationError(key, key+" must be RFC 3339 or YYYY-MM-DD")
}

// viewerLocation resolves the tz query parameter. Nil means the configured default.
func viewerLocation(ctx *fasthttp.RequestCtx) (*time.Location, error) {
	tz := query(ctx, "tz")
	if tz == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, domain.NewValidationError("tz", "unknown timezone")
	}
	return loc, nil
}

func principal(stdCtx context.Context) domain.Principal {
	return httpcontext.PrincipalFrom(stdCtx)
}
