package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/internal/observability"
)

// RequestMetrics records latency and status of every request and writes an access log line.
func RequestMetrics(logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			started := time.Now()
			next(ctx)
			elapsed := time.Since(started)
			code := ctx.Response.StatusCode()
			observability.RecordHTTPRequest(string(ctx.Method()), code, elapsed)
			logger.Debug("http request",
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", code),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", string(ctx.Response.Header.Peek("X-Request-ID"))))
		}
	}
}
