package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/sanctuary/domain"
	appLogger "github.com/fastygo/sanctuary/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
	KeyPrincipal  Key = "principal"
)

// Identity headers set by the auth middleware after token verification.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	HeaderUserName = "X-User-Name"
	HeaderUsername = "X-Username"
)

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches
// it with request metadata and the caller's principal.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	principal := PrincipalOf(ctx)
	if principal.IsAuthenticated() {
		stdCtx = appLogger.ContextWithUserID(stdCtx, principal.UserID)
	}
	stdCtx = context.WithValue(stdCtx, KeyPrincipal, principal)

	return stdCtx, cancel
}

// PrincipalOf reads the identity headers of the request.
func PrincipalOf(ctx *fasthttp.RequestCtx) domain.Principal {
	if ctx == nil {
		return domain.Principal{}
	}
	userID := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderUserID)))
	if userID == "" {
		return domain.Principal{}
	}
	return domain.Principal{
		UserID:   userID,
		Name:     string(ctx.Request.Header.Peek(HeaderUserName)),
		Username: string(ctx.Request.Header.Peek(HeaderUsername)),
		Role:     domain.ParseRole(string(ctx.Request.Header.Peek(HeaderUserRole))),
	}
}

// PrincipalFrom returns the principal stored by Attach.
func PrincipalFrom(ctx context.Context) domain.Principal {
	if ctx == nil {
		return domain.Principal{}
	}
	p, _ := ctx.Value(KeyPrincipal).(domain.Principal)
	return p
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
