package middleware

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/api/transport"
	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
)

// AuthConfig controls bearer verification.
type AuthConfig struct {
	Secret string
	Issuer string
	// Optional lists paths that serve anonymous callers when no token is sent.
	Optional []string
	// QueryToken lists paths that may carry the token in ?token= (calendar clients cannot set headers).
	QueryToken []string
}

// JWTAuth verifies HMAC-signed bearer tokens and maps the user_id, role, name
// and username claims onto identity headers read by httpcontext.
func JWTAuth(cfg AuthConfig, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	optional := toSet(cfg.Optional)
	queryToken := toSet(cfg.QueryToken)

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stripIdentity(ctx)
			path := string(ctx.Path())

			tokenString := extractToken(ctx)
			if tokenString == "" && queryToken[path] {
				tokenString = string(ctx.QueryArgs().Peek("token"))
			}
			if tokenString == "" {
				if optional[path] {
					next(ctx)
					return
				}
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims, err := parseClaims(tokenString, cfg)
			if err != nil {
				logger.Warn("invalid jwt token", zap.String("path", path), zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}

			userID, _ := claims["user_id"].(string)
			if userID == "" {
				userID, _ = claims["sub"].(string)
			}
			if userID == "" {
				unauthorized(ctx, "token carries no user")
				return
			}
			ctx.Request.Header.Set(httpcontext.HeaderUserID, userID)
			if role, ok := claims["role"].(string); ok {
				ctx.Request.Header.Set(httpcontext.HeaderUserRole, string(domain.ParseRole(role)))
			}
			if name, ok := claims["name"].(string); ok {
				ctx.Request.Header.Set(httpcontext.HeaderUserName, name)
			}
			if username, ok := claims["username"].(string); ok {
				ctx.Request.Header.Set(httpcontext.HeaderUsername, username)
			}

			next(ctx)
		}
	}
}

func parseClaims(tokenString string, cfg AuthConfig) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid claims")
	}
	if cfg.Issuer != "" && !claims.VerifyIssuer(cfg.Issuer, true) {
		return nil, fmt.Errorf("unexpected issuer")
	}
	return claims, nil
}

// stripIdentity drops client-supplied identity headers before verification.
func stripIdentity(ctx *fasthttp.RequestCtx) {
	ctx.Request.Header.Del(httpcontext.HeaderUserID)
	ctx.Request.Header.Del(httpcontext.HeaderUserRole)
	ctx.Request.Header.Del(httpcontext.HeaderUserName)
	ctx.Request.Header.Del(httpcontext.HeaderUsername)
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), transport.ErrorBody{Message: message}, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
