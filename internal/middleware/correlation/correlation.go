package correlation

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderKey is the inbound/outbound correlation header.
const HeaderKey = "X-Correlation-ID"

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	actorIPKey       contextKey = "actor_ip"
)

// Middleware propagates the caller's correlation id (or mints one) into the
// request context and response header, and stamps the caller's IP for the
// audit trail.
func Middleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			correlationID := c.Request().Header.Get(HeaderKey)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, correlationIDKey, correlationID)
			ctx = context.WithValue(ctx, actorIPKey, c.RealIP())
			c.SetRequest(c.Request().WithContext(ctx))

			c.Response().Header().Set(HeaderKey, correlationID)

			logger.Debug("Request correlated",
				zap.String("correlation_id", correlationID),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()))

			return next(c)
		}
	}
}

// FromContext returns the correlation id carried by ctx, or empty.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ActorIP returns the caller IP carried by ctx, or empty for background
// tasks.
func ActorIP(ctx context.Context) string {
	if ip, ok := ctx.Value(actorIPKey).(string); ok {
		return ip
	}
	return ""
}

// WithID returns a child context carrying the given correlation id. Used by
// background loops to tag their iterations.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}
