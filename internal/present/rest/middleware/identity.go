package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/service"
)

var tracer = otel.Tracer("identity")

type IdentityMiddleware struct {
	identity *service.IdentityService
}

func NewIdentityMiddleware(identity *service.IdentityService) *IdentityMiddleware {
	return &IdentityMiddleware{identity: identity}
}

// IdentifyAvatar resolves the avatar of the request. A value already placed
// in the context by an upstream provider wins over the X-Avatar-Id header,
// which wins over the bearer token.
func (s *IdentityMiddleware) IdentifyAvatar(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Identity.Middleware.IdentifyAvatar")
		defer span.End()

		if id, ok := ctx.Value(domain.AvatarIdCtxKey).(string); ok && id != "" {
			ctx = context.WithValue(ctx, domain.AvatarSourceCtxKey, domain.AvatarSourceContext)
			span.SetAttributes(attribute.String("AvatarId", id))
			goto done
		}

		if id := strings.TrimSpace(c.Request().Header.Get(domain.AvatarIdHeader)); id != "" {
			ctx = context.WithValue(ctx, domain.AvatarIdCtxKey, id)
			ctx = context.WithValue(ctx, domain.AvatarSourceCtxKey, domain.AvatarSourceHeader)
			span.SetAttributes(attribute.String("AvatarId", id))
			goto done
		}

		if authHeader := c.Request().Header.Get("authorization"); authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto done
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto done
			}

			result, err := s.identity.AvatarFromToken(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "IdentityMiddleware.IdentifyAvatar: s.identity.AvatarFromToken failed"))
				goto done
			}

			ctx = context.WithValue(ctx, domain.AvatarIdCtxKey, result.AvatarID)
			ctx = context.WithValue(ctx, domain.AvatarSourceCtxKey, domain.AvatarSourceToken)
			span.SetAttributes(attribute.String("AvatarId", result.AvatarID))
		}

	done:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
