package accounts

import (
	"net/http"

	"github.com/goliatone/go-router"
)

// RequireActorMiddleware resolves the request principal once and stores it
// in the request context for downstream handlers. Requests with no
// resolvable actor are rejected before the handler runs.
func RequireActorMiddleware(resolver ActorResolver) router.MiddlewareFunc {
	if resolver == nil {
		resolver = defaultActorResolver
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			actor, err := resolver(ctx)
			if err != nil {
				return ctx.Status(http.StatusUnauthorized).SendString("missing actor context")
			}

			ctx.SetContext(WithActorContext(ctx.Context(), actor))
			return next(ctx)
		}
	}
}

// RequireRoleMiddleware rejects requests whose actor role does not meet the
// minimum. Actors that arrive without a role pass through; the lifecycle
// endpoints still apply their own gates.
func RequireRoleMiddleware(resolver ActorResolver, minRole AccountRole) router.MiddlewareFunc {
	if resolver == nil {
		resolver = defaultActorResolver
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			actor, err := resolver(ctx)
			if err != nil {
				return ctx.Status(http.StatusUnauthorized).SendString("missing actor context")
			}

			if actor.Role != "" && !RoleAtLeast(actor.Role, minRole) {
				return ctx.Status(http.StatusForbidden).SendString("insufficient role")
			}

			return next(ctx)
		}
	}
}
