package accounts

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// ActorResolver extracts the authenticated principal the routing layer
// already validated. Authorization is that layer's responsibility; the
// controller only refuses requests that arrive with no principal at all.
type ActorResolver func(ctx router.Context) (ActorRef, error)

// LifecycleControllerRoutes holds the route templates.
type LifecycleControllerRoutes struct {
	Collection string
	Detail     string
	Restore    string
	History    string
}

// LifecycleController is the boundary surface between the request-routing
// layer and the lifecycle manager. It translates outcomes into responses
// and composes the visibility filter into every read path.
type LifecycleController struct {
	Debug         bool
	Logger        Logger
	Repo          RepositoryManager
	Lifecycle     LifecycleManager
	Routes        *LifecycleControllerRoutes
	ActorResolver ActorResolver
}

type LifecycleControllerOption func(*LifecycleController) *LifecycleController

func WithControllerLogger(logger Logger) LifecycleControllerOption {
	return func(c *LifecycleController) *LifecycleController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) LifecycleControllerOption {
	return func(c *LifecycleController) *LifecycleController {
		c.Repo = repo
		return c
	}
}

func WithControllerLifecycle(lifecycle LifecycleManager) LifecycleControllerOption {
	return func(c *LifecycleController) *LifecycleController {
		c.Lifecycle = lifecycle
		return c
	}
}

func WithControllerActorResolver(resolver ActorResolver) LifecycleControllerOption {
	return func(c *LifecycleController) *LifecycleController {
		if resolver != nil {
			c.ActorResolver = resolver
		}
		return c
	}
}

func NewLifecycleController(opts ...LifecycleControllerOption) *LifecycleController {
	c := &LifecycleController{
		Logger: defLogger{},
		Routes: &LifecycleControllerRoutes{
			Collection: "/accounts",
			Detail:     "/accounts/:id",
			Restore:    "/accounts/:id/restore",
			History:    "/accounts/:id/history",
		},
		ActorResolver: defaultActorResolver,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in lifecycle controller...")
	}

	if c.Lifecycle == nil {
		panic("Missing LifecycleManager in lifecycle controller...")
	}

	return c
}

// RegisterLifecycleRoutes wires the lifecycle API onto a router group.
func RegisterLifecycleRoutes(app RouteRegistrar, opts ...LifecycleControllerOption) *LifecycleController {
	controller := NewLifecycleController(opts...)

	app.Get(controller.Routes.Collection, controller.List)
	app.Get(controller.Routes.History, controller.History)
	app.Get(controller.Routes.Detail, controller.Show)
	app.Delete(controller.Routes.Detail, controller.Deactivate)
	app.Post(controller.Routes.Restore, controller.Restore)

	return controller
}

func defaultActorResolver(ctx router.Context) (ActorRef, error) {
	if raw := ctx.Locals("actor_id"); raw != nil {
		if id, ok := raw.(string); ok && id != "" {
			actor := ActorRef{ID: id, Type: "user"}
			if rawRole, ok := ctx.Locals("actor_role").(string); ok {
				if role, valid := ParseRole(rawRole); valid {
					actor.Role = role
				}
			}
			return actor, nil
		}
	}

	if actor, ok := ActorFromContext(ctx.Context()); ok {
		return actor, nil
	}

	return ActorRef{}, goerrors.New("missing actor", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized)
}

// List returns the account collection. The default path never includes
// deactivated rows; admins opt in with ?include_deactivated=true.
func (c *LifecycleController) List(ctx router.Context) error {
	opts := ListOptions{
		IncludeDeactivated: ctx.Query("include_deactivated") == "true",
		Search:             ctx.Query("search"),
	}

	records, err := c.Repo.Accounts().ListAccounts(ctx.Context(), opts)
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"accounts": records,
	})
}

// Show returns one account. An account hidden by the visibility filter is
// indistinguishable from a missing one.
func (c *LifecycleController) Show(ctx router.Context) error {
	id, err := ParseAccountID(ctx.Param("id", ""))
	if err != nil {
		return c.respondError(ctx, err)
	}

	record, err := c.Repo.Accounts().GetByID(ctx.Context(), id.String())
	if err != nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "account not found",
		})
	}

	if !Visible(record) && ctx.Query("include_deactivated") != "true" {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "account not found",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"account": record,
	})
}

// Deactivate handles DELETE on the detail route. AlreadyDeactivated is a
// success to the caller: the delete is idempotent by construction.
func (c *LifecycleController) Deactivate(ctx router.Context) error {
	actor, err := c.ActorResolver(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"outcome": string(OutcomeUnauthorized),
		})
	}

	if actor.Role != "" && !RoleCanDeactivate(actor.Role) {
		return ctx.JSON(http.StatusForbidden, map[string]string{
			"error": "role may not deactivate accounts",
		})
	}

	id, err := ParseAccountID(ctx.Param("id", ""))
	if err != nil {
		return c.respondError(ctx, err)
	}

	payload := &lifecyclePayload{}
	// DELETE bodies are optional; a malformed one is still a client error.
	if bindErr := ctx.Bind(payload); bindErr == nil {
		if err := payload.Validate(); err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
	}

	result, err := c.Lifecycle.Deactivate(ctx.Context(), actor, id, payload.transitionOptions()...)
	if err != nil && !result.Ok() {
		return c.respondError(ctx, err)
	}

	if c.Debug {
		c.Logger.Debug("deactivate account=%s outcome=%s", id, result.Outcome)
	}

	return ctx.Status(http.StatusNoContent).SendString("")
}

// Restore handles the admin-only reactivation route.
func (c *LifecycleController) Restore(ctx router.Context) error {
	actor, err := c.ActorResolver(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"outcome": string(OutcomeUnauthorized),
		})
	}

	if actor.Role != "" && !RoleCanReactivate(actor.Role) {
		return ctx.JSON(http.StatusForbidden, map[string]string{
			"error": "restore requires an admin role",
		})
	}

	id, err := ParseAccountID(ctx.Param("id", ""))
	if err != nil {
		return c.respondError(ctx, err)
	}

	payload := &lifecyclePayload{}
	if bindErr := ctx.Bind(payload); bindErr == nil {
		if err := payload.Validate(); err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
	}

	result, err := c.Lifecycle.Reactivate(ctx.Context(), actor, id, payload.transitionOptions()...)
	if err != nil {
		if IsIdentifierConflict(err) {
			return ctx.JSON(http.StatusConflict, map[string]string{
				"error":   "identifier held by another active account",
				"outcome": string(OutcomeIdentifierConflict),
			})
		}
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

// History returns the audit trail for one account, oldest first.
func (c *LifecycleController) History(ctx router.Context) error {
	id, err := ParseAccountID(ctx.Param("id", ""))
	if err != nil {
		return c.respondError(ctx, err)
	}

	entries, err := c.Repo.AuditEntries().History(ctx.Context(), id)
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"history": entries,
	})
}

func (c *LifecycleController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		code := richErr.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		return ctx.JSON(code, map[string]string{
			"error": richErr.Error(),
		})
	}

	c.Logger.Error("lifecycle controller error: %v", err)
	return ctx.JSON(http.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}

type lifecyclePayload struct {
	Reason string `json:"reason"`
}

func (p lifecyclePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Reason, validation.Length(0, 500)),
	)
}

func (p *lifecyclePayload) transitionOptions() []TransitionOption {
	if p == nil || p.Reason == "" {
		return nil
	}
	return []TransitionOption{WithTransitionReason(p.Reason)}
}

// StatusForOutcome maps lifecycle outcomes onto HTTP status codes. Exposed
// so alternate transports keep the same contract.
func StatusForOutcome(outcome Outcome) int {
	switch outcome {
	case OutcomeSuccess, OutcomeAlreadyActive:
		return http.StatusOK
	case OutcomeAlreadyDeactivated:
		return http.StatusNoContent
	case OutcomeNotFound:
		return http.StatusNotFound
	case OutcomeIdentifierConflict:
		return http.StatusConflict
	case OutcomeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

