package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type DeactivateAccountMessage struct {
	AccountID  string `json:"account_id" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Target account id"`
	ActorID    string `json:"actor_id" doc:"Authenticated principal performing the delete"`
	Reason     string `json:"reason,omitempty"`
	OnResponse func(*Result)
}

func (e DeactivateAccountMessage) Type() string { return "account.deactivate" }

func (e DeactivateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.Required),
		validation.Field(&e.ActorID, validation.Required),
	)
}

var _ command.Message = DeactivateAccountMessage{}

// DeactivateAccountHandler drives the soft delete through the lifecycle
// manager. Repeated messages for the same account are safe: the manager
// resolves them to AlreadyDeactivated without writing anything.
type DeactivateAccountHandler struct {
	lifecycle LifecycleManager
	logger    Logger
}

var _ command.Commander[DeactivateAccountMessage] = (*DeactivateAccountHandler)(nil)

// NewDeactivateAccountHandler creates a handler with sane defaults.
func NewDeactivateAccountHandler(lifecycle LifecycleManager) *DeactivateAccountHandler {
	return &DeactivateAccountHandler{
		lifecycle: lifecycle,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *DeactivateAccountHandler) WithLogger(logger Logger) *DeactivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeactivateAccountHandler) Execute(ctx context.Context, event DeactivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deactivation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeactivateAccountHandler) execute(ctx context.Context, event DeactivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	accountID, err := ParseAccountID(event.AccountID)
	if err != nil {
		return err
	}

	var opts []TransitionOption
	if event.Reason != "" {
		opts = append(opts, WithTransitionReason(event.Reason))
	}

	result, err := h.lifecycle.Deactivate(ctx, ActorRef{ID: event.ActorID}, accountID, opts...)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}
