package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type ReactivateAccountMessage struct {
	AccountID  string `json:"account_id" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Target account id"`
	ActorID    string `json:"actor_id" doc:"Admin principal performing the restore"`
	Reason     string `json:"reason,omitempty"`
	OnResponse func(*Result)
}

func (e ReactivateAccountMessage) Type() string { return "account.reactivate" }

func (e ReactivateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.AccountID, validation.Required),
		validation.Field(&e.ActorID, validation.Required),
	)
}

var _ command.Message = ReactivateAccountMessage{}

// ReactivateAccountHandler drives the restore through the lifecycle
// manager. An IdentifierConflict is surfaced to the caller untouched: the
// resolution (renaming, deleting the squatter) is a manual decision.
type ReactivateAccountHandler struct {
	lifecycle LifecycleManager
	logger    Logger
}

var _ command.Commander[ReactivateAccountMessage] = (*ReactivateAccountHandler)(nil)

// NewReactivateAccountHandler creates a handler with sane defaults.
func NewReactivateAccountHandler(lifecycle LifecycleManager) *ReactivateAccountHandler {
	return &ReactivateAccountHandler{
		lifecycle: lifecycle,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *ReactivateAccountHandler) WithLogger(logger Logger) *ReactivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ReactivateAccountHandler) Execute(ctx context.Context, event ReactivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account reactivation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ReactivateAccountHandler) execute(ctx context.Context, event ReactivateAccountMessage) error {
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

	result, err := h.lifecycle.Reactivate(ctx, ActorRef{ID: event.ActorID}, accountID, opts...)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}

	return nil
}
