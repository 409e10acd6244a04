package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
	ActorID      string `json:"actor_id"`
	UseHashid    bool
	OnResponse   func(*Account)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required),
	)
}

var _ command.Message = RegisterAccountMessage{}

// RegisterAccountHandler creates accounts in the active state and appends
// the register audit entry in the same transaction. Password hashing is a
// collaborator concern; the handler stores the opaque hash it is given.
type RegisterAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

var _ command.Commander[RegisterAccountMessage] = (*RegisterAccountHandler)(nil)

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account.Email = event.Email
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Role = event.Role
		account.PasswordHash = event.PasswordHash
		account.Username = event.Username
		if account.Username == "" {
			account.Username = usernameFromEmail(event.Email)
		}
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		var err error
		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		entry := &AuditEntry{
			AccountID: account.ID,
			Action:    AuditActionRegister,
			ActorID:   event.ActorID,
			NewStatus: StatusActive,
		}

		if _, err := h.repo.AuditEntries().RecordTx(ctx, tx, entry); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	if err := h.activity.Record(ctx, ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		Actor:     ActorRef{ID: event.ActorID},
		AccountID: account.ID.String(),
		ToStatus:  StatusActive,
	}); err != nil {
		h.logger.Warn("registration activity sink error: %v", err)
	}

	return nil
}
