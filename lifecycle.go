package accounts

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActorRef identifies who/what triggered a transition. Callers always pass
// it explicitly; the manager carries no ambient request-scoped actor.
// Role is optional: when the routing layer knows it, transport adapters use
// it for coarse gating before reaching the manager.
type ActorRef struct {
	ID   string
	Type string
	Role AccountRole
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor   ActorRef
	Account *Account
	From    AccountStatus
	To      AccountStatus
	Meta    TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single lifecycle call.
type TransitionOption func(*transitionOptions)

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// LifecycleManager is the sole authority permitted to change an account's
// status. Every operation is one atomic unit: the state flip and its audit
// entry commit together or not at all.
type LifecycleManager interface {
	Deactivate(ctx context.Context, actor ActorRef, accountID uuid.UUID, opts ...TransitionOption) (*Result, error)
	Reactivate(ctx context.Context, actor ActorRef, accountID uuid.UUID, opts ...TransitionOption) (*Result, error)
	CurrentStatus(account *Account) AccountStatus
}

// ManagerOption customizes lifecycle manager construction.
type ManagerOption func(*lifecycleManager)

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *lifecycleManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerActivitySink sets the ActivitySink notified after commits.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(m *lifecycleManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithManagerHookErrorHandler overrides how hook failures are propagated.
// Provide a handler to convert hook errors into domain-specific responses,
// otherwise the default handler panics with guidance for developers.
func WithManagerHookErrorHandler(handler HookErrorHandler) ManagerOption {
	return func(m *lifecycleManager) {
		if handler != nil {
			m.hookErrorHandler = handler
		}
	}
}

// WithManagerLogger overrides the logger used for sink failures.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *lifecycleManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the transaction commits.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// WithDeactivationTime overrides the timestamp recorded when entering the
// deactivated state. The mangled identifiers derive from it.
func WithDeactivationTime(t time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.deactivationTime = &t
	}
}

// NewLifecycleManager returns the default implementation backed by the
// provided repository manager.
func NewLifecycleManager(repo RepositoryManager, opts ...ManagerOption) LifecycleManager {
	m := &lifecycleManager{
		repo:         repo,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
			return defaultHookErrorHandler(ctx, phase, err, tc)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

type lifecycleManager struct {
	repo             RepositoryManager
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata         TransitionMetadata
	beforeHooks      []TransitionHook
	afterHooks       []TransitionHook
	deactivationTime *time.Time
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

// Deactivate soft deletes an account. Repeated calls are benign: the second
// caller observes AlreadyDeactivated and nothing is written or logged. A
// lost race on the conditional update resolves the same way, so exactly one
// of two concurrent requests transitions state and appends audit.
func (m *lifecycleManager) Deactivate(ctx context.Context, actor ActorRef, accountID uuid.UUID, opts ...TransitionOption) (*Result, error) {
	options := m.buildTransitionOptions(opts...)

	var result *Result
	var tcData TransitionContext

	err := m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := m.fetchAccountTx(ctx, tx, accountID)
		if err != nil {
			if IsAccountNotFound(err) {
				result = &Result{Outcome: OutcomeNotFound}
			}
			return err
		}

		if account.IsDeactivated() {
			result = &Result{Outcome: OutcomeAlreadyDeactivated, Account: account}
			return nil
		}

		at := m.now()
		if options.deactivationTime != nil {
			at = *options.deactivationTime
		}

		tcData = TransitionContext{
			Actor:   actor,
			Account: account,
			From:    StatusActive,
			To:      StatusDeactivated,
			Meta:    options.cloneMetadata(),
		}

		if err := m.runHooks(ctx, options.beforeHooks, tcData, HookPhaseBefore); err != nil {
			return err
		}

		applied, err := m.repo.Accounts().MarkDeactivatedTx(ctx, tx, account, at)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not deactivate account")
		}

		if !applied {
			// A concurrent caller won the compare-and-set.
			result = &Result{Outcome: OutcomeAlreadyDeactivated, Account: account}
			return nil
		}

		entry := &AuditEntry{
			AccountID:      account.ID,
			Action:         AuditActionDeactivate,
			ActorID:        actor.ID,
			PreviousStatus: StatusActive,
			NewStatus:      StatusDeactivated,
			Reason:         options.metadata.Reason,
			Metadata:       options.metadata.Metadata,
			CreatedAt:      at,
		}

		if _, err := m.repo.AuditEntries().RecordTx(ctx, tx, entry); err != nil {
			return err
		}

		result = &Result{Outcome: OutcomeSuccess, Account: account}
		return nil
	})

	if err != nil {
		return result, m.normalizeTxError(err, accountID)
	}

	if !result.Applied() {
		return result, nil
	}

	if err := m.runHooks(ctx, options.afterHooks, tcData, HookPhaseAfter); err != nil {
		return result, err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountDeactivated,
		Actor:      actor,
		AccountID:  accountID.String(),
		FromStatus: StatusActive,
		ToStatus:   StatusDeactivated,
		Metadata:   m.transitionMetadata(tcData.Meta),
	})

	return result, nil
}

// Reactivate restores a soft deleted account, putting the original
// identifiers back byte for byte. The conflict check against currently
// active holders runs inside the same transaction as the flip, so no other
// account can claim the identifier between check and commit.
func (m *lifecycleManager) Reactivate(ctx context.Context, actor ActorRef, accountID uuid.UUID, opts ...TransitionOption) (*Result, error) {
	options := m.buildTransitionOptions(opts...)

	var result *Result
	var tcData TransitionContext

	err := m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := m.fetchAccountTx(ctx, tx, accountID)
		if err != nil {
			if IsAccountNotFound(err) {
				result = &Result{Outcome: OutcomeNotFound}
			}
			return err
		}

		if account.IsActive() {
			result = &Result{Outcome: OutcomeAlreadyActive, Account: account}
			return nil
		}

		holder, err := m.repo.Accounts().FindActiveHolderTx(ctx, tx, account.OriginalUsername, account.OriginalEmail, account.ID)
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not check identifier availability")
		}

		if holder != nil {
			result = &Result{Outcome: OutcomeIdentifierConflict, Account: account}
			return ErrIdentifierConflict.WithMetadata(map[string]any{
				"account_id": account.ID.String(),
				"holder_id":  holder.ID.String(),
			})
		}

		tcData = TransitionContext{
			Actor:   actor,
			Account: account,
			From:    StatusDeactivated,
			To:      StatusActive,
			Meta:    options.cloneMetadata(),
		}

		if err := m.runHooks(ctx, options.beforeHooks, tcData, HookPhaseBefore); err != nil {
			return err
		}

		at := m.now()
		applied, err := m.repo.Accounts().MarkReactivatedTx(ctx, tx, account, at)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not reactivate account")
		}

		if !applied {
			result = &Result{Outcome: OutcomeAlreadyActive, Account: account}
			return nil
		}

		entry := &AuditEntry{
			AccountID:      account.ID,
			Action:         AuditActionReactivate,
			ActorID:        actor.ID,
			PreviousStatus: StatusDeactivated,
			NewStatus:      StatusActive,
			Reason:         options.metadata.Reason,
			Metadata:       options.metadata.Metadata,
			CreatedAt:      at,
		}

		if _, err := m.repo.AuditEntries().RecordTx(ctx, tx, entry); err != nil {
			return err
		}

		result = &Result{Outcome: OutcomeSuccess, Account: account}
		return nil
	})

	if err != nil {
		return result, m.normalizeTxError(err, accountID)
	}

	if !result.Applied() {
		return result, nil
	}

	if err := m.runHooks(ctx, options.afterHooks, tcData, HookPhaseAfter); err != nil {
		return result, err
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventAccountReactivated,
		Actor:      actor,
		AccountID:  accountID.String(),
		FromStatus: StatusDeactivated,
		ToStatus:   StatusActive,
		Metadata:   m.transitionMetadata(tcData.Meta),
	})

	return result, nil
}

func (m *lifecycleManager) CurrentStatus(account *Account) AccountStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}

func (m *lifecycleManager) fetchAccountTx(ctx context.Context, tx bun.Tx, accountID uuid.UUID) (*Account, error) {
	account, err := m.repo.Accounts().GetByIDTx(ctx, tx, accountID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": accountID.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not load account")
	}

	account.EnsureStatus()
	return account, nil
}

func (m *lifecycleManager) normalizeTxError(err error, accountID uuid.UUID) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryOperation, "lifecycle transaction failed").
		WithMetadata(map[string]any{
			"account_id": accountID.String(),
		})
}

func (m *lifecycleManager) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if m.hookErrorHandler == nil {
				return err
			}
			return m.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (m *lifecycleManager) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	panic(fmt.Sprintf(
		"go-accounts: %s transition hook failed: %v\nAccountID: %s from=%s to=%s reason=%s\nProvide accounts.WithManagerHookErrorHandler to customize error handling in production.",
		phase,
		err,
		tc.Account.ID,
		tc.From,
		tc.To,
		tc.Meta.Reason,
	))
}

func (m *lifecycleManager) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeActivitySink(m.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("lifecycle activity sink error: %v", err)
	}
}

func (m *lifecycleManager) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
