package accounts_test

import (
	"context"
	"database/sql"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// stubAccounts overrides only the methods the lifecycle manager touches;
// the embedded interface covers the rest of the repository surface.
type stubAccounts struct {
	repository.Repository[*accounts.Account]

	account *accounts.Account
	getErr  error

	deactivateApplied bool
	deactivateErr     error
	deactivateCalls   int

	reactivateApplied bool
	reactivateErr     error
	reactivateCalls   int

	holder    *accounts.Account
	holderErr error

	registered []*accounts.Account

	listed   []*accounts.Account
	listOpts accounts.ListOptions
}

func (s *stubAccounts) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*accounts.Account, error) {
	return s.GetByIDTx(ctx, nil, id, criteria...)
}

func (s *stubAccounts) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*accounts.Account, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.account, nil
}

func (s *stubAccounts) MarkDeactivatedTx(ctx context.Context, tx bun.IDB, account *accounts.Account, at time.Time) (bool, error) {
	s.deactivateCalls++
	if s.deactivateErr != nil {
		return false, s.deactivateErr
	}
	if s.deactivateApplied {
		account.Status = accounts.StatusDeactivated
		account.DeactivatedAt = &at
		account.Username = accounts.MangleIdentifier(at, account.OriginalUsername)
		account.Email = accounts.MangleIdentifier(at, account.OriginalEmail)
	}
	return s.deactivateApplied, nil
}

func (s *stubAccounts) MarkReactivatedTx(ctx context.Context, tx bun.IDB, account *accounts.Account, at time.Time) (bool, error) {
	s.reactivateCalls++
	if s.reactivateErr != nil {
		return false, s.reactivateErr
	}
	if s.reactivateApplied {
		account.Status = accounts.StatusActive
		account.DeactivatedAt = nil
		account.Username = account.OriginalUsername
		account.Email = account.OriginalEmail
	}
	return s.reactivateApplied, nil
}

func (s *stubAccounts) FindActiveHolderTx(ctx context.Context, tx bun.IDB, username, email string, exclude uuid.UUID) (*accounts.Account, error) {
	if s.holderErr != nil {
		return nil, s.holderErr
	}
	if s.holder == nil {
		return nil, repository.NewRecordNotFound()
	}
	return s.holder, nil
}

func (s *stubAccounts) Register(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	return s.RegisterTx(ctx, nil, account)
}

func (s *stubAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *accounts.Account) (*accounts.Account, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.EnsureStatus()
	if account.OriginalUsername == "" {
		account.OriginalUsername = account.Username
	}
	if account.OriginalEmail == "" {
		account.OriginalEmail = account.Email
	}
	s.registered = append(s.registered, account)
	return account, nil
}

func (s *stubAccounts) ListAccounts(ctx context.Context, opts accounts.ListOptions, criteria ...repository.SelectCriteria) ([]*accounts.Account, error) {
	return s.ListAccountsTx(ctx, nil, opts, criteria...)
}

func (s *stubAccounts) ListAccountsTx(ctx context.Context, tx bun.IDB, opts accounts.ListOptions, criteria ...repository.SelectCriteria) ([]*accounts.Account, error) {
	s.listOpts = opts
	if opts.IncludeDeactivated {
		return s.listed, nil
	}
	return accounts.FilterVisible(s.listed), nil
}

// stubAuditEntries records appended entries in memory.
type stubAuditEntries struct {
	entries   []*accounts.AuditEntry
	recordErr error
}

func (s *stubAuditEntries) Record(ctx context.Context, entry *accounts.AuditEntry) (*accounts.AuditEntry, error) {
	return s.RecordTx(ctx, nil, entry)
}

func (s *stubAuditEntries) RecordTx(ctx context.Context, tx bun.IDB, entry *accounts.AuditEntry) (*accounts.AuditEntry, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *stubAuditEntries) History(ctx context.Context, accountID uuid.UUID) ([]*accounts.AuditEntry, error) {
	return s.HistoryTx(ctx, nil, accountID)
}

func (s *stubAuditEntries) HistoryTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*accounts.AuditEntry, error) {
	var out []*accounts.AuditEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubAuditEntries) ListRecent(ctx context.Context, filter accounts.AuditFilter) ([]*accounts.AuditEntry, error) {
	return s.entries, nil
}

// stubRepoManager satisfies RepositoryManager without a database; RunInTx
// invokes the callback with a zero transaction the stubs ignore.
type stubRepoManager struct {
	accountsRepo accounts.Accounts
	auditRepo    accounts.AuditEntries
	txErr        error
}

func (s *stubRepoManager) Validate() error { return nil }
func (s *stubRepoManager) MustValidate()   {}

func (s *stubRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if s.txErr != nil {
		return s.txErr
	}
	return f(ctx, bun.Tx{})
}

func (s *stubRepoManager) Accounts() accounts.Accounts {
	return s.accountsRepo
}

func (s *stubRepoManager) AuditEntries() accounts.AuditEntries {
	return s.auditRepo
}

// capturingSink collects activity events emitted after commits.
type capturingSink struct {
	events []accounts.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt accounts.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

// stubLifecycle captures lifecycle calls for command and controller tests.
type stubLifecycle struct {
	result     *accounts.Result
	err        error
	lastActor  accounts.ActorRef
	lastID     uuid.UUID
	lastAction string
}

func (s *stubLifecycle) Deactivate(ctx context.Context, actor accounts.ActorRef, accountID uuid.UUID, opts ...accounts.TransitionOption) (*accounts.Result, error) {
	s.lastActor = actor
	s.lastID = accountID
	s.lastAction = accounts.AuditActionDeactivate
	return s.result, s.err
}

func (s *stubLifecycle) Reactivate(ctx context.Context, actor accounts.ActorRef, accountID uuid.UUID, opts ...accounts.TransitionOption) (*accounts.Result, error) {
	s.lastActor = actor
	s.lastID = accountID
	s.lastAction = accounts.AuditActionReactivate
	return s.result, s.err
}

func (s *stubLifecycle) CurrentStatus(account *accounts.Account) accounts.AccountStatus {
	if account == nil {
		return ""
	}
	account.EnsureStatus()
	return account.Status
}
