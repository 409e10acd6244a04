package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateAccounts = `CREATE TABLE accounts (
    id TEXT NOT NULL PRIMARY KEY,
    account_role TEXT NOT NULL,
    first_name TEXT,
    last_name TEXT,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    original_username TEXT NOT NULL,
    original_email TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    password_hash TEXT,
    is_email_verified BOOLEAN DEFAULT FALSE,
    metadata TEXT,
    deactivated_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateAccountAudit = `CREATE TABLE account_audit (
    id TEXT NOT NULL PRIMARY KEY,
    account_id TEXT NOT NULL,
    action TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    previous_status TEXT,
    new_status TEXT NOT NULL,
    reason TEXT,
    metadata TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
)

func setupLifecycleStack(t *testing.T, opts ...accounts.ManagerOption) (accounts.RepositoryManager, accounts.LifecycleManager, func()) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateAccounts)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateAccountAudit)
	require.NoError(t, err)

	repo := accounts.NewRepositoryManager(bunDB)
	repo.MustValidate()

	manager := accounts.NewLifecycleManager(repo, opts...)

	cleanup := func() {
		_ = bunDB.Close()
		_ = sqldb.Close()
	}

	return repo, manager, cleanup
}

func registerAccount(t *testing.T, repo accounts.RepositoryManager, username, email string) *accounts.Account {
	t.Helper()

	account, err := repo.Accounts().Register(context.Background(), &accounts.Account{
		Username: username,
		Email:    email,
		Role:     accounts.RoleMember,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, account.ID)
	return account
}

func TestDeactivateManglesIdentifiers(t *testing.T) {
	frozen := time.Unix(1000, 0)
	repo, manager, cleanup := setupLifecycleStack(t,
		accounts.WithManagerClock(func() time.Time { return frozen }),
	)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")

	result, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID,
		accounts.WithTransitionReason("account closure request"))
	require.NoError(t, err)
	require.True(t, result.Applied())

	stored, err := repo.Accounts().GetByID(ctx, alice.ID.String())
	require.NoError(t, err)

	assert.Equal(t, accounts.StatusDeactivated, stored.Status)
	assert.Equal(t, "deleted_1000_alice", stored.Username)
	assert.Equal(t, "deleted_1000_alice@example.com", stored.Email)
	assert.Equal(t, "alice", stored.OriginalUsername)
	assert.Equal(t, "alice@example.com", stored.OriginalEmail)
	require.NotNil(t, stored.DeactivatedAt)

	history, err := repo.AuditEntries().History(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, accounts.AuditActionDeactivate, history[0].Action)
	assert.Equal(t, "admin-1", history[0].ActorID)
	assert.Equal(t, accounts.StatusActive, history[0].PreviousStatus)
	assert.Equal(t, accounts.StatusDeactivated, history[0].NewStatus)
	assert.Equal(t, "account closure request", history[0].Reason)
}

func TestDeactivatedAccountsAreInvisible(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")
	registerAccount(t, repo, "bob", "bob@example.com")

	_, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)

	visible, err := repo.Accounts().ListAccounts(ctx, accounts.ListOptions{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "bob", visible[0].Username)

	all, err := repo.Accounts().ListAccounts(ctx, accounts.ListOptions{IncludeDeactivated: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// The generic repository surface stays promoted alongside the
	// visibility-aware listing. Criteria compose the same way.
	generic, total, err := repo.Accounts().List(ctx, accounts.VisibleOnly())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, generic, 1)
	assert.Equal(t, "bob", generic[0].Username)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")

	first, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.OutcomeSuccess, first.Outcome)

	second, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-2"}, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.OutcomeAlreadyDeactivated, second.Outcome)
	assert.True(t, second.Ok())

	history, err := repo.AuditEntries().History(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReactivateRestoresOriginalIdentifiers(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")

	_, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)

	result, err := manager.Reactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)
	require.True(t, result.Applied())

	stored, err := repo.Accounts().GetByID(ctx, alice.ID.String())
	require.NoError(t, err)

	assert.Equal(t, accounts.StatusActive, stored.Status)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Nil(t, stored.DeactivatedAt)

	history, err := repo.AuditEntries().History(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, accounts.AuditActionDeactivate, history[0].Action)
	assert.Equal(t, accounts.AuditActionReactivate, history[1].Action)
}

func TestReactivateBlockedByActiveHolder(t *testing.T) {
	// Each tick is a distinct second so successive deactivations of the
	// same identifier never mangle to the same unique value.
	current := time.Unix(1000, 0)
	repo, manager, cleanup := setupLifecycleStack(t,
		accounts.WithManagerClock(func() time.Time {
			current = current.Add(time.Minute)
			return current
		}),
	)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")

	_, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)

	// The deactivation freed the identifiers, so a new signup can claim them.
	squatter := registerAccount(t, repo, "alice", "alice@example.com")

	result, err := manager.Reactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.Error(t, err)
	assert.True(t, accounts.IsIdentifierConflict(err))
	require.NotNil(t, result)
	assert.Equal(t, accounts.OutcomeIdentifierConflict, result.Outcome)

	// The failed restore mutates nothing: alice stays deactivated, the
	// squatter keeps the identifiers, and no audit entry is appended.
	stale, err := repo.Accounts().GetByID(ctx, alice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusDeactivated, stale.Status)

	holder, err := repo.Accounts().GetByID(ctx, squatter.ID.String())
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusActive, holder.Status)
	assert.Equal(t, "alice", holder.Username)

	history, err := repo.AuditEntries().History(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Once the squatter releases them the restore goes through.
	_, err = manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, squatter.ID)
	require.NoError(t, err)

	restored, err := manager.Reactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)
	assert.True(t, restored.Applied())
	assert.Equal(t, "alice", restored.Account.Username)
}

func TestReactivateAlreadyActiveIsNoop(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")

	result, err := manager.Reactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.OutcomeAlreadyActive, result.Outcome)

	history, err := repo.AuditEntries().History(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLifecycleNotFound(t *testing.T) {
	_, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	_, err := manager.Deactivate(context.Background(), accounts.ActorRef{ID: "admin-1"}, uuid.New())
	require.Error(t, err)
	assert.True(t, accounts.IsAccountNotFound(err))

	_, err = manager.Reactivate(context.Background(), accounts.ActorRef{ID: "admin-1"}, uuid.New())
	require.Error(t, err)
	assert.True(t, accounts.IsAccountNotFound(err))
}

func TestConcurrentDeactivationAppliesOnce(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")

	const callers = 4
	results := make([]*accounts.Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
		}(i)
	}
	wg.Wait()

	applied := 0
	for i, result := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, result)
		assert.True(t, result.Ok())
		if result.Applied() {
			applied++
		}
	}
	assert.Equal(t, 1, applied, "exactly one caller should win the transition")

	history, err := repo.AuditEntries().History(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRegisterHandlerEndToEnd(t *testing.T) {
	repo, _, cleanup := setupLifecycleStack(t)
	defer cleanup()

	sink := &capturingSink{}
	handler := accounts.NewRegisterAccountHandler(repo).WithActivitySink(sink)

	var created *accounts.Account
	err := handler.Execute(context.Background(), accounts.RegisterAccountMessage{
		FirstName: "Alice",
		Email:     "alice@example.com",
		ActorID:   "admin-1",
		OnResponse: func(a *accounts.Account) {
			created = a
		},
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, accounts.RoleGuest, created.Role)

	history, err := repo.AuditEntries().History(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, accounts.AuditActionRegister, history[0].Action)

	require.Len(t, sink.events, 1)
	assert.Equal(t, accounts.ActivityEventAccountRegistered, sink.events[0].EventType)
}

func TestDeactivateHandlerEndToEnd(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	alice := registerAccount(t, repo, "alice", "alice@example.com")

	handler := accounts.NewDeactivateAccountHandler(manager)

	var got *accounts.Result
	err := handler.Execute(context.Background(), accounts.DeactivateAccountMessage{
		AccountID: alice.ID.String(),
		ActorID:   "admin-1",
		Reason:    "gdpr erasure request",
		OnResponse: func(r *accounts.Result) {
			got = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Applied())

	history, err := repo.AuditEntries().History(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "gdpr erasure request", history[0].Reason)
}

func TestAuditListRecent(t *testing.T) {
	repo, manager, cleanup := setupLifecycleStack(t)
	defer cleanup()

	ctx := context.Background()
	alice := registerAccount(t, repo, "alice", "alice@example.com")
	bob := registerAccount(t, repo, "bob", "bob@example.com")

	_, err := manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-1"}, alice.ID)
	require.NoError(t, err)
	_, err = manager.Deactivate(ctx, accounts.ActorRef{ID: "admin-2"}, bob.ID)
	require.NoError(t, err)

	entries, err := repo.AuditEntries().ListRecent(ctx, accounts.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	byActor, err := repo.AuditEntries().ListRecent(ctx, accounts.AuditFilter{ActorID: "admin-2"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, bob.ID, byActor[0].AccountID)

	byAccount, err := repo.AuditEntries().ListRecent(ctx, accounts.AuditFilter{AccountID: alice.ID})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
}
