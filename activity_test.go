package accounts_test

import (
	"context"
	"errors"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivitySinkFunc(t *testing.T) {
	var seen accounts.ActivityEvent
	sink := accounts.ActivitySinkFunc(func(ctx context.Context, event accounts.ActivityEvent) error {
		seen = event
		return nil
	})

	err := sink.Record(context.Background(), accounts.ActivityEvent{
		EventType: accounts.ActivityEventAccountDeactivated,
		AccountID: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, accounts.ActivityEventAccountDeactivated, seen.EventType)
	assert.Equal(t, "abc", seen.AccountID)
}

func TestActivitySinkFuncNil(t *testing.T) {
	var sink accounts.ActivitySinkFunc
	assert.NoError(t, sink.Record(context.Background(), accounts.ActivityEvent{}))
}

func TestActivitySinkErrorsDoNotPropagate(t *testing.T) {
	repo := &stubAccounts{account: activeAccount(uuid.New()), deactivateApplied: true}
	audit := &stubAuditEntries{}

	manager := accounts.NewLifecycleManager(
		&stubRepoManager{accountsRepo: repo, auditRepo: audit},
		accounts.WithManagerActivitySink(accounts.ActivitySinkFunc(func(context.Context, accounts.ActivityEvent) error {
			return errors.New("sink unavailable")
		})),
	)

	result, err := manager.Deactivate(context.Background(), accounts.ActorRef{ID: "svc"}, repo.account.ID)

	// Telemetry is best effort: the transition stays committed.
	require.NoError(t, err)
	assert.True(t, result.Applied())
	assert.Len(t, audit.entries, 1)
}
