package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultAuditListLimit caps ListRecent pages, matching the admin surface
// of the audit trail.
const DefaultAuditListLimit = 100

// AuditFilter narrows ListRecent results.
type AuditFilter struct {
	AccountID uuid.UUID
	ActorID   string
	Action    AuditAction
	Limit     int
}

// AuditEntries is the append only recorder for lifecycle transitions. There
// is deliberately no update or delete surface: past entries are immutable.
// RecordTx is meant to run inside the same transaction as the state change
// it describes, so a transition that is not audited is never visible.
type AuditEntries interface {
	Record(ctx context.Context, entry *AuditEntry) (*AuditEntry, error)
	RecordTx(ctx context.Context, tx bun.IDB, entry *AuditEntry) (*AuditEntry, error)

	History(ctx context.Context, accountID uuid.UUID) ([]*AuditEntry, error)
	HistoryTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*AuditEntry, error)

	ListRecent(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

type auditEntries struct {
	db *bun.DB
}

var _ AuditEntries = (*auditEntries)(nil)

func NewAuditEntriesRepository(db *bun.DB) AuditEntries {
	return &auditEntries{db: db}
}

func (r *auditEntries) Record(ctx context.Context, entry *AuditEntry) (*AuditEntry, error) {
	return r.RecordTx(ctx, r.db, entry)
}

func (r *auditEntries) RecordTx(ctx context.Context, tx bun.IDB, entry *AuditEntry) (*AuditEntry, error) {
	if entry == nil {
		return nil, goerrors.New("audit entry is nil", goerrors.CategoryValidation)
	}

	if entry.AccountID == uuid.Nil {
		return nil, goerrors.New("audit entry requires an account id", goerrors.CategoryValidation)
	}

	if strings.TrimSpace(entry.Action) == "" {
		return nil, goerrors.New("audit entry requires an action", goerrors.CategoryValidation)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.ActorID == "" {
		entry.ActorID = "system"
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not append audit entry")
	}

	return entry, nil
}

// History returns every entry for an account ordered by timestamp
// ascending, consistent with the order its transitions were observed.
func (r *auditEntries) History(ctx context.Context, accountID uuid.UUID) ([]*AuditEntry, error) {
	return r.HistoryTx(ctx, r.db, accountID)
}

func (r *auditEntries) HistoryTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	err := tx.NewSelect().
		Model(&entries).
		Where("?TableAlias.account_id = ?", accountID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*AuditEntry{}, nil
		}
		return nil, err
	}

	return entries, nil
}

// ListRecent returns the newest entries first, optionally narrowed by
// account, actor, or action, capped at DefaultAuditListLimit.
func (r *auditEntries) ListRecent(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > DefaultAuditListLimit {
		limit = DefaultAuditListLimit
	}

	var entries []*AuditEntry
	q := r.db.NewSelect().Model(&entries)

	if filter.AccountID != uuid.Nil {
		q.Where("?TableAlias.account_id = ?", filter.AccountID)
	}

	if filter.ActorID != "" {
		q.Where("?TableAlias.actor_id = ?", filter.ActorID)
	}

	if filter.Action != "" {
		q.Where("?TableAlias.action = ?", filter.Action)
	}

	err := q.Order("created_at DESC").Limit(limit).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*AuditEntry{}, nil
		}
		return nil, err
	}

	return entries, nil
}
