package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ListOptions controls the account listing read path.
type ListOptions struct {
	// IncludeDeactivated bypasses the default visibility filter. Absent an
	// explicit request the default listing never observes deactivated rows.
	IncludeDeactivated bool
	// Search matches against email, username, first and last name.
	Search string
	// Limit caps the page size; 0 means no cap.
	Limit int
}

// Accounts is the identity store. Lifecycle writes (MarkDeactivatedTx,
// MarkReactivatedTx) are compare-and-set conditional updates meant to be
// driven only by the LifecycleManager inside its transaction.
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error)

	// ListAccounts is the visibility-aware listing read path. The generic
	// List promoted from repository.Repository stays untouched; overloading
	// it would collide with the embedded signature.
	ListAccounts(ctx context.Context, opts ListOptions, criteria ...repository.SelectCriteria) ([]*Account, error)
	ListAccountsTx(ctx context.Context, tx bun.IDB, opts ListOptions, criteria ...repository.SelectCriteria) ([]*Account, error)

	FindActiveHolderTx(ctx context.Context, tx bun.IDB, username, email string, exclude uuid.UUID) (*Account, error)

	MarkDeactivatedTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) (bool, error)
	MarkReactivatedTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) (bool, error)
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accountsRepo) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	return a.CreateTx(ctx, tx, account)
}

func (a *accountsRepo) Create(ctx context.Context, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *accountsRepo) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *accountsRepo) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *accountsRepo) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Account, error) {
	options := resolveAccountIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Account{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *accountsRepo) ListAccounts(ctx context.Context, opts ListOptions, criteria ...repository.SelectCriteria) ([]*Account, error) {
	return a.ListAccountsTx(ctx, a.db, opts, criteria...)
}

func (a *accountsRepo) ListAccountsTx(ctx context.Context, tx bun.IDB, opts ListOptions, criteria ...repository.SelectCriteria) ([]*Account, error) {
	var records []*Account
	q := tx.NewSelect().Model(&records)

	if !opts.IncludeDeactivated {
		q.Apply(VisibleOnly())
	}

	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + search + "%"
		q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.email LIKE ?", pattern).
				WhereOr("?TableAlias.username LIKE ?", pattern).
				WhereOr("?TableAlias.first_name LIKE ?", pattern).
				WhereOr("?TableAlias.last_name LIKE ?", pattern)
		})
	}

	for _, c := range criteria {
		q.Apply(c)
	}

	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}

	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

// FindActiveHolderTx returns the active account, other than exclude, that
// holds either identifier. Used inside the reactivation transaction so the
// conflict check and the state flip share one atomic unit.
func (a *accountsRepo) FindActiveHolderTx(ctx context.Context, tx bun.IDB, username, email string, exclude uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.status = ?", StatusActive).
		Where("?TableAlias.id != ?", exclude).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.username = ?", username).
				WhereOr("?TableAlias.email = ?", email)
		}).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return record, nil
}

// MarkDeactivatedTx applies the soft delete as a single conditional update:
// the WHERE status guard is the compare-and-set that makes concurrent
// deactivation race safe. Returns false when the guard matched no row.
func (a *accountsRepo) MarkDeactivatedTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) (bool, error) {
	mangledUsername := MangleIdentifier(at, account.OriginalUsername)
	mangledEmail := MangleIdentifier(at, account.OriginalEmail)

	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("status = ?", StatusDeactivated).
		Set("deactivated_at = ?", at).
		Set("username = ?", mangledUsername).
		Set("email = ?", mangledEmail).
		Set("updated_at = ?", at).
		Where("id = ?", account.ID).
		Where("status = ?", StatusActive).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	account.Status = StatusDeactivated
	account.DeactivatedAt = &at
	account.Username = mangledUsername
	account.Email = mangledEmail
	account.UpdatedAt = &at

	return true, nil
}

// MarkReactivatedTx restores the original identifiers byte for byte and
// clears the deactivation timestamp. Same compare-and-set shape as
// MarkDeactivatedTx, guarded on the deactivated status.
func (a *accountsRepo) MarkReactivatedTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("status = ?", StatusActive).
		Set("deactivated_at = NULL").
		Set("username = ?", account.OriginalUsername).
		Set("email = ?", account.OriginalEmail).
		Set("updated_at = ?", at).
		Where("id = ?", account.ID).
		Where("status = ?", StatusDeactivated).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	account.Status = StatusActive
	account.DeactivatedAt = nil
	account.Username = account.OriginalUsername
	account.Email = account.OriginalEmail
	account.UpdatedAt = &at

	return true, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleGuest
	}

	record.EnsureStatus()

	if record.Username == "" {
		record.Username = usernameFromEmail(record.Email)
	}

	// The Original* columns are the canonical identifiers; the mutable slots
	// only diverge from them while the account is deactivated.
	if record.OriginalUsername == "" {
		record.OriginalUsername = record.Username
	}
	if record.OriginalEmail == "" {
		record.OriginalEmail = record.Email
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func usernameFromEmail(email string) string {
	if strings.Contains(email, "@") {
		return strings.Split(email, "@")[0]
	}
	return email
}

type identifierOption struct {
	column string
	value  string
}

func resolveAccountIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
