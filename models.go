package accounts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest AccountRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember AccountRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin AccountRole = "admin"
	// RoleOwner is an owner role (i.e. view, edit, create, delete)
	RoleOwner AccountRole = "owner"
)

// AccountStatus is the lifecycle status of an account.
type AccountStatus = string

const (
	// StatusActive is the default status for registered accounts.
	StatusActive AccountStatus = "active"
	// StatusDeactivated marks a soft deleted account. The record is never
	// physically removed; its identifiers are mangled so the unique
	// constraints only ever bind active rows.
	StatusDeactivated AccountStatus = "deactivated"
)

// MangledPrefix prepends every identifier held by a deactivated account.
const MangledPrefix = "deleted_"

// Account is the user identity model. Username and Email are mutable
// identifier slots: while an account is deactivated they hold mangled
// values and the Original* columns keep the true identifiers verbatim.
type Account struct {
	bun.BaseModel    `bun:"table:accounts,alias:acc"`
	ID               uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role             AccountRole    `bun:"account_role,notnull" json:"account_role,omitempty"`
	FirstName        string         `bun:"first_name" json:"first_name,omitempty"`
	LastName         string         `bun:"last_name" json:"last_name,omitempty"`
	Username         string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email            string         `bun:"email,notnull,unique" json:"email,omitempty"`
	OriginalUsername string         `bun:"original_username,notnull" json:"original_username,omitempty"`
	OriginalEmail    string         `bun:"original_email,notnull" json:"original_email,omitempty"`
	Status           AccountStatus  `bun:"status,notnull,default:'active'" json:"status,omitempty"`
	PasswordHash     string         `bun:"password_hash" json:"-"`
	EmailVerified    bool           `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Metadata         map[string]any `bun:"metadata" json:"metadata,omitempty"`
	DeactivatedAt    *time.Time     `bun:"deactivated_at,nullzero" json:"deactivated_at,omitempty"`
	CreatedAt        *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus backfills the zero value so legacy rows behave as active.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusActive
	}
}

// IsActive reports whether the account is in the active state.
func (a *Account) IsActive() bool {
	a.EnsureStatus()
	return a.Status == StatusActive
}

// IsDeactivated reports whether the account has been soft deleted.
func (a *Account) IsDeactivated() bool {
	return a.Status == StatusDeactivated
}

// AddMetadata will append information to a metadata attribute
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// MangleIdentifier derives the placeholder identifier stored while an
// account is deactivated. Deterministic for a given (deactivatedAt,
// identifier) pair so replaying a transition yields the same value, while
// each distinct transition timestamp produces a distinct one.
func MangleIdentifier(deactivatedAt time.Time, identifier string) string {
	return fmt.Sprintf("%s%d_%s", MangledPrefix, deactivatedAt.Unix(), identifier)
}

// AuditAction enumerates recorded lifecycle transitions.
type AuditAction = string

const (
	// AuditActionRegister records account creation.
	AuditActionRegister AuditAction = "register"
	// AuditActionDeactivate records a soft delete.
	AuditActionDeactivate AuditAction = "deactivate"
	// AuditActionReactivate records a restore.
	AuditActionReactivate AuditAction = "reactivate"
)

// AuditEntry is an immutable fact about one lifecycle transition. Entries
// are append only; the repository exposes no update or delete surface.
type AuditEntry struct {
	bun.BaseModel  `bun:"table:account_audit,alias:aud"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID      uuid.UUID      `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Action         AuditAction    `bun:"action,notnull" json:"action,omitempty"`
	ActorID        string         `bun:"actor_id,notnull" json:"actor_id,omitempty"`
	PreviousStatus AccountStatus  `bun:"previous_status" json:"previous_status,omitempty"`
	NewStatus      AccountStatus  `bun:"new_status,notnull" json:"new_status,omitempty"`
	Reason         string         `bun:"reason" json:"reason,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at,omitempty"`
}
