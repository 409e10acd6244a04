package accounts

import (
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Visible is the single predicate deciding whether an account may be
// observed through default read paths. Centralized so no endpoint can
// forget the rule while another enforces it.
func Visible(account *Account) bool {
	if account == nil {
		return false
	}
	return account.IsActive()
}

// VisibleOnly restricts a select to accounts that pass the visibility
// predicate. This is the default criteria on every list and detail read.
func VisibleOnly() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.status = ?", StatusActive)
	}
}

// WithDeactivated is the explicit opt-in that bypasses the visibility
// filter, for admin surfaces that need to inspect soft deleted rows.
func WithDeactivated() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q
	}
}

// FilterVisible returns the accounts that pass the visibility predicate.
// Read paths that already hold records in memory use this instead of
// re-querying, keeping the rule in one place.
func FilterVisible(records []*Account) []*Account {
	visible := make([]*Account, 0, len(records))
	for _, record := range records {
		if Visible(record) {
			visible = append(visible, record)
		}
	}
	return visible
}
