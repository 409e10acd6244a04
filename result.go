package accounts

// Outcome discriminates what a lifecycle operation did.
type Outcome string

const (
	// OutcomeSuccess means the transition was applied and audited.
	OutcomeSuccess Outcome = "success"
	// OutcomeAlreadyDeactivated means the account was deactivated before the
	// call. Treated as success: no state write, no audit entry.
	OutcomeAlreadyDeactivated Outcome = "already_deactivated"
	// OutcomeAlreadyActive means a reactivation targeted an active account.
	// Treated as success, symmetric with OutcomeAlreadyDeactivated.
	OutcomeAlreadyActive Outcome = "already_active"
	// OutcomeNotFound means the account id is unknown.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeIdentifierConflict means reactivation was blocked because an
	// active account holds the original identifier.
	OutcomeIdentifierConflict Outcome = "identifier_conflict"
	// OutcomeUnauthorized is produced by the API adapter when the routing
	// layer hands it a rejected principal; the lifecycle manager itself only
	// ever receives validated actors.
	OutcomeUnauthorized Outcome = "unauthorized"
)

// Result describes the effect of a lifecycle operation.
type Result struct {
	Outcome Outcome  `json:"outcome"`
	Account *Account `json:"account,omitempty"`
}

// Applied reports whether the operation performed a state transition.
func (r *Result) Applied() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// Ok reports whether the caller should treat the operation as succeeded.
// Idempotent no-ops count as success per the deactivation contract.
func (r *Result) Ok() bool {
	if r == nil {
		return false
	}
	switch r.Outcome {
	case OutcomeSuccess, OutcomeAlreadyDeactivated, OutcomeAlreadyActive:
		return true
	default:
		return false
	}
}
