package accounts

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	textCodeIdentifierConflict = "IDENTIFIER_CONFLICT"
	textCodeInvalidTransition  = "INVALID_ACCOUNT_TRANSITION"
)

// ErrAccountNotFound is returned when the target account id is unknown.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrIdentifierConflict is returned when a reactivation would restore an
// identifier currently held by another active account. The conflict is
// surfaced for manual resolution, never auto renamed.
var ErrIdentifierConflict = goerrors.New("identifier held by another active account", goerrors.CategoryConflict).
	WithTextCode(textCodeIdentifierConflict).
	WithCode(goerrors.CodeConflict)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// IsAccountNotFound will check for the not found taxonomy entry.
func IsAccountNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAccountNotFound)
}

// IsIdentifierConflict will check for the conflict taxonomy entry.
func IsIdentifierConflict(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrIdentifierConflict)
}
