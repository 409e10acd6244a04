package accounts

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ParseAccountID parses a raw route or message value into an account id.
func ParseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid account id").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"account_id": raw,
			})
	}
	return id, nil
}
