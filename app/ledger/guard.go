package ledger

import (
	"fmt"

	"patronpress/app/models"
)

// ownerGuard gates privileged mutations on the account recorded at
// initialization. Deletion is owner-only; appends are open to any caller
// acting under their own identity.
type ownerGuard struct {
	owner models.Account
}

func (g ownerGuard) require(caller models.Account, action string) error {
	if caller != g.owner {
		return fmt.Errorf("%w: only owner can %s", ErrUnauthorized, action)
	}
	return nil
}
