package ledger

import "errors"

// Sentinel errors for the failure kinds callers branch on. Operations wrap
// these with context via fmt.Errorf("%w: ..."); match with errors.Is.
var (
	ErrNotFound          = errors.New("ledger: not found")
	ErrUnauthorized      = errors.New("ledger: unauthorized")
	ErrValidation        = errors.New("ledger: validation failed")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrUnderflow         = errors.New("ledger: counter underflow")
	ErrTransferFailed    = errors.New("ledger: transfer failed")
)
