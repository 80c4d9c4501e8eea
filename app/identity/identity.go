// Package identity supplies the acting caller and the current time for
// every ledger operation. The core never trusts identity or time values
// arriving as request data; both come from a Source.
package identity

import (
	"context"
	"errors"
	"time"

	"patronpress/app/models"
)

// ErrNoCaller is returned when no authenticated account is available.
var ErrNoCaller = errors.New("identity: no caller")

// Source resolves the acting account and the current timestamp. Values are
// resolved per call, never cached across calls.
type Source interface {
	Caller(ctx context.Context) (models.Account, error)
	Now() time.Time
}

type ctxKey int

const accountKey ctxKey = iota

// WithAccount returns a context carrying the authenticated account. The
// auth middleware calls this after verifying a token.
func WithAccount(ctx context.Context, account models.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (models.Account, bool) {
	account, ok := ctx.Value(accountKey).(models.Account)
	return account, ok
}

// TokenSource resolves the caller from the request context populated by
// the auth middleware, and reads the wall clock.
type TokenSource struct{}

func (TokenSource) Caller(ctx context.Context) (models.Account, error) {
	account, ok := AccountFromContext(ctx)
	if !ok || account == "" {
		return "", ErrNoCaller
	}
	return account, nil
}

func (TokenSource) Now() time.Time {
	return time.Now()
}

// Static is a fixed identity source for CLI commands and tests. With a nil
// Clock it reads the wall clock.
type Static struct {
	Account models.Account
	Clock   func() time.Time
}

func (s Static) Caller(ctx context.Context) (models.Account, error) {
	if s.Account == "" {
		return "", ErrNoCaller
	}
	return s.Account, nil
}

func (s Static) Now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
