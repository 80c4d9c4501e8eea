package routes

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"patronpress/app/audit"
	"patronpress/app/identity"
	"patronpress/app/ledger"
	"patronpress/app/models"
	"patronpress/app/settle"
	"patronpress/app/wallet"
)

const testOwner = models.Account("owner.near")

func setupTestDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// setupTestRouter builds the full stack on an in-memory database and
// returns the router plus the deps for direct seeding.
func setupTestRouter(t *testing.T) (*mux.Router, Deps) {
	t.Helper()

	db := setupTestDB(t)
	trail := audit.NewTrail(db)
	l, err := ledger.Open(db, identity.TokenSource{}, trail, ledger.Options{Owner: testOwner})
	require.NoError(t, err)

	store := wallet.NewStore(db)
	coord := settle.NewCoordinator(l, store, identity.TokenSource{}, db)
	tokens := identity.NewService("routes-test-secret", time.Hour)

	deps := Deps{Ledger: l, Settle: coord, Wallet: store, Tokens: tokens}
	return Setup(deps), deps
}

// authorize mints a token for account and sets the bearer header.
func authorize(t *testing.T, deps Deps, req *http.Request, account models.Account) {
	t.Helper()

	token, err := deps.Tokens.Mint(account)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}
