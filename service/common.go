package service

import (
	"github.com/dgraph-io/badger/v4"

	"patronpress/app/audit"
	"patronpress/app/identity"
	"patronpress/app/ledger"
	"patronpress/app/models"
)

// Database path - variable to allow testing with different paths
var dbPath = "patronpress_db"

func openDB() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(dbPath))
}

// openLedger opens the ledger on db. The owner only matters on a fresh
// database; once recorded, the stored owner wins.
func openLedger(db *badger.DB, owner models.Account) (*ledger.Ledger, error) {
	trail := audit.NewTrail(db)
	return ledger.Open(db, identity.Static{Account: owner}, trail, ledger.Options{Owner: owner})
}
