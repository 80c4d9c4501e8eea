package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"

	"patronpress/app/audit"
	"patronpress/app/config"
	"patronpress/app/identity"
	"patronpress/app/ledger"
	"patronpress/app/models"
	"patronpress/app/wallet"
)

var osExit = os.Exit

// HandleCommand dispatches operator subcommands and returns an exit code.
func HandleCommand(args []string) int {
	if len(args) < 1 {
		printHelp()
		osExit(1)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		osExit(1)
		return 1
	}
	dbPath = cfg.DataDir

	cmd := args[0]
	switch cmd {
	case "serve":
		return RunServer(cfg)
	case "init":
		return initDb(models.Account(cfg.OwnerAccount))
	case "clean":
		clean()
		return 0
	case "backup":
		backup()
		return 0
	case "restore":
		if len(args) < 2 {
			fmt.Println("Error: backup file path required for restore")
			osExit(1)
			return 1
		}
		return restore(args[1])
	case "export":
		var out string
		if len(args) > 1 {
			out = args[1]
		}
		return export(out)
	case "import":
		if len(args) < 2 {
			fmt.Println("Error: snapshot file path required for import")
			osExit(1)
			return 1
		}
		return importSnapshot(args[1])
	case "stats":
		return stats()
	case "audit":
		verify := len(args) > 1 && args[1] == "--verify"
		return auditLog(verify)
	case "token":
		if len(args) < 2 {
			fmt.Println("Error: account required for token")
			osExit(1)
			return 1
		}
		return mintToken(cfg, models.Account(args[1]))
	case "fund":
		if len(args) < 3 {
			fmt.Println("Error: account and amount required for fund")
			osExit(1)
			return 1
		}
		return fund(models.Account(args[1]), args[2])
	case "help":
		printHelp()
		return 0
	default:
		fmt.Printf("Unknown command: %s\n\n", cmd)
		printHelp()
		osExit(1)
		return 1
	}
}

// printHelp prints help for the operator commands.
func printHelp() {
	fmt.Println(color.New(color.Bold).Sprint("Usage: patronpress <command>"))
	fmt.Println(`
Commands:
  serve                     Run the content ledger service
  init                      Initialize the ledger and record the owner
  clean                     Delete the ledger database
  backup                    Create a binary backup of the database
  restore <file>            Restore the database from a binary backup
  export [file]             Write a JSON snapshot (stdout without a file)
  import <file>             Replace ledger state from a JSON snapshot
  stats                     Print the ledger counters
  audit [--verify]          Print the audit trail, optionally verifying it
  token <account>           Mint an access token for an account
  fund <account> <amount>   Credit an account's wallet
  help                      Display this help message`)
}

// confirm prompts for a yes/no answer and reports whether the operator
// agreed.
func confirm(prompt string) bool {
	fmt.Print(prompt + " [y/N] ")
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// initDb initializes a new ledger database and records the owner.
func initDb(owner models.Account) int {
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Database already exists. Use 'clean' first if you want to reinitialize.")
		return 1
	}
	if owner == "" {
		fmt.Println("Error: OWNER_ACCOUNT must be set to initialize the ledger")
		return 1
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		fmt.Printf("Failed to create database directory: %v\n", err)
		return 1
	}

	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return 1
	}
	defer db.Close()

	if _, err := openLedger(db, owner); err != nil {
		fmt.Printf("Failed to initialize ledger: %v\n", err)
		return 1
	}

	fmt.Printf("Ledger initialized for %s\n", owner)
	return 0
}

// clean removes the database.
func clean() {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Database is already clean (does not exist)")
		return
	}

	if !confirm("Are you sure you want to clean the database? This cannot be undone.") {
		fmt.Println("Operation cancelled")
		return
	}

	if err := os.RemoveAll(dbPath); err != nil {
		fmt.Printf("Failed to clean database: %v\n", err)
		return
	}
	fmt.Println("Database cleaned successfully")
}

// backup creates a binary backup of the database.
func backup() {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No database exists to backup")
		return
	}

	backupDir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		fmt.Printf("Failed to create backup directory: %v\n", err)
		return
	}

	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return
	}
	defer db.Close()

	backupFile := filepath.Join(backupDir, fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	f, err := os.Create(backupFile)
	if err != nil {
		fmt.Printf("Failed to create backup file: %v\n", err)
		return
	}
	defer f.Close()

	if _, err := db.Backup(f, 0); err != nil {
		fmt.Printf("Failed to backup database: %v\n", err)
		return
	}

	fmt.Printf("Database backed up successfully to %s\n", backupFile)
}

// restore restores the database from a binary backup.
func restore(backupFile string) int {
	fi, err := os.Stat(backupFile)
	if os.IsNotExist(err) {
		fmt.Printf("Backup file does not exist: %s\n", backupFile)
		return 1
	}
	if err == nil && fi.Size() == 0 {
		fmt.Printf("Backup file is empty: %s\n", backupFile)
		return 1
	}

	if _, err := os.Stat(dbPath); err == nil {
		if !confirm("Existing database found. Do you want to replace it?") {
			fmt.Println("Operation cancelled")
			return 1
		}
		if err := os.RemoveAll(dbPath); err != nil {
			fmt.Printf("Failed to remove existing database: %v\n", err)
			return 1
		}
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		fmt.Printf("Failed to create database directory: %v\n", err)
		return 1
	}

	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	f, err := os.Open(backupFile)
	if err != nil {
		fmt.Printf("Failed to open backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	if err := db.Load(f, 4); err != nil {
		fmt.Printf("Failed to restore database: %v\n", err)
		return 1
	}

	fmt.Println("Database restored successfully")
	return 0
}

// export writes a JSON snapshot of the ledger, to stdout when no file is
// given.
func export(out string) int {
	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	l, err := openLedger(db, "")
	if err != nil {
		fmt.Printf("Failed to open ledger: %v\n", err)
		return 1
	}

	snap, err := l.Export()
	if err != nil {
		fmt.Printf("Failed to export snapshot: %v\n", err)
		return 1
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode snapshot: %v\n", err)
		return 1
	}

	if out == "" {
		fmt.Println(string(data))
		return 0
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		fmt.Printf("Failed to write snapshot: %v\n", err)
		return 1
	}
	fmt.Printf("Snapshot written to %s\n", out)
	return 0
}

// importSnapshot replaces ledger state from a JSON snapshot file.
func importSnapshot(file string) int {
	data, err := os.ReadFile(file)
	if err != nil {
		fmt.Printf("Failed to read snapshot: %v\n", err)
		return 1
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		fmt.Printf("Invalid snapshot: %v\n", err)
		return 1
	}

	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	// seed the owner from the snapshot so import works on a fresh database
	l, err := openLedger(db, snap.Owner)
	if err != nil {
		fmt.Printf("Failed to open ledger: %v\n", err)
		return 1
	}
	if err := l.Import(&snap); err != nil {
		fmt.Printf("Failed to import snapshot: %v\n", err)
		return 1
	}

	fmt.Printf("Imported %d posts for %s\n", len(snap.Posts), snap.Owner)
	return 0
}

// stats prints the ledger counters.
func stats() int {
	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	l, err := openLedger(db, "")
	if err != nil {
		fmt.Printf("Failed to open ledger: %v\n", err)
		return 1
	}

	s, err := l.Stats()
	if err != nil {
		fmt.Printf("Failed to read stats: %v\n", err)
		return 1
	}

	fmt.Println(color.New(color.Bold).Sprint("Ledger stats"))
	fmt.Printf("  owner      %s\n", s.Owner)
	fmt.Printf("  posts      %d (next id %d)\n", s.TotalPosts, s.NextPostID)
	fmt.Printf("  comments   %d (next id %d)\n", s.TotalComments, s.NextCommentID)
	fmt.Printf("  donations  %d (next id %d)\n", s.TotalDonations, s.NextDonationID)
	return 0
}

// auditLog prints the audit trail, optionally verifying the digest chain
// first.
func auditLog(verify bool) int {
	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	trail := audit.NewTrail(db)
	if verify {
		if err := trail.Verify(); err != nil {
			fmt.Printf("Audit chain broken: %v\n", err)
			return 1
		}
	}

	entries, err := trail.Entries()
	if err != nil {
		fmt.Printf("Failed to read audit trail: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Printf("%6d  %s  %s\n", e.Seq, e.At.Format(time.RFC3339), e.Event)
	}
	if verify {
		fmt.Println(color.New(color.FgGreen).Sprintf("Audit chain verified (%d entries)", len(entries)))
	}
	return 0
}

// mintToken prints an access token for account.
func mintToken(cfg *config.Config, account models.Account) int {
	if account == "" {
		fmt.Println("Error: account must not be empty")
		return 1
	}

	tokens := identity.NewService(cfg.JWTSecret, cfg.TokenTTL)
	token, err := tokens.Mint(account)
	if err != nil {
		fmt.Printf("Failed to mint token: %v\n", err)
		return 1
	}
	fmt.Println(token)
	return 0
}

// fund credits an account's wallet.
func fund(account models.Account, amountStr string) int {
	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		fmt.Printf("Invalid amount: %v\n", err)
		return 1
	}

	db, err := openDB()
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	balance, err := wallet.NewStore(db).Deposit(account, amount, "operator credit")
	if err != nil {
		fmt.Printf("Failed to credit wallet: %v\n", err)
		return 1
	}

	fmt.Printf("Credited %s to %s (balance %s)\n", amount.String(), account, balance.String())
	return 0
}
