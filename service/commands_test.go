package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patronpress/app/config"
	"patronpress/app/identity"
	"patronpress/app/models"
)

// testDbPath is used to restore the default database path after tests
var testDbPath string

func init() {
	testDbPath = dbPath
}

func captureOutput(f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func mockStdin(input string, f func()) {
	oldStdin := os.Stdin
	r, w, _ := os.Pipe()
	os.Stdin = r

	go func() {
		w.Write([]byte(input))
		w.Close()
	}()

	f()

	os.Stdin = oldStdin
}

func setupTestDB(t *testing.T) string {
	tmpDir := t.TempDir()
	dbPath = filepath.Join(tmpDir, "test.db")
	t.Cleanup(func() {
		dbPath = testDbPath
	})
	return tmpDir
}

// seedPost writes one post through the ledger so commands have state to
// report.
func seedPost(t *testing.T, owner models.Account, title string) {
	t.Helper()

	db, err := openDB()
	require.NoError(t, err)
	defer db.Close()

	l, err := openLedger(db, owner)
	require.NoError(t, err)
	_, err = l.CreatePost(context.Background(), title, "seeded content")
	require.NoError(t, err)
}

func TestHandleCommand(t *testing.T) {
	setupTestDB(t)

	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectedExit   int
	}{
		{
			name:           "no arguments",
			args:           []string{},
			expectedOutput: "Usage: patronpress",
			expectedExit:   1,
		},
		{
			name:           "help command",
			args:           []string{"help"},
			expectedOutput: "Usage: patronpress",
			expectedExit:   0,
		},
		{
			name:           "unknown command",
			args:           []string{"bogus"},
			expectedOutput: "Unknown command: bogus",
			expectedExit:   1,
		},
		{
			name:           "restore without file",
			args:           []string{"restore"},
			expectedOutput: "Error: backup file path required for restore",
			expectedExit:   1,
		},
		{
			name:           "import without file",
			args:           []string{"import"},
			expectedOutput: "Error: snapshot file path required for import",
			expectedExit:   1,
		},
		{
			name:           "token without account",
			args:           []string{"token"},
			expectedOutput: "Error: account required for token",
			expectedExit:   1,
		},
		{
			name:           "fund without amount",
			args:           []string{"fund", "bob.near"},
			expectedOutput: "Error: account and amount required for fund",
			expectedExit:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitCode int
			oldOsExit := osExit
			defer func() { osExit = oldOsExit }()
			osExit = func(code int) {
				exitCode = code
				panic("exit")
			}

			output := captureOutput(func() {
				defer func() {
					if r := recover(); r != nil {
						if r != "exit" {
							panic(r)
						}
					}
				}()
				HandleCommand(tt.args)
			})

			assert.Contains(t, output, tt.expectedOutput)
			if tt.expectedExit > 0 {
				assert.Equal(t, tt.expectedExit, exitCode)
			}
		})
	}
}

func TestInitDb(t *testing.T) {
	setupTestDB(t)

	t.Run("initialize new database", func(t *testing.T) {
		output := captureOutput(func() {
			initDb("owner.near")
		})

		assert.Contains(t, output, "Ledger initialized for owner.near")
		assert.DirExists(t, dbPath)
	})

	t.Run("initialize existing database", func(t *testing.T) {
		output := captureOutput(func() {
			initDb("owner.near")
		})

		assert.Contains(t, output, "Database already exists")
	})

	t.Run("requires owner account", func(t *testing.T) {
		dbPath = filepath.Join(t.TempDir(), "fresh.db")

		output := captureOutput(func() {
			initDb("")
		})

		assert.Contains(t, output, "OWNER_ACCOUNT must be set")
		assert.NoDirExists(t, dbPath)
	})
}

func TestClean(t *testing.T) {
	setupTestDB(t)

	t.Run("clean non-existent database", func(t *testing.T) {
		output := captureOutput(func() {
			clean()
		})

		assert.Contains(t, output, "Database is already clean")
	})

	t.Run("clean existing database - confirmed", func(t *testing.T) {
		initDb("owner.near")
		assert.DirExists(t, dbPath)

		var output string
		mockStdin("y\n", func() {
			output = captureOutput(func() {
				clean()
			})
		})

		assert.Contains(t, output, "Database cleaned successfully")
		assert.NoDirExists(t, dbPath)
	})

	t.Run("clean existing database - cancelled", func(t *testing.T) {
		initDb("owner.near")
		assert.DirExists(t, dbPath)

		var output string
		mockStdin("n\n", func() {
			output = captureOutput(func() {
				clean()
			})
		})

		assert.Contains(t, output, "Operation cancelled")
		assert.DirExists(t, dbPath)
	})
}

func TestBackupRestore(t *testing.T) {
	setupTestDB(t)

	t.Run("backup non-existent database", func(t *testing.T) {
		output := captureOutput(func() {
			backup()
		})

		assert.Contains(t, output, "No database exists to backup")
	})

	t.Run("restore non-existent backup", func(t *testing.T) {
		output := captureOutput(func() {
			restore("nonexistent.db")
		})

		assert.Contains(t, output, "Backup file does not exist")
	})

	t.Run("backup and restore round trip", func(t *testing.T) {
		require.Equal(t, 0, initDb("owner.near"))
		seedPost(t, "owner.near", "Backed Up Post")

		output := captureOutput(func() {
			backup()
		})
		assert.Contains(t, output, "Database backed up successfully")

		backupDir := filepath.Join(filepath.Dir(dbPath), "backups")
		files, err := os.ReadDir(backupDir)
		require.NoError(t, err)
		require.Len(t, files, 1)
		backupFile := filepath.Join(backupDir, files[0].Name())

		mockStdin("y\n", func() {
			output = captureOutput(func() {
				restore(backupFile)
			})
		})
		assert.Contains(t, output, "Database restored successfully")

		db, err := openDB()
		require.NoError(t, err)
		defer db.Close()

		l, err := openLedger(db, "")
		require.NoError(t, err)
		assert.Equal(t, models.Account("owner.near"), l.Owner())

		post, err := l.Post(0)
		require.NoError(t, err)
		assert.Equal(t, "Backed Up Post", post.Title)
	})
}

func TestExportImport(t *testing.T) {
	tmpDir := setupTestDB(t)

	require.Equal(t, 0, initDb("owner.near"))
	seedPost(t, "owner.near", "Exported Post")

	t.Run("export to stdout", func(t *testing.T) {
		output := captureOutput(func() {
			export("")
		})

		assert.Contains(t, output, `"owner": "owner.near"`)
		assert.Contains(t, output, "Exported Post")
	})

	snapPath := filepath.Join(tmpDir, "snapshot.json")

	t.Run("export to file", func(t *testing.T) {
		output := captureOutput(func() {
			export(snapPath)
		})

		assert.Contains(t, output, "Snapshot written to")
		assert.FileExists(t, snapPath)
	})

	t.Run("import into fresh database", func(t *testing.T) {
		dbPath = filepath.Join(t.TempDir(), "imported.db")

		output := captureOutput(func() {
			importSnapshot(snapPath)
		})
		assert.Contains(t, output, "Imported 1 posts for owner.near")

		db, err := openDB()
		require.NoError(t, err)
		defer db.Close()

		l, err := openLedger(db, "")
		require.NoError(t, err)
		assert.Equal(t, models.Account("owner.near"), l.Owner())

		post, err := l.Post(0)
		require.NoError(t, err)
		assert.Equal(t, "Exported Post", post.Title)
	})

	t.Run("import unreadable snapshot", func(t *testing.T) {
		garbage := filepath.Join(tmpDir, "garbage.json")
		require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0644))

		output := captureOutput(func() {
			importSnapshot(garbage)
		})

		assert.Contains(t, output, "Invalid snapshot")
	})
}

func TestStats(t *testing.T) {
	setupTestDB(t)

	require.Equal(t, 0, initDb("owner.near"))
	seedPost(t, "owner.near", "Counted Post")

	output := captureOutput(func() {
		stats()
	})

	assert.Contains(t, output, "Ledger stats")
	assert.Contains(t, output, "owner.near")
	assert.Contains(t, output, "posts      1 (next id 1)")
	assert.Contains(t, output, "comments   0 (next id 0)")
}

func TestAuditCommand(t *testing.T) {
	setupTestDB(t)

	require.Equal(t, 0, initDb("owner.near"))
	seedPost(t, "owner.near", "Audited Post")

	t.Run("list", func(t *testing.T) {
		output := captureOutput(func() {
			auditLog(false)
		})

		assert.Contains(t, output, "Post 'Audited Post' was created")
	})

	t.Run("verify", func(t *testing.T) {
		output := captureOutput(func() {
			auditLog(true)
		})

		assert.Contains(t, output, "Audit chain verified")
	})
}

func TestMintToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}

	t.Run("mint and parse", func(t *testing.T) {
		output := captureOutput(func() {
			mintToken(cfg, "alice.near")
		})

		token := strings.TrimSpace(output)
		claims, err := identity.NewService("test-secret", time.Hour).Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "alice.near", claims.Account)
	})

	t.Run("empty account", func(t *testing.T) {
		output := captureOutput(func() {
			mintToken(cfg, "")
		})

		assert.Contains(t, output, "account must not be empty")
	})
}

func TestFund(t *testing.T) {
	setupTestDB(t)

	require.Equal(t, 0, initDb("owner.near"))

	t.Run("credit wallet", func(t *testing.T) {
		output := captureOutput(func() {
			fund("bob.near", "50")
		})

		assert.Contains(t, output, "Credited 50 to bob.near (balance 50)")
	})

	t.Run("credits accumulate", func(t *testing.T) {
		output := captureOutput(func() {
			fund("bob.near", "25")
		})

		assert.Contains(t, output, "(balance 75)")
	})

	t.Run("invalid amount", func(t *testing.T) {
		output := captureOutput(func() {
			fund("bob.near", "plenty")
		})

		assert.Contains(t, output, "Invalid amount")
	})
}
