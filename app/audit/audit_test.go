package audit

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestTrail(t *testing.T) (*Trail, *badger.DB) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTrail(db), db
}

func TestTrailAppend(t *testing.T) {
	trail, _ := setupTestTrail(t)
	at := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, trail.Record(at, "Post 'First' was created"))
	require.NoError(t, trail.Record(at.Add(time.Minute), "Post 'Second' was created"))

	entries, err := trail.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, uint64(0), entries[0].Seq)
	assert.Equal(t, "Post 'First' was created", entries[0].Event)
	assert.Empty(t, entries[0].Prev)
	assert.NotEmpty(t, entries[0].Digest)

	assert.Equal(t, uint64(1), entries[1].Seq)
	assert.Equal(t, entries[0].Digest, entries[1].Prev)
}

func TestTrailJoinsCallerTxn(t *testing.T) {
	trail, db := setupTestTrail(t)
	at := time.Now()

	// A failed transaction must not leave an audit entry behind.
	err := db.Update(func(txn *badger.Txn) error {
		if err := trail.Append(txn, at, "never committed"); err != nil {
			return err
		}
		return badger.ErrConflict
	})
	assert.Error(t, err)

	entries, err := trail.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrailVerify(t *testing.T) {
	trail, db := setupTestTrail(t)
	at := time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty trail verifies", func(t *testing.T) {
		assert.NoError(t, trail.Verify())
	})

	require.NoError(t, trail.Record(at, "Post 'A' was created"))
	require.NoError(t, trail.Record(at.Add(time.Second), "Post 0 was deleted"))
	require.NoError(t, trail.Record(at.Add(2*time.Second), "Post 'B' was created"))

	t.Run("intact trail verifies", func(t *testing.T) {
		assert.NoError(t, trail.Verify())
	})

	t.Run("tampered event is detected", func(t *testing.T) {
		// Rewrite entry 1 with a different event text but the stored digest.
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(entryKey(1))
			if err != nil {
				return err
			}
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entry.Event = "Post 0 was updated"
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			return txn.Set(entryKey(1), data)
		}))

		err := trail.Verify()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "digest mismatch")
	})
}
