// Package audit keeps a one-way, append-only trail of human-readable
// ledger events. Entries form a SHA3-256 hash chain so any later edit of
// the stored log is detectable. The core never reads the trail back; the
// operator CLI does.
package audit

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/sha3"
)

const (
	entryKeyPrefix = "audit:"
	headKey        = "auditmeta:head"
)

// Entry is one audit record. Digest covers Prev, Seq, At and Event, so the
// chain breaks if any stored field is altered.
type Entry struct {
	Seq    uint64    `json:"seq"`
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Prev   string    `json:"prev"`
	Digest string    `json:"digest"`
}

type head struct {
	Seq    uint64 `json:"seq"`
	Digest string `json:"digest"`
}

// Trail appends entries to the audit chain stored in a Badger DB.
type Trail struct {
	db *badger.DB
}

// NewTrail returns a Trail over db.
func NewTrail(db *badger.DB) *Trail {
	return &Trail{db: db}
}

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryKeyPrefix, seq))
}

func digest(prev string, seq uint64, at time.Time, event string) string {
	sum := sha3.Sum256([]byte(prev + "\n" + strconv.FormatUint(seq, 10) + "\n" +
		at.UTC().Format(time.RFC3339Nano) + "\n" + event))
	return hex.EncodeToString(sum[:])
}

// Append writes the next chain entry inside the caller's transaction, so
// the record commits atomically with the mutation that emitted it.
func (t *Trail) Append(txn *badger.Txn, at time.Time, event string) error {
	var h head
	item, err := txn.Get([]byte(headKey))
	switch {
	case err == badger.ErrKeyNotFound:
		// First entry; chain starts at seq 0 with an empty prev digest.
	case err != nil:
		return err
	default:
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &h)
		}); err != nil {
			return err
		}
		h.Seq++
	}

	entry := Entry{
		Seq:    h.Seq,
		At:     at,
		Event:  event,
		Prev:   h.Digest,
		Digest: digest(h.Digest, h.Seq, at, event),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := txn.Set(entryKey(entry.Seq), data); err != nil {
		return err
	}

	headData, err := json.Marshal(head{Seq: entry.Seq, Digest: entry.Digest})
	if err != nil {
		return err
	}
	return txn.Set([]byte(headKey), headData)
}

// Record appends a single entry in its own transaction.
func (t *Trail) Record(at time.Time, event string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return t.Append(txn, at, event)
	})
}

// Entries returns the full trail in sequence order.
func (t *Trail) Entries() ([]Entry, error) {
	var entries []Entry
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Verify re-walks the chain and recomputes every digest. It returns an
// error naming the first entry that does not check out.
func (t *Trail) Verify() error {
	entries, err := t.Entries()
	if err != nil {
		return err
	}

	prev := ""
	for i, entry := range entries {
		if entry.Seq != uint64(i) {
			return fmt.Errorf("audit: entry %d has sequence %d", i, entry.Seq)
		}
		if entry.Prev != prev {
			return fmt.Errorf("audit: entry %d does not link to its predecessor", i)
		}
		if want := digest(entry.Prev, entry.Seq, entry.At, entry.Event); entry.Digest != want {
			return fmt.Errorf("audit: entry %d digest mismatch", i)
		}
		prev = entry.Digest
	}

	return t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(headKey))
		if err == badger.ErrKeyNotFound {
			if len(entries) != 0 {
				return fmt.Errorf("audit: head missing for %d entries", len(entries))
			}
			return nil
		}
		if err != nil {
			return err
		}
		var h head
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &h)
		}); err != nil {
			return err
		}
		if len(entries) == 0 || h.Digest != entries[len(entries)-1].Digest {
			return fmt.Errorf("audit: head does not match last entry")
		}
		return nil
	})
}
