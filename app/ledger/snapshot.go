package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"patronpress/app/models"
)

// Counters are the four monotonic ID/total pairs of the root state.
type Counters struct {
	NextPostID     uint64 `json:"next_post_id"`
	TotalPosts     uint64 `json:"total_posts"`
	NextCommentID  uint64 `json:"next_comment_id"`
	TotalComments  uint64 `json:"total_comments"`
	NextDonationID uint64 `json:"next_donation_id"`
	TotalDonations uint64 `json:"total_donations"`
}

// Stats is the read-only counter view exposed to operators.
type Stats struct {
	Owner models.Account `json:"owner"`
	Counters
}

// Snapshot is the full serialized ledger state. Export is deterministic
// (posts in ID order, index entries sorted by account) so that exporting,
// importing, and exporting again round-trips byte-identically.
type Snapshot struct {
	Owner     models.Account   `json:"owner"`
	Posts     []models.Post    `json:"posts"`
	UserPosts []UserPostsEntry `json:"user_posts"`
	Counters  Counters         `json:"counters"`
}

// UserPostsEntry is one author's ordered post index.
type UserPostsEntry struct {
	Account models.Account `json:"account"`
	PostIDs []uint64       `json:"post_ids"`
}

func readCounters(txn *badger.Txn) (Counters, error) {
	var c Counters
	var err error
	if c.NextPostID, err = getCounter(txn, nextPostIDKey); err != nil {
		return c, err
	}
	if c.TotalPosts, err = getCounter(txn, totalPostsKey); err != nil {
		return c, err
	}
	if c.NextCommentID, err = getCounter(txn, nextCommentIDKey); err != nil {
		return c, err
	}
	if c.TotalComments, err = getCounter(txn, totalCommentsKey); err != nil {
		return c, err
	}
	if c.NextDonationID, err = getCounter(txn, nextDonationIDKey); err != nil {
		return c, err
	}
	if c.TotalDonations, err = getCounter(txn, totalDonationsKey); err != nil {
		return c, err
	}
	return c, nil
}

func writeCounters(txn *badger.Txn, c Counters) error {
	pairs := []struct {
		key string
		v   uint64
	}{
		{nextPostIDKey, c.NextPostID},
		{totalPostsKey, c.TotalPosts},
		{nextCommentIDKey, c.NextCommentID},
		{totalCommentsKey, c.TotalComments},
		{nextDonationIDKey, c.NextDonationID},
		{totalDonationsKey, c.TotalDonations},
	}
	for _, p := range pairs {
		if err := putCounter(txn, p.key, p.v); err != nil {
			return err
		}
	}
	return nil
}

// Export serializes the entire ledger.
func (l *Ledger) Export() (*Snapshot, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	snap := &Snapshot{
		Owner:     l.guard.owner,
		Posts:     []models.Post{},
		UserPosts: []UserPostsEntry{},
	}
	err := l.db.View(func(txn *badger.Txn) error {
		if err := exportPosts(txn, snap); err != nil {
			return err
		}
		if err := exportUserPosts(txn, snap); err != nil {
			return err
		}

		var err error
		snap.Counters, err = readCounters(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func exportPosts(txn *badger.Txn, snap *Snapshot) error {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(postKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var post models.Post
		err := it.Item().Value(func(val []byte) error {
			return unmarshalEntity(val, &post)
		})
		if err != nil {
			return err
		}
		snap.Posts = append(snap.Posts, post)
	}
	return nil
}

func exportUserPosts(txn *badger.Txn, snap *Snapshot) error {
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(userPostsKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		account := models.Account(strings.TrimPrefix(string(item.Key()), userPostsKeyPrefix))

		var ids []uint64
		err := item.Value(func(val []byte) error {
			return unmarshalEntity(val, &ids)
		})
		if err != nil {
			return err
		}
		snap.UserPosts = append(snap.UserPosts, UserPostsEntry{Account: account, PostIDs: ids})
	}

	sort.Slice(snap.UserPosts, func(i, j int) bool {
		return snap.UserPosts[i].Account < snap.UserPosts[j].Account
	})
	return nil
}

// Import replaces all ledger-owned state with the snapshot's. Keys owned by
// other packages sharing the database are untouched.
func (l *Ledger) Import(snap *Snapshot) error {
	if snap.Owner == "" {
		return fmt.Errorf("%w: snapshot has no owner", ErrValidation)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	err := l.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{postKeyPrefix, userPostsKeyPrefix, "counter:"} {
			if err := deleteByPrefix(txn, []byte(prefix)); err != nil {
				return err
			}
		}

		if err := txn.Set([]byte(ownerKey), []byte(snap.Owner)); err != nil {
			return err
		}
		for i := range snap.Posts {
			if err := putPost(txn, &snap.Posts[i]); err != nil {
				return err
			}
		}
		for _, entry := range snap.UserPosts {
			if err := putUserPosts(txn, entry.Account, entry.PostIDs); err != nil {
				return err
			}
		}
		return writeCounters(txn, snap.Counters)
	})
	if err != nil {
		return err
	}

	l.opts.Owner = snap.Owner
	l.guard = ownerGuard{owner: snap.Owner}
	return nil
}
