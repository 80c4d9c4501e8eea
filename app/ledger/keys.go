package ledger

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"patronpress/app/models"
)

const (
	// Key prefixes for ledger-owned state. Other packages sharing the
	// database use their own prefixes.
	postKeyPrefix      = "post:"
	userPostsKeyPrefix = "userposts:"
	ownerKey           = "meta:owner"

	// Counter keys, named after the root-state fields they persist.
	nextPostIDKey     = "counter:next_post_id"
	totalPostsKey     = "counter:total_posts"
	nextCommentIDKey  = "counter:next_comment_id"
	totalCommentsKey  = "counter:total_comments"
	nextDonationIDKey = "counter:next_donation_id"
	totalDonationsKey = "counter:total_donations"
)

// postKey builds the zero-padded key for a post so key order matches ID order.
func postKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", postKeyPrefix, id))
}

func userPostsKey(account models.Account) []byte {
	return []byte(userPostsKeyPrefix + string(account))
}

// getCounter reads a counter value; a missing key counts as zero.
func getCounter(txn *badger.Txn, key string) (uint64, error) {
	item, err := txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("counter %s: malformed value", key)
		}
		v = binary.BigEndian.Uint64(val)
		return nil
	})
	return v, err
}

func putCounter(txn *badger.Txn, key string, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return txn.Set([]byte(key), buf)
}

// nextID returns the current value of an ID counter and advances it. A fresh
// counter issues ID 0 first.
func nextID(txn *badger.Txn, key string) (uint64, error) {
	id, err := getCounter(txn, key)
	if err != nil {
		return 0, err
	}
	if err := putCounter(txn, key, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

func incrCounter(txn *badger.Txn, key string) error {
	v, err := getCounter(txn, key)
	if err != nil {
		return err
	}
	return putCounter(txn, key, v+1)
}

func decrCounter(txn *badger.Txn, key string) error {
	v, err := getCounter(txn, key)
	if err != nil {
		return err
	}
	if v == 0 {
		return fmt.Errorf("%w: %s is already 0", ErrUnderflow, strings.TrimPrefix(key, "counter:"))
	}
	return putCounter(txn, key, v-1)
}

func subCounter(txn *badger.Txn, key string, n uint64) error {
	if n == 0 {
		return nil
	}
	v, err := getCounter(txn, key)
	if err != nil {
		return err
	}
	if v < n {
		return fmt.Errorf("%w: %s is %d, cannot subtract %d", ErrUnderflow, strings.TrimPrefix(key, "counter:"), v, n)
	}
	return putCounter(txn, key, v-n)
}

// getPost loads a post within a transaction.
func getPost(txn *badger.Txn, id uint64, post *models.Post) error {
	item, err := txn.Get(postKey(id))
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: post %d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshalEntity(val, post)
	})
}

func putPost(txn *badger.Txn, post *models.Post) error {
	data, err := marshalEntity(post)
	if err != nil {
		return err
	}
	return txn.Set(postKey(post.ID), data)
}

// getUserPosts loads an author index. Absence is reported separately so
// callers can distinguish a missing index from an empty one.
func getUserPosts(txn *badger.Txn, account models.Account) ([]uint64, bool, error) {
	item, err := txn.Get(userPostsKey(account))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ids []uint64
	err = item.Value(func(val []byte) error {
		return unmarshalEntity(val, &ids)
	})
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func putUserPosts(txn *badger.Txn, account models.Account, ids []uint64) error {
	data, err := marshalEntity(ids)
	if err != nil {
		return err
	}
	return txn.Set(userPostsKey(account), data)
}

func deleteByPrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %v", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %v", err)
	}
	return nil
}
