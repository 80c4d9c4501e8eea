// Package ledger owns all post state: entities, the per-author index, and
// the monotonic counters. Every mutation executes as one Badger update
// transaction behind a single-writer mutex, so callers observe each
// operation as an atomic unit with no partial state on error.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"patronpress/app/audit"
	"patronpress/app/identity"
	"patronpress/app/models"
)

// Comments shorter than this many bytes are rejected.
const minCommentLen = 10

// Options configure ledger behavior beyond the core contract.
//
// RepairAuthorIndex makes DeletePost drop the deleted ID from the author's
// index. Left off, the stale ID remains and the author's post listing fails
// until the index is repaired.
//
// DeleteCommentByID makes DeleteComment remove the comment whose ID matches
// instead of the one at list offset comment_id.
type Options struct {
	Owner             models.Account
	RepairAuthorIndex bool
	DeleteCommentByID bool
}

type Ledger struct {
	db     *badger.DB
	mutex  sync.RWMutex
	guard  ownerGuard
	source identity.Source
	trail  *audit.Trail
	opts   Options
}

// Open binds a ledger to an opened database. On first open the configured
// owner account is recorded; afterwards the recorded owner is authoritative
// and the configured value is ignored.
func Open(db *badger.DB, source identity.Source, trail *audit.Trail, opts Options) (*Ledger, error) {
	l := &Ledger{db: db, source: source, trail: trail, opts: opts}

	err := db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ownerKey))
		if err == badger.ErrKeyNotFound {
			if opts.Owner == "" {
				return fmt.Errorf("%w: owner account not configured", ErrValidation)
			}
			return txn.Set([]byte(ownerKey), []byte(opts.Owner))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			l.opts.Owner = models.Account(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	l.guard = ownerGuard{owner: l.opts.Owner}
	return l, nil
}

// CreatePost allocates the next post ID and stores a post authored by the
// caller, with empty comments, votes, and donation logs. The new ID is
// appended to the author's index. Open to any caller.
func (l *Ledger) CreatePost(ctx context.Context, title, body string) (uint64, error) {
	caller, err := l.source.Caller(ctx)
	if err != nil {
		return 0, err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	var postID uint64
	now := l.source.Now()
	err = l.db.Update(func(txn *badger.Txn) error {
		id, err := nextID(txn, nextPostIDKey)
		if err != nil {
			return err
		}

		post := models.Post{
			ID:           id,
			Title:        title,
			Body:         body,
			Author:       caller,
			CreatedAt:    now,
			Comments:     []models.Comment{},
			Upvotes:      []models.Account{},
			Downvotes:    []models.Account{},
			DonationLogs: []models.DonationLog{},
		}
		if err := putPost(txn, &post); err != nil {
			return err
		}

		ids, _, err := getUserPosts(txn, caller)
		if err != nil {
			return err
		}
		if err := putUserPosts(txn, caller, append(ids, id)); err != nil {
			return err
		}

		if err := incrCounter(txn, totalPostsKey); err != nil {
			return err
		}

		postID = id
		return l.trail.Append(txn, now, fmt.Sprintf("Post '%s' was created", title))
	})
	if err != nil {
		return 0, err
	}
	return postID, nil
}

// Post fetches a single post by ID.
func (l *Ledger) Post(id uint64) (*models.Post, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	var post models.Post
	err := l.db.View(func(txn *badger.Txn) error {
		return getPost(txn, id, &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// PostsByCaller returns the caller's posts in index order. A caller with no
// index entry gets ErrNotFound, even though the result would be empty; that
// is distinct from an existing index with zero entries. A stale index entry
// for a deleted post also surfaces as ErrNotFound.
func (l *Ledger) PostsByCaller(ctx context.Context) ([]*models.Post, error) {
	caller, err := l.source.Caller(ctx)
	if err != nil {
		return nil, err
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	posts := []*models.Post{}
	err = l.db.View(func(txn *badger.Txn) error {
		ids, found, err := getUserPosts(txn, caller)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: no posts for %s", ErrNotFound, caller)
		}
		for _, id := range ids {
			var post models.Post
			if err := getPost(txn, id, &post); err != nil {
				return err
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// TotalPosts reports the number of live posts.
func (l *Ledger) TotalPosts() (uint64, error) {
	return l.counter(totalPostsKey)
}

// NextPostID reports the ID the next created post will receive.
func (l *Ledger) NextPostID() (uint64, error) {
	return l.counter(nextPostIDKey)
}

// Owner returns the account recorded at initialization.
func (l *Ledger) Owner() models.Account {
	return l.guard.owner
}

func (l *Ledger) counter(key string) (uint64, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	var v uint64
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = getCounter(txn, key)
		return err
	})
	return v, err
}

// Stats reports the owner and all six counters.
func (l *Ledger) Stats() (*Stats, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	s := &Stats{Owner: l.guard.owner}
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		if s.Counters, err = readCounters(txn); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeletePost removes a post. Owner only; the post must exist. The author's
// index entry is left stale unless the RepairAuthorIndex policy is on.
func (l *Ledger) DeletePost(ctx context.Context, id uint64) error {
	caller, err := l.source.Caller(ctx)
	if err != nil {
		return err
	}
	if err := l.guard.require(caller, "delete posts"); err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.source.Now()
	return l.db.Update(func(txn *badger.Txn) error {
		var post models.Post
		if err := getPost(txn, id, &post); err != nil {
			return err
		}
		if err := txn.Delete(postKey(id)); err != nil {
			return err
		}
		if err := decrCounter(txn, totalPostsKey); err != nil {
			return err
		}
		// nested entities vanish with the post; keep the aggregate totals in step
		if err := subCounter(txn, totalCommentsKey, uint64(len(post.Comments))); err != nil {
			return err
		}
		if err := subCounter(txn, totalDonationsKey, uint64(len(post.DonationLogs))); err != nil {
			return err
		}

		if l.opts.RepairAuthorIndex {
			ids, found, err := getUserPosts(txn, post.Author)
			if err != nil {
				return err
			}
			if found {
				kept := make([]uint64, 0, len(ids))
				for _, pid := range ids {
					if pid != id {
						kept = append(kept, pid)
					}
				}
				if err := putUserPosts(txn, post.Author, kept); err != nil {
					return err
				}
			}
		}

		return l.trail.Append(txn, now, fmt.Sprintf("Post '%s' was deleted", post.Title))
	})
}

// AddComment appends a comment to an existing post. Open to any caller; the
// body must be at least 10 bytes. Comment IDs come from one global counter
// shared across all posts. Returns the new comment's ID.
func (l *Ledger) AddComment(ctx context.Context, postID uint64, body string) (uint64, error) {
	caller, err := l.source.Caller(ctx)
	if err != nil {
		return 0, err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	var commentID uint64
	now := l.source.Now()
	err = l.db.Update(func(txn *badger.Txn) error {
		var post models.Post
		if err := getPost(txn, postID, &post); err != nil {
			return err
		}
		if len(body) < minCommentLen {
			return fmt.Errorf("%w: comment must be at least %d characters long", ErrValidation, minCommentLen)
		}

		id, err := nextID(txn, nextCommentIDKey)
		if err != nil {
			return err
		}
		post.Comments = append(post.Comments, models.Comment{
			ID:        id,
			Body:      body,
			Author:    caller,
			CreatedAt: now,
		})
		if err := putPost(txn, &post); err != nil {
			return err
		}
		if err := incrCounter(txn, totalCommentsKey); err != nil {
			return err
		}

		commentID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return commentID, nil
}

// DeleteComment removes a comment. Owner only. A comment with the given ID
// must exist on the post, but the element removed is the one at list offset
// comment_id; the two coincide only while comments are deleted in order.
// An offset past the end of the list is ErrNotFound. The DeleteCommentByID
// policy switches to removal by ID match.
func (l *Ledger) DeleteComment(ctx context.Context, postID, commentID uint64) error {
	caller, err := l.source.Caller(ctx)
	if err != nil {
		return err
	}
	if err := l.guard.require(caller, "delete comments"); err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.source.Now()
	return l.db.Update(func(txn *badger.Txn) error {
		var post models.Post
		if err := getPost(txn, postID, &post); err != nil {
			return err
		}

		idx := post.CommentIndex(commentID)
		if idx < 0 {
			return fmt.Errorf("%w: comment %d on post %d", ErrNotFound, commentID, postID)
		}

		at := idx
		if !l.opts.DeleteCommentByID {
			at = int(commentID)
			if at >= len(post.Comments) {
				return fmt.Errorf("%w: comment offset %d on post %d", ErrNotFound, at, postID)
			}
		}
		post.RemoveCommentAt(at)

		if err := putPost(txn, &post); err != nil {
			return err
		}
		if err := decrCounter(txn, totalCommentsKey); err != nil {
			return err
		}

		return l.trail.Append(txn, now, fmt.Sprintf("Comment %d was deleted from post %d", commentID, postID))
	})
}

// Upvote adds the caller to the post's upvote set. Repeat votes are no-ops.
func (l *Ledger) Upvote(ctx context.Context, postID uint64) error {
	return l.vote(ctx, postID, (*models.Post).AddUpvote)
}

// Downvote adds the caller to the post's downvote set. A downvote does not
// clear an existing upvote; the sets are independent.
func (l *Ledger) Downvote(ctx context.Context, postID uint64) error {
	return l.vote(ctx, postID, (*models.Post).AddDownvote)
}

// RetractUpvote removes the caller from the post's upvote set.
func (l *Ledger) RetractUpvote(ctx context.Context, postID uint64) error {
	return l.vote(ctx, postID, (*models.Post).RemoveUpvote)
}

// RetractDownvote removes the caller from the post's downvote set.
func (l *Ledger) RetractDownvote(ctx context.Context, postID uint64) error {
	return l.vote(ctx, postID, (*models.Post).RemoveDownvote)
}

func (l *Ledger) vote(ctx context.Context, postID uint64, apply func(*models.Post, models.Account) bool) error {
	caller, err := l.source.Caller(ctx)
	if err != nil {
		return err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.db.Update(func(txn *badger.Txn) error {
		var post models.Post
		if err := getPost(txn, postID, &post); err != nil {
			return err
		}
		if !apply(&post, caller) {
			return nil
		}
		return putPost(txn, &post)
	})
}

// RecordDonation appends the durable proof of a completed transfer to the
// post and advances the donation counters. The settlement coordinator calls
// this only after the transfer leg succeeded; donor and timestamp were
// resolved when the donation was initiated.
func (l *Ledger) RecordDonation(postID uint64, donor models.Account, amount models.Amount, message string, at time.Time) (*models.DonationLog, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	var entry models.DonationLog
	err := l.db.Update(func(txn *badger.Txn) error {
		var post models.Post
		if err := getPost(txn, postID, &post); err != nil {
			return err
		}

		id, err := nextID(txn, nextDonationIDKey)
		if err != nil {
			return err
		}
		entry = models.DonationLog{
			ID:        id,
			Amount:    amount,
			Donor:     donor,
			CreatedAt: at,
			Message:   message,
		}
		post.DonationLogs = append(post.DonationLogs, entry)

		if err := putPost(txn, &post); err != nil {
			return err
		}
		if err := incrCounter(txn, totalDonationsKey); err != nil {
			return err
		}

		return l.trail.Append(txn, at, fmt.Sprintf("Donation %d of %s was recorded on post %d", id, amount.String(), postID))
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
