// Package settle orchestrates the two-phase donation flow: validate and
// initiate the value transfer synchronously, then append the donation log
// only once the transfer leg reports success. It is the one place where an
// operation's visible effect spans two asynchronous steps.
package settle

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"patronpress/app/identity"
	"patronpress/app/ledger"
	"patronpress/app/models"
)

// TransferService executes an irrevocable value transfer and reports the
// outcome on the returned channel, future style; nil means the transfer
// completed. Once initiated a transfer runs to completion or failure;
// there is no cancellation.
type TransferService interface {
	Transfer(from, to models.Account, amount models.Amount) <-chan error
}

const settlementKeyPrefix = "settlement:"

type Coordinator struct {
	ledger   *ledger.Ledger
	transfer TransferService
	source   identity.Source
	db       *badger.DB
	mutex    sync.RWMutex
}

func NewCoordinator(l *ledger.Ledger, transfer TransferService, source identity.Source, db *badger.DB) *Coordinator {
	return &Coordinator{ledger: l, transfer: transfer, source: source, db: db}
}

// Donate validates the donation, initiates the transfer to the post's
// author, and blocks until the outcome is known. Only a successful transfer
// appends a donation log; a failed transfer leaves the ledger untouched and
// surfaces ErrTransferFailed. No ledger lock is held while the transfer is
// in flight, so other operations interleave freely and concurrent donations
// record in transfer-completion order.
func (c *Coordinator) Donate(ctx context.Context, postID uint64, amount, attached models.Amount, message string) (*models.DonationLog, error) {
	donor, err := c.source.Caller(ctx)
	if err != nil {
		return nil, err
	}

	post, err := c.ledger.Post(postID)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ledger.ErrValidation)
	}
	// the donor's attached value covers the donation, not the ledger's own
	// balance
	if attached.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: attached %s is less than amount %s", ledger.ErrInsufficientFunds, attached.String(), amount.String())
	}

	state := newSettlementState()
	s := &Settlement{
		ID:          uuid.NewString(),
		PostID:      postID,
		Donor:       donor,
		Recipient:   post.Author,
		Amount:      amount,
		Message:     message,
		Status:      state.Current(),
		InitiatedAt: c.source.Now(),
	}

	if err := state.Event(ctx, EventInitiate); err != nil {
		return nil, err
	}
	s.Status = state.Current()
	if err := c.put(s); err != nil {
		return nil, err
	}

	// suspension point: the donation is pending and invisible to readers
	// until the transfer resolves
	transferErr := <-c.transfer.Transfer(donor, post.Author, amount)

	if transferErr != nil {
		if err := c.finalize(ctx, state, s, EventFail, transferErr, nil); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ledger.ErrTransferFailed, transferErr)
	}

	entry, err := c.ledger.RecordDonation(postID, donor, amount, message, c.source.Now())
	if err != nil {
		// the value moved but the proof could not be written (the post may
		// have been deleted mid-flight); there is no refund leg, so the
		// settlement keeps the failure and the caller sees the record error
		if ferr := c.finalize(ctx, state, s, EventFail, err, nil); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}

	if err := c.finalize(ctx, state, s, EventRecord, nil, &entry.ID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Coordinator) finalize(ctx context.Context, state *fsm.FSM, s *Settlement, event string, cause error, donationID *uint64) error {
	if err := state.Event(ctx, event); err != nil {
		return err
	}
	s.Status = state.Current()
	if cause != nil {
		s.Error = cause.Error()
	}
	s.DonationID = donationID
	s.SettledAt = c.source.Now()
	return c.put(s)
}

func (c *Coordinator) put(s *Settlement) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(settlementKeyPrefix+s.ID), data)
	})
}

// Settlement returns one settlement record by correlation ID.
func (c *Coordinator) Settlement(id string) (*Settlement, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var s Settlement
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(settlementKeyPrefix + id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: settlement %s", ledger.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Settlements lists all settlement records, oldest initiation first.
func (c *Coordinator) Settlements() ([]Settlement, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	settlements := []Settlement{}
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(settlementKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s Settlement
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				return err
			}
			settlements = append(settlements, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(settlements, func(i, j int) bool {
		if settlements[i].InitiatedAt.Equal(settlements[j].InitiatedAt) {
			return settlements[i].ID < settlements[j].ID
		}
		return settlements[i].InitiatedAt.Before(settlements[j].InitiatedAt)
	})
	return settlements, nil
}
