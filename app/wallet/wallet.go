// Package wallet tracks account balances and the movement journal backing
// the donation flow's value leg. Balances live under `account:` keys as
// decimal strings; every movement appends journal entries under
// `walletlog:` so each balance change is explained by exactly one record.
package wallet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"patronpress/app/models"
)

var (
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	ErrInvalidAmount       = errors.New("wallet: invalid amount")
)

const (
	accountKeyPrefix = "account:"
	logKeyPrefix     = "walletlog:"
	logSeqKey        = "walletmeta:seq"
)

// Journal entry kinds. A transfer writes a debit and a credit; a deposit
// writes a single record.
const (
	KindDeposit = "deposit"
	KindDebit   = "debit"
	KindCredit  = "credit"
)

// Entry is one journal record.
type Entry struct {
	Seq           uint64         `json:"seq"`
	Kind          string         `json:"kind"`
	Account       models.Account `json:"account"`
	Counterparty  models.Account `json:"counterparty,omitempty"`
	Amount        models.Amount  `json:"amount"`
	BalanceBefore models.Amount  `json:"balance_before"`
	BalanceAfter  models.Amount  `json:"balance_after"`
	Memo          string         `json:"memo,omitempty"`
	At            time.Time      `json:"at"`
}

type Store struct {
	db    *badger.DB
	mutex sync.RWMutex
	now   func() time.Time
}

func NewStore(db *badger.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func accountKey(account models.Account) []byte {
	return []byte(accountKeyPrefix + string(account))
}

func logKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", logKeyPrefix, seq))
}

// Deposit credits an account and journals the top-up. Returns the balance
// after the credit.
func (s *Store) Deposit(account models.Account, amount models.Amount, memo string) (models.Amount, error) {
	if amount.IsZero() {
		return models.Amount{}, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAmount)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	var after models.Amount
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		before, err := getBalance(txn, account)
		if err != nil {
			return err
		}
		after = before.Add(amount)
		if err := putBalance(txn, account, after); err != nil {
			return err
		}
		return appendEntry(txn, Entry{
			Kind:          KindDeposit,
			Account:       account,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  after,
			Memo:          memo,
			At:            now,
		})
	})
	if err != nil {
		return models.Amount{}, err
	}
	return after, nil
}

// Balance returns an account's current balance; unknown accounts hold zero.
func (s *Store) Balance(account models.Account) (models.Amount, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var bal models.Amount
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		bal, err = getBalance(txn, account)
		return err
	})
	return bal, err
}

// Transfer moves amount between accounts, debiting and crediting in one
// transaction. The outcome arrives on the returned channel, future style;
// nil means the transfer committed.
func (s *Store) Transfer(from, to models.Account, amount models.Amount) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.transfer(from, to, amount)
	}()
	return done
}

func (s *Store) transfer(from, to models.Account, amount models.Amount) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAmount)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	return s.db.Update(func(txn *badger.Txn) error {
		fromBefore, err := getBalance(txn, from)
		if err != nil {
			return err
		}
		if fromBefore.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, fromBefore.String(), amount.String())
		}
		fromAfter, err := fromBefore.Sub(amount)
		if err != nil {
			return err
		}
		if err := putBalance(txn, from, fromAfter); err != nil {
			return err
		}
		err = appendEntry(txn, Entry{
			Kind:          KindDebit,
			Account:       from,
			Counterparty:  to,
			Amount:        amount,
			BalanceBefore: fromBefore,
			BalanceAfter:  fromAfter,
			At:            now,
		})
		if err != nil {
			return err
		}

		// a self-transfer reads its own debit here and nets out to zero
		toBefore, err := getBalance(txn, to)
		if err != nil {
			return err
		}
		toAfter := toBefore.Add(amount)
		if err := putBalance(txn, to, toAfter); err != nil {
			return err
		}
		return appendEntry(txn, Entry{
			Kind:          KindCredit,
			Account:       to,
			Counterparty:  from,
			Amount:        amount,
			BalanceBefore: toBefore,
			BalanceAfter:  toAfter,
			At:            now,
		})
	})
}

// Entries returns the journal oldest first. A non-empty account filters to
// that account's movements.
func (s *Store) Entries(account models.Account) ([]Entry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := []Entry{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(logKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if account == "" || e.Account == account {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func getBalance(txn *badger.Txn, account models.Account) (models.Amount, error) {
	item, err := txn.Get(accountKey(account))
	if err == badger.ErrKeyNotFound {
		return models.Amount{}, nil
	}
	if err != nil {
		return models.Amount{}, err
	}

	var bal models.Amount
	err = item.Value(func(val []byte) error {
		var perr error
		bal, perr = models.ParseAmount(string(val))
		return perr
	})
	return bal, err
}

func putBalance(txn *badger.Txn, account models.Account, bal models.Amount) error {
	return txn.Set(accountKey(account), []byte(bal.String()))
}

func appendEntry(txn *badger.Txn, e Entry) error {
	seq, err := nextSeq(txn)
	if err != nil {
		return err
	}
	e.Seq = seq

	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return txn.Set(logKey(seq), data)
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get([]byte(logSeqKey))
	if err == nil {
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("wallet: malformed journal sequence")
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq+1)
	if err := txn.Set([]byte(logSeqKey), buf); err != nil {
		return 0, err
	}
	return seq, nil
}
