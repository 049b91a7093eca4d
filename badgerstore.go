package kvfs

import (
	"bytes"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore backs the filesystem with an embedded Badger database.
// Badger transactions are ordered, snapshot-isolated and optimistic, the
// same model FoundationDB exposes, which makes it a drop-in single-node
// backend and the default store for the test suite. A conflicting commit
// surfaces as badger.ErrConflict wrapped in ErrStore; unlike the fdb
// client, Badger does not re-run the transaction function, so callers
// wanting retry must loop themselves.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStore, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Transact(f func(tx Tx) error) error {
	var ferr error
	err := s.db.Update(func(txn *badger.Txn) error {
		ferr = f(&badgerTx{txn: txn})
		return ferr
	})
	if err != nil && !errors.Is(err, ferr) {
		// Not from f, so it came out of commit.
		return fmt.Errorf("%w: %s", ErrStore, err)
	}
	return err
}

func (s *BadgerStore) ReadTransact(f func(tx Tx) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return f(&badgerTx{txn: txn, readOnly: true})
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

type badgerTx struct {
	txn      *badger.Txn
	readOnly bool
}

func (t *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStore, err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStore, err)
	}
	return v, nil
}

func (t *badgerTx) Put(key, value []byte) error {
	if t.readOnly {
		return fmt.Errorf("%w: %w", ErrStore, ErrReadOnlyTx)
	}
	err := t.txn.Set(key, value)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStore, err)
	}
	return nil
}

func (t *badgerTx) Delete(key []byte) error {
	if t.readOnly {
		return fmt.Errorf("%w: %w", ErrStore, ErrReadOnlyTx)
	}
	err := t.txn.Delete(key)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStore, err)
	}
	return nil
}

func (t *badgerTx) Scan(begin, end []byte, limit int) ([]KeyValue, error) {
	opts := badger.DefaultIteratorOptions
	if limit > 0 && limit < opts.PrefetchSize {
		opts.PrefetchSize = limit
	}
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []KeyValue
	for it.Seek(begin); it.Valid(); it.Next() {
		item := it.Item()
		if bytes.Compare(item.Key(), end) >= 0 {
			break
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStore, err)
		}
		out = append(out, KeyValue{Key: item.KeyCopy(nil), Value: v})
	}
	return out, nil
}
