package kvfs

import (
	"errors"
	"fmt"

	"github.com/apple/foundationdb/bindings/go/src/fdb"
)

const CURRENT_FDB_API_VERSION = 600

func init() {
	fdb.MustAPIVersion(CURRENT_FDB_API_VERSION)
}

// FDBStore backs the filesystem with a FoundationDB cluster. FoundationDB
// gives us exactly the contract the transaction layer wants: snapshot
// reads, buffered writes and optimistic conflict detection at commit.
// Note the fdb client re-runs the transaction function itself on
// retryable errors, per its own documented behaviour; that loop lives in
// the client, not in this layer.
type FDBStore struct {
	db fdb.Database
}

func OpenFDBStore(clusterFile string) (*FDBStore, error) {
	db, err := fdb.OpenDatabase(clusterFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStore, err)
	}
	return &FDBStore{db: db}, nil
}

func (s *FDBStore) Transact(f func(tx Tx) error) error {
	_, err := s.db.Transact(func(tx fdb.Transaction) (interface{}, error) {
		return nil, f(&fdbTx{fdbReadTx{tx: tx}, tx})
	})
	return wrapFDBError(err)
}

func (s *FDBStore) ReadTransact(f func(tx Tx) error) error {
	_, err := s.db.ReadTransact(func(tx fdb.ReadTransaction) (interface{}, error) {
		return nil, f(&fdbReadTx{tx: tx})
	})
	return wrapFDBError(err)
}

func (s *FDBStore) Close() error {
	return nil
}

// ClusterStatus fetches the cluster status document from the system key
// space, for diagnostics tooling.
func (s *FDBStore) ClusterStatus() ([]byte, error) {
	v, err := s.db.Transact(func(tx fdb.Transaction) (interface{}, error) {
		tx.Options().SetReadSystemKeys()
		return tx.Get(fdb.Key("\xff\xff/status/json")).Get()
	})
	if err != nil {
		return nil, wrapFDBError(err)
	}
	status, _ := v.([]byte)
	return status, nil
}

// wrapFDBError tags fdb client errors (including a conflicting commit)
// with ErrStore. Errors raised by the transaction function itself pass
// through untouched so the caller still sees ErrNotExist and friends.
func wrapFDBError(err error) error {
	if err == nil {
		return nil
	}
	var fdbErr fdb.Error
	if errors.As(err, &fdbErr) {
		return fmt.Errorf("%w: %s", ErrStore, err)
	}
	return err
}

type fdbReadTx struct {
	tx fdb.ReadTransaction
}

func (t *fdbReadTx) Get(key []byte) ([]byte, error) {
	v, err := t.tx.Get(fdb.Key(key)).Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStore, err)
	}
	return v, nil
}

func (t *fdbReadTx) Put(key, value []byte) error {
	return fmt.Errorf("%w: %w", ErrStore, ErrReadOnlyTx)
}

func (t *fdbReadTx) Delete(key []byte) error {
	return fmt.Errorf("%w: %w", ErrStore, ErrReadOnlyTx)
}

func (t *fdbReadTx) Scan(begin, end []byte, limit int) ([]KeyValue, error) {
	kvs, err := t.tx.GetRange(fdb.KeyRange{
		Begin: fdb.Key(begin),
		End:   fdb.Key(end),
	}, fdb.RangeOptions{
		Limit: limit,
	}).GetSliceWithError()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStore, err)
	}
	out := make([]KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, KeyValue{Key: kv.Key, Value: kv.Value})
	}
	return out, nil
}

type fdbTx struct {
	fdbReadTx
	tx fdb.Transaction
}

func (t *fdbTx) Put(key, value []byte) error {
	t.tx.Set(fdb.Key(key), value)
	return nil
}

func (t *fdbTx) Delete(key []byte) error {
	t.tx.Clear(fdb.Key(key))
	return nil
}
