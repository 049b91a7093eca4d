package kvfs

import (
	"fmt"
	"strings"
)

// KeyValue is one key and its stored bytes, as returned by a range scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Tx is one open transaction against the ordered key-value store. All
// reads observe a consistent snapshot and all writes are staged until the
// owning Store commits. A Get of an absent key returns (nil, nil). Scan
// returns at most limit pairs from [begin, end), ordered by key; a limit
// of zero or less means no limit.
//
// Every error a Tx returns wraps ErrStore.
type Tx interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Scan(begin, end []byte, limit int) ([]KeyValue, error)
}

// Store owns transaction lifecycle: Transact runs f inside a transaction
// and commits when f returns nil, discarding all staged writes otherwise.
// Commit may fail with a conflict under optimistic concurrency control;
// that failure surfaces to the caller of Transact, wrapped in ErrStore,
// and it is the caller who decides whether to run f again from scratch.
type Store interface {
	Transact(f func(tx Tx) error) error
	ReadTransact(f func(tx Tx) error) error
	Close() error
}

// OpenStore opens a store described by a scheme-prefixed path:
//
//	fdb:/etc/foundationdb/fdb.cluster
//	badger:/var/lib/kvfs
//
// A bare path is treated as a badger directory.
func OpenStore(spec string) (Store, error) {
	switch {
	case strings.HasPrefix(spec, "fdb:"):
		return OpenFDBStore(spec[len("fdb:"):])
	case strings.HasPrefix(spec, "badger:"):
		return OpenBadgerStore(spec[len("badger:"):])
	case strings.Contains(spec, ":"):
		return nil, fmt.Errorf("unknown store scheme: %s", spec)
	default:
		return OpenBadgerStore(spec)
	}
}
