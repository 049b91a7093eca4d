package kvfs

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestBadgerScan(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.Transact(func(tx Tx) error {
		for i := 0; i < 10; i++ {
			err := tx.Put([]byte(fmt.Sprintf("k%02d", i)), []byte{byte(i)})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.ReadTransact(func(tx Tx) error {
		kvs, err := tx.Scan([]byte("k02"), []byte("k07"), 0)
		if err != nil {
			return err
		}
		if len(kvs) != 5 {
			t.Fatalf("expected 5 entries, got %d", len(kvs))
		}
		for i, kv := range kvs {
			wantKey := fmt.Sprintf("k%02d", i+2)
			if !bytes.Equal(kv.Key, []byte(wantKey)) {
				t.Fatalf("entry %d has key %q, want %q", i, kv.Key, wantKey)
			}
			if !bytes.Equal(kv.Value, []byte{byte(i + 2)}) {
				t.Fatalf("entry %d has value %v", i, kv.Value)
			}
		}

		kvs, err = tx.Scan([]byte("k00"), []byte("k99"), 3)
		if err != nil {
			return err
		}
		if len(kvs) != 3 {
			t.Fatalf("limit ignored, got %d entries", len(kvs))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBadgerGetAbsent(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.ReadTransact(func(tx Tx) error {
		v, err := tx.Get([]byte("nothing"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Fatalf("absent key returned %v", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBadgerReadTransactRejectsWrites(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.ReadTransact(func(tx Tx) error {
		return tx.Put([]byte("k"), []byte("v"))
	})
	if !errors.Is(err, ErrReadOnlyTx) {
		t.Fatalf("expected ErrReadOnlyTx, got %v", err)
	}
}

func TestBadgerDelete(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.Transact(func(tx Tx) error {
		return tx.Put([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.Transact(func(tx Tx) error {
		err := tx.Delete([]byte("k"))
		if err != nil {
			return err
		}
		// Deletes are visible within the same transaction.
		v, err := tx.Get([]byte("k"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Fatalf("deleted key still visible: %v", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = store.ReadTransact(func(tx Tx) error {
		v, err := tx.Get([]byte("k"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Fatalf("deleted key came back: %v", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBadgerDomainErrorPassthrough(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.Transact(func(tx Tx) error {
		return ErrNotExist
	})
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if errors.Is(err, ErrStore) {
		t.Fatal("domain error was wrapped as a store error")
	}
}
