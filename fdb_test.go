package kvfs_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kvfs/kvfs"
	"github.com/kvfs/kvfs/testutil"
)

// End to end smoke test against a real fdbserver process. Skipped when
// fdbserver is not installed.
func TestFDBFilesystem(t *testing.T) {
	server := testutil.NewFDBTestServer(t)
	store := server.Dial()
	defer store.Close()

	err := kvfs.Mkfs(store, kvfs.MkfsOpts{})
	if err != nil {
		t.Fatal(err)
	}
	fs, err := kvfs.Attach(store, kvfs.AttachOpts{})
	if err != nil {
		t.Fatal(err)
	}

	f, err := fs.Mknod(kvfs.ROOT_INO, "f", kvfs.MknodOpts{
		Mode: kvfs.S_IFREG | 0o644,
	})
	if err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0xcd}, 2*kvfs.BLOCK_SIZE+123)
	n, err := fs.WriteData(f.Ino, 0, data)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Fatalf("short write: %d", n)
	}

	got, err := fs.ReadData(f.Ino, 0, uint64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read back different data")
	}

	dir, err := fs.ReadDir(kvfs.ROOT_INO)
	if err != nil {
		t.Fatal(err)
	}
	if len(dir) != 1 || dir[0].Name != "f" {
		t.Fatalf("unexpected listing: %v", dir)
	}

	err = fs.Unlink(kvfs.ROOT_INO, "f")
	if err != nil {
		t.Fatal(err)
	}
	_, err = fs.GetInode(f.Ino)
	if !errors.Is(err, kvfs.ErrInodeMissing) {
		t.Fatalf("expected ErrInodeMissing, got %v", err)
	}
}
