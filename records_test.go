package kvfs

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestInodeMarshalAndUnmarshal(t *testing.T) {
	n1 := Inode{
		Ino:     12345,
		Mode:    S_IFREG | 0o644,
		Nlink:   2,
		Uid:     10,
		Gid:     11,
		Rdev:    12,
		Blksize: BLOCK_SIZE,
		Flags:   1,
		Lock:    NewLockState(),
		Data:    []byte("hello"),
	}
	n1.SetSize(5)
	n1.SetAtime(time.Unix(100, 1))
	n1.SetMtime(time.Unix(200, 2))
	n1.SetCtime(time.Unix(300, 3))
	n1.SetCrtime(time.Unix(400, 4))

	buf, err := n1.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	n2 := Inode{}
	err = n2.UnmarshalBinary(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(n1, n2) {
		t.Fatalf("%v != %v", n1, n2)
	}
}

func TestDirectoryEncodeAndDecode(t *testing.T) {
	d1 := Directory{
		{Ino: 2, Name: "foo", Mode: S_IFDIR},
		{Ino: 3, Name: "bar", Mode: S_IFREG},
	}
	buf, err := encodeDirectory(d1)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := decodeDirectory(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d1, d2) {
		t.Fatalf("%v != %v", d1, d2)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	dir := Directory{{Ino: 9, Name: "x", Mode: S_IFREG}}
	a, err := encodeDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := encodeDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same listing encoded to different bytes")
	}
}

func TestRecordsEncodeAsPlainMaps(t *testing.T) {
	// The codec must reflect over struct fields; if it honored the
	// MarshalBinary methods on these types it would recurse into itself.
	inode := Inode{Ino: 1, Mode: S_IFREG, Nlink: 1}
	buf, err := inode.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if buf[0]>>5 != 5 {
		t.Fatalf("inode record is not a cbor map, leading byte %#x", buf[0])
	}
	meta := Meta{NextIno: 2}
	buf, err = meta.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if buf[0]>>5 != 5 {
		t.Fatalf("meta record is not a cbor map, leading byte %#x", buf[0])
	}
}

func TestCorruptRecord(t *testing.T) {
	n := Inode{}
	err := n.UnmarshalBinary([]byte{0xff, 0x00, 0x13, 0x37})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
