package kvfs

import (
	"bytes"
	"testing"
)

func TestBlockKeyOrdering(t *testing.T) {
	// Byte order of block keys must match numeric (ino, index) order,
	// including across the byte boundaries big-endian encoding protects.
	pairs := [][2]uint64{
		{1, 0},
		{1, 1},
		{1, 255},
		{1, 256},
		{1, 1 << 32},
		{2, 0},
		{255, 9},
		{256, 0},
	}
	for i := 1; i < len(pairs); i++ {
		prev := blockKey(pairs[i-1][0], pairs[i-1][1])
		cur := blockKey(pairs[i][0], pairs[i][1])
		if bytes.Compare(prev, cur) >= 0 {
			t.Fatalf("key for %v does not sort before key for %v", pairs[i-1], pairs[i])
		}
	}
}

func TestBlockRangeCoversExactlyItsBlocks(t *testing.T) {
	begin, end := blockRange(7, 2, 5)
	for index := uint64(0); index < 8; index++ {
		key := blockKey(7, index)
		in := bytes.Compare(key, begin) >= 0 && bytes.Compare(key, end) < 0
		want := index >= 2 && index < 5
		if in != want {
			t.Fatalf("block %d: in range = %t, want %t", index, in, want)
		}
	}
	if k := blockKey(8, 3); bytes.Compare(k, end) < 0 && bytes.Compare(k, begin) >= 0 {
		t.Fatal("range leaked into another inode's blocks")
	}
}

func TestKeyRegionsAreDisjoint(t *testing.T) {
	keys := [][]byte{
		metaKey(),
		inodeKey(0),
		inodeKey(^uint64(0)),
		blockKey(0, 0),
		blockKey(^uint64(0), ^uint64(0)),
		indexKey(0, ""),
		indexKey(^uint64(0), "zzz"),
		versionKey(),
	}
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("key %d does not sort before key %d", i-1, i)
		}
	}
}

func TestBlockIndexFromKey(t *testing.T) {
	for _, index := range []uint64{0, 1, 255, 1 << 40} {
		if got := blockIndexFromKey(blockKey(3, index)); got != index {
			t.Fatalf("got %d, want %d", got, index)
		}
	}
}
