package kvfs

import "encoding/binary"

// Key layout. Every record lives in one of four disjoint regions selected
// by a leading scope byte; all numeric components are big endian so the
// byte order of keys matches their numeric order in both backends.
//
//	meta:  [0]
//	inode: [1] [ino]
//	block: [2] [ino] [index]       (a directory's listing blob is block 0)
//	index: [3] [parent] [name...]
//	vers:  [4]
const (
	scopeMeta byte = iota
	scopeInode
	scopeBlock
	scopeIndex
	scopeVersion
)

func metaKey() []byte {
	return []byte{scopeMeta}
}

func versionKey() []byte {
	return []byte{scopeVersion}
}

func inodeKey(ino uint64) []byte {
	key := make([]byte, 9)
	key[0] = scopeInode
	binary.BigEndian.PutUint64(key[1:], ino)
	return key
}

func blockKey(ino, index uint64) []byte {
	key := make([]byte, 17)
	key[0] = scopeBlock
	binary.BigEndian.PutUint64(key[1:], ino)
	binary.BigEndian.PutUint64(key[9:], index)
	return key
}

// dirKey is where a directory inode keeps its serialized listing.
func dirKey(ino uint64) []byte {
	return blockKey(ino, 0)
}

func indexKey(parent uint64, name string) []byte {
	key := make([]byte, 9, 9+len(name))
	key[0] = scopeIndex
	binary.BigEndian.PutUint64(key[1:], parent)
	return append(key, name...)
}

// blockRange covers blocks [lo, hi) of one inode. Blocks of a single inode
// are contiguous in the block region, so a scan of this range yields them
// in ascending index order.
func blockRange(ino, lo, hi uint64) (begin, end []byte) {
	return blockKey(ino, lo), blockKey(ino, hi)
}

// scopeRange covers an entire region, for whole-filesystem scans.
func scopeRange(scope byte) (begin, end []byte) {
	return []byte{scope}, []byte{scope + 1}
}

func blockIndexFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[9:17])
}
