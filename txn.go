package kvfs

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	ROOT_INO = 1

	// NO_PARENT is the pseudo-parent used when creating the root inode;
	// it skips all index and listing maintenance.
	NO_PARENT = 0

	BLOCK_SIZE = 64 * 1024

	// Files at or below this size keep their content inside the inode
	// record instead of the block region.
	INLINE_DATA_THRESHOLD = 4 * 1024
)

// Txn stages the reads and writes of filesystem operations inside one
// open store transaction. It never commits: the caller owns the
// transaction lifecycle, including retrying the whole operation when an
// optimistic commit loses a conflict. The first error aborts an operation
// and nothing already staged becomes durable unless the caller commits
// anyway.
type Txn struct {
	tx Tx
}

func NewTxn(tx Tx) *Txn {
	return &Txn{tx: tx}
}

// ReadMeta returns the filesystem metadata record, or nil if the
// filesystem has never allocated an inode.
func (t *Txn) ReadMeta() (*Meta, error) {
	data, err := t.tx.Get(metaKey())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	meta := &Meta{}
	err = meta.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (t *Txn) SaveMeta(meta *Meta) error {
	data, err := meta.MarshalBinary()
	if err != nil {
		return err
	}
	return t.tx.Put(metaKey(), data)
}

// MakeInode allocates an inode number, links name into parent and
// persists the fresh inode record. The counter is bumped before the
// duplicate-name check, so an aborted create observed a consumed number;
// numbers are 64 bit and the staged counter write dies with the
// transaction, so this is harmless in practice.
func (t *Txn) MakeInode(parent uint64, name string, mode uint32, uid, gid uint32) (*Inode, error) {
	meta, err := t.ReadMeta()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &Meta{NextIno: ROOT_INO}
	}
	ino := meta.NextIno
	meta.NextIno += 1
	err = t.SaveMeta(meta)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"ino": ino, "name": name}).Debug("allocated inode")

	if parent >= ROOT_INO {
		_, existing, err := t.GetIndex(parent, name)
		if err != nil {
			return nil, err
		}
		if existing {
			return nil, fmt.Errorf("%q: %w", name, ErrExist)
		}
		err = t.SetIndex(parent, name, ino)
		if err != nil {
			return nil, err
		}
		dir, err := t.ReadDir(parent)
		if err != nil {
			return nil, err
		}
		dir = append(dir, DirEnt{
			Ino:  ino,
			Name: name,
			Mode: mode & S_IFMT,
		})
		err = t.SaveDir(parent, dir)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	inode := &Inode{
		Ino:     ino,
		Mode:    mode,
		Nlink:   1,
		Uid:     uid,
		Gid:     gid,
		Blksize: BLOCK_SIZE,
		Lock:    NewLockState(),
	}
	inode.SetAtime(now)
	inode.SetMtime(now)
	inode.SetCtime(now)
	inode.SetCrtime(now)

	err = t.SaveInode(inode)
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// Mkdir creates a directory inode along with its empty listing blob.
func (t *Txn) Mkdir(parent uint64, name string, mode uint32, uid, gid uint32) (*Inode, error) {
	inode, err := t.MakeInode(parent, name, S_IFDIR|(mode&^S_IFMT), uid, gid)
	if err != nil {
		return nil, err
	}
	err = t.SaveDir(inode.Ino, Directory{})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

func (t *Txn) GetIndex(parent uint64, name string) (uint64, bool, error) {
	data, err := t.tx.Get(indexKey(parent, name))
	if err != nil {
		return 0, false, err
	}
	if data == nil {
		return 0, false, nil
	}
	entry := indexEntry{}
	err = unmarshalRecord(data, &entry)
	if err != nil {
		return 0, false, err
	}
	return entry.Ino, true, nil
}

func (t *Txn) SetIndex(parent uint64, name string, ino uint64) error {
	data, err := marshalRecord(&indexEntry{Ino: ino})
	if err != nil {
		return err
	}
	return t.tx.Put(indexKey(parent, name), data)
}

func (t *Txn) RemoveIndex(parent uint64, name string) error {
	return t.tx.Delete(indexKey(parent, name))
}

// Lookup resolves name within parent via the point-lookup index.
func (t *Txn) Lookup(parent uint64, name string) (uint64, error) {
	ino, ok, err := t.GetIndex(parent, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrNotExist)
	}
	return ino, nil
}

func (t *Txn) ReadInode(ino uint64) (*Inode, error) {
	data, err := t.tx.Get(inodeKey(ino))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("inode %d: %w", ino, ErrInodeMissing)
	}
	inode := &Inode{}
	err = inode.UnmarshalBinary(data)
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// SaveInode persists an inode record, enforcing the tombstone rule: a
// link count of zero deletes the record instead of writing a zero-valued
// one. Every mutation funnels through here so no call site can leave a
// dead record behind.
func (t *Txn) SaveInode(inode *Inode) error {
	if inode.Nlink == 0 {
		return t.tx.Delete(inodeKey(inode.Ino))
	}
	data, err := inode.MarshalBinary()
	if err != nil {
		return err
	}
	return t.tx.Put(inodeKey(inode.Ino), data)
}

func (t *Txn) RemoveInode(ino uint64) error {
	return t.tx.Delete(inodeKey(ino))
}

// ReadDir decodes a directory's listing blob. A directory inode without
// its blob is a missing block, not a missing inode.
func (t *Txn) ReadDir(ino uint64) (Directory, error) {
	data, err := t.tx.Get(dirKey(ino))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("inode %d block 0: %w", ino, ErrBlockMissing)
	}
	return decodeDirectory(data)
}

// SaveDir rewrites a directory's listing in full and re-derives the
// owning inode's size from the encoded length.
func (t *Txn) SaveDir(ino uint64, dir Directory) error {
	data, err := encodeDirectory(dir)
	if err != nil {
		return err
	}
	inode, err := t.ReadInode(ino)
	if err != nil {
		return err
	}
	now := time.Now()
	inode.SetSize(uint64(len(data)))
	inode.SetAtime(now)
	inode.SetMtime(now)
	inode.SetCtime(now)
	err = t.SaveInode(inode)
	if err != nil {
		return err
	}
	return t.tx.Put(dirKey(ino), data)
}

// Link points (newParent, newName) at ino, first detaching whatever the
// name currently resolves to, and bumps ino's link count.
func (t *Txn) Link(ino, newParent uint64, newName string) (*Inode, error) {
	oldIno, ok, err := t.GetIndex(newParent, newName)
	if err != nil {
		return nil, err
	}
	if ok {
		old, err := t.ReadInode(oldIno)
		if err != nil {
			return nil, err
		}
		if old.IsDir() {
			err = t.Rmdir(newParent, newName)
		} else {
			err = t.Unlink(newParent, newName)
		}
		if err != nil {
			return nil, err
		}
	}
	err = t.SetIndex(newParent, newName, ino)
	if err != nil {
		return nil, err
	}

	inode, err := t.ReadInode(ino)
	if err != nil {
		return nil, err
	}
	dir, err := t.ReadDir(newParent)
	if err != nil {
		return nil, err
	}
	dir = append(dir, DirEnt{
		Ino:  ino,
		Name: newName,
		Mode: inode.Mode & S_IFMT,
	})
	err = t.SaveDir(newParent, dir)
	if err != nil {
		return nil, err
	}

	inode.Nlink += 1
	inode.SetCtime(time.Now())
	err = t.SaveInode(inode)
	if err != nil {
		return nil, err
	}
	return inode, nil
}

// Unlink removes name from parent and drops one reference from the
// target. SaveInode turns the final decrement into record removal.
func (t *Txn) Unlink(parent uint64, name string) error {
	ino, ok, err := t.GetIndex(parent, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotExist)
	}

	err = t.RemoveIndex(parent, name)
	if err != nil {
		return err
	}
	dir, err := t.ReadDir(parent)
	if err != nil {
		return err
	}
	kept := dir[:0]
	for _, ent := range dir {
		if ent.Name != name {
			kept = append(kept, ent)
		}
	}
	err = t.SaveDir(parent, kept)
	if err != nil {
		return err
	}

	inode, err := t.ReadInode(ino)
	if err != nil {
		return err
	}
	inode.Nlink -= 1
	inode.SetCtime(time.Now())
	return t.SaveInode(inode)
}

// Rmdir removes an empty directory: index entry, inode record and the
// parent listing entry, all in this transaction.
func (t *Txn) Rmdir(parent uint64, name string) error {
	ino, ok, err := t.GetIndex(parent, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotExist)
	}

	target, err := t.ReadDir(ino)
	if err != nil {
		return err
	}
	if len(target) != 0 {
		return fmt.Errorf("%q: %w", name, ErrNotEmpty)
	}

	err = t.RemoveIndex(parent, name)
	if err != nil {
		return err
	}
	err = t.RemoveInode(ino)
	if err != nil {
		return err
	}
	err = t.tx.Delete(dirKey(ino))
	if err != nil {
		return err
	}

	dir, err := t.ReadDir(parent)
	if err != nil {
		return err
	}
	kept := dir[:0]
	for _, ent := range dir {
		if ent.Name != name {
			kept = append(kept, ent)
		}
	}
	return t.SaveDir(parent, kept)
}

// promoteInline materializes the inline buffer as block 0, zero padded to
// a full block, and clears it. After promotion the inode is block backed
// for the rest of its life.
func (t *Txn) promoteInline(inode *Inode) error {
	block := make([]byte, BLOCK_SIZE)
	copy(block, inode.Data)
	err := t.tx.Put(blockKey(inode.Ino, 0), block)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"ino": inode.Ino, "size": inode.Size}).Debug("promoted inline data to block storage")
	inode.Data = nil
	return nil
}

func (t *Txn) writeInline(inode *Inode, start uint64, data []byte) (int, error) {
	buf := inode.Data
	if start+uint64(len(data)) > uint64(len(buf)) {
		grown := make([]byte, start+uint64(len(data)))
		copy(grown, buf)
		buf = grown
	}
	copy(buf[start:], data)

	now := time.Now()
	inode.SetAtime(now)
	inode.SetMtime(now)
	inode.SetCtime(now)
	inode.SetSize(uint64(len(buf)))
	inode.Data = buf
	err := t.SaveInode(inode)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (t *Txn) readInline(inode *Inode, start, size uint64) ([]byte, error) {
	data := make([]byte, size)
	if uint64(len(inode.Data)) > start {
		copy(data, inode.Data[start:])
	}
	inode.SetAtime(time.Now())
	err := t.SaveInode(inode)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ReadData reads up to size bytes of ino starting at start, clamped to
// the file's logical size. Block-backed content is fetched with a single
// bounded range scan; block indexes absent from the scan are holes and
// read as zeros.
func (t *Txn) ReadData(ino, start, size uint64) ([]byte, error) {
	inode, err := t.ReadInode(ino)
	if err != nil {
		return nil, err
	}
	if start >= inode.Size {
		return nil, nil
	}
	if size > inode.Size-start {
		size = inode.Size - start
	}

	if inode.Data != nil {
		return t.readInline(inode, start, size)
	}

	target := start + size
	startBlock := start / BLOCK_SIZE
	endBlock := (target + BLOCK_SIZE - 1) / BLOCK_SIZE

	begin, end := blockRange(ino, startBlock, endBlock)
	pairs, err := t.tx.Scan(begin, end, int(endBlock-startBlock))
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, (endBlock-startBlock)*BLOCK_SIZE)
	next := startBlock
	for _, kv := range pairs {
		index := blockIndexFromKey(kv.Key)
		for ; next < index; next++ {
			data = append(data, make([]byte, BLOCK_SIZE)...)
		}
		data = append(data, kv.Value...)
		if len(kv.Value) < BLOCK_SIZE {
			data = append(data, make([]byte, BLOCK_SIZE-len(kv.Value))...)
		}
		next += 1
	}

	skip := start % BLOCK_SIZE
	if uint64(len(data)) > skip {
		data = data[skip:]
	} else {
		data = nil
	}
	// Trailing holes and the final partial block resolve here.
	if uint64(len(data)) < size {
		data = append(data, make([]byte, size-uint64(len(data)))...)
	} else {
		data = data[:size]
	}

	inode.SetAtime(time.Now())
	err = t.SaveInode(inode)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ClearData deletes every materialized block of ino and resets its size,
// returning the previous size. Inline-backed files are cleared through
// the inline write path instead.
func (t *Txn) ClearData(ino uint64) (uint64, error) {
	inode, err := t.ReadInode(ino)
	if err != nil {
		return 0, err
	}
	endBlock := (inode.Size + BLOCK_SIZE - 1) / BLOCK_SIZE
	for block := uint64(0); block < endBlock; block++ {
		err = t.tx.Delete(blockKey(ino, block))
		if err != nil {
			return 0, err
		}
	}

	clearSize := inode.Size
	inode.SetSize(0)
	inode.SetAtime(time.Now())
	err = t.SaveInode(inode)
	if err != nil {
		return 0, err
	}
	return clearSize, nil
}

// WriteData writes data at start, growing the file as needed. Small
// files stay inline; a write that pushes the size past the threshold
// promotes the inline buffer to block 0 first. Block writes are
// read-modify-write so bytes outside the written range of a block are
// preserved.
func (t *Txn) WriteData(ino, start uint64, data []byte) (int, error) {
	inode, err := t.ReadInode(ino)
	if err != nil {
		return 0, err
	}
	target := start + uint64(len(data))

	if inode.Data != nil && target > INLINE_DATA_THRESHOLD {
		err = t.promoteInline(inode)
		if err != nil {
			return 0, err
		}
	}

	if (inode.Data != nil || inode.Size == 0) && target <= INLINE_DATA_THRESHOLD {
		return t.writeInline(inode, start, data)
	}

	blockIndex := start / BLOCK_SIZE
	startOffset := start % BLOCK_SIZE

	firstLen := BLOCK_SIZE - startOffset
	if firstLen > uint64(len(data)) {
		firstLen = uint64(len(data))
	}
	first, rest := data[:firstLen], data[firstLen:]

	firstKey := blockKey(ino, blockIndex)
	block, err := t.tx.Get(firstKey)
	if err != nil {
		return 0, err
	}
	if block == nil {
		block = make([]byte, BLOCK_SIZE)
	}
	copy(block[startOffset:], first)
	err = t.tx.Put(firstKey, block)
	if err != nil {
		return 0, err
	}

	for len(rest) != 0 {
		blockIndex += 1
		key := blockKey(ino, blockIndex)
		n := BLOCK_SIZE
		if n > len(rest) {
			n = len(rest)
		}
		var value []byte
		if n < BLOCK_SIZE {
			// Partial tail block: keep whatever lies beyond the write.
			value, err = t.tx.Get(key)
			if err != nil {
				return 0, err
			}
			if value == nil {
				value = make([]byte, BLOCK_SIZE)
			}
			copy(value, rest[:n])
		} else {
			value = rest[:n]
		}
		err = t.tx.Put(key, value)
		if err != nil {
			return 0, err
		}
		rest = rest[n:]
	}

	now := time.Now()
	inode.SetAtime(now)
	inode.SetMtime(now)
	inode.SetCtime(now)
	if target > inode.Size {
		inode.SetSize(target)
	}
	err = t.SaveInode(inode)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Fallocate grows ino to offset+length. Shrinking and hole punching are
// not supported, so anything not beyond the current size is a no-op.
// Growth past the inline threshold promotes and then only bumps the size,
// relying on sparse reads to produce the zeros.
func (t *Txn) Fallocate(inode *Inode, offset, length uint64) error {
	target := offset + length
	if target <= inode.Size {
		return nil
	}

	if inode.Data != nil {
		if target <= INLINE_DATA_THRESHOLD {
			_, err := t.writeInline(inode, inode.Size, make([]byte, target-inode.Size))
			return err
		}
		err := t.promoteInline(inode)
		if err != nil {
			return err
		}
	}

	inode.SetSize(target)
	inode.SetMtime(time.Now())
	return t.SaveInode(inode)
}

// WriteLink stores a symlink target. Symlink content is always inline,
// regardless of the size-based rule for regular files; the inode was
// registered with size zero, and the inline write sets the real length.
func (t *Txn) WriteLink(inode *Inode, target []byte) (int, error) {
	inode.Data = nil
	inode.SetSize(0)
	return t.writeInline(inode, 0, target)
}

func (t *Txn) ReadLink(ino uint64) ([]byte, error) {
	inode, err := t.ReadInode(ino)
	if err != nil {
		return nil, err
	}
	return t.readInline(inode, 0, inode.Size)
}
