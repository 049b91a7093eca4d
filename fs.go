package kvfs

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const CURRENT_SCHEMA_VERSION = 1

type MkfsOpts struct {
	Overwrite bool
}

// Mkfs formats a filesystem: schema version, the inode counter seeded
// past the root, the root directory inode and its empty listing.
func Mkfs(store Store, opts MkfsOpts) error {
	return store.Transact(func(tx Tx) error {
		version, err := tx.Get(versionKey())
		if err != nil {
			return err
		}
		if version != nil {
			if !opts.Overwrite {
				return errors.New("filesystem already present")
			}
			// Reformatting must leave nothing behind: stale index entries
			// would shadow fresh names and a reallocated inode number would
			// inherit the old file's blocks.
			begin, end := []byte{scopeMeta}, []byte{scopeVersion + 1}
			kvs, err := tx.Scan(begin, end, 0)
			if err != nil {
				return err
			}
			for _, kv := range kvs {
				err = tx.Delete(kv.Key)
				if err != nil {
					return err
				}
			}
		}

		err = tx.Put(versionKey(), []byte{CURRENT_SCHEMA_VERSION})
		if err != nil {
			return err
		}

		t := NewTxn(tx)
		err = t.SaveMeta(&Meta{NextIno: ROOT_INO + 1})
		if err != nil {
			return err
		}

		now := time.Now()
		root := &Inode{
			Ino:     ROOT_INO,
			Mode:    S_IFDIR | 0o755,
			Nlink:   1,
			Blksize: BLOCK_SIZE,
			Lock:    NewLockState(),
		}
		root.SetAtime(now)
		root.SetMtime(now)
		root.SetCtime(now)
		root.SetCrtime(now)
		err = t.SaveInode(root)
		if err != nil {
			return err
		}
		return t.SaveDir(ROOT_INO, Directory{})
	})
}

type AttachOpts struct{}

// Fs runs each filesystem operation in exactly one store transaction.
// Operations that lose an optimistic commit surface ErrStore and may be
// reissued by the caller; nothing here retries.
type Fs struct {
	store Store
}

func Attach(store Store, opts AttachOpts) (*Fs, error) {
	err := store.ReadTransact(func(tx Tx) error {
		version, err := tx.Get(versionKey())
		if err != nil {
			return err
		}
		if version == nil {
			return errors.New("filesystem is not formatted")
		}
		if len(version) != 1 || version[0] != CURRENT_SCHEMA_VERSION {
			return fmt.Errorf("filesystem has different version - expected %d but got %v", CURRENT_SCHEMA_VERSION, version)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to attach: %w", err)
	}
	return &Fs{store: store}, nil
}

type MknodOpts struct {
	Mode       uint32
	Uid        uint32
	Gid        uint32
	LinkTarget []byte
}

func (fs *Fs) Mknod(parent uint64, name string, opts MknodOpts) (*Inode, error) {
	var inode *Inode
	err := fs.store.Transact(func(tx Tx) error {
		t := NewTxn(tx)
		var err error
		if opts.Mode&S_IFMT == S_IFDIR {
			inode, err = t.Mkdir(parent, name, opts.Mode, opts.Uid, opts.Gid)
		} else {
			inode, err = t.MakeInode(parent, name, opts.Mode, opts.Uid, opts.Gid)
		}
		if err != nil {
			return err
		}
		if opts.Mode&S_IFMT == S_IFLNK {
			_, err = t.WriteLink(inode, opts.LinkTarget)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

func (fs *Fs) Lookup(parent uint64, name string) (*Inode, error) {
	var inode *Inode
	err := fs.store.ReadTransact(func(tx Tx) error {
		t := NewTxn(tx)
		ino, err := t.Lookup(parent, name)
		if err != nil {
			return err
		}
		inode, err = t.ReadInode(ino)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

func (fs *Fs) GetInode(ino uint64) (*Inode, error) {
	var inode *Inode
	err := fs.store.ReadTransact(func(tx Tx) error {
		var err error
		inode, err = NewTxn(tx).ReadInode(ino)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

func (fs *Fs) Link(ino, newParent uint64, newName string) (*Inode, error) {
	var inode *Inode
	err := fs.store.Transact(func(tx Tx) error {
		var err error
		inode, err = NewTxn(tx).Link(ino, newParent, newName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inode, nil
}

func (fs *Fs) Unlink(parent uint64, name string) error {
	return fs.store.Transact(func(tx Tx) error {
		return NewTxn(tx).Unlink(parent, name)
	})
}

func (fs *Fs) Rmdir(parent uint64, name string) error {
	return fs.store.Transact(func(tx Tx) error {
		return NewTxn(tx).Rmdir(parent, name)
	})
}

func (fs *Fs) ReadDir(ino uint64) (Directory, error) {
	var dir Directory
	err := fs.store.ReadTransact(func(tx Tx) error {
		var err error
		dir, err = NewTxn(tx).ReadDir(ino)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

func (fs *Fs) ReadData(ino, offset, size uint64) ([]byte, error) {
	var data []byte
	err := fs.store.Transact(func(tx Tx) error {
		var err error
		data, err = NewTxn(tx).ReadData(ino, offset, size)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (fs *Fs) WriteData(ino, offset uint64, data []byte) (int, error) {
	var n int
	err := fs.store.Transact(func(tx Tx) error {
		var err error
		n, err = NewTxn(tx).WriteData(ino, offset, data)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (fs *Fs) ClearData(ino uint64) (uint64, error) {
	var size uint64
	err := fs.store.Transact(func(tx Tx) error {
		var err error
		size, err = NewTxn(tx).ClearData(ino)
		return err
	})
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (fs *Fs) Fallocate(ino, offset, length uint64) error {
	return fs.store.Transact(func(tx Tx) error {
		t := NewTxn(tx)
		inode, err := t.ReadInode(ino)
		if err != nil {
			return err
		}
		return t.Fallocate(inode, offset, length)
	})
}

func (fs *Fs) ReadSymlink(ino uint64) ([]byte, error) {
	var target []byte
	err := fs.store.Transact(func(tx Tx) error {
		var err error
		target, err = NewTxn(tx).ReadLink(ino)
		return err
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (fs *Fs) Close() error {
	return fs.store.Close()
}

type FsStats struct {
	NextIno      uint64
	Inodes       uint64
	Blocks       uint64
	IndexEntries uint64
}

// countRange pages through a key region in bounded scans so no single
// transaction reads more than one batch.
func (fs *Fs) countRange(scope byte) (uint64, error) {
	count := uint64(0)
	begin, end := scopeRange(scope)
	for {
		var kvs []KeyValue
		err := fs.store.ReadTransact(func(tx Tx) error {
			var err error
			kvs, err = tx.Scan(begin, end, 1000)
			return err
		})
		if err != nil {
			return count, err
		}
		if len(kvs) == 0 {
			return count, nil
		}
		count += uint64(len(kvs))
		// Resume immediately after the last key seen.
		last := kvs[len(kvs)-1].Key
		begin = append(append([]byte{}, last...), 0)
	}
}

func (fs *Fs) Stats() (FsStats, error) {
	stats := FsStats{}
	err := fs.store.ReadTransact(func(tx Tx) error {
		meta, err := NewTxn(tx).ReadMeta()
		if err != nil {
			return err
		}
		if meta != nil {
			stats.NextIno = meta.NextIno
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats.Inodes, err = fs.countRange(scopeInode)
	if err != nil {
		return stats, err
	}
	stats.Blocks, err = fs.countRange(scopeBlock)
	if err != nil {
		return stats, err
	}
	stats.IndexEntries, err = fs.countRange(scopeIndex)
	if err != nil {
		return stats, err
	}

	log.WithFields(log.Fields{
		"next_ino": stats.NextIno,
		"inodes":   stats.Inodes,
	}).Debug("collected fs stats")
	return stats, nil
}
