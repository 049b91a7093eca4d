package kvfs

import "time"

const (
	S_IFMT   uint32 = 0o170000
	S_IFREG  uint32 = 0o100000
	S_IFDIR  uint32 = 0o040000
	S_IFLNK  uint32 = 0o120000
	S_IFIFO  uint32 = 0o010000
	S_IFCHR  uint32 = 0o020000
	S_IFBLK  uint32 = 0o060000
	S_IFSOCK uint32 = 0o140000
)

const F_UNLCK = 2

// LockState is the advisory lock slot persisted on every inode. This layer
// stores and round-trips it; interpreting or enforcing locks is the mount
// layer's business.
type LockState struct {
	Owners []uint64
	Kind   int32
}

func NewLockState() LockState {
	return LockState{Kind: F_UNLCK}
}

// Inode is the per-file metadata record. Data is the inline content buffer
// for files at or below INLINE_DATA_THRESHOLD bytes that were never
// promoted to block storage; a nil Data means content (if any) lives in
// the block region. The two are never populated at the same time.
type Inode struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atimesec  int64
	Mtimesec  int64
	Ctimesec  int64
	Crtimesec int64
	Atimensec uint32
	Mtimensec uint32
	Ctimensec uint32
	Crtimensec uint32
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Blksize   uint32
	Flags     uint32
	Lock      LockState
	Data      []byte
}

func (nd *Inode) MarshalBinary() ([]byte, error) {
	return marshalRecord(nd)
}

func (nd *Inode) UnmarshalBinary(data []byte) error {
	return unmarshalRecord(data, nd)
}

func (nd *Inode) IsDir() bool { return nd.Mode&S_IFMT == S_IFDIR }
func (nd *Inode) IsLnk() bool { return nd.Mode&S_IFMT == S_IFLNK }
func (nd *Inode) IsReg() bool { return nd.Mode&S_IFMT == S_IFREG }

// SetSize keeps the derived block count in step with the logical size.
func (nd *Inode) SetSize(size uint64) {
	nd.Size = size
	nd.Blocks = (size + BLOCK_SIZE - 1) / BLOCK_SIZE
}

func (nd *Inode) SetAtime(t time.Time) {
	nd.Atimesec = t.Unix()
	nd.Atimensec = uint32(t.Nanosecond())
}

func (nd *Inode) SetMtime(t time.Time) {
	nd.Mtimesec = t.Unix()
	nd.Mtimensec = uint32(t.Nanosecond())
}

func (nd *Inode) SetCtime(t time.Time) {
	nd.Ctimesec = t.Unix()
	nd.Ctimensec = uint32(t.Nanosecond())
}

func (nd *Inode) SetCrtime(t time.Time) {
	nd.Crtimesec = t.Unix()
	nd.Crtimensec = uint32(t.Nanosecond())
}
