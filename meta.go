package kvfs

// Meta is the singleton filesystem record. NextIno only ever grows, and it
// is read, bumped and rewritten inside the same transaction as the
// allocation it serves, so committed inode numbers are never reused.
type Meta struct {
	NextIno uint64
}

func (m *Meta) MarshalBinary() ([]byte, error) {
	return marshalRecord(m)
}

func (m *Meta) UnmarshalBinary(data []byte) error {
	return unmarshalRecord(data, m)
}
