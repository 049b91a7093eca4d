package kvfs

// DirEnt is one entry of a directory listing. Listing order is insertion
// order: mutations append, removals rewrite the listing with the entry
// filtered out.
type DirEnt struct {
	Ino  uint64
	Name string
	Mode uint32
}

// Directory is a directory's full listing, stored as a single serialized
// blob at block 0 of the directory inode and rewritten wholesale on every
// mutation.
type Directory []DirEnt

func encodeDirectory(dir Directory) ([]byte, error) {
	return marshalRecord(dir)
}

func decodeDirectory(data []byte) (Directory, error) {
	var dir Directory
	err := unmarshalRecord(data, &dir)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// indexEntry is the value stored under (parent, name) in the index region.
// It exists in strict 1:1 correspondence with a listing entry of the same
// parent and name.
type indexEntry struct {
	Ino uint64
}
