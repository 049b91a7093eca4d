package kvfs

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Records are CBOR with core deterministic encoding (RFC 8949 §4.2):
// the same logical record always produces identical bytes. Directory
// inode sizes are defined as the byte length of the encoded listing, so
// encoding stability is load bearing, not cosmetic.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	// The record types expose MarshalBinary/UnmarshalBinary that call back
	// into this codec, so the codec itself must reflect over struct fields
	// rather than honoring those interfaces.
	encOpts := cbor.CoreDetEncOptions()
	encOpts.BinaryMarshaler = cbor.BinaryMarshalerNone
	var err error
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic("kvfs: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		BinaryUnmarshaler: cbor.BinaryUnmarshalerNone,
	}.DecMode()
	if err != nil {
		panic("kvfs: cbor decoder initialization failed: " + err.Error())
	}
}

func marshalRecord(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// unmarshalRecord decodes a stored record. A decode failure means the
// stored bytes are damaged, which is a different condition from the record
// being absent, so it wraps ErrCorrupt rather than ErrNotExist.
func unmarshalRecord(data []byte, v interface{}) error {
	err := decMode.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return nil
}
