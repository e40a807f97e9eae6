package format

import (
	"bytes"
	"fmt"
)

// DBRecord is a big data header for values above DBChunkSize bytes.
//
//	Offset  Size  Field
//	0x00    2     'd' 'b'
//	0x02    2     Number of segments
//	0x04    4     Offset of the segment list cell
//	0x08    4     Unused
//
// The segment list is a bare array of cell offsets; each segment cell carries
// up to DBChunkSize bytes of the value, concatenated in order.
type DBRecord struct {
	NumBlocks       uint16
	BlocklistOffset uint32
}

// DecodeDB decodes a DB payload.
func DecodeDB(b []byte) (DBRecord, error) {
	if len(b) < DBHeaderSize {
		return DBRecord{}, fmt.Errorf("db: %w (need %d bytes, have %d)", ErrTruncated, DBHeaderSize, len(b))
	}
	if !bytes.Equal(b[:SignatureSize], DBSignature) {
		return DBRecord{}, fmt.Errorf("db: %w", ErrSignatureMismatch)
	}
	return DBRecord{
		NumBlocks:       ReadU16(b, DBCountOffset),
		BlocklistOffset: ReadU32(b, DBListOffset),
	}, nil
}

// IsDBRecord reports whether payload starts with the "db" signature.
func IsDBRecord(b []byte) bool {
	return len(b) >= SignatureSize && bytes.Equal(b[:SignatureSize], DBSignature)
}

// EncodeDB writes a DB header into b (DBHeaderSize bytes).
func EncodeDB(b []byte, db DBRecord) error {
	if len(b) < DBHeaderSize {
		return fmt.Errorf("db: %w", ErrTruncated)
	}
	copy(b, DBSignature)
	PutU16(b, DBCountOffset, db.NumBlocks)
	PutU32(b, DBListOffset, db.BlocklistOffset)
	PutU32(b, DBUnknown1Offset, 0)
	return nil
}

// DBBlockCount returns how many segments a value of n bytes needs.
func DBBlockCount(n int) int {
	return (n + DBChunkSize - 1) / DBChunkSize
}
