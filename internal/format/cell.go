package format

import "fmt"

// Cell layout (little-endian):
//
//	Offset  Size  Description
//	0x00    4     Signed size. Negative => allocated, positive => free.
//	              The absolute value includes the 4-byte header.
//	0x04    ...   Payload. First two bytes form the record tag when allocated.

// CellPayload resolves a cell offset relative to the first HBIN inside the
// full file image and returns the allocated payload.
func CellPayload(image []byte, rel uint32) ([]byte, error) {
	if rel == InvalidOffset {
		return nil, fmt.Errorf("cell: invalid offset: %w", ErrTruncated)
	}
	abs := HeaderSize + int(rel)
	head, err := slice(image, abs, CellHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("cell %#x: %w", rel, err)
	}
	raw := ReadI32(head, 0)
	if raw >= 0 {
		return nil, fmt.Errorf("cell %#x: %w", rel, ErrFreeCell)
	}
	size := int(-raw)
	if size < CellHeaderSize {
		return nil, fmt.Errorf("cell %#x: declared size %d too small: %w", rel, size, ErrTruncated)
	}
	payload, err := slice(image, abs+CellHeaderSize, size-CellHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("cell %#x: %w", rel, err)
	}
	return payload, nil
}

// EncodeCellHeader marks b[0:4] as an allocated cell of the given total size.
func EncodeCellHeader(b []byte, size int) {
	PutI32(b, 0, -int32(size))
}

// EncodeFreeCell marks b[0:4] as a free cell spanning size bytes.
func EncodeFreeCell(b []byte, size int) {
	PutI32(b, 0, int32(size))
}
