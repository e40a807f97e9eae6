package format

import (
	"encoding/binary"
	"fmt"

	"github.com/joshuapare/offreg/internal/buf"
)

// Little-endian accessors. All hive integers are little-endian.

func PutU16(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:off+2], v) }
func PutU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }
func PutI32(b []byte, off int, v int32)  { binary.LittleEndian.PutUint32(b[off:off+4], uint32(v)) }
func PutU64(b []byte, off int, v uint64) { binary.LittleEndian.PutUint64(b[off:off+8], v) }

func ReadU16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }
func ReadU32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }
func ReadI32(b []byte, off int) int32  { return int32(binary.LittleEndian.Uint32(b[off : off+4])) }
func ReadU64(b []byte, off int) uint64 { return binary.LittleEndian.Uint64(b[off : off+8]) }

// slice returns b[off:off+n] or ErrTruncated.
func slice(b []byte, off, n int) ([]byte, error) {
	s, ok := buf.Slice(b, off, n)
	if !ok {
		return nil, fmt.Errorf("need %d bytes at %d, have %d: %w", n, off, len(b), ErrTruncated)
	}
	return s, nil
}

// listBody returns the count*stride bytes of b starting at off.
func listBody(b []byte, off, count, stride int) ([]byte, error) {
	end, err := buf.CheckListBounds(len(b), off, count, stride)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return b[off:end], nil
}
