package format

import (
	"bytes"
	"fmt"
)

// HBIN describes a hive bin header.
//
//	Offset  Size  Field
//	0x00    4     'h' 'b' 'i' 'n'
//	0x04    4     Offset of this bin relative to the first bin
//	0x08    4     Size of the bin, multiple of 0x1000
//	0x14    8     Timestamp (only meaningful in the first bin)
type HBIN struct {
	FileOffset uint32
	Size       uint32
}

// NextHBIN validates the bin header at off (absolute, within the whole file
// image b) and returns it along with the absolute offset of the next bin.
func NextHBIN(b []byte, off int) (HBIN, int, error) {
	head, err := slice(b, off, HBINHeaderSize)
	if err != nil {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: %w", off, err)
	}
	if !bytes.Equal(head[:len(HBINSignature)], HBINSignature) {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: %w", off, ErrSignatureMismatch)
	}
	size := ReadU32(head, HBINSizeOffset)
	if size == 0 || size%HBINAlignment != 0 {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: invalid size %d", off, size)
	}
	next := off + int(size)
	if next > len(b) {
		return HBIN{}, 0, fmt.Errorf("hbin at %#x: %w", off, ErrTruncated)
	}
	return HBIN{FileOffset: ReadU32(head, HBINFileOffsetField), Size: size}, next, nil
}

// EncodeHBIN writes a bin header at the start of b. relOff is the bin's
// offset relative to the first bin.
func EncodeHBIN(b []byte, relOff, size uint32, timestamp uint64) {
	copy(b, HBINSignature)
	PutU32(b, HBINFileOffsetField, relOff)
	PutU32(b, HBINSizeOffset, size)
	PutU64(b, HBINTimeStampOffset, timestamp)
}
