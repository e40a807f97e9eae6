package format

import (
	"bytes"
	"fmt"
)

// NKRecord is a key node. Layout:
//
//	Offset  Size  Field
//	0x00    2     'n' 'k'
//	0x02    2     Flags (0x20 => name stored compressed)
//	0x04    8     Last write time (FILETIME)
//	0x0C    4     Access bits
//	0x10    4     Parent cell offset
//	0x14    4     Number of subkeys
//	0x18    4     Number of volatile subkeys
//	0x1C    4     Subkey list offset
//	0x20    4     Volatile subkey list offset
//	0x24    4     Number of values
//	0x28    4     Value list offset
//	0x2C    4     Security (SK) offset
//	0x30    4     Class name offset
//	0x34    4     Max subkey name length (bytes)
//	0x38    4     Max subkey class length (bytes)
//	0x3C    4     Max value name length (bytes)
//	0x40    4     Max value data length (bytes)
//	0x44    4     Work var
//	0x48    2     Name length (bytes)
//	0x4A    2     Class length (bytes)
//	0x4C    n     Name
type NKRecord struct {
	Flags              uint16
	LastWriteRaw       uint64
	ParentOffset       uint32
	SubkeyCount        uint32
	SubkeyListOffset   uint32
	ValueCount         uint32
	ValueListOffset    uint32
	SecurityOffset     uint32
	ClassNameOffset    uint32
	MaxNameLength      uint32
	MaxClassLength     uint32
	MaxValueNameLength uint32
	MaxValueDataLength uint32
	ClassLength        uint16
	NameRaw            []byte
}

// NameIsCompressed reports whether the name is stored as 8-bit characters.
func (nk NKRecord) NameIsCompressed() bool {
	return nk.Flags&NKFlagCompressedName != 0
}

// DecodeNK decodes an NK payload.
func DecodeNK(b []byte) (NKRecord, error) {
	if len(b) < NKFixedHeaderSize {
		return NKRecord{}, fmt.Errorf("nk: %w (have %d, need %d)", ErrTruncated, len(b), NKFixedHeaderSize)
	}
	if !bytes.Equal(b[:SignatureSize], NKSignature) {
		return NKRecord{}, fmt.Errorf("nk: %w", ErrSignatureMismatch)
	}
	nk := NKRecord{
		Flags:              ReadU16(b, NKFlagsOffset),
		LastWriteRaw:       ReadU64(b, NKLastWriteOffset),
		ParentOffset:       ReadU32(b, NKParentOffset),
		SubkeyCount:        ReadU32(b, NKSubkeyCountOffset),
		SubkeyListOffset:   ReadU32(b, NKSubkeyListOffset),
		ValueCount:         ReadU32(b, NKValueCountOffset),
		ValueListOffset:    ReadU32(b, NKValueListOffset),
		SecurityOffset:     ReadU32(b, NKSecurityOffset),
		ClassNameOffset:    ReadU32(b, NKClassNameOffset),
		MaxNameLength:      ReadU32(b, NKMaxNameLenOffset),
		MaxClassLength:     ReadU32(b, NKMaxClassLenOffset),
		MaxValueNameLength: ReadU32(b, NKMaxValueNameOffset),
		MaxValueDataLength: ReadU32(b, NKMaxValueDataOffset),
		ClassLength:        ReadU16(b, NKClassLenOffset),
	}
	if nk.SubkeyCount > MaxSubkeyCount {
		return NKRecord{}, fmt.Errorf("nk subkey count %d: %w", nk.SubkeyCount, ErrSanityLimit)
	}
	if nk.ValueCount > MaxValueCount {
		return NKRecord{}, fmt.Errorf("nk value count %d: %w", nk.ValueCount, ErrSanityLimit)
	}
	name, err := slice(b, NKNameOffset, int(ReadU16(b, NKNameLenOffset)))
	if err != nil {
		return NKRecord{}, fmt.Errorf("nk name: %w", err)
	}
	nk.NameRaw = name
	return nk, nil
}

// NKSize returns the payload size needed to encode nk.
func NKSize(nk NKRecord) int {
	return NKFixedHeaderSize + len(nk.NameRaw)
}

// EncodeNK lays nk out into b, which must hold NKSize(nk) bytes.
func EncodeNK(b []byte, nk NKRecord) error {
	if len(b) < NKSize(nk) {
		return fmt.Errorf("nk: %w", ErrTruncated)
	}
	if len(nk.NameRaw) > MaxNameBytes {
		return fmt.Errorf("nk name length %d: %w", len(nk.NameRaw), ErrSanityLimit)
	}
	copy(b, NKSignature)
	PutU16(b, NKFlagsOffset, nk.Flags)
	PutU64(b, NKLastWriteOffset, nk.LastWriteRaw)
	PutU32(b, NKAccessBitsOffset, 0)
	PutU32(b, NKParentOffset, nk.ParentOffset)
	PutU32(b, NKSubkeyCountOffset, nk.SubkeyCount)
	PutU32(b, NKVolSubkeyCountOffset, 0)
	PutU32(b, NKSubkeyListOffset, nk.SubkeyListOffset)
	PutU32(b, NKVolSubkeyListOffset, InvalidOffset)
	PutU32(b, NKValueCountOffset, nk.ValueCount)
	PutU32(b, NKValueListOffset, nk.ValueListOffset)
	PutU32(b, NKSecurityOffset, nk.SecurityOffset)
	PutU32(b, NKClassNameOffset, nk.ClassNameOffset)
	PutU32(b, NKMaxNameLenOffset, nk.MaxNameLength)
	PutU32(b, NKMaxClassLenOffset, nk.MaxClassLength)
	PutU32(b, NKMaxValueNameOffset, nk.MaxValueNameLength)
	PutU32(b, NKMaxValueDataOffset, nk.MaxValueDataLength)
	PutU32(b, NKWorkVarOffset, 0)
	PutU16(b, NKNameLenOffset, uint16(len(nk.NameRaw)))
	PutU16(b, NKClassLenOffset, nk.ClassLength)
	copy(b[NKNameOffset:], nk.NameRaw)
	return nil
}
