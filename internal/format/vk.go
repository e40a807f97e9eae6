package format

import (
	"bytes"
	"fmt"
)

// VKRecord is a value record. Layout:
//
//	Offset  Size  Field
//	0x00    2     'v' 'k'
//	0x02    2     Name length (bytes, 0 => default value)
//	0x04    4     Data length; high bit set => data inline in DataOffset
//	0x08    4     Data cell offset, or up to 4 inline bytes
//	0x0C    4     Type
//	0x10    2     Flags (0x01 => name stored compressed)
//	0x12    2     Spare
//	0x14    n     Name
type VKRecord struct {
	DataLength uint32
	DataOffset uint32
	Type       uint32
	Flags      uint16
	NameRaw    []byte
}

// NameIsCompressed reports whether the name is stored as 8-bit characters.
func (vk VKRecord) NameIsCompressed() bool {
	return vk.Flags&VKFlagCompressedName != 0
}

// DataInline reports whether the data lives in the DataOffset field.
func (vk VKRecord) DataInline() bool {
	return vk.DataLength&VKDataInlineBit != 0
}

// Size returns the data length with the inline bit masked off.
func (vk VKRecord) Size() int {
	return int(vk.DataLength & VKDataLengthMask)
}

// InlineData returns the inline bytes when DataInline is true.
func (vk VKRecord) InlineData() []byte {
	var raw [VKInlineMax]byte
	PutU32(raw[:], 0, vk.DataOffset)
	n := min(vk.Size(), VKInlineMax)
	return append([]byte(nil), raw[:n]...)
}

// DecodeVK decodes a VK payload.
func DecodeVK(b []byte) (VKRecord, error) {
	if len(b) < VKFixedHeaderSize {
		return VKRecord{}, fmt.Errorf("vk: %w (have %d, need %d)", ErrTruncated, len(b), VKFixedHeaderSize)
	}
	if !bytes.Equal(b[:SignatureSize], VKSignature) {
		return VKRecord{}, fmt.Errorf("vk: %w", ErrSignatureMismatch)
	}
	vk := VKRecord{
		DataLength: ReadU32(b, VKDataLenOffset),
		DataOffset: ReadU32(b, VKDataOffOffset),
		Type:       ReadU32(b, VKTypeOffset),
		Flags:      ReadU16(b, VKFlagsOffset),
	}
	if vk.Size() > MaxValueDataLen {
		return VKRecord{}, fmt.Errorf("vk data length %d: %w", vk.Size(), ErrSanityLimit)
	}
	name, err := slice(b, VKNameOffset, int(ReadU16(b, VKNameLenOffset)))
	if err != nil {
		return VKRecord{}, fmt.Errorf("vk name: %w", err)
	}
	vk.NameRaw = name
	return vk, nil
}

// VKSize returns the payload size needed to encode vk.
func VKSize(vk VKRecord) int {
	return VKFixedHeaderSize + len(vk.NameRaw)
}

// EncodeVK lays vk out into b, which must hold VKSize(vk) bytes.
func EncodeVK(b []byte, vk VKRecord) error {
	if len(b) < VKSize(vk) {
		return fmt.Errorf("vk: %w", ErrTruncated)
	}
	if len(vk.NameRaw) > MaxNameBytes {
		return fmt.Errorf("vk name length %d: %w", len(vk.NameRaw), ErrSanityLimit)
	}
	copy(b, VKSignature)
	PutU16(b, VKNameLenOffset, uint16(len(vk.NameRaw)))
	PutU32(b, VKDataLenOffset, vk.DataLength)
	PutU32(b, VKDataOffOffset, vk.DataOffset)
	PutU32(b, VKTypeOffset, vk.Type)
	PutU16(b, VKFlagsOffset, vk.Flags)
	PutU16(b, VKSpareOffset, 0)
	copy(b[VKNameOffset:], vk.NameRaw)
	return nil
}

// PackInline returns the DataLength/DataOffset pair for data of at most
// VKInlineMax bytes.
func PackInline(data []byte) (uint32, uint32) {
	var raw [VKInlineMax]byte
	copy(raw[:], data)
	return uint32(len(data)) | VKDataInlineBit, ReadU32(raw[:], 0)
}
