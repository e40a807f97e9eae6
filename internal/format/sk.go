package format

import (
	"bytes"
	"fmt"
)

// SKRecord is a shared security descriptor cell (_CM_KEY_SECURITY).
//
//	Offset  Size  Description
//	0x00    2     's' 'k'
//	0x02    2     Reserved
//	0x04    4     Flink, next SK in the hive-wide ring
//	0x08    4     Blink, previous SK in the ring
//	0x0C    4     Number of key nodes using this descriptor
//	0x10    4     Descriptor length
//	0x14    ...   SECURITY_DESCRIPTOR_RELATIVE
type SKRecord struct {
	Flink      uint32
	Blink      uint32
	RefCount   uint32
	Descriptor []byte
}

// DecodeSK decodes an SK payload. Descriptor aliases b.
func DecodeSK(b []byte) (SKRecord, error) {
	if len(b) < SKHeaderSize {
		return SKRecord{}, fmt.Errorf("sk: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:SignatureSize], SKSignature) {
		return SKRecord{}, fmt.Errorf("sk: %w", ErrSignatureMismatch)
	}
	desc, err := slice(b, SKDescriptorOffset, int(ReadU32(b, SKDescriptorLengthOffset)))
	if err != nil {
		return SKRecord{}, fmt.Errorf("sk descriptor: %w", err)
	}
	return SKRecord{
		Flink:      ReadU32(b, SKFlinkOffset),
		Blink:      ReadU32(b, SKBlinkOffset),
		RefCount:   ReadU32(b, SKReferenceCountOffset),
		Descriptor: desc,
	}, nil
}

// SKSize returns the payload size needed to encode sk.
func SKSize(sk SKRecord) int {
	return SKHeaderSize + len(sk.Descriptor)
}

// EncodeSK lays sk out into b, which must hold SKSize(sk) bytes.
func EncodeSK(b []byte, sk SKRecord) error {
	if len(b) < SKSize(sk) {
		return fmt.Errorf("sk: %w", ErrTruncated)
	}
	copy(b, SKSignature)
	PutU16(b, SignatureSize, 0)
	PutU32(b, SKFlinkOffset, sk.Flink)
	PutU32(b, SKBlinkOffset, sk.Blink)
	PutU32(b, SKReferenceCountOffset, sk.RefCount)
	PutU32(b, SKDescriptorLengthOffset, uint32(len(sk.Descriptor)))
	copy(b[SKDescriptorOffset:], sk.Descriptor)
	return nil
}
