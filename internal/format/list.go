package format

import (
	"bytes"
	"fmt"
)

// Subkey list cells share a header:
//
//	Offset  Size  Field
//	0x00    2     Signature ('li', 'lf', 'lh' or 'ri')
//	0x02    2     Count
//	0x04    ...   Entries: 4-byte offsets (li, ri) or offset+hash pairs (lf, lh)

// ListKind identifies a subkey list variant.
type ListKind int

const (
	ListUnknown ListKind = iota
	ListLI
	ListLF
	ListLH
	ListRI
)

// DetectList returns the kind of list stored in payload.
func DetectList(b []byte) ListKind {
	if len(b) < SignatureSize {
		return ListUnknown
	}
	switch sig := b[:SignatureSize]; {
	case bytes.Equal(sig, LISignature):
		return ListLI
	case bytes.Equal(sig, LFSignature):
		return ListLF
	case bytes.Equal(sig, LHSignature):
		return ListLH
	case bytes.Equal(sig, RISignature):
		return ListRI
	}
	return ListUnknown
}

// DecodeSubkeyList returns the entry offsets of a leaf list (LI, LF, LH) or,
// for RI, the offsets of its leaf lists. The kind tells the caller which.
func DecodeSubkeyList(b []byte) (ListKind, []uint32, error) {
	if len(b) < ListHeaderSize {
		return ListUnknown, nil, fmt.Errorf("subkey list: %w", ErrTruncated)
	}
	kind := DetectList(b)
	count := int(ReadU16(b, SignatureSize))
	stride := OffsetFieldSize
	switch kind {
	case ListLF, ListLH:
		stride = LFEntrySize
	case ListLI, ListRI:
	default:
		return ListUnknown, nil, fmt.Errorf("subkey list %q: %w", b[:SignatureSize], ErrUnsupported)
	}
	body, err := listBody(b, ListHeaderSize, count, stride)
	if err != nil {
		return kind, nil, fmt.Errorf("subkey list: %w", err)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = ReadU32(body, i*stride)
	}
	return kind, out, nil
}

// LHSize returns the payload size of an LH list with n entries.
func LHSize(n int) int {
	return ListHeaderSize + n*LFEntrySize
}

// EncodeLH writes an LH list of offsets with their name hashes.
func EncodeLH(b []byte, offsets, hashes []uint32) error {
	return encodeHashed(b, LHSignature, offsets, hashes)
}

// EncodeLF writes an LF list of offsets with their LFHint values.
func EncodeLF(b []byte, offsets, hints []uint32) error {
	return encodeHashed(b, LFSignature, offsets, hints)
}

// LFHint packs the first four characters of name, zero padded. Characters
// outside Latin-1 contribute their low byte.
func LFHint(name string) uint32 {
	var raw [4]byte
	i := 0
	for _, r := range name {
		if i == len(raw) {
			break
		}
		raw[i] = byte(r)
		i++
	}
	return ReadU32(raw[:], 0)
}

func encodeHashed(b, sig []byte, offsets, hashes []uint32) error {
	if len(offsets) != len(hashes) {
		return fmt.Errorf("%s: %d offsets, %d hashes", sig, len(offsets), len(hashes))
	}
	if len(b) < LHSize(len(offsets)) {
		return fmt.Errorf("%s: %w", sig, ErrTruncated)
	}
	copy(b, sig)
	PutU16(b, SignatureSize, uint16(len(offsets)))
	for i, off := range offsets {
		PutU32(b, ListHeaderSize+i*LFEntrySize, off)
		PutU32(b, ListHeaderSize+i*LFEntrySize+OffsetFieldSize, hashes[i])
	}
	return nil
}

// RISize returns the payload size of an RI list with n leaves.
func RISize(n int) int {
	return ListHeaderSize + n*OffsetFieldSize
}

// EncodeRI writes an RI list pointing at leaf lists.
func EncodeRI(b []byte, leaves []uint32) error {
	if len(b) < RISize(len(leaves)) {
		return fmt.Errorf("ri: %w", ErrTruncated)
	}
	copy(b, RISignature)
	PutU16(b, SignatureSize, uint16(len(leaves)))
	for i, off := range leaves {
		PutU32(b, ListHeaderSize+i*OffsetFieldSize, off)
	}
	return nil
}

// DecodeValueList decodes the VK offsets of a value list cell.
func DecodeValueList(b []byte, count uint32) ([]uint32, error) {
	body, err := listBody(b, 0, int(count), OffsetFieldSize)
	if err != nil {
		return nil, fmt.Errorf("value list: %w", err)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = ReadU32(body, i*OffsetFieldSize)
	}
	return out, nil
}

// EncodeOffsets writes a bare offset array (value lists, DB block lists).
func EncodeOffsets(b []byte, offsets []uint32) error {
	if len(b) < len(offsets)*OffsetFieldSize {
		return fmt.Errorf("offset list: %w", ErrTruncated)
	}
	for i, off := range offsets {
		PutU32(b, i*OffsetFieldSize, off)
	}
	return nil
}
