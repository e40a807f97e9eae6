package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeParse(t *testing.T) {
	b := make([]byte, HeaderSize)
	want := Header{
		PrimarySequence:   7,
		SecondarySequence: 7,
		LastWriteRaw:      TimeToFiletime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		MajorVersion:      1,
		MinorVersion:      5,
		Format:            1,
		RootCellOffset:    0x20,
		HiveBinsDataSize:  0x1000,
		ClusteringFactor:  1,
	}
	require.NoError(t, EncodeHeader(b, want))

	got, ok, err := ParseHeader(b)
	require.NoError(t, err)
	require.True(t, ok, "checksum should verify")
	require.Equal(t, want.MinorVersion, got.MinorVersion)
	require.Equal(t, want.RootCellOffset, got.RootCellOffset)
	require.Equal(t, want.HiveBinsDataSize, got.HiveBinsDataSize)
	require.False(t, got.Dirty())

	b[REGFMinorVersionOffset] = 3
	_, ok, err = ParseHeader(b)
	require.NoError(t, err)
	require.False(t, ok, "tampered header must fail the checksum")
}

func TestParseHeaderRejectsBadInput(t *testing.T) {
	_, _, err := ParseHeader(make([]byte, 10))
	require.ErrorIs(t, err, ErrTruncated)

	b := make([]byte, HeaderSize)
	copy(b, "fger")
	_, _, err = ParseHeader(b)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestChecksumRemapsZero(t *testing.T) {
	require.Equal(t, uint32(1), Checksum(make([]byte, HeaderSize)))
}

func TestHBINRoundTrip(t *testing.T) {
	img := make([]byte, HeaderSize+2*HBINAlignment)
	EncodeHBIN(img[HeaderSize:], 0, HBINAlignment, 0)
	EncodeHBIN(img[HeaderSize+HBINAlignment:], HBINAlignment, HBINAlignment, 0)

	h, next, err := NextHBIN(img, HeaderSize)
	require.NoError(t, err)
	require.Equal(t, uint32(0), h.FileOffset)
	require.Equal(t, HeaderSize+HBINAlignment, next)

	h, next, err = NextHBIN(img, next)
	require.NoError(t, err)
	require.Equal(t, uint32(HBINAlignment), h.FileOffset)
	require.Equal(t, len(img), next)

	_, _, err = NextHBIN(img, next)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestCellPayload(t *testing.T) {
	img := make([]byte, HeaderSize+HBINAlignment)
	EncodeHBIN(img[HeaderSize:], 0, HBINAlignment, 0)
	cell := img[HeaderSize+HBINHeaderSize:]
	EncodeCellHeader(cell, 16)
	copy(cell[CellHeaderSize:], "nkXX")
	EncodeFreeCell(cell[16:], HBINAlignment-HBINHeaderSize-16)

	payload, err := CellPayload(img, HBINHeaderSize)
	require.NoError(t, err)
	require.Len(t, payload, 12)
	require.Equal(t, "nk", string(payload[:2]))

	_, err = CellPayload(img, HBINHeaderSize+16)
	require.ErrorIs(t, err, ErrFreeCell)
}

func TestNKRoundTrip(t *testing.T) {
	name, compressed, err := EncodeName("Software")
	require.NoError(t, err)
	require.True(t, compressed)

	in := NKRecord{
		Flags:            NKFlagCompressedName,
		LastWriteRaw:     TimeToFiletime(time.Unix(1700000000, 0)),
		ParentOffset:     0x20,
		SubkeyCount:      2,
		SubkeyListOffset: 0x100,
		ValueCount:       1,
		ValueListOffset:  0x200,
		SecurityOffset:   0x80,
		ClassNameOffset:  InvalidOffset,
		MaxNameLength:    16,
		NameRaw:          name,
	}
	b := make([]byte, NKSize(in))
	require.NoError(t, EncodeNK(b, in))

	out, err := DecodeNK(b)
	require.NoError(t, err)
	require.True(t, out.NameIsCompressed())
	require.Equal(t, in.SubkeyCount, out.SubkeyCount)
	require.Equal(t, in.ValueListOffset, out.ValueListOffset)
	require.Equal(t, uint32(InvalidOffset), out.ClassNameOffset)

	decoded, err := DecodeName(out.NameRaw, out.NameIsCompressed())
	require.NoError(t, err)
	require.Equal(t, "Software", decoded)
}

func TestDecodeNKTruncatedName(t *testing.T) {
	b := make([]byte, NKFixedHeaderSize)
	copy(b, NKSignature)
	PutU16(b, NKNameLenOffset, 10)
	_, err := DecodeNK(b)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestVKInlineData(t *testing.T) {
	length, off := PackInline([]byte{1, 2, 3})
	in := VKRecord{DataLength: length, DataOffset: off, Type: 4, NameRaw: []byte("n"), Flags: VKFlagCompressedName}
	b := make([]byte, VKSize(in))
	require.NoError(t, EncodeVK(b, in))

	out, err := DecodeVK(b)
	require.NoError(t, err)
	require.True(t, out.DataInline())
	require.Equal(t, 3, out.Size())
	require.Equal(t, []byte{1, 2, 3}, out.InlineData())
	require.Equal(t, uint32(4), out.Type)
}

func TestSubkeyLists(t *testing.T) {
	offsets := []uint32{0x20, 0x80}
	hashes := []uint32{NameHash("a"), NameHash("b")}
	lh := make([]byte, LHSize(2))
	require.NoError(t, EncodeLH(lh, offsets, hashes))

	kind, got, err := DecodeSubkeyList(lh)
	require.NoError(t, err)
	require.Equal(t, ListLH, kind)
	require.Equal(t, offsets, got)

	ri := make([]byte, RISize(1))
	require.NoError(t, EncodeRI(ri, []uint32{0x400}))
	kind, got, err = DecodeSubkeyList(ri)
	require.NoError(t, err)
	require.Equal(t, ListRI, kind)
	require.Equal(t, []uint32{0x400}, got)

	_, _, err = DecodeSubkeyList([]byte("zz\x00\x00"))
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestNameHash(t *testing.T) {
	require.Equal(t, uint32('A'), NameHash("a"))
	require.Equal(t, uint32('A')*37+uint32('B'), NameHash("aB"))
	require.Equal(t, NameHash("software"), NameHash("SOFTWARE"))
}

func TestValueListAndSK(t *testing.T) {
	b := make([]byte, 8)
	require.NoError(t, EncodeOffsets(b, []uint32{1, 2}))
	got, err := DecodeValueList(b, 2)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2}, got)

	_, err = DecodeValueList(b, 3)
	require.ErrorIs(t, err, ErrTruncated)
	_, err = DecodeValueList(b, 0xFFFFFFFF)
	require.ErrorIs(t, err, ErrTruncated)

	sk := SKRecord{Flink: 8, Blink: 8, RefCount: 3, Descriptor: []byte{1, 0, 4, 0x80}}
	sb := make([]byte, SKSize(sk))
	require.NoError(t, EncodeSK(sb, sk))
	dec, err := DecodeSK(sb)
	require.NoError(t, err)
	require.Equal(t, sk, dec)
}

func TestDBRecord(t *testing.T) {
	b := make([]byte, DBHeaderSize)
	require.NoError(t, EncodeDB(b, DBRecord{NumBlocks: 3, BlocklistOffset: 0x1234}))
	require.True(t, IsDBRecord(b))
	db, err := DecodeDB(b)
	require.NoError(t, err)
	require.Equal(t, uint16(3), db.NumBlocks)
	require.Equal(t, uint32(0x1234), db.BlocklistOffset)

	require.Equal(t, 2, DBBlockCount(DBChunkSize+1))
	require.Equal(t, 1, DBBlockCount(DBChunkSize))
}

func TestNamesNonASCII(t *testing.T) {
	raw, compressed, err := EncodeName("Schlüssel")
	require.NoError(t, err)
	require.False(t, compressed)
	require.Len(t, raw, 2*9)

	s, err := DecodeName(raw, false)
	require.NoError(t, err)
	require.Equal(t, "Schlüssel", s)

	s, err = DecodeName([]byte{'c', 0xE9}, true)
	require.NoError(t, err)
	require.Equal(t, "cé", s)

	require.Equal(t, 2, UTF16Len("😀"))
}

func TestFiletime(t *testing.T) {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 600, time.UTC)
	got := FiletimeToTime(TimeToFiletime(ts))
	require.True(t, ts.Equal(got), "got %v", got)
	require.Equal(t, time.Unix(0, 0).UTC(), FiletimeToTime(0))
}

func TestAlign(t *testing.T) {
	require.Equal(t, 8, Align8(1))
	require.Equal(t, 16, Align8(9))
	require.Equal(t, HBINAlignment, AlignHBIN(1))
	require.Equal(t, 16, CellSize(12))
}

func TestLFList(t *testing.T) {
	require.Equal(t, uint32('R')|uint32('u')<<8|uint32('n')<<16, LFHint("Run"))
	require.Equal(t, uint32('S')|uint32('o')<<8|uint32('f')<<16|uint32('t')<<24, LFHint("Software"))

	lf := make([]byte, LHSize(2))
	require.NoError(t, EncodeLF(lf, []uint32{0x20, 0x80}, []uint32{LFHint("a"), LFHint("b")}))
	kind, got, err := DecodeSubkeyList(lf)
	require.NoError(t, err)
	require.Equal(t, ListLF, kind)
	require.Equal(t, []uint32{0x20, 0x80}, got)

	require.Error(t, EncodeLF(lf, []uint32{1}, nil))
}
