// Package format holds the on-disk layout of REGF hive files: record
// offsets, decoders that validate a cell payload, and encoders that lay a
// record out into a pre-sized buffer. It knows nothing about handles or trees;
// the hive package drives it in both directions.
package format

var (
	// REGFSignature opens every hive file.
	REGFSignature = []byte{'r', 'e', 'g', 'f'}
	// HBINSignature opens every hive bin.
	HBINSignature = []byte{'h', 'b', 'i', 'n'}

	NKSignature = []byte{'n', 'k'}
	VKSignature = []byte{'v', 'k'}
	SKSignature = []byte{'s', 'k'}
	DBSignature = []byte{'d', 'b'}

	// LF/LH carry a hint or hash per entry, LI is bare offsets and RI points
	// at further leaf lists.
	LFSignature = []byte{'l', 'f'}
	LHSignature = []byte{'l', 'h'}
	LISignature = []byte{'l', 'i'}
	RISignature = []byte{'r', 'i'}
)

const (
	// HeaderSize is the base block size; the first HBIN starts right after it.
	HeaderSize = 0x1000

	HBINHeaderSize = 0x20
	HBINAlignment  = 0x1000

	CellHeaderSize = 4
	CellAlignment  = 8

	SignatureSize   = 2
	ListHeaderSize  = 4
	OffsetFieldSize = 4
	LFEntrySize     = 8

	// InvalidOffset marks an absent cell reference.
	InvalidOffset = 0xFFFFFFFF
)

// HBIN header field offsets.
const (
	HBINFileOffsetField = 0x04
	HBINSizeOffset      = 0x08
	HBINTimeStampOffset = 0x14
)

// REGF base block field offsets.
const (
	REGFPrimarySeqOffset   = 0x004
	REGFSecondarySeqOffset = 0x008
	REGFTimeStampOffset    = 0x00C
	REGFMajorVersionOffset = 0x014
	REGFMinorVersionOffset = 0x018
	REGFTypeOffset         = 0x01C
	REGFFormatOffset       = 0x020
	REGFRootCellOffset     = 0x024
	REGFDataSizeOffset     = 0x028
	REGFClusterOffset      = 0x02C
	REGFFileNameOffset     = 0x030
	REGFFileNameSize       = 64
	REGFCheckSumOffset     = 0x1FC

	// REGFChecksumDwords is the number of leading dwords XORed into the checksum.
	REGFChecksumDwords = 127
)

// NK field offsets within the payload.
const (
	NKFlagsOffset          = 0x02
	NKLastWriteOffset      = 0x04
	NKAccessBitsOffset     = 0x0C
	NKParentOffset         = 0x10
	NKSubkeyCountOffset    = 0x14
	NKVolSubkeyCountOffset = 0x18
	NKSubkeyListOffset     = 0x1C
	NKVolSubkeyListOffset  = 0x20
	NKValueCountOffset     = 0x24
	NKValueListOffset      = 0x28
	NKSecurityOffset       = 0x2C
	NKClassNameOffset      = 0x30
	NKMaxNameLenOffset     = 0x34
	NKMaxClassLenOffset    = 0x38
	NKMaxValueNameOffset   = 0x3C
	NKMaxValueDataOffset   = 0x40
	NKWorkVarOffset        = 0x44
	NKNameLenOffset        = 0x48
	NKClassLenOffset       = 0x4A
	NKNameOffset           = 0x4C

	NKFixedHeaderSize = NKNameOffset
)

// NK flags.
const (
	NKFlagVolatile       = 0x0001
	NKFlagHiveExit       = 0x0002
	NKFlagHiveEntry      = 0x0004
	NKFlagNoDelete       = 0x0008
	NKFlagSymLink        = 0x0010
	NKFlagCompressedName = 0x0020
)

// VK field offsets within the payload.
const (
	VKNameLenOffset = 0x02
	VKDataLenOffset = 0x04
	VKDataOffOffset = 0x08
	VKTypeOffset    = 0x0C
	VKFlagsOffset   = 0x10
	VKSpareOffset   = 0x12
	VKNameOffset    = 0x14

	VKFixedHeaderSize = VKNameOffset

	VKFlagCompressedName = 0x0001
	// VKDataInlineBit in DataLength means up to 4 bytes live in DataOffset.
	VKDataInlineBit  = 0x80000000
	VKDataLengthMask = 0x7FFFFFFF
	VKInlineMax      = 4
)

// SK field offsets within the payload.
const (
	SKFlinkOffset            = 0x04
	SKBlinkOffset            = 0x08
	SKReferenceCountOffset   = 0x0C
	SKDescriptorLengthOffset = 0x10
	SKDescriptorOffset       = 0x14

	SKHeaderSize = SKDescriptorOffset
)

// DB field offsets within the payload.
const (
	DBCountOffset    = 0x02
	DBListOffset     = 0x04
	DBUnknown1Offset = 0x08

	DBHeaderSize = 0x0C

	// DBChunkSize is the payload carried by each big-data segment.
	DBChunkSize = 16344
	// DBMinMinorVersion is the first format minor version that knows "db".
	DBMinMinorVersion = 4
)

// Sanity limits applied while decoding untrusted files.
const (
	MaxNameBytes    = 0xFFFF
	MaxSubkeyCount  = 1 << 20
	MaxValueCount   = 1 << 20
	MaxValueDataLen = 1 << 30
)
