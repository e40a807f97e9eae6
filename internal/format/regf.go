package format

import (
	"bytes"
	"fmt"
)

// Header is the subset of the REGF base block the hive package reads and
// writes.
//
//	Offset  Size  Description
//	------  ----  ----------------------------------------------------------
//	 0x000   4    'r' 'e' 'g' 'f'
//	 0x004   4    Primary sequence number
//	 0x008   4    Secondary sequence number
//	 0x00C   8    Last write timestamp (FILETIME)
//	 0x014   4    Major version
//	 0x018   4    Minor version
//	 0x01C   4    Type (0 = primary)
//	 0x020   4    Format (1 = direct memory load)
//	 0x024   4    Root cell offset, relative to the first HBIN
//	 0x028   4    Total size of HBIN data
//	 0x02C   4    Clustering factor
//	 0x030  64    File name (UTF-16LE, informational)
//	 0x1FC   4    XOR checksum of the preceding 127 dwords
type Header struct {
	PrimarySequence   uint32
	SecondarySequence uint32
	LastWriteRaw      uint64
	MajorVersion      uint32
	MinorVersion      uint32
	Type              uint32
	Format            uint32
	RootCellOffset    uint32
	HiveBinsDataSize  uint32
	ClusteringFactor  uint32
	FileName          []byte
	CheckSum          uint32
}

// Dirty reports whether the sequence numbers disagree, i.e. the writer did
// not finish and a log would be needed to recover.
func (h Header) Dirty() bool {
	return h.PrimarySequence != h.SecondarySequence
}

// ParseHeader validates the signature and extracts the base block fields.
// A checksum mismatch is reported through ChecksumOK rather than an error;
// callers decide how strict to be.
func ParseHeader(b []byte) (Header, bool, error) {
	if len(b) < HeaderSize {
		return Header{}, false, fmt.Errorf("regf header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[:len(REGFSignature)], REGFSignature) {
		return Header{}, false, fmt.Errorf("regf header: %w", ErrSignatureMismatch)
	}
	h := Header{
		PrimarySequence:   ReadU32(b, REGFPrimarySeqOffset),
		SecondarySequence: ReadU32(b, REGFSecondarySeqOffset),
		LastWriteRaw:      ReadU64(b, REGFTimeStampOffset),
		MajorVersion:      ReadU32(b, REGFMajorVersionOffset),
		MinorVersion:      ReadU32(b, REGFMinorVersionOffset),
		Type:              ReadU32(b, REGFTypeOffset),
		Format:            ReadU32(b, REGFFormatOffset),
		RootCellOffset:    ReadU32(b, REGFRootCellOffset),
		HiveBinsDataSize:  ReadU32(b, REGFDataSizeOffset),
		ClusteringFactor:  ReadU32(b, REGFClusterOffset),
		FileName:          b[REGFFileNameOffset : REGFFileNameOffset+REGFFileNameSize],
		CheckSum:          ReadU32(b, REGFCheckSumOffset),
	}
	return h, h.CheckSum == Checksum(b), nil
}

// EncodeHeader lays h out into b (at least HeaderSize bytes, zeroed by the
// caller) and stamps the checksum. FileName is truncated to its field size.
func EncodeHeader(b []byte, h Header) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("regf header: %w", ErrTruncated)
	}
	copy(b, REGFSignature)
	PutU32(b, REGFPrimarySeqOffset, h.PrimarySequence)
	PutU32(b, REGFSecondarySeqOffset, h.SecondarySequence)
	PutU64(b, REGFTimeStampOffset, h.LastWriteRaw)
	PutU32(b, REGFMajorVersionOffset, h.MajorVersion)
	PutU32(b, REGFMinorVersionOffset, h.MinorVersion)
	PutU32(b, REGFTypeOffset, h.Type)
	PutU32(b, REGFFormatOffset, h.Format)
	PutU32(b, REGFRootCellOffset, h.RootCellOffset)
	PutU32(b, REGFDataSizeOffset, h.HiveBinsDataSize)
	PutU32(b, REGFClusterOffset, h.ClusteringFactor)
	n := min(len(h.FileName), REGFFileNameSize)
	copy(b[REGFFileNameOffset:REGFFileNameOffset+n], h.FileName[:n])
	PutU32(b, REGFCheckSumOffset, Checksum(b))
	return nil
}

// Checksum computes the base block checksum: the XOR of the first 127
// dwords, with 0 and 0xFFFFFFFF remapped the way the kernel does.
func Checksum(b []byte) uint32 {
	var sum uint32
	for i := range REGFChecksumDwords {
		sum ^= ReadU32(b, i*4)
	}
	switch sum {
	case 0:
		return 1
	case 0xFFFFFFFF:
		return 0xFFFFFFFE
	}
	return sum
}
