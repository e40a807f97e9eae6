package format

import "errors"

var (
	// ErrSignatureMismatch indicates a structure had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrFreeCell indicates a free cell was referenced where an allocated one was required.
	ErrFreeCell = errors.New("format: cell not in use")
	// ErrUnsupported indicates a valid structure we do not handle.
	ErrUnsupported = errors.New("format: unsupported feature")
	// ErrSanityLimit indicates a count or length beyond what a real hive carries.
	ErrSanityLimit = errors.New("format: sanity limit exceeded")
	// ErrBadChecksum indicates the base block checksum does not match its contents.
	ErrBadChecksum = errors.New("format: header checksum mismatch")
)
