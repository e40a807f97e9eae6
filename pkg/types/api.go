package types

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Value type tags
// -----------------------------------------------------------------------------

// RegType enumerates Windows registry value types.
// (The numbers align with Windows definitions.)
type RegType uint32

const (
	REG_NONE                       RegType = 0
	REG_SZ                         RegType = 1
	REG_EXPAND_SZ                  RegType = 2
	REG_BINARY                     RegType = 3
	REG_DWORD                      RegType = 4
	REG_DWORD_LE                   RegType = 4 // alias for clarity
	REG_DWORD_BE                   RegType = 5
	REG_LINK                       RegType = 6
	REG_MULTI_SZ                   RegType = 7
	REG_RESOURCE_LIST              RegType = 8
	REG_FULL_RESOURCE_DESCRIPTOR   RegType = 9
	REG_RESOURCE_REQUIREMENTS_LIST RegType = 10
	REG_QWORD                      RegType = 11
	REG_QWORD_LE                   RegType = 11 // alias for clarity
)

// Known reports whether t is part of the fixed type taxonomy.
func (t RegType) Known() bool {
	return t <= REG_QWORD
}

// String implements the Stringer interface for RegType
func (t RegType) String() string {
	switch t {
	case REG_NONE:
		return "REG_NONE"
	case REG_SZ:
		return "REG_SZ"
	case REG_EXPAND_SZ:
		return "REG_EXPAND_SZ"
	case REG_BINARY:
		return "REG_BINARY"
	case REG_DWORD:
		return "REG_DWORD"
	case REG_DWORD_BE:
		return "REG_DWORD_BE"
	case REG_LINK:
		return "REG_LINK"
	case REG_MULTI_SZ:
		return "REG_MULTI_SZ"
	case REG_RESOURCE_LIST:
		return "REG_RESOURCE_LIST"
	case REG_FULL_RESOURCE_DESCRIPTOR:
		return "REG_FULL_RESOURCE_DESCRIPTOR"
	case REG_RESOURCE_REQUIREMENTS_LIST:
		return "REG_RESOURCE_REQUIREMENTS_LIST"
	case REG_QWORD:
		return "REG_QWORD"
	default:
		// Format as signed int32 to match hivex (shows negative values for invalid types)
		return fmt.Sprintf("UNKNOWN_TYPE_%d", int32(t))
	}
}

// -----------------------------------------------------------------------------
// Handles & provider results
// -----------------------------------------------------------------------------

// Handle is an opaque reference to an open provider resource. A hive handle
// also serves as the handle of the hive's root key.
type Handle uintptr

// InvalidHandle is never returned by a successful provider call.
const InvalidHandle Handle = 0

// Disposition reports whether CreateKey created a key or opened an existing one.
type Disposition uint32

const (
	CreatedNewKey     Disposition = 1
	OpenedExistingKey Disposition = 2
)

func (d Disposition) String() string {
	switch d {
	case CreatedNewKey:
		return "created"
	case OpenedExistingKey:
		return "opened"
	default:
		return fmt.Sprintf("disposition(%d)", uint32(d))
	}
}

// KeyOptions mirrors the REG_OPTION_* flags accepted by CreateKey.
type KeyOptions uint32

const (
	OptionNonVolatile   KeyOptions = 0x0
	OptionVolatile      KeyOptions = 0x1
	OptionCreateLink    KeyOptions = 0x2
	OptionBackupRestore KeyOptions = 0x4
	OptionOpenLink      KeyOptions = 0x8
)

// SecurityInformation selects the parts of a security descriptor to read or write.
type SecurityInformation uint32

const (
	OwnerSecurityInformation SecurityInformation = 0x00000001
	GroupSecurityInformation SecurityInformation = 0x00000002
	DACLSecurityInformation  SecurityInformation = 0x00000004
	SACLSecurityInformation  SecurityInformation = 0x00000008

	AllSecurityInformation = OwnerSecurityInformation | GroupSecurityInformation |
		DACLSecurityInformation | SACLSecurityInformation
)

// KeyInfoResult is the QueryInfoKey output. Lengths are in UTF-16 code
// units without terminator, except MaxValueLen and SecurityDescriptorSize
// which are byte counts.
type KeyInfoResult struct {
	ClassLen               uint32
	SubKeys                uint32
	MaxSubKeyLen           uint32
	MaxClassLen            uint32
	Values                 uint32
	MaxValueNameLen        uint32
	MaxValueLen            uint32
	SecurityDescriptorSize uint32
	LastWriteTime          time.Time
}

// EnumKeyResult is the EnumKey output. NameLen and ClassLen are required
// lengths in UTF-16 code units without terminator.
type EnumKeyResult struct {
	NameLen       uint32
	ClassLen      uint32
	LastWriteTime time.Time
}

// EnumValueResult is the EnumValue output. NameLen is in UTF-16 code units
// without terminator; DataLen is in bytes.
type EnumValueResult struct {
	NameLen uint32
	Type    RegType
	DataLen uint32
}

// -----------------------------------------------------------------------------
// Provider
// -----------------------------------------------------------------------------

// Provider is the primitive offline-registry surface.
//
// Status convention: a nil error is success; any other outcome is reported as
// a Status (possibly wrapped). Variable-length outputs are written into
// caller-supplied buffers:
//
//   - String buffers ([]uint16) must hold the content plus one terminator
//     unit. A shorter buffer yields StatusMoreData and the required length
//     (without terminator) in the result. A nil buffer is enough for empty
//     content.
//   - Data buffers ([]byte) that are nil are not requested: the call succeeds
//     and reports the size. A non-nil buffer that is too short (including an
//     empty one) yields StatusMoreData with the required size.
//   - A nil class buffer in EnumKey means the class is not requested.
//
// Every result struct is filled in on StatusMoreData as well as on success.
type Provider interface {
	CreateHive() (Handle, error)
	OpenHive(path string) (Handle, error)
	CloseHive(h Handle) error
	// SaveHive fails when path already exists.
	SaveHive(h Handle, path string, majorVersion, minorVersion uint32) error

	CreateKey(parent Handle, subPath, class string, opts KeyOptions) (Handle, Disposition, error)
	OpenKey(parent Handle, subPath string) (Handle, error)
	CloseKey(h Handle) error
	// DeleteKey removes subName under h, or h itself when subName is empty.
	// The key must not have subkeys.
	DeleteKey(h Handle, subName string) error
	EnumKey(h Handle, index uint32, name, class []uint16) (EnumKeyResult, error)
	QueryInfoKey(h Handle, class []uint16) (KeyInfoResult, error)

	GetValue(h Handle, subPath, name string, data []byte) (RegType, uint32, error)
	SetValue(h Handle, name string, t RegType, data []byte) error
	DeleteValue(h Handle, name string) error
	EnumValue(h Handle, index uint32, name []uint16, data []byte) (EnumValueResult, error)

	GetKeySecurity(h Handle, info SecurityInformation, sd []byte) (uint32, error)
	SetKeySecurity(h Handle, info SecurityInformation, sd []byte) error
}
