package hive

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/joshuapare/offreg/internal/format"
	"github.com/joshuapare/offreg/pkg/types"
)

// Self-relative SECURITY_DESCRIPTOR layout:
//
//	Offset  Size  Field
//	0x00    1     Revision (1)
//	0x01    1     Sbz1
//	0x02    2     Control
//	0x04    4     Owner SID offset (0 => absent)
//	0x08    4     Group SID offset
//	0x0C    4     SACL offset
//	0x10    4     DACL offset
const (
	sdHeaderSize  = 0x14
	sdControlOff  = 0x02
	sdOwnerOff    = 0x04
	sdGroupOff    = 0x08
	sdSACLOff     = 0x0C
	sdDACLOff     = 0x10
	sdRevision    = 1
	sidHeaderSize = 8
	aclHeaderSize = 8

	seDACLPresent   uint16 = 0x0004
	seDACLDefaulted uint16 = 0x0008
	seSACLPresent   uint16 = 0x0010
	seSACLDefaulted uint16 = 0x0020
	seOwnerDefault  uint16 = 0x0001
	seGroupDefault  uint16 = 0x0002
	seSelfRelative  uint16 = 0x8000
)

var errBadDescriptor = errors.New("malformed security descriptor")

// defaultSecurity grants Everyone full access, owned by BUILTIN\Administrators
// with group SYSTEM.
var defaultSecurity = []byte{
	// header: revision 1, control SE_SELF_RELATIVE|SE_DACL_PRESENT
	0x01, 0x00, 0x04, 0x80,
	0x14, 0x00, 0x00, 0x00, // owner
	0x24, 0x00, 0x00, 0x00, // group
	0x00, 0x00, 0x00, 0x00, // sacl
	0x30, 0x00, 0x00, 0x00, // dacl
	// S-1-5-32-544
	0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
	0x20, 0x00, 0x00, 0x00, 0x20, 0x02, 0x00, 0x00,
	// S-1-5-18
	0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
	0x12, 0x00, 0x00, 0x00,
	// ACL: revision 2, size 28, one ACE
	0x02, 0x00, 0x1C, 0x00, 0x01, 0x00, 0x00, 0x00,
	// ACCESS_ALLOWED_ACE, CONTAINER_INHERIT, size 20, KEY_ALL_ACCESS, S-1-1-0
	0x00, 0x02, 0x14, 0x00, 0x3F, 0x00, 0x0F, 0x00,
	0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
	0x00, 0x00, 0x00, 0x00,
}

// DefaultSecurityDescriptor returns a copy of the descriptor given to new
// hive roots.
func DefaultSecurityDescriptor() []byte {
	return bytes.Clone(defaultSecurity)
}

// descriptor is a parsed self-relative security descriptor. Nil parts are
// absent.
type descriptor struct {
	control uint16
	owner   []byte
	group   []byte
	sacl    []byte
	dacl    []byte
}

func parseDescriptor(b []byte) (descriptor, error) {
	if len(b) < sdHeaderSize {
		return descriptor{}, fmt.Errorf("%w: %d bytes", errBadDescriptor, len(b))
	}
	if b[0] != sdRevision {
		return descriptor{}, fmt.Errorf("%w: revision %d", errBadDescriptor, b[0])
	}
	d := descriptor{control: format.ReadU16(b, sdControlOff)}
	if d.control&seSelfRelative == 0 {
		return descriptor{}, fmt.Errorf("%w: not self-relative", errBadDescriptor)
	}
	var err error
	if d.owner, err = sidAt(b, format.ReadU32(b, sdOwnerOff)); err != nil {
		return descriptor{}, err
	}
	if d.group, err = sidAt(b, format.ReadU32(b, sdGroupOff)); err != nil {
		return descriptor{}, err
	}
	if d.sacl, err = aclAt(b, format.ReadU32(b, sdSACLOff)); err != nil {
		return descriptor{}, err
	}
	if d.dacl, err = aclAt(b, format.ReadU32(b, sdDACLOff)); err != nil {
		return descriptor{}, err
	}
	return d, nil
}

func sidAt(b []byte, off uint32) ([]byte, error) {
	if off == 0 {
		return nil, nil
	}
	if int(off)+sidHeaderSize > len(b) {
		return nil, fmt.Errorf("%w: sid at %#x out of range", errBadDescriptor, off)
	}
	n := sidHeaderSize + 4*int(b[off+1])
	if int(off)+n > len(b) {
		return nil, fmt.Errorf("%w: sid at %#x truncated", errBadDescriptor, off)
	}
	return bytes.Clone(b[off : int(off)+n]), nil
}

func aclAt(b []byte, off uint32) ([]byte, error) {
	if off == 0 {
		return nil, nil
	}
	if int(off)+aclHeaderSize > len(b) {
		return nil, fmt.Errorf("%w: acl at %#x out of range", errBadDescriptor, off)
	}
	n := int(format.ReadU16(b, int(off)+2))
	if n < aclHeaderSize || int(off)+n > len(b) {
		return nil, fmt.Errorf("%w: acl at %#x has size %d", errBadDescriptor, off, n)
	}
	return bytes.Clone(b[off : int(off)+n]), nil
}

// filter keeps only the parts selected by info.
func (d descriptor) filter(info types.SecurityInformation) descriptor {
	out := descriptor{control: seSelfRelative}
	if info&types.OwnerSecurityInformation != 0 {
		out.owner = d.owner
		out.control |= d.control & seOwnerDefault
	}
	if info&types.GroupSecurityInformation != 0 {
		out.group = d.group
		out.control |= d.control & seGroupDefault
	}
	if info&types.DACLSecurityInformation != 0 {
		out.dacl = d.dacl
		out.control |= d.control & (seDACLPresent | seDACLDefaulted | 0x0100 | 0x0400 | 0x1000)
	}
	if info&types.SACLSecurityInformation != 0 {
		out.sacl = d.sacl
		out.control |= d.control & (seSACLPresent | seSACLDefaulted | 0x0200 | 0x0800 | 0x2000)
	}
	return out
}

// merge replaces the parts selected by info with those of src.
func (d descriptor) merge(src descriptor, info types.SecurityInformation) descriptor {
	picked := src.filter(info)
	rest := d.filter(types.AllSecurityInformation &^ info)
	out := descriptor{control: picked.control | rest.control}
	out.owner, out.group, out.sacl, out.dacl = rest.owner, rest.group, rest.sacl, rest.dacl
	if info&types.OwnerSecurityInformation != 0 {
		out.owner = picked.owner
	}
	if info&types.GroupSecurityInformation != 0 {
		out.group = picked.group
	}
	if info&types.SACLSecurityInformation != 0 {
		out.sacl = picked.sacl
	}
	if info&types.DACLSecurityInformation != 0 {
		out.dacl = picked.dacl
	}
	return out
}

// bytes serializes d self-relative: owner, group, SACL, DACL.
func (d descriptor) bytes() []byte {
	size := sdHeaderSize + len(d.owner) + len(d.group) + len(d.sacl) + len(d.dacl)
	b := make([]byte, size)
	b[0] = sdRevision
	format.PutU16(b, sdControlOff, d.control|seSelfRelative)
	off := sdHeaderSize
	place := func(field int, part []byte) {
		if part == nil {
			return
		}
		format.PutU32(b, field, uint32(off))
		off += copy(b[off:], part)
	}
	place(sdOwnerOff, d.owner)
	place(sdGroupOff, d.group)
	place(sdSACLOff, d.sacl)
	place(sdDACLOff, d.dacl)
	return b
}
