package codec

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Kind is the shape of a decoded value.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindMultiString
	KindDWord
	KindQWord
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindMultiString:
		return "multi-string"
	case KindDWord:
		return "dword"
	case KindQWord:
		return "qword"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded registry value: exactly one of the payload fields is
// meaningful, selected by Kind. The zero Value is None.
type Value struct {
	kind Kind
	str  string
	strs []string
	num  uint64
	raw  []byte
}

// None returns the no-payload value.
func None() Value { return Value{} }

// String returns a string value (String, ExpandString and Link tags).
func String(s string) Value { return Value{kind: KindString, str: s} }

// MultiString returns a string-sequence value. The slice is copied.
func MultiString(ss []string) Value {
	return Value{kind: KindMultiString, strs: slices.Clone(ss)}
}

// DWord returns a 32-bit integer value (either byte order tag).
func DWord(v uint32) Value { return Value{kind: KindDWord, num: uint64(v)} }

// QWord returns a 64-bit integer value.
func QWord(v uint64) Value { return Value{kind: KindQWord, num: v} }

// Binary returns an opaque byte value. The slice is copied.
func Binary(b []byte) Value {
	return Value{kind: KindBinary, raw: bytes.Clone(b)}
}

// Kind reports which payload v carries.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Strings returns the string-sequence payload.
func (v Value) Strings() ([]string, bool) {
	if v.kind != KindMultiString {
		return nil, false
	}
	return slices.Clone(v.strs), true
}

// Uint32 returns the DWord payload.
func (v Value) Uint32() (uint32, bool) { return uint32(v.num), v.kind == KindDWord }

// Uint64 returns the QWord payload, or a DWord widened.
func (v Value) Uint64() (uint64, bool) {
	return v.num, v.kind == KindQWord || v.kind == KindDWord
}

// Bytes returns the Binary payload.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return bytes.Clone(v.raw), true
}

// Equal reports whether v and o hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindMultiString:
		return slices.Equal(v.strs, o.strs)
	case KindDWord, KindQWord:
		return v.num == o.num
	case KindBinary:
		return bytes.Equal(v.raw, o.raw)
	}
	return true
}

// Format renders the payload for display.
func (v Value) Format() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindMultiString:
		return strings.Join(v.strs, ", ")
	case KindDWord:
		return fmt.Sprintf("0x%08x (%d)", uint32(v.num), uint32(v.num))
	case KindQWord:
		return fmt.Sprintf("0x%016x (%d)", v.num, v.num)
	case KindBinary:
		return fmt.Sprintf("% x", v.raw)
	}
	return ""
}

// Any unwraps the payload into a plain Go value (string, []string, uint32,
// uint64, []byte or nil), for JSON and templating.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindMultiString:
		return slices.Clone(v.strs)
	case KindDWord:
		return uint32(v.num)
	case KindQWord:
		return v.num
	case KindBinary:
		return bytes.Clone(v.raw)
	}
	return nil
}
