// Package codec converts between raw registry value bytes and the tagged
// Value union. It is pure: no I/O, no logging, no provider access.
//
// Layout rules per type tag:
//
//	REG_SZ, REG_EXPAND_SZ, REG_LINK   UTF-16LE; encode appends one 00 00
//	                                  terminator, decode stops at the first
//	                                  aligned 00 00 or consumes everything
//	REG_MULTI_SZ                      each string + 00 00, then a final 00 00
//	REG_BINARY and the resource types raw bytes
//	REG_DWORD                         4 bytes little-endian
//	REG_DWORD_BIG_ENDIAN              4 bytes big-endian
//	REG_QWORD                         8 bytes little-endian
//	REG_NONE                          empty; decode reports ErrNoData
//
// Decode never loses the input: on failure it returns Binary(raw) together
// with a *DecodeError.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/offreg/pkg/types"
)

const terminatorLen = 2

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ErrNoData is the decode outcome for REG_NONE: not a failure, just nothing
// to interpret.
var ErrNoData = errors.New("codec: value carries no data")

// DecodeError reports bytes that do not fit their declared type tag.
type DecodeError struct {
	Type   types.RegType
	Raw    []byte
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: cannot decode %s (%d bytes): %s", e.Type, len(e.Raw), e.Reason)
}

// Is lets errors.Is(err, types.ErrUndecodable) and types.ErrUnknownType match.
func (e *DecodeError) Is(target error) bool {
	if target == types.ErrUnknownType {
		return !e.Type.Known()
	}
	return target == types.ErrUndecodable && e.Type.Known()
}

func decodeFailure(t types.RegType, raw []byte, format string, args ...any) (Value, error) {
	return Binary(raw), &DecodeError{Type: t, Raw: bytes.Clone(raw), Reason: fmt.Sprintf(format, args...)}
}

// Decode interprets raw according to t.
func Decode(t types.RegType, raw []byte) (Value, error) {
	switch t {
	case types.REG_NONE:
		return None(), ErrNoData

	case types.REG_SZ, types.REG_EXPAND_SZ, types.REG_LINK:
		s, err := decodeString(raw)
		if err != nil {
			return decodeFailure(t, raw, "%v", err)
		}
		return String(s), nil

	case types.REG_MULTI_SZ:
		ss, err := decodeMultiString(raw)
		if err != nil {
			return decodeFailure(t, raw, "%v", err)
		}
		return MultiString(ss), nil

	case types.REG_BINARY, types.REG_RESOURCE_LIST,
		types.REG_FULL_RESOURCE_DESCRIPTOR, types.REG_RESOURCE_REQUIREMENTS_LIST:
		return Binary(raw), nil

	case types.REG_DWORD:
		if len(raw) != 4 {
			return decodeFailure(t, raw, "want 4 bytes, have %d", len(raw))
		}
		return DWord(binary.LittleEndian.Uint32(raw)), nil

	case types.REG_DWORD_BE:
		if len(raw) != 4 {
			return decodeFailure(t, raw, "want 4 bytes, have %d", len(raw))
		}
		return DWord(binary.BigEndian.Uint32(raw)), nil

	case types.REG_QWORD:
		if len(raw) != 8 {
			return decodeFailure(t, raw, "want 8 bytes, have %d", len(raw))
		}
		return QWord(binary.LittleEndian.Uint64(raw)), nil
	}
	return decodeFailure(t, raw, "unknown type tag %d", uint32(t))
}

// Encode lays v out according to t. The Value kind must match the tag's
// family; Binary is accepted for every tag and passed through untouched.
func Encode(t types.RegType, v Value) ([]byte, error) {
	if v.kind == KindBinary {
		return bytes.Clone(v.raw), nil
	}
	switch t {
	case types.REG_NONE:
		if v.kind == KindNone {
			return []byte{}, nil
		}
	case types.REG_SZ, types.REG_EXPAND_SZ, types.REG_LINK:
		if v.kind == KindString {
			return EncodeString(v.str)
		}
	case types.REG_MULTI_SZ:
		if v.kind == KindMultiString {
			return EncodeMultiString(v.strs)
		}
	case types.REG_DWORD:
		if v.kind == KindDWord {
			return EncodeDWord(uint32(v.num)), nil
		}
	case types.REG_DWORD_BE:
		if v.kind == KindDWord {
			return EncodeDWordBE(uint32(v.num)), nil
		}
	case types.REG_QWORD:
		if v.kind == KindQWord {
			return EncodeQWord(v.num), nil
		}
	}
	return nil, &types.Error{
		Kind: types.ErrKindInvalidArgument,
		Op:   "encode",
		Msg:  fmt.Sprintf("%s value cannot be stored as %s", v.kind, t),
	}
}

// EncodeString returns s as UTF-16LE plus a 00 00 terminator, appended even
// when s already ends in NUL.
func EncodeString(s string) ([]byte, error) {
	enc, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("codec: encode utf-16: %w", err)
	}
	return append(enc, 0, 0), nil
}

// EncodeMultiString returns each string terminated, then one more
// terminator. Empty elements are rejected: they would read back as the end
// of the list.
func EncodeMultiString(ss []string) ([]byte, error) {
	var out []byte
	for i, s := range ss {
		if s == "" {
			return nil, &types.Error{
				Kind: types.ErrKindInvalidArgument,
				Op:   "encode",
				Msg:  fmt.Sprintf("multi-string element %d is empty", i),
			}
		}
		enc, err := EncodeString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return append(out, 0, 0), nil
}

func EncodeDWord(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func EncodeDWordBE(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func EncodeQWord(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func decodeString(raw []byte) (string, error) {
	if len(raw)%2 != 0 {
		return "", fmt.Errorf("odd length %d", len(raw))
	}
	end := len(raw)
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			end = i
			break
		}
	}
	return utf16String(raw[:end])
}

func decodeMultiString(raw []byte) ([]string, error) {
	switch {
	case len(raw)%2 != 0:
		return nil, fmt.Errorf("odd length %d", len(raw))
	case len(raw) == 0:
		return nil, errors.New("empty buffer")
	case len(raw) == terminatorLen && raw[0] == 0 && raw[1] == 0:
		return []string{}, nil
	case len(raw) < 2*terminatorLen || !bytes.Equal(raw[len(raw)-4:], []byte{0, 0, 0, 0}):
		return nil, errors.New("missing double terminator")
	}
	s, err := utf16String(raw[:len(raw)-2*terminatorLen])
	if err != nil {
		return nil, err
	}
	return strings.Split(s, "\x00"), nil
}

func utf16String(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	dec, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(dec), nil
}
