package format

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeName converts a raw NK/VK name into UTF-8. Compressed names are
// Windows-1252, the rest UTF-16LE.
func DecodeName(raw []byte, compressed bool) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if compressed {
		if isASCII(raw) {
			return string(raw), nil
		}
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decode windows-1252 name: %w", err)
		}
		return string(decoded), nil
	}
	if len(raw)%2 != 0 {
		return "", errors.New("utf-16 name has odd length")
	}
	decoded, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode utf-16 name: %w", err)
	}
	return string(decoded), nil
}

// EncodeName returns the on-disk form of name. Pure ASCII names are stored
// compressed; anything else is UTF-16LE.
func EncodeName(name string) ([]byte, bool, error) {
	if isASCII([]byte(name)) {
		return []byte(name), true, nil
	}
	raw, err := EncodeUTF16(name)
	return raw, false, err
}

// EncodeUTF16 returns s as UTF-16LE without a terminator.
func EncodeUTF16(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode utf-16: %w", err)
	}
	return raw, nil
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if utf16.RuneLen(r) == 2 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// NameHash is the LH list hash: for every UTF-16 unit of the upper-cased
// name, h = h*37 + unit.
func NameHash(name string) uint32 {
	var h uint32
	for _, u := range utf16.Encode([]rune(strings.ToUpper(name))) {
		h = h*37 + uint32(u)
	}
	return h
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
