package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/types"
)

// parseType accepts the short names (sz, dword, ...) and the REG_* names.
func parseType(name string) (types.RegType, error) {
	switch strings.TrimPrefix(strings.ToUpper(name), "REG_") {
	case "NONE":
		return types.REG_NONE, nil
	case "SZ", "STRING":
		return types.REG_SZ, nil
	case "EXPAND_SZ":
		return types.REG_EXPAND_SZ, nil
	case "BINARY":
		return types.REG_BINARY, nil
	case "DWORD":
		return types.REG_DWORD, nil
	case "DWORD_BE", "DWORD_BIG_ENDIAN":
		return types.REG_DWORD_BE, nil
	case "LINK":
		return types.REG_LINK, nil
	case "MULTI_SZ":
		return types.REG_MULTI_SZ, nil
	case "QWORD":
		return types.REG_QWORD, nil
	}
	return 0, fmt.Errorf("unsupported value type: %s", name)
}

// parseValue turns command-line text into a value of type t. Multi-strings
// are separated by sep; binary data is hex with optional separators.
func parseValue(t types.RegType, s, sep string) (codec.Value, error) {
	switch t {
	case types.REG_NONE:
		if s == "" {
			return codec.None(), nil
		}
		data, err := parseHexString(s)
		if err != nil {
			return codec.Value{}, fmt.Errorf("invalid REG_NONE value: %w", err)
		}
		return codec.Binary(data), nil

	case types.REG_SZ, types.REG_EXPAND_SZ, types.REG_LINK:
		return codec.String(s), nil

	case types.REG_MULTI_SZ:
		if s == "" {
			return codec.MultiString(nil), nil
		}
		return codec.MultiString(strings.Split(s, sep)), nil

	case types.REG_DWORD, types.REG_DWORD_BE:
		val, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return codec.Value{}, fmt.Errorf("invalid DWORD value: %w", err)
		}
		return codec.DWord(uint32(val)), nil

	case types.REG_QWORD:
		val, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return codec.Value{}, fmt.Errorf("invalid QWORD value: %w", err)
		}
		return codec.QWord(val), nil

	case types.REG_BINARY:
		data, err := parseHexString(s)
		if err != nil {
			return codec.Value{}, fmt.Errorf("invalid BINARY value: %w", err)
		}
		return codec.Binary(data), nil
	}
	return codec.Value{}, fmt.Errorf("unsupported value type: %s", t)
}

// parseHexString parses hex with or without a 0x prefix, spaces, commas or
// colons.
func parseHexString(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.NewReplacer(" ", "", ",", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return data, nil
}
