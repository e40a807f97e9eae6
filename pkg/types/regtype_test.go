package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegType_String(t *testing.T) {
	tests := []struct {
		regType  RegType
		expected string
	}{
		{REG_NONE, "REG_NONE"},
		{REG_SZ, "REG_SZ"},
		{REG_EXPAND_SZ, "REG_EXPAND_SZ"},
		{REG_BINARY, "REG_BINARY"},
		{REG_DWORD, "REG_DWORD"},
		{REG_DWORD_BE, "REG_DWORD_BE"},
		{REG_LINK, "REG_LINK"},
		{REG_MULTI_SZ, "REG_MULTI_SZ"},
		{REG_RESOURCE_LIST, "REG_RESOURCE_LIST"},
		{REG_FULL_RESOURCE_DESCRIPTOR, "REG_FULL_RESOURCE_DESCRIPTOR"},
		{REG_RESOURCE_REQUIREMENTS_LIST, "REG_RESOURCE_REQUIREMENTS_LIST"},
		{REG_QWORD, "REG_QWORD"},

		// Unknown tags render as signed int32.
		{RegType(12), "UNKNOWN_TYPE_12"},
		{RegType(0x1234), "UNKNOWN_TYPE_4660"},
		{RegType(0xFFFFFFFF), "UNKNOWN_TYPE_-1"},
		{RegType(0xFFFF0019), "UNKNOWN_TYPE_-65511"},
		{RegType(1 << 31), "UNKNOWN_TYPE_-2147483648"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.regType.String())
		})
	}
}

func TestRegType_Known(t *testing.T) {
	for rt := REG_NONE; rt <= REG_QWORD; rt++ {
		require.True(t, rt.Known(), rt.String())
	}
	require.False(t, RegType(12).Known())
	require.False(t, RegType(0xFFFF0019).Known())
}
