package hive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/offreg/pkg/types"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T) (*Provider, types.Handle) {
	t.Helper()
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return t0 }
	p := New(opts)
	h, err := p.CreateHive()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.CloseHive(h) })
	return p, h
}

func u16(n int) []uint16 { return make([]uint16, n) }

func TestCreateKeyDisposition(t *testing.T) {
	p, root := newTestProvider(t)

	k1, disp, err := p.CreateKey(root, `A\B`, "cls", 0)
	require.NoError(t, err)
	require.Equal(t, types.CreatedNewKey, disp)

	k2, disp, err := p.CreateKey(root, "a/b", "other", 0)
	require.NoError(t, err)
	require.Equal(t, types.OpenedExistingKey, disp)
	require.NotEqual(t, k1, k2, "every call returns a fresh handle")

	info, err := p.QueryInfoKey(k2, u16(8))
	require.NoError(t, err)
	require.Equal(t, uint32(3), info.ClassLen, "class of an existing key is untouched")

	info, err = p.QueryInfoKey(root, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(1), info.SubKeys)
}

func TestCreateKeyEmptyPathOpensSelf(t *testing.T) {
	p, root := newTestProvider(t)
	h, disp, err := p.CreateKey(root, "", "", 0)
	require.NoError(t, err)
	require.Equal(t, types.OpenedExistingKey, disp)
	require.NoError(t, p.SetValue(h, "x", types.REG_DWORD, []byte{1, 0, 0, 0}))

	_, size, err := p.GetValue(root, "", "x", nil)
	require.NoError(t, err)
	require.Equal(t, uint32(4), size)
}

func TestCreateKeyRejects(t *testing.T) {
	p, root := newTestProvider(t)

	_, _, err := p.CreateKey(root, "L", "", types.OptionCreateLink)
	require.ErrorIs(t, err, types.StatusInvalidParameter)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'k'
	}
	_, _, err = p.CreateKey(root, `ok\`+string(long), "", 0)
	require.ErrorIs(t, err, types.StatusInvalidParameter)

	_, err = p.OpenKey(root, "ok")
	require.ErrorIs(t, err, types.StatusFileNotFound, "nothing is created when a later segment is invalid")
}

func TestOpenKey(t *testing.T) {
	p, root := newTestProvider(t)
	_, _, err := p.CreateKey(root, `Software\Vendor`, "", 0)
	require.NoError(t, err)

	h, err := p.OpenKey(root, `SOFTWARE\vendor`)
	require.NoError(t, err)
	require.NoError(t, p.CloseKey(h))
	require.ErrorIs(t, p.CloseKey(h), types.StatusInvalidHandle)

	_, err = p.OpenKey(root, `Software\Missing`)
	require.ErrorIs(t, err, types.StatusFileNotFound)
	require.True(t, types.IsNotFound(err))

	require.ErrorIs(t, p.CloseKey(root), types.StatusInvalidHandle, "hive handles close through CloseHive")
}

func TestDeleteKey(t *testing.T) {
	p, root := newTestProvider(t)
	parent, _, err := p.CreateKey(root, "P", "", 0)
	require.NoError(t, err)
	child, _, err := p.CreateKey(parent, "C", "", 0)
	require.NoError(t, err)

	require.ErrorIs(t, p.DeleteKey(root, ""), types.StatusAccessDenied)
	require.ErrorIs(t, p.DeleteKey(root, "P"), types.StatusAccessDenied, "key has subkeys")
	require.ErrorIs(t, p.DeleteKey(root, "nope"), types.StatusFileNotFound)

	require.NoError(t, p.DeleteKey(child, ""))
	_, err = p.QueryInfoKey(child, nil)
	require.ErrorIs(t, err, types.StatusKeyDeleted)
	require.NoError(t, p.CloseKey(child), "stale handles can still be closed")

	require.NoError(t, p.DeleteKey(root, "P"))
	require.ErrorIs(t, p.SetValue(parent, "v", types.REG_SZ, nil), types.StatusKeyDeleted)

	info, err := p.QueryInfoKey(root, nil)
	require.NoError(t, err)
	require.Zero(t, info.SubKeys)
}

func TestEnumKeyBuffers(t *testing.T) {
	p, root := newTestProvider(t)
	for _, name := range []string{"beta", "Alpha"} {
		_, _, err := p.CreateKey(root, name, "Klass", 0)
		require.NoError(t, err)
	}

	res, err := p.EnumKey(root, 0, nil, nil)
	require.ErrorIs(t, err, types.StatusMoreData)
	require.Equal(t, uint32(5), res.NameLen)
	require.Equal(t, uint32(5), res.ClassLen)

	_, err = p.EnumKey(root, 0, u16(5), nil)
	require.ErrorIs(t, err, types.StatusMoreData, "terminator does not fit")

	name := u16(6)
	res, err = p.EnumKey(root, 0, name, nil)
	require.NoError(t, err, "nil class buffer is not requested")
	require.Equal(t, "Alpha", string(utf16ToRunes(name[:res.NameLen])))
	require.Equal(t, t0, res.LastWriteTime)

	class := u16(3)
	_, err = p.EnumKey(root, 1, u16(6), class)
	require.ErrorIs(t, err, types.StatusMoreData)

	_, err = p.EnumKey(root, 2, u16(6), nil)
	require.ErrorIs(t, err, types.StatusNoMoreItems)
}

func utf16ToRunes(u []uint16) []rune {
	out := make([]rune, len(u))
	for i, c := range u {
		out[i] = rune(c)
	}
	return out
}

func TestValues(t *testing.T) {
	p, root := newTestProvider(t)
	k, _, err := p.CreateKey(root, "K", "", 0)
	require.NoError(t, err)

	data := []byte("0123456789")
	require.NoError(t, p.SetValue(k, "Name", types.REG_BINARY, data))
	require.NoError(t, p.SetValue(k, "", types.REG_DWORD, []byte{7, 0, 0, 0}))

	typ, size, err := p.GetValue(root, "K", "name", nil)
	require.NoError(t, err)
	require.Equal(t, types.REG_BINARY, typ)
	require.Equal(t, uint32(10), size)

	_, size, err = p.GetValue(k, "", "Name", make([]byte, 0))
	require.ErrorIs(t, err, types.StatusMoreData)
	require.Equal(t, uint32(10), size)

	buf := make([]byte, 16)
	_, size, err = p.GetValue(k, "", "Name", buf)
	require.NoError(t, err)
	require.Equal(t, data, buf[:size])

	_, _, err = p.GetValue(k, "", "missing", nil)
	require.ErrorIs(t, err, types.StatusFileNotFound)
	_, _, err = p.GetValue(root, "nokey", "Name", nil)
	require.ErrorIs(t, err, types.StatusFileNotFound)

	res, err := p.EnumValue(k, 0, u16(2), nil)
	require.ErrorIs(t, err, types.StatusMoreData)
	require.Equal(t, uint32(4), res.NameLen)
	require.Equal(t, uint32(10), res.DataLen)

	res, err = p.EnumValue(k, 0, u16(5), make([]byte, 4))
	require.ErrorIs(t, err, types.StatusMoreData)
	require.Equal(t, types.REG_BINARY, res.Type)

	res, err = p.EnumValue(k, 1, nil, make([]byte, 4))
	require.NoError(t, err, "default value name fits a nil buffer")
	require.Equal(t, uint32(0), res.NameLen)

	_, err = p.EnumValue(k, 2, nil, nil)
	require.ErrorIs(t, err, types.StatusNoMoreItems)

	info, err := p.QueryInfoKey(k, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(2), info.Values)
	require.Equal(t, uint32(4), info.MaxValueNameLen)
	require.Equal(t, uint32(10), info.MaxValueLen)

	require.NoError(t, p.DeleteValue(k, "NAME"))
	require.ErrorIs(t, p.DeleteValue(k, "Name"), types.StatusFileNotFound)
}

func TestQueryInfoKeyClass(t *testing.T) {
	p, root := newTestProvider(t)
	k, _, err := p.CreateKey(root, "K", "Shell", 0)
	require.NoError(t, err)

	info, err := p.QueryInfoKey(k, nil)
	require.ErrorIs(t, err, types.StatusMoreData)
	require.Equal(t, uint32(5), info.ClassLen)
	require.Equal(t, uint32(len(defaultSecurity)), info.SecurityDescriptorSize)

	class := u16(6)
	_, err = p.QueryInfoKey(k, class)
	require.NoError(t, err)
	require.Equal(t, "Shell", string(utf16ToRunes(class[:5])))
}

func TestCloseHiveReleasesHandles(t *testing.T) {
	p := New(nil)
	h, err := p.CreateHive()
	require.NoError(t, err)
	k, _, err := p.CreateKey(h, `A\B`, "", 0)
	require.NoError(t, err)
	_, err = p.OpenKey(h, "A")
	require.NoError(t, err)
	require.Equal(t, 3, p.OpenHandles())

	require.ErrorIs(t, p.CloseHive(k), types.StatusInvalidHandle)
	require.NoError(t, p.CloseHive(h))
	require.Zero(t, p.OpenHandles())
	require.ErrorIs(t, p.CloseHive(h), types.StatusInvalidHandle)

	_, err = p.QueryInfoKey(k, nil)
	require.ErrorIs(t, err, types.StatusInvalidHandle)
}

func TestVolatileKeysAreNotSaved(t *testing.T) {
	p, root := newTestProvider(t)
	_, _, err := p.CreateKey(root, "Keep", "", 0)
	require.NoError(t, err)
	_, _, err = p.CreateKey(root, "Temp", "", types.OptionVolatile)
	require.NoError(t, err)

	path := t.TempDir() + "/vol.hiv"
	require.NoError(t, p.SaveHive(root, path, 1, 5))

	h, err := p.OpenHive(path)
	require.NoError(t, err)
	defer p.CloseHive(h)
	_, err = p.OpenKey(h, "Keep")
	require.NoError(t, err)
	_, err = p.OpenKey(h, "Temp")
	require.ErrorIs(t, err, types.StatusFileNotFound)
}

func TestFormatMinor(t *testing.T) {
	tests := []struct {
		major, minor uint32
		want         uint32
		ok           bool
	}{
		{1, 3, 3, true},
		{1, 5, 5, true},
		{1, 6, 6, true},
		{1, 7, 0, false},
		{1, 1, 0, false},
		{5, 1, 3, true},
		{6, 1, 5, true},
		{10, 0, 5, true},
		{4, 0, 0, false},
	}
	for _, tt := range tests {
		got, err := formatMinor(tt.major, tt.minor)
		if !tt.ok {
			require.ErrorIs(t, err, types.StatusInvalidParameter, "%d.%d", tt.major, tt.minor)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "%d.%d", tt.major, tt.minor)
	}
}

func TestPutString(t *testing.T) {
	require.True(t, putString(nil, ""))
	require.False(t, putString(nil, "a"))
	require.False(t, putString(u16(1), "a"))

	dst := []uint16{9, 9, 9}
	require.True(t, putString(dst, "ab"))
	require.Equal(t, []uint16{'a', 'b', 0}, dst)

	dst = u16(3)
	require.True(t, putString(dst, "\U0001F600"), "surrogate pair plus terminator")
	require.Equal(t, uint16(0), dst[2])
}
