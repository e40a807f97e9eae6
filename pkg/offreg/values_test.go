package offreg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/offreg/hive"
	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/types"
)

func TestTypedSetters(t *testing.T) {
	hv := createHive(t, nil, nil)
	k, err := hv.Root().CreateSubKey("Values")
	require.NoError(t, err)
	defer k.Close()

	require.NoError(t, k.SetString("sz", "hello"))
	require.NoError(t, k.SetExpandString("expand", `%SystemRoot%\x`))
	require.NoError(t, k.SetMultiString("multi", []string{"a", "bc"}))
	require.NoError(t, k.SetBinary("bin", []byte{0xde, 0xad}))
	require.NoError(t, k.SetDWord("dw", 0x01020304))
	require.NoError(t, k.SetDWordBigEndian("be", 0x01020304))
	require.NoError(t, k.SetQWord("qw", 1<<40))
	require.NoError(t, k.SetNone("none"))
	require.Equal(t, 8, k.ValueCount())

	tests := []struct {
		name string
		kind types.RegType
		want codec.Value
	}{
		{"sz", types.REG_SZ, codec.String("hello")},
		{"expand", types.REG_EXPAND_SZ, codec.String(`%SystemRoot%\x`)},
		{"multi", types.REG_MULTI_SZ, codec.MultiString([]string{"a", "bc"})},
		{"bin", types.REG_BINARY, codec.Binary([]byte{0xde, 0xad})},
		{"dw", types.REG_DWORD, codec.DWord(0x01020304)},
		{"be", types.REG_DWORD_BE, codec.DWord(0x01020304)},
		{"qw", types.REG_QWORD, codec.QWord(1 << 40)},
		{"none", types.REG_NONE, codec.None()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := k.GetValueKind(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.kind, kind)

			got, err := k.GetValue(tt.name)
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "got %s", got.Format())
		})
	}

	raw, err := k.GetValueBytes("be")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, raw)

	raw, err = k.GetValueBytes("none")
	require.NoError(t, err)
	require.Empty(t, raw)
}

func TestSetValuePicksTag(t *testing.T) {
	hv := createHive(t, nil, nil)
	root := hv.Root()

	tests := []struct {
		v    codec.Value
		want types.RegType
	}{
		{codec.String("s"), types.REG_SZ},
		{codec.MultiString([]string{"m"}), types.REG_MULTI_SZ},
		{codec.DWord(1), types.REG_DWORD},
		{codec.QWord(1), types.REG_QWORD},
		{codec.Binary([]byte{1}), types.REG_BINARY},
		{codec.None(), types.REG_NONE},
	}
	for _, tt := range tests {
		name := tt.want.String()
		require.NoError(t, root.SetValue(name, tt.v))
		kind, err := root.GetValueKind(name)
		require.NoError(t, err)
		require.Equal(t, tt.want, kind)
	}

	require.NoError(t, root.SetTypedValue("link", types.REG_LINK, codec.String(`\Registry\Machine`)))
	v, err := root.GetValue("link")
	require.NoError(t, err)
	s, ok := v.Str()
	require.True(t, ok)
	require.Equal(t, `\Registry\Machine`, s)
}

func TestSetMultiStringRejectsEmptyElement(t *testing.T) {
	hv := createHive(t, nil, nil)
	err := hv.Root().SetMultiString("m", []string{"a", "", "b"})
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	ok, err := hv.Root().ValueExist("m")
	require.NoError(t, err)
	require.False(t, ok, "nothing is stored on failure")
}

func TestUndecodableValues(t *testing.T) {
	hv := createHive(t, nil, nil)
	root := hv.Root()
	require.NoError(t, root.SetRaw("short", types.REG_DWORD, []byte{1, 2, 3}))
	require.NoError(t, root.SetRaw("odd", types.REG_SZ, []byte{'a', 0, 'b'}))
	require.NoError(t, root.SetNone("none"))

	v, err := root.GetValue("short")
	require.NoError(t, err)
	require.Equal(t, codec.KindBinary, v.Kind())
	raw, _ := v.Bytes()
	require.Equal(t, []byte{1, 2, 3}, raw)

	v, ok, err := root.TryParseValue("short")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, v.Equal(codec.Binary([]byte{1, 2, 3})))

	_, ok, err = root.TryParseValue("odd")
	require.NoError(t, err)
	require.False(t, ok)

	v, ok, err = root.TryParseValue("none")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, codec.KindBinary, v.Kind())

	v, err = root.GetValue("none")
	require.NoError(t, err)
	require.Equal(t, codec.KindNone, v.Kind())

	require.NoError(t, root.SetDWord("fine", 7))
	v, ok, err = root.TryParseValue("fine")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, v.Equal(codec.DWord(7)))
}

func TestMissingValue(t *testing.T) {
	hv := createHive(t, nil, nil)
	root := hv.Root()

	_, err := root.GetValue("ghost")
	require.ErrorIs(t, err, types.ErrNotFound)
	require.Contains(t, err.Error(), ":ghost")

	_, err = root.GetValueKind("ghost")
	require.ErrorIs(t, err, types.ErrNotFound)

	ok, err := root.ValueExist("ghost")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, root.DeleteValue("ghost"), types.ErrNotFound)
}

func TestDeleteValueRefreshesCounts(t *testing.T) {
	hv := createHive(t, nil, nil)
	root := hv.Root()
	require.NoError(t, root.SetBinary("big", make([]byte, 300)))
	require.NoError(t, root.SetDWord("small", 1))
	require.Equal(t, 2, root.ValueCount())
	require.Equal(t, uint32(300), root.Info().MaxValueLen)

	require.NoError(t, root.DeleteValue("BIG"))
	require.Equal(t, 1, root.ValueCount())
	require.Equal(t, uint32(4), root.Info().MaxValueLen)
}

func TestEnumerateValues(t *testing.T) {
	hv := createHive(t, nil, nil)
	root := hv.Root()
	require.NoError(t, root.SetString("first", "one"))
	require.NoError(t, root.SetRaw("strange", types.RegType(0x1234), []byte{9, 8, 7}))
	require.NoError(t, root.SetNone("empty"))
	require.NoError(t, root.SetDWord("last", 42))

	vals, err := root.EnumerateValues()
	require.NoError(t, err)
	require.Len(t, vals, 4)

	require.Equal(t, "first", vals[0].Name)
	require.True(t, vals[0].OK)
	require.True(t, vals[0].Data.Equal(codec.String("one")))

	require.Equal(t, "strange", vals[1].Name)
	require.False(t, vals[1].OK)
	require.Equal(t, types.RegType(0x1234), vals[1].Type)
	require.Equal(t, []byte{9, 8, 7}, vals[1].Raw)
	require.Equal(t, codec.KindBinary, vals[1].Data.Kind())

	require.Equal(t, "empty", vals[2].Name)
	require.False(t, vals[2].OK)
	require.Empty(t, vals[2].Raw)

	require.Equal(t, "last", vals[3].Name)
	require.True(t, vals[3].OK)
	require.True(t, vals[3].Data.Equal(codec.DWord(42)))

	names, err := root.GetValueNames()
	require.NoError(t, err)
	require.Equal(t, []string{"first", "strange", "empty", "last"}, names)
}

func TestEnumerateValuesEmptyKey(t *testing.T) {
	hv := createHive(t, nil, nil)
	vals, err := hv.Root().EnumerateValues()
	require.NoError(t, err)
	require.Empty(t, vals)
	names, err := hv.Root().GetValueNames()
	require.NoError(t, err)
	require.Empty(t, names)
}

// shrinkingProvider under-reports size bounds so every entry outgrows the
// buffers sized from them.
type shrinkingProvider struct {
	types.Provider
}

func (p shrinkingProvider) QueryInfoKey(h types.Handle, class []uint16) (types.KeyInfoResult, error) {
	res, err := p.Provider.QueryInfoKey(h, class)
	res.MaxSubKeyLen, res.MaxClassLen = 0, 0
	res.MaxValueNameLen, res.MaxValueLen = 0, 0
	return res, err
}

func TestEnumerateFallsBackToProbe(t *testing.T) {
	hv := createHive(t, shrinkingProvider{hive.New(nil)}, nil)
	root := hv.Root()
	require.NoError(t, root.SetString("LongerValueName", "some text"))
	require.NoError(t, root.SetBinary("bin", make([]byte, 64)))
	k, err := root.CreateSubKeyClass("SubkeyWithClass", "TheClass", 0)
	require.NoError(t, err)
	require.NoError(t, k.Close())

	vals, err := root.EnumerateValues()
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.Equal(t, "LongerValueName", vals[0].Name)
	require.True(t, vals[0].Data.Equal(codec.String("some text")))
	require.Len(t, vals[1].Raw, 64)

	names, err := root.GetValueNames()
	require.NoError(t, err)
	require.Equal(t, []string{"LongerValueName", "bin"}, names)

	subs, err := root.EnumerateSubKeys()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "SubkeyWithClass", subs[0].Name)
	require.Equal(t, "TheClass", subs[0].Class)
}

// growingProvider reports a value that never fits the buffer it asked for.
type growingProvider struct {
	types.Provider
}

func (p growingProvider) GetValue(h types.Handle, subPath, name string, data []byte) (types.RegType, uint32, error) {
	return types.REG_BINARY, uint32(len(data)) + 16, types.StatusMoreData
}

func TestProbeFetchSizeChanged(t *testing.T) {
	hv := createHive(t, growingProvider{hive.New(nil)}, nil)
	_, err := hv.Root().GetValueBytes("v")
	require.ErrorIs(t, err, types.ErrNative)
	require.Equal(t, types.StatusMoreData, types.StatusOf(err))
	require.Contains(t, err.Error(), "size changed")
}
