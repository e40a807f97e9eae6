package printer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/offreg/hive"
	"github.com/joshuapare/offreg/internal/regtext"
	"github.com/joshuapare/offreg/pkg/offreg"
	"github.com/joshuapare/offreg/pkg/types"
)

// sampleHive builds:
//
//	Software
//	  Vendor        (class "Cls")
//	    "" = "default"
//	    Name = "App \"quoted\""
//	    Count = dword 42
//	    Blob = 00..3f
//	    Paths = multi
//	    Bad = REG_DWORD with three bytes
//	    Settings
//	      Deep
func sampleHive(t *testing.T) *offreg.Hive {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	hv, err := offreg.NewSession(hive.New(&hive.Options{Clock: clock}), nil).Create()
	require.NoError(t, err)
	t.Cleanup(func() { _ = hv.Close() })

	v, err := hv.Root().CreateSubKeyClass(`Software\Vendor`, "Cls", 0)
	require.NoError(t, err)
	defer v.Close()
	require.NoError(t, v.SetString("", "default"))
	require.NoError(t, v.SetString("Name", `App "quoted"`))
	require.NoError(t, v.SetDWord("Count", 42))
	blob := make([]byte, 64)
	for i := range blob {
		blob[i] = byte(i)
	}
	require.NoError(t, v.SetBinary("Blob", blob))
	require.NoError(t, v.SetMultiString("Paths", []string{`C:\a`, `C:\b`}))
	require.NoError(t, v.SetRaw("Bad", types.REG_DWORD, []byte{1, 2, 3}))

	deep, err := v.CreateSubKey(`Settings\Deep`)
	require.NoError(t, err)
	require.NoError(t, deep.Close())
	return hv
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"text", "json", "reg"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		require.Equal(t, Format(s), f)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestPrintKeyText(t *testing.T) {
	hv := sampleHive(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ShowTimestamps = true

	require.NoError(t, New(hv.Root(), &buf, opts).PrintKey(`software\vendor`))
	out := buf.String()
	require.Contains(t, out, "[Vendor]")
	require.Contains(t, out, "Last Write: 2024-05-01 12:00:00")
	require.Contains(t, out, "Class: Cls")
	require.Contains(t, out, "Subkeys: 1, Values: 6")
	require.Contains(t, out, `"(Default)" [REG_SZ] = "default"`)
	require.Contains(t, out, `"Count" [REG_DWORD] = 0x0000002A (42)`)
	require.Contains(t, out, "(truncated, 64 total bytes)")
	require.Contains(t, out, `"Bad" [REG_DWORD] = 010203`)
	require.Contains(t, out, `  "C:\b"`)
}

func TestPrintTreeTextDepth(t *testing.T) {
	hv := sampleHive(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ShowValues = false
	opts.MaxDepth = 3

	require.NoError(t, New(hv.Root(), &buf, opts).PrintTree(""))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, `[\]`), out)
	require.Contains(t, out, "    [Vendor]")
	require.NotContains(t, out, "[Settings]")
	require.Equal(t, 1, hv.OpenKeys(), "every key the walk opened is closed")
}

func TestPrintTreeJSON(t *testing.T) {
	hv := sampleHive(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Format = FormatJSON
	opts.MaxValueBytes = 0

	require.NoError(t, New(hv.Root(), &buf, opts).PrintTree("Software"))

	var doc struct {
		Name     string
		Subkeys  int
		Children []struct {
			Path      string
			Class     string
			ValueData map[string]jsonValue `json:"value_data"`
			Children  []struct{ Name string }
		}
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "Software", doc.Name)
	require.Equal(t, 1, doc.Subkeys)
	require.Len(t, doc.Children, 1)

	vendor := doc.Children[0]
	require.Equal(t, `Software\Vendor`, vendor.Path)
	require.Equal(t, "Cls", vendor.Class)
	require.Equal(t, "REG_DWORD", vendor.ValueData["Count"].Type)
	require.EqualValues(t, 42, vendor.ValueData["Count"].Data)
	require.Len(t, vendor.ValueData["Blob"].Data, 128, "64 bytes of hex, not truncated")
	require.Equal(t, "010203", vendor.ValueData["Bad"].Data)
	require.Equal(t, []any{`C:\a`, `C:\b`}, vendor.ValueData["Paths"].Data)
	require.Len(t, vendor.Children, 1)
	require.Equal(t, "Settings", vendor.Children[0].Name)
}

func TestPrintValueJSONWithoutTypes(t *testing.T) {
	hv := sampleHive(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Format = FormatJSON
	opts.ShowValueTypes = false

	require.NoError(t, New(hv.Root(), &buf, opts).PrintValue(`Software\Vendor`, "Name"))
	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, map[string]string{"Name": `App "quoted"`}, got)
}

func TestPrintTreeReg(t *testing.T) {
	hv := sampleHive(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Format = FormatReg
	opts.MaxValueBytes = 0
	opts.RootName = `HKEY_LOCAL_MACHINE\OFFLINE`

	require.NoError(t, New(hv.Root(), &buf, opts).PrintTree(`Software\Vendor`))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, regtext.Header+"\n\n"))
	require.Contains(t, out, `[HKEY_LOCAL_MACHINE\OFFLINE\Software\Vendor]`)
	require.Contains(t, out, `@="default"`)
	require.Contains(t, out, `"Name"="App \"quoted\""`)
	require.Contains(t, out, `"Count"=dword:0000002a`)
	require.Contains(t, out, `"Blob"=hex:00,01,02`)
	require.Contains(t, out, `,3f`+"\n")
	require.Contains(t, out, `"Paths"=hex(7):43,00,3a,00,5c,00,61,00,00,00`)
	require.Contains(t, out, `"Bad"=hex(4):01,02,03`)
	require.Contains(t, out, `[HKEY_LOCAL_MACHINE\OFFLINE\Software\Vendor\Settings\Deep]`)
}

func TestPrintValueRegDefaults(t *testing.T) {
	hv := sampleHive(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Format = FormatReg
	require.NoError(t, New(hv.Root(), &buf, opts).PrintValue(`Software\Vendor`, ""))
	require.Equal(t, "@=\"default\"\n", buf.String())
}

func TestPrintMissingKey(t *testing.T) {
	hv := sampleHive(t)
	err := New(hv.Root(), &bytes.Buffer{}, DefaultOptions()).PrintKey("Nope")
	require.ErrorIs(t, err, types.ErrNotFound)

	err = New(hv.Root(), &bytes.Buffer{}, DefaultOptions()).PrintValue("Software", "nope")
	require.ErrorIs(t, err, types.ErrNotFound)
}
