package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/fslock"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
	"github.com/joshuapare/offreg/pkg/types"
)

// resetFlags restores every flag a test may have touched.
func resetFlags() {
	verbose, quiet, jsonOut, useNative, dllPath = false, false, false, false, ""
	saveVersion = "6.1"
	keysRecursive, keysDepth = false, 0
	setType, setCreateKey, setSeparator = "sz", false, ","
	treeDepth, treeValues, treeTimestamps = 0, false, false
	exportFormat, exportOutput, exportMaxBytes, exportRootName = "reg", "", 0, "HKEY_LOCAL_MACHINE"
	applyCreate = false
	importRoot, importCreate = "HKEY_LOCAL_MACHINE", false
}

// run executes fn with command output captured.
func run(t *testing.T, fn func([]string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	err := fn(args)
	return buf.String(), err
}

func newHiveFile(t *testing.T) string {
	t.Helper()
	resetFlags()
	path := filepath.Join(t.TempDir(), "test.hiv")
	_, err := run(t, runCreate, path)
	require.NoError(t, err)
	return path
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := newHiveFile(t)
	_, err := run(t, runCreate, path)
	require.Error(t, err)
	require.Equal(t, types.StatusFileExists, types.StatusOf(err))
}

func TestSetAndGet(t *testing.T) {
	path := newHiveFile(t)

	_, err := run(t, runSet, path, `Software\App`, "Version", "1.0")
	require.ErrorIs(t, err, types.ErrNotFound, "key must exist without --create-key")

	setCreateKey = true
	out, err := run(t, runSet, path, `Software\App`, "Version", "1.0")
	require.NoError(t, err)
	require.Contains(t, out, `Set Software\App\Version (REG_SZ)`)

	setType = "dword"
	_, err = run(t, runSet, path, `Software\App`, "Enabled", "0x10")
	require.NoError(t, err)

	setType, setSeparator = "multi_sz", ";"
	_, err = run(t, runSet, path, `Software\App`, "Paths", `C:\a;C:\b`)
	require.NoError(t, err)

	out, err = run(t, runGet, path, `software\app`, "Version")
	require.NoError(t, err)
	require.Equal(t, "1.0\n", out)

	out, err = run(t, runGet, path, `Software\App`, "Enabled")
	require.NoError(t, err)
	require.Equal(t, "0x00000010 (16)\n", out)

	jsonOut = true
	out, err = run(t, runGet, path, `Software\App`, "Paths")
	require.NoError(t, err)
	var got struct {
		Type  string
		Data  []string
		Valid bool
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "REG_MULTI_SZ", got.Type)
	require.Equal(t, []string{`C:\a`, `C:\b`}, got.Data)
	require.True(t, got.Valid)

	_, err = run(t, runGet, path, `Software\App`, "Missing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestSetRejectsBadInput(t *testing.T) {
	path := newHiveFile(t)
	setCreateKey = true

	setType = "dword"
	_, err := run(t, runSet, path, "K", "n", "not-a-number")
	require.ErrorContains(t, err, "invalid DWORD")

	setType = "float"
	_, err = run(t, runSet, path, "K", "n", "1.5")
	require.ErrorContains(t, err, "unsupported value type")

	setType = "multi_sz"
	_, err = run(t, runSet, path, "K", "n", "a,,b")
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	resetFlags()
	out, err := run(t, runKeys, path)
	require.NoError(t, err)
	require.Empty(t, out, "failed edits are never written")
}

func TestKeysValuesAndDeletes(t *testing.T) {
	path := newHiveFile(t)
	setCreateKey = true
	for _, k := range []string{`A\B\C`, `A\D`, `E`} {
		_, err := run(t, runSet, path, k, "v", "x")
		require.NoError(t, err)
	}
	setType = "binary"
	_, err := run(t, runSet, path, "E", "blob", "de:ad:be:ef")
	require.NoError(t, err)

	resetFlags()
	out, err := run(t, runKeys, path)
	require.NoError(t, err)
	require.Equal(t, "A\nE\n", out)

	keysRecursive = true
	out, err = run(t, runKeys, path, "A")
	require.NoError(t, err)
	require.Equal(t, "A\\B\nA\\B\\C\nA\\D\n", out)

	keysDepth = 1
	out, err = run(t, runKeys, path, "A")
	require.NoError(t, err)
	require.Equal(t, "A\\B\nA\\D\n", out)

	out, err = run(t, runValues, path, "E")
	require.NoError(t, err)
	require.Contains(t, out, "v\tREG_SZ\tx\n")
	require.Contains(t, out, "blob\tREG_BINARY\tde ad be ef\n")

	_, err = run(t, runDeleteValue, path, "E", "blob")
	require.NoError(t, err)
	_, err = run(t, runDeleteValue, path, "E", "blob")
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = run(t, runDeleteKey, path, "A")
	require.NoError(t, err)
	_, err = run(t, runDeleteKey, path, "")
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	keysRecursive, keysDepth = false, 0
	out, err = run(t, runKeys, path)
	require.NoError(t, err)
	require.Equal(t, "E\n", out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"test.hiv", ".test.hiv.lock"}, names, "no temp files are left behind")
}

func TestEditsWaitForLock(t *testing.T) {
	path := newHiveFile(t)
	l := fslock.New(lockPath(path))
	require.NoError(t, l.TryLock())
	defer l.Unlock()

	lockTimeout = 50 * time.Millisecond
	t.Cleanup(func() { lockTimeout = defaultLockTimeout })

	setCreateKey = true
	_, err := run(t, runSet, path, "K", "v", "x")
	require.ErrorContains(t, err, "locked by another process")

	out, err := run(t, runKeys, path)
	require.NoError(t, err, "reads do not take the lock")
	require.Empty(t, out)
}

func TestTreeAndExport(t *testing.T) {
	path := newHiveFile(t)
	setCreateKey = true
	_, err := run(t, runSet, path, `Vendor\App`, "Name", `say "hi"`)
	require.NoError(t, err)

	resetFlags()
	treeValues = true
	out, err := run(t, runTree, path)
	require.NoError(t, err)
	require.Contains(t, out, "[Vendor]")
	require.Contains(t, out, `"Name" [REG_SZ] = "say "hi""`)

	reg := filepath.Join(t.TempDir(), "out.reg")
	exportOutput = reg
	exportRootName = `HKEY_LOCAL_MACHINE\OFFLINE`
	_, err = run(t, runExport, path, "Vendor")
	require.NoError(t, err)
	data, err := os.ReadFile(reg)
	require.NoError(t, err)
	require.Equal(t, "Windows Registry Editor Version 5.00\n\n"+
		"[HKEY_LOCAL_MACHINE\\OFFLINE\\Vendor]\n\n"+
		"[HKEY_LOCAL_MACHINE\\OFFLINE\\Vendor\\App]\n"+
		"\"Name\"=\"say \\\"hi\\\"\"\n", string(data))

	exportOutput, exportFormat = "", "json"
	out, err = run(t, runExport, path)
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(out)), out)

	exportFormat = "yaml"
	_, err = run(t, runExport, path)
	require.ErrorContains(t, err, "unknown format")
}

func TestApplyManifest(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	path := filepath.Join(dir, "new.hiv")
	manifest := filepath.Join(dir, "provision.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
keys:
  - path: Software\Vendor\App
    class: AppClass
    values:
      - name: Version
        data: "2.0"
      - name: Enabled
        type: dword
        data: 1
      - name: Paths
        type: multi_sz
        data: ['C:\a', 'C:\b']
      - name: Flag
        type: none
  - path: Software\Vendor\Old
    values:
      - name: x
        data: y
  - path: Software\Vendor\Old
    delete: true
  - path: Software\Vendor\Never
    delete: true
`), 0o644))

	_, err := run(t, runApply, path, manifest)
	require.ErrorIs(t, err, types.ErrNotFound, "the hive must exist without --create")

	applyCreate = true
	out, err := run(t, runApply, path, manifest)
	require.NoError(t, err)
	require.Contains(t, out, "2 keys created, 1 keys deleted, 5 values set, 0 values deleted")

	s, err := newSession()
	require.NoError(t, err)
	h, err := s.Open(path)
	require.NoError(t, err)
	defer h.Close()

	app, err := h.Root().OpenSubKey(`Software\Vendor\App`)
	require.NoError(t, err)
	defer app.Close()
	require.Equal(t, "AppClass", app.Class())
	v, err := app.GetValue("Enabled")
	require.NoError(t, err)
	require.True(t, v.Equal(codec.DWord(1)))
	v, err = app.GetValue("Paths")
	require.NoError(t, err)
	require.True(t, v.Equal(codec.MultiString([]string{`C:\a`, `C:\b`})))

	ok, err := h.Root().IsExistSubKey(`Software\Vendor\Old`)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newHiveFile(t)
	setCreateKey = true
	_, err := run(t, runSet, src, `Vendor\App`, "Name", `C:\say "hi"`)
	require.NoError(t, err)
	setType = "dword"
	_, err = run(t, runSet, src, `Vendor\App`, "Count", "7")
	require.NoError(t, err)
	setType = "multi_sz"
	_, err = run(t, runSet, src, `Vendor\App`, "Paths", "a,b")
	require.NoError(t, err)
	setType = "binary"
	_, err = run(t, runSet, src, `Vendor\App`, "Blob", "0102")
	require.NoError(t, err)

	resetFlags()
	reg := filepath.Join(t.TempDir(), "out.reg")
	exportOutput = reg
	_, err = run(t, runExport, src)
	require.NoError(t, err)

	resetFlags()
	dst := filepath.Join(t.TempDir(), "copy.hiv")
	_, err = run(t, runImport, dst, reg)
	require.ErrorIs(t, err, types.ErrNotFound, "the hive must exist without --create")

	importCreate = true
	out, err := run(t, runImport, dst, reg)
	require.NoError(t, err)
	require.Contains(t, out, "2 keys created, 0 keys deleted, 4 values set, 0 values deleted")

	want, err := run(t, runValues, src, `Vendor\App`)
	require.NoError(t, err)
	got, err := run(t, runValues, dst, `Vendor\App`)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestImportDeletions(t *testing.T) {
	path := newHiveFile(t)
	setCreateKey = true
	for _, name := range []string{"Count", "Keep"} {
		_, err := run(t, runSet, path, `Vendor\App`, name, "x")
		require.NoError(t, err)
	}
	resetFlags()

	reg := filepath.Join(t.TempDir(), "edit.reg")
	require.NoError(t, os.WriteFile(reg, []byte("Windows Registry Editor Version 5.00\r\n\r\n"+
		"[HKEY_LOCAL_MACHINE\\Vendor\\App]\r\n"+
		"\"Count\"=-\r\n"+
		"\"Missing\"=-\r\n"+
		"\r\n"+
		"[-HKEY_LOCAL_MACHINE\\Vendor\\Gone]\r\n"), 0o644))

	out, err := run(t, runImport, path, reg)
	require.NoError(t, err)
	require.Contains(t, out, "0 keys created, 0 keys deleted, 0 values set, 1 values deleted")

	out, err = run(t, runValues, path, `Vendor\App`)
	require.NoError(t, err)
	require.Equal(t, "Keep\tREG_SZ\tx\n", out)

	importRoot = `HKEY_LOCAL_MACHINE\OFFLINE`
	_, err = run(t, runImport, path, reg)
	require.ErrorContains(t, err, "outside")
}

func TestParseManifestErrors(t *testing.T) {
	_, err := parseManifest([]byte("keys:\n  - class: x\n"))
	require.ErrorContains(t, err, "path is required")

	_, err = parseManifest([]byte("keys:\n  - path: A\n    delete: true\n    values:\n      - name: v\n"))
	require.ErrorContains(t, err, "cannot be combined")

	_, err = parseManifest([]byte("keys: {"))
	require.ErrorContains(t, err, "parse manifest")

	m, err := parseManifest([]byte("keys:\n  - path: A\n    values:\n      - name: v\n        type: dword\n        data: [1]\n"))
	require.NoError(t, err)
	_, _, err = m.Keys[0].Values[0].value()
	require.ErrorContains(t, err, "must be a scalar")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		typ   string
		in    string
		want  codec.Value
		isErr bool
	}{
		{"sz", "hello", codec.String("hello"), false},
		{"REG_EXPAND_SZ", "%PATH%", codec.String("%PATH%"), false},
		{"dword", "42", codec.DWord(42), false},
		{"dword_be", "0xff", codec.DWord(255), false},
		{"qword", "18446744073709551615", codec.QWord(1<<64 - 1), false},
		{"binary", "0x01 02,03:04", codec.Binary([]byte{1, 2, 3, 4}), false},
		{"multi_sz", "a,b", codec.MultiString([]string{"a", "b"}), false},
		{"none", "", codec.None(), false},
		{"none", "00ff", codec.Binary([]byte{0, 0xff}), false},
		{"dword", "4294967296", codec.Value{}, true},
		{"binary", "abc", codec.Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.in, func(t *testing.T) {
			rt, err := parseType(tt.typ)
			require.NoError(t, err)
			got, err := parseValue(rt, tt.in, ",")
			if tt.isErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "got %s", got.Format())
		})
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("6.1")
	require.NoError(t, err)
	require.Equal(t, offreg.Version{Major: 6, Minor: 1}, v)

	v, err = parseVersion("5")
	require.NoError(t, err)
	require.Equal(t, offreg.Version{Major: 5}, v)

	for _, bad := range []string{"", "x.1", "6.y", "-1"} {
		_, err := parseVersion(bad)
		require.Error(t, err, bad)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	resetFlags()
	var buf bytes.Buffer
	newLogger(&buf).Debug("hidden")
	require.Empty(t, buf.String())

	verbose = true
	newLogger(&buf).Debug("shown")
	require.True(t, strings.Contains(buf.String(), "shown"))

	buf.Reset()
	verbose, quiet = false, true
	newLogger(&buf).Warn("hidden")
	require.Empty(t, buf.String())
	resetFlags()
}
