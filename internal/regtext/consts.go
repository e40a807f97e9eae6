// Package regtext reads and writes the text format of Windows Registry
// Editor (.reg) files.
package regtext

// File headers. REGEDIT4 files are ANSI; version 5 files are usually
// UTF-16LE with a byte order mark.
const (
	Header         = "Windows Registry Editor Version 5.00"
	HeaderRegedit4 = "REGEDIT4"
)

const (
	commentPrefix    = ";"
	keyOpen          = "["
	keyClose         = "]"
	deleteMarker     = "-"
	defaultValueName = "@"
	quote            = `"`
	continuation     = `\`
	dwordPrefix      = "dword:"
	hexPrefix        = "hex"
	dwordHexLen      = 8
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
)
