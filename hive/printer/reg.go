package printer

import (
	"fmt"
	"strings"

	"github.com/joshuapare/offreg/internal/regtext"
	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
	"github.com/joshuapare/offreg/pkg/types"
)

// printKeyReg prints a key in Windows .reg file format.
func (p *Printer) printKeyReg(k *offreg.Key) error {
	fmt.Fprintf(p.writer, "%s\n\n", regtext.Header)
	return p.printKeyBodyReg(k)
}

func (p *Printer) printKeyBodyReg(k *offreg.Key) error {
	fmt.Fprintf(p.writer, "[%s]\n", p.regPath(k.FullName()))
	if !p.opts.ShowValues {
		return nil
	}
	values, err := k.EnumerateValues()
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := p.printValueReg(v); err != nil {
			return err
		}
	}
	return nil
}

// printTreeReg recursively prints a subtree in .reg file format.
func (p *Printer) printTreeReg(k *offreg.Key, depth int) error {
	if p.depthExceeded(depth) {
		return nil
	}
	if err := p.printKeyBodyReg(k); err != nil {
		return err
	}
	return eachChild(k, func(child *offreg.Key) error {
		fmt.Fprintln(p.writer)
		return p.printTreeReg(child, depth+1)
	})
}

// printValueReg prints a value in .reg file format. Strings and DWORDs use
// their literal forms; everything else is written as the stored bytes under
// its hex(n) tag.
func (p *Printer) printValueReg(v offreg.Value) error {
	name := "@"
	if v.Name != "" {
		name = fmt.Sprintf("\"%s\"", regtext.Escape(v.Name))
	}

	if v.OK {
		switch v.Type {
		case types.REG_SZ:
			s, _ := v.Data.Str()
			if !strings.ContainsRune(s, 0) {
				_, err := fmt.Fprintf(p.writer, "%s=\"%s\"\n", name, regtext.Escape(s))
				return err
			}
		case types.REG_DWORD:
			n, _ := v.Data.Uint32()
			_, err := fmt.Fprintf(p.writer, "%s=dword:%08x\n", name, n)
			return err
		case types.REG_BINARY:
			shown, _ := p.truncate(v.Raw)
			_, err := fmt.Fprintf(p.writer, "%s=hex:%s\n", name, regtext.FormatHex(shown))
			return err
		}
	}

	data := v.Raw
	if v.Data.Kind() == codec.KindBinary || !v.OK {
		data, _ = p.truncate(v.Raw)
	}
	_, err := fmt.Fprintf(p.writer, "%s=hex(%x):%s\n", name, uint32(v.Type), regtext.FormatHex(data))
	return err
}

// regPath prefixes a key path with the configured root name.
func (p *Printer) regPath(path string) string {
	root := p.opts.RootName
	if root == "" {
		root = "HKEY_LOCAL_MACHINE"
	}
	if path == "" {
		return root
	}
	return root + `\` + path
}
