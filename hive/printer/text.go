package printer

import (
	"fmt"
	"strings"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
)

func keyLabel(k *offreg.Key) string {
	if k.Name() == "" && k.FullName() == "" {
		return `\`
	}
	return k.Name()
}

// printKeyText prints a key in human-readable text format.
func (p *Printer) printKeyText(k *offreg.Key, depth int) error {
	indent := strings.Repeat(" ", depth*p.opts.IndentSize)
	fmt.Fprintf(p.writer, "%s[%s]\n", indent, keyLabel(k))

	if p.opts.ShowTimestamps {
		fmt.Fprintf(p.writer, "%s  Last Write: %s\n", indent, k.LastWriteTime().Format("2006-01-02 15:04:05"))
	}
	if class := k.Class(); class != "" {
		fmt.Fprintf(p.writer, "%s  Class: %s\n", indent, class)
	}
	fmt.Fprintf(p.writer, "%s  Subkeys: %d, Values: %d\n", indent, k.SubkeyCount(), k.ValueCount())

	if !p.opts.ShowValues {
		return nil
	}
	values, err := k.EnumerateValues()
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := p.printValueText(v, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// printValueText prints a value in human-readable text format.
func (p *Printer) printValueText(v offreg.Value, depth int) error {
	indent := strings.Repeat(" ", depth*p.opts.IndentSize)

	// Format: "  Name" [type] = value
	fmt.Fprintf(p.writer, "%s\"%s\"", indent, displayName(v.Name))
	if p.opts.ShowValueTypes {
		fmt.Fprintf(p.writer, " [%s]", v.Type)
	}
	fmt.Fprintf(p.writer, " = ")

	if !v.OK {
		p.printHexText(v.Raw)
		return nil
	}
	switch v.Data.Kind() {
	case codec.KindString:
		s, _ := v.Data.Str()
		fmt.Fprintf(p.writer, "\"%s\"\n", s)

	case codec.KindDWord:
		n, _ := v.Data.Uint32()
		fmt.Fprintf(p.writer, "0x%08X (%d)\n", n, n)

	case codec.KindQWord:
		n, _ := v.Data.Uint64()
		fmt.Fprintf(p.writer, "0x%016X (%d)\n", n, n)

	case codec.KindMultiString:
		strs, _ := v.Data.Strings()
		if len(strs) == 0 {
			fmt.Fprintf(p.writer, "[]\n")
			return nil
		}
		fmt.Fprintf(p.writer, "[\n")
		for _, s := range strs {
			fmt.Fprintf(p.writer, "%s  \"%s\"\n", indent, s)
		}
		fmt.Fprintf(p.writer, "%s]\n", indent)

	default:
		p.printHexText(v.Raw)
	}
	return nil
}

func (p *Printer) printHexText(data []byte) {
	shown, cut := p.truncate(data)
	suffix := ""
	if cut {
		suffix = fmt.Sprintf(" (truncated, %d total bytes)", len(data))
	}
	if len(shown) == 0 {
		fmt.Fprintf(p.writer, "<empty>%s\n", suffix)
		return
	}
	fmt.Fprintf(p.writer, "%X%s\n", shown, suffix)
}

// printTreeText recursively prints a subtree in text format.
func (p *Printer) printTreeText(k *offreg.Key, depth int) error {
	if p.depthExceeded(depth) {
		return nil
	}
	if err := p.printKeyText(k, depth); err != nil {
		return err
	}
	return eachChild(k, func(child *offreg.Key) error {
		fmt.Fprintln(p.writer)
		return p.printTreeText(child, depth+1)
	})
}
