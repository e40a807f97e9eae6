package printer

import (
	"fmt"
	"io"

	"github.com/joshuapare/offreg/internal/regtext"
	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
)

const (
	DefaultIndentSize    = 2
	DefaultMaxDepth      = 0
	DefaultMaxValueBytes = 32
)

// Format specifies the output format for printing.
type Format string

const (
	// FormatText outputs human-readable text format.
	FormatText Format = "text"

	// FormatJSON outputs JSON format.
	FormatJSON Format = "json"

	// FormatReg outputs Windows .reg file format.
	FormatReg Format = "reg"
)

// ParseFormat accepts "text", "json" or "reg".
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatReg:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or reg)", s)
}

// Options controls printing behavior.
type Options struct {
	// Format specifies output format (text, json, reg).
	// Default: FormatText
	Format Format

	// IndentSize is the number of spaces per indent level (text format only).
	// Default: 2
	IndentSize int

	// MaxDepth limits recursion depth (0 = unlimited).
	// Default: 0 (unlimited)
	MaxDepth int

	// ShowValues includes value data in output.
	// Default: true
	ShowValues bool

	// ShowTimestamps includes last-write times.
	// Default: false
	ShowTimestamps bool

	// ShowValueTypes includes REG_* type names.
	// Default: true
	ShowValueTypes bool

	// MaxValueBytes limits how many bytes of binary values to display.
	// Longer values are truncated. Set to 0 for no limit.
	// Default: 32
	MaxValueBytes int

	// RootName is the prefix .reg output puts in front of key paths.
	// Default: HKEY_LOCAL_MACHINE
	RootName string
}

// DefaultOptions returns sensible defaults for printing.
func DefaultOptions() Options {
	return Options{
		Format:         FormatText,
		IndentSize:     DefaultIndentSize,
		MaxDepth:       DefaultMaxDepth,
		ShowValues:     true,
		ShowTimestamps: false,
		ShowValueTypes: true,
		MaxValueBytes:  DefaultMaxValueBytes,
		RootName:       "HKEY_LOCAL_MACHINE",
	}
}

// Printer writes keys and values reached from a base key.
type Printer struct {
	opts   Options
	writer io.Writer
	base   *offreg.Key
}

// New creates a Printer that resolves paths below base, usually a hive's
// root key.
//
// Example:
//
//	p := printer.New(hv.Root(), os.Stdout, printer.DefaultOptions())
//	p.PrintTree(`Microsoft\Windows\CurrentVersion`)
func New(base *offreg.Key, w io.Writer, opts Options) *Printer {
	return &Printer{
		base:   base,
		writer: w,
		opts:   opts,
	}
}

func (p *Printer) open(path string) (*offreg.Key, error) {
	k, err := p.base.OpenSubKey(path)
	if err != nil {
		return nil, fmt.Errorf("open key %q: %w", path, err)
	}
	return k, nil
}

// PrintKey prints a key and its values.
func (p *Printer) PrintKey(path string) error {
	k, err := p.open(path)
	if err != nil {
		return err
	}
	defer k.Close()

	switch p.opts.Format {
	case FormatJSON:
		return p.printKeyJSON(k)
	case FormatReg:
		return p.printKeyReg(k)
	default:
		return p.printKeyText(k, 0)
	}
}

// PrintValue prints a single value.
//
// Example:
//
//	p.PrintValue(`Software\MyApp`, "Version")
func (p *Printer) PrintValue(keyPath, valueName string) error {
	k, err := p.open(keyPath)
	if err != nil {
		return err
	}
	defer k.Close()

	v, err := readValue(k, valueName)
	if err != nil {
		return fmt.Errorf("get value %q: %w", valueName, err)
	}

	switch p.opts.Format {
	case FormatJSON:
		return p.printValueJSON(v)
	case FormatReg:
		return p.printValueReg(v)
	default:
		return p.printValueText(v, 0)
	}
}

// PrintTree prints an entire subtree, stopping at MaxDepth levels when it is
// set.
func (p *Printer) PrintTree(path string) error {
	k, err := p.open(path)
	if err != nil {
		return err
	}
	defer k.Close()

	switch p.opts.Format {
	case FormatJSON:
		return p.printTreeJSON(k)
	case FormatReg:
		fmt.Fprintf(p.writer, "%s\n\n", regtext.Header)
		return p.printTreeReg(k, 0)
	default:
		return p.printTreeText(k, 0)
	}
}

// readValue fetches one value in the same shape enumeration produces.
func readValue(k *offreg.Key, name string) (offreg.Value, error) {
	t, err := k.GetValueKind(name)
	if err != nil {
		return offreg.Value{}, err
	}
	raw, err := k.GetValueBytes(name)
	if err != nil {
		return offreg.Value{}, err
	}
	v := offreg.Value{Name: name, Type: t, Raw: raw}
	v.Data, err = codec.Decode(t, raw)
	v.OK = err == nil
	return v, nil
}

// eachChild opens every direct subkey of k in turn.
func eachChild(k *offreg.Key, fn func(child *offreg.Key) error) error {
	names, err := k.GetSubKeyNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		child, err := k.OpenSubKey(name)
		if err != nil {
			return err
		}
		err = fn(child)
		if cerr := child.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) depthExceeded(depth int) bool {
	return p.opts.MaxDepth > 0 && depth >= p.opts.MaxDepth
}

// truncate applies MaxValueBytes.
func (p *Printer) truncate(data []byte) ([]byte, bool) {
	if p.opts.MaxValueBytes <= 0 || len(data) <= p.opts.MaxValueBytes {
		return data, false
	}
	return data[:p.opts.MaxValueBytes], true
}

func displayName(name string) string {
	if name == "" {
		return DefaultValueName
	}
	return name
}
