package regtext

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/types"
)

// Op is one edit read from a .reg file.
type Op interface{ regOp() }

// CreateKey opens or creates Path and its missing ancestors.
type CreateKey struct{ Path string }

// DeleteKey removes Path and everything below it ([-Path]).
type DeleteKey struct{ Path string }

// SetValue stores Data under Name with the type tag Type.
type SetValue struct {
	Path string
	Name string
	Type types.RegType
	Data []byte
}

// DeleteValue removes Name from Path ("Name"=-).
type DeleteValue struct {
	Path string
	Name string
}

func (CreateKey) regOp()   {}
func (DeleteKey) regOp()   {}
func (SetValue) regOp()    {}
func (DeleteValue) regOp() {}

// ParseOptions controls Parse.
type ParseOptions struct {
	// Prefix is removed from every key path, compared case-insensitively.
	// Sections outside it are rejected. Empty keeps paths as written.
	Prefix string
}

// SyntaxError reports a malformed line.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("regtext: line %d: %s", e.Line, e.Msg)
}

// Parse converts .reg text into edit operations in file order. UTF-16LE
// input needs a byte order mark; input that is not valid UTF-8 is read as
// Windows-1252.
func Parse(data []byte, opts ParseOptions) ([]Op, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	p := &parser{opts: opts, seen: make(map[string]bool)}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		line := cleanLine(lines[i])
		for !strings.HasPrefix(line, keyOpen) && strings.HasSuffix(line, continuation) && i+1 < len(lines) {
			i++
			line = strings.TrimSuffix(line, continuation) + cleanLine(lines[i])
		}
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if err := p.line(line); err != nil {
			return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}
	}
	if !p.header {
		return nil, &SyntaxError{Line: 1, Msg: "missing header"}
	}
	return p.ops, nil
}

func cleanLine(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(s, "\r"))
}

func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, utf16LEBOM):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", fmt.Errorf("regtext: decode utf-16: %w", err)
		}
		return string(out), nil
	case bytes.HasPrefix(data, utf8BOM):
		return string(data[len(utf8BOM):]), nil
	case !utf8.Valid(data):
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("regtext: decode windows-1252: %w", err)
		}
		return string(out), nil
	}
	return string(data), nil
}

type parser struct {
	opts   ParseOptions
	header bool
	cur    string
	inKey  bool
	seen   map[string]bool
	ops    []Op
}

func (p *parser) line(line string) error {
	if !p.header {
		if line != Header && line != HeaderRegedit4 {
			return fmt.Errorf("missing header, got %q", line)
		}
		p.header = true
		return nil
	}
	if strings.HasPrefix(line, keyOpen) {
		return p.section(line)
	}
	if !p.inKey {
		return fmt.Errorf("value outside a key section: %q", line)
	}
	return p.value(line)
}

func (p *parser) section(line string) error {
	if !strings.HasSuffix(line, keyClose) {
		return fmt.Errorf("malformed section %q", line)
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(line, keyOpen), keyClose)
	del := strings.HasPrefix(raw, deleteMarker)
	if del {
		raw = raw[len(deleteMarker):]
	}
	path, err := p.keyPath(raw)
	if err != nil {
		return err
	}
	if del {
		p.ops = append(p.ops, DeleteKey{Path: path})
		delete(p.seen, strings.ToUpper(path))
		p.inKey = false
		return nil
	}
	p.cur, p.inKey = path, true
	if !p.seen[strings.ToUpper(path)] {
		p.seen[strings.ToUpper(path)] = true
		p.ops = append(p.ops, CreateKey{Path: path})
	}
	return nil
}

func (p *parser) keyPath(raw string) (string, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `\`)
	prefix := strings.Trim(p.opts.Prefix, `\`)
	if prefix == "" {
		return raw, nil
	}
	if strings.EqualFold(raw, prefix) {
		return "", nil
	}
	if len(raw) > len(prefix) && raw[len(prefix)] == '\\' && strings.EqualFold(raw[:len(prefix)], prefix) {
		return raw[len(prefix)+1:], nil
	}
	return "", fmt.Errorf("key %q is outside %q", raw, p.opts.Prefix)
}

func (p *parser) value(line string) error {
	var name, rest string
	switch {
	case strings.HasPrefix(line, defaultValueName):
		rest = line[len(defaultValueName):]
	case strings.HasPrefix(line, quote):
		end := findClosingQuote(line)
		if end < 0 {
			return fmt.Errorf("unterminated value name in %q", line)
		}
		name, rest = Unescape(line[1:end]), line[end+1:]
	default:
		return fmt.Errorf("malformed value line %q", line)
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "=") {
		return fmt.Errorf("missing '=' in %q", line)
	}
	payload := strings.TrimSpace(rest[1:])

	if payload == deleteMarker {
		p.ops = append(p.ops, DeleteValue{Path: p.cur, Name: name})
		return nil
	}
	t, data, err := parsePayload(payload)
	if err != nil {
		return err
	}
	p.ops = append(p.ops, SetValue{Path: p.cur, Name: name, Type: t, Data: data})
	return nil
}

func parsePayload(payload string) (types.RegType, []byte, error) {
	switch {
	case strings.HasPrefix(payload, quote):
		if len(payload) < 2 || findClosingQuote(payload) != len(payload)-1 {
			return 0, nil, fmt.Errorf("unterminated string %q", payload)
		}
		data, err := codec.EncodeString(Unescape(payload[1 : len(payload)-1]))
		return types.REG_SZ, data, err

	case strings.HasPrefix(payload, dwordPrefix):
		digits := payload[len(dwordPrefix):]
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil || len(digits) != dwordHexLen {
			return 0, nil, fmt.Errorf("invalid dword %q", payload)
		}
		return types.REG_DWORD, codec.EncodeDWord(uint32(n)), nil

	case strings.HasPrefix(payload, hexPrefix):
		tag, body, ok := strings.Cut(payload[len(hexPrefix):], ":")
		if !ok {
			return 0, nil, fmt.Errorf("missing ':' in %q", payload)
		}
		t := types.REG_BINARY
		if tag != "" {
			if !strings.HasPrefix(tag, "(") || !strings.HasSuffix(tag, ")") {
				return 0, nil, fmt.Errorf("malformed hex type %q", payload)
			}
			n, err := strconv.ParseUint(tag[1:len(tag)-1], 16, 32)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed hex type %q", payload)
			}
			t = types.RegType(n)
		}
		data, err := parseHexBytes(body)
		return t, data, err
	}
	return 0, nil, fmt.Errorf("unsupported value %q", payload)
}
