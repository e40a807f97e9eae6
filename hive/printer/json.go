package printer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
)

const (
	DefaultValueName = "(Default)"
)

// jsonKey represents a registry key in JSON format.
type jsonKey struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Class     string         `json:"class,omitempty"`
	LastWrite string         `json:"last_write,omitempty"`
	Subkeys   int            `json:"subkeys"`
	Values    int            `json:"values"`
	ValueData map[string]any `json:"value_data,omitempty"`
	Children  []jsonKey      `json:"children,omitempty"`
}

// jsonValue represents a registry value in JSON format.
type jsonValue struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Data any    `json:"data"`
}

func (p *Printer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(p.writer, "%s\n", data)
	return err
}

// printKeyJSON prints a key with its values.
func (p *Printer) printKeyJSON(k *offreg.Key) error {
	key, err := p.jsonKey(k)
	if err != nil {
		return err
	}
	return p.writeJSON(key)
}

// printValueJSON prints a single value in JSON format.
func (p *Printer) printValueJSON(v offreg.Value) error {
	name := displayName(v.Name)
	if p.opts.ShowValueTypes {
		return p.writeJSON(jsonValue{Name: name, Type: v.Type.String(), Data: p.jsonData(v)})
	}
	return p.writeJSON(map[string]any{name: p.jsonData(v)})
}

// printTreeJSON prints a subtree as one nested JSON document.
func (p *Printer) printTreeJSON(k *offreg.Key) error {
	key, err := p.buildJSONTree(k, 0)
	if err != nil {
		return err
	}
	return p.writeJSON(key)
}

func (p *Printer) jsonKey(k *offreg.Key) (jsonKey, error) {
	key := jsonKey{
		Name:    k.Name(),
		Path:    k.FullName(),
		Class:   k.Class(),
		Subkeys: k.SubkeyCount(),
		Values:  k.ValueCount(),
	}
	if p.opts.ShowTimestamps {
		key.LastWrite = k.LastWriteTime().Format("2006-01-02T15:04:05Z07:00")
	}
	if !p.opts.ShowValues {
		return key, nil
	}

	values, err := k.EnumerateValues()
	if err != nil {
		return key, err
	}
	if len(values) == 0 {
		return key, nil
	}
	key.ValueData = make(map[string]any, len(values))
	for _, v := range values {
		name := displayName(v.Name)
		if p.opts.ShowValueTypes {
			key.ValueData[name] = jsonValue{Name: name, Type: v.Type.String(), Data: p.jsonData(v)}
		} else {
			key.ValueData[name] = p.jsonData(v)
		}
	}
	return key, nil
}

// buildJSONTree builds a JSON tree structure recursively.
func (p *Printer) buildJSONTree(k *offreg.Key, depth int) (jsonKey, error) {
	key, err := p.jsonKey(k)
	if err != nil {
		return key, err
	}
	if p.depthExceeded(depth + 1) {
		return key, nil
	}
	err = eachChild(k, func(child *offreg.Key) error {
		ck, err := p.buildJSONTree(child, depth+1)
		if err != nil {
			return err
		}
		key.Children = append(key.Children, ck)
		return nil
	})
	return key, err
}

// jsonData renders a value for JSON output. Binary-shaped and undecodable
// data becomes a hex string.
func (p *Printer) jsonData(v offreg.Value) any {
	if v.OK {
		switch v.Data.Kind() {
		case codec.KindString, codec.KindMultiString, codec.KindDWord, codec.KindQWord:
			return v.Data.Any()
		}
	}
	shown, cut := p.truncate(v.Raw)
	s := hex.EncodeToString(shown)
	if cut {
		s += fmt.Sprintf(" (truncated, %d total bytes)", len(v.Raw))
	}
	return s
}
