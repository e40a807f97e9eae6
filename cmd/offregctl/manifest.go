package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
	"github.com/joshuapare/offreg/pkg/types"
)

// Manifest describes edits to apply to a hive, in order:
//
//	keys:
//	  - path: Software\Vendor\App
//	    class: AppClass
//	    values:
//	      - name: Version
//	        data: "2.0"
//	      - name: Enabled
//	        type: dword
//	        data: 1
//	      - name: Paths
//	        type: multi_sz
//	        data: [C:\a, C:\b]
//	      - name: Legacy
//	        delete: true
//	  - path: Software\Vendor\Old
//	    delete: true
type Manifest struct {
	Keys []ManifestKey `yaml:"keys"`
}

// ManifestKey creates (or deletes) one key and edits its values.
type ManifestKey struct {
	Path     string          `yaml:"path"`
	Class    string          `yaml:"class,omitempty"`
	Volatile bool            `yaml:"volatile,omitempty"`
	Delete   bool            `yaml:"delete,omitempty"`
	Values   []ManifestValue `yaml:"values,omitempty"`
}

// ManifestValue sets or deletes one value. Type defaults to sz.
type ManifestValue struct {
	Name   string    `yaml:"name"`
	Type   string    `yaml:"type,omitempty"`
	Data   yaml.Node `yaml:"data,omitempty"`
	Delete bool      `yaml:"delete,omitempty"`
}

// ApplyResult counts what a manifest changed.
type ApplyResult struct {
	KeysCreated   int `json:"keys_created"`
	KeysDeleted   int `json:"keys_deleted"`
	ValuesSet     int `json:"values_set"`
	ValuesDeleted int `json:"values_deleted"`
}

// loadManifest reads and validates a manifest file.
func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseManifest(data)
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i, k := range m.Keys {
		if k.Path == "" {
			return nil, fmt.Errorf("manifest key %d: path is required", i)
		}
		if k.Delete && len(k.Values) > 0 {
			return nil, fmt.Errorf("manifest key %q: delete cannot be combined with values", k.Path)
		}
	}
	return &m, nil
}

// Apply runs every entry against root.
func (m *Manifest) Apply(root *offreg.Key) (ApplyResult, error) {
	var res ApplyResult
	for _, mk := range m.Keys {
		if mk.Delete {
			deleted, err := deleteKeyPath(root, mk.Path)
			if err != nil {
				return res, err
			}
			if deleted {
				res.KeysDeleted++
			}
			continue
		}
		if err := mk.apply(root, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (mk ManifestKey) apply(root *offreg.Key, res *ApplyResult) error {
	existed, err := root.IsExistSubKey(mk.Path)
	if err != nil {
		return err
	}
	opts := types.OptionNonVolatile
	if mk.Volatile {
		opts = types.OptionVolatile
	}
	k, err := root.CreateSubKeyClass(mk.Path, mk.Class, opts)
	if err != nil {
		return err
	}
	defer k.Close()
	if !existed {
		res.KeysCreated++
		logger.Debug("key created", "path", k.FullName())
	}

	for _, mv := range mk.Values {
		if mv.Delete {
			err := k.DeleteValue(mv.Name)
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			res.ValuesDeleted++
			continue
		}
		t, v, err := mv.value()
		if err != nil {
			return fmt.Errorf("%s: value %q: %w", mk.Path, mv.Name, err)
		}
		if err := k.SetTypedValue(mv.Name, t, v); err != nil {
			return err
		}
		res.ValuesSet++
	}
	return nil
}

// deleteKeyPath removes path if it exists.
func deleteKeyPath(root *offreg.Key, path string) (bool, error) {
	k, ok, err := root.TryOpenSubKey(path)
	if err != nil || !ok {
		return false, err
	}
	if err := k.Delete(); err != nil {
		return false, errors.Join(err, k.Close())
	}
	return true, nil
}

// value decodes the YAML data node according to the declared type.
func (mv ManifestValue) value() (types.RegType, codec.Value, error) {
	typ := mv.Type
	if typ == "" {
		typ = "sz"
	}
	t, err := parseType(typ)
	if err != nil {
		return 0, codec.Value{}, err
	}

	if t == types.REG_MULTI_SZ {
		var ss []string
		if mv.Data.Kind != 0 {
			if err := mv.Data.Decode(&ss); err != nil {
				return 0, codec.Value{}, fmt.Errorf("multi_sz data must be a list of strings: %w", err)
			}
		}
		return t, codec.MultiString(ss), nil
	}

	var scalar string
	switch mv.Data.Kind {
	case 0:
	case yaml.ScalarNode:
		scalar = mv.Data.Value
	default:
		return 0, codec.Value{}, fmt.Errorf("%s data must be a scalar", t)
	}
	v, err := parseValue(t, scalar, "\x00")
	return t, v, err
}
