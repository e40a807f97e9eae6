package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/codec"
	"github.com/joshuapare/offreg/pkg/offreg"
	"github.com/joshuapare/offreg/pkg/types"
)

func init() {
	rootCmd.AddCommand(newValuesCmd())
}

func newValuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "values <hive> [path]",
		Short: "List the values of a key",
		Long: `The values command lists every value of a key with its type and data.
Values whose bytes do not match their type are shown as hex.

Example:
  offregctl values system.hiv "Select"
  offregctl values software.hiv "Microsoft\\Windows NT\\CurrentVersion" --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValues(args)
		},
	}
}

// valueEntry is one listed value.
type valueEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
	Valid bool   `json:"valid"`

	value offreg.Value
}

func newValueEntry(v offreg.Value) valueEntry {
	e := valueEntry{Name: v.Name, Type: v.Type.String(), Valid: v.OK, value: v}
	if v.OK && v.Data.Kind() != codec.KindBinary {
		e.Data = v.Data.Any()
	} else {
		e.Data = hex.EncodeToString(v.Raw)
	}
	return e
}

func (e valueEntry) text() string {
	switch {
	case e.Valid:
		return e.value.Data.Format()
	case e.value.Type == types.REG_NONE:
		return hex.EncodeToString(e.value.Raw)
	}
	return "<undecodable> " + hex.EncodeToString(e.value.Raw)
}

func runValues(args []string) error {
	hivePath := args[0]
	var keyPath string
	if len(args) > 1 {
		keyPath = args[1]
	}

	var values []valueEntry
	err := withHive(hivePath, func(root *offreg.Key) error {
		k, err := root.OpenSubKey(keyPath)
		if err != nil {
			return err
		}
		defer k.Close()
		vals, err := k.EnumerateValues()
		if err != nil {
			return err
		}
		for _, v := range vals {
			values = append(values, newValueEntry(v))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"hive":   hivePath,
			"path":   keyPath,
			"values": values,
			"count":  len(values),
		})
	}
	for _, v := range values {
		name := v.Name
		if name == "" {
			name = "(Default)"
		}
		printInfo("%s\t%s\t%s\n", name, v.Type, v.text())
	}
	return nil
}
