package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/offreg"
)

var (
	setType      string
	setCreateKey bool
	setSeparator string
)

func init() {
	cmd := newSetCmd()
	cmd.Flags().StringVar(&setType, "type", "sz",
		"Value type (none, sz, expand_sz, multi_sz, binary, dword, dword_be, qword, link)")
	cmd.Flags().BoolVar(&setCreateKey, "create-key", false, "Create the key if it doesn't exist")
	cmd.Flags().StringVar(&setSeparator, "separator", ",", "Element separator for multi_sz values")
	rootCmd.AddCommand(cmd)
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <hive> <path> <name> <value>",
		Short: "Set a registry value",
		Long: `The set command sets a value at the specified key path and writes
the hive back in place.

Example:
  offregctl set system.hiv "Software\\MyApp" "Version" "1.0.0"
  offregctl set system.hiv "Software\\MyApp" "Enabled" "1" --type dword
  offregctl set system.hiv "Software\\MyApp" "Data" "0102030405" --type binary
  offregctl set system.hiv "Software\\MyApp" "Paths" "C:\\a,C:\\b" --type multi_sz
  offregctl set system.hiv "Software\\NewApp" "Name" "Test" --create-key`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(args)
		},
	}
}

func runSet(args []string) error {
	hivePath, keyPath, valueName, valueStr := args[0], args[1], args[2], args[3]

	t, err := parseType(setType)
	if err != nil {
		return err
	}
	v, err := parseValue(t, valueStr, setSeparator)
	if err != nil {
		return fmt.Errorf("failed to parse value: %w", err)
	}
	version, err := currentVersion()
	if err != nil {
		return err
	}

	err = mutateHive(hivePath, version, func(root *offreg.Key) error {
		open := root.OpenSubKey
		if setCreateKey {
			open = root.CreateSubKey
		}
		k, err := open(keyPath)
		if err != nil {
			return err
		}
		defer k.Close()
		return k.SetTypedValue(valueName, t, v)
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"hive":    hivePath,
			"path":    keyPath,
			"name":    valueName,
			"type":    t.String(),
			"success": true,
		})
	}
	printInfo("Set %s\\%s (%s)\n", keyPath, valueName, t)
	return nil
}
