package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/offreg"
)

func init() {
	rootCmd.AddCommand(newGetCmd())
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <hive> <path> <name>",
		Short: "Print one value",
		Long: `The get command prints the data of one value. Use "" for the
key's default value.

Example:
  offregctl get system.hiv "Select" "Current"
  offregctl get software.hiv "Microsoft\\Windows NT\\CurrentVersion" "ProductName" --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args)
		},
	}
}

func runGet(args []string) error {
	hivePath, keyPath, valueName := args[0], args[1], args[2]

	var entry valueEntry
	err := withHive(hivePath, func(root *offreg.Key) error {
		k, err := root.OpenSubKey(keyPath)
		if err != nil {
			return err
		}
		defer k.Close()

		kind, err := k.GetValueKind(valueName)
		if err != nil {
			return err
		}
		raw, err := k.GetValueBytes(valueName)
		if err != nil {
			return err
		}
		data, ok, err := k.TryParseValue(valueName)
		if err != nil {
			return err
		}
		entry = newValueEntry(offreg.Value{Name: valueName, Type: kind, Raw: raw, Data: data, OK: ok})
		return nil
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"hive":  hivePath,
			"path":  keyPath,
			"name":  entry.Name,
			"type":  entry.Type,
			"data":  entry.Data,
			"valid": entry.Valid,
		})
	}
	printVerbose("%s (%s)\n", entry.Name, entry.Type)
	printInfo("%s\n", entry.text())
	return nil
}
