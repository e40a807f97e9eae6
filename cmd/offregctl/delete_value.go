package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/offreg"
)

func init() {
	rootCmd.AddCommand(newDeleteValueCmd())
}

func newDeleteValueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-value <hive> <path> <name>",
		Short: "Delete a value",
		Long: `The delete-value command removes one value and writes the hive back
in place.

Example:
  offregctl delete-value software.hiv "Vendor\\App" "Obsolete"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteValue(args)
		},
	}
}

func runDeleteValue(args []string) error {
	hivePath, keyPath, valueName := args[0], args[1], args[2]
	version, err := currentVersion()
	if err != nil {
		return err
	}

	err = mutateHive(hivePath, version, func(root *offreg.Key) error {
		k, err := root.OpenSubKey(keyPath)
		if err != nil {
			return err
		}
		defer k.Close()
		return k.DeleteValue(valueName)
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"hive": hivePath, "path": keyPath, "name": valueName, "success": true})
	}
	printInfo("Deleted %s\\%s\n", keyPath, valueName)
	return nil
}
