package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/offreg"
)

func init() {
	rootCmd.AddCommand(newDeleteKeyCmd())
}

func newDeleteKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-key <hive> <path>",
		Short: "Delete a key and everything below it",
		Long: `The delete-key command removes a key with all of its subkeys and
values, then writes the hive back in place. The root cannot be deleted.

Example:
  offregctl delete-key software.hiv "Vendor\\OldApp"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteKey(args)
		},
	}
}

func runDeleteKey(args []string) error {
	hivePath, keyPath := args[0], args[1]
	version, err := currentVersion()
	if err != nil {
		return err
	}

	err = mutateHive(hivePath, version, func(root *offreg.Key) error {
		k, err := root.OpenSubKey(keyPath)
		if err != nil {
			return err
		}
		if err := k.Delete(); err != nil {
			return errors.Join(err, k.Close())
		}
		return nil
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"hive": hivePath, "path": keyPath, "success": true})
	}
	printInfo("Deleted %s\n", keyPath)
	return nil
}
