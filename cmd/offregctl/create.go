package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <hive>",
		Short: "Create an empty hive file",
		Long: `The create command writes a new hive containing only a root key.
The file must not exist yet.

Example:
  offregctl create blank.hiv
  offregctl create legacy.hiv --save-version 5.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
}

func runCreate(args []string) error {
	hivePath := args[0]
	version, err := currentVersion()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	hv, err := s.Create()
	if err != nil {
		return err
	}
	defer hv.Close()
	if err := hv.Save(hivePath, version.Major, version.Minor); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"hive":    hivePath,
			"version": saveVersion,
			"success": true,
		})
	}
	printInfo("Created %s\n", hivePath)
	return nil
}
