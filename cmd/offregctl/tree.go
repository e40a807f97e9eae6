package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/hive/printer"
	"github.com/joshuapare/offreg/pkg/offreg"
)

var (
	treeDepth      int
	treeValues     bool
	treeTimestamps bool
)

func init() {
	cmd := newTreeCmd()
	cmd.Flags().IntVar(&treeDepth, "depth", 0, "Maximum depth to print (0 = unlimited)")
	cmd.Flags().BoolVar(&treeValues, "values", false, "Include values")
	cmd.Flags().BoolVar(&treeTimestamps, "timestamps", false, "Include last-write times")
	rootCmd.AddCommand(cmd)
}

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <hive> [path]",
		Short: "Print a key tree",
		Long: `The tree command prints a key and its descendants.

Example:
  offregctl tree system.hiv
  offregctl tree software.hiv "Microsoft" --depth 2 --values
  offregctl tree software.hiv --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(args)
		},
	}
}

func runTree(args []string) error {
	hivePath := args[0]
	var keyPath string
	if len(args) > 1 {
		keyPath = args[1]
	}

	opts := printer.DefaultOptions()
	opts.MaxDepth = treeDepth
	opts.ShowValues = treeValues
	opts.ShowTimestamps = treeTimestamps
	if jsonOut {
		opts.Format = printer.FormatJSON
	}
	return withHive(hivePath, func(root *offreg.Key) error {
		return printer.New(root, stdout, opts).PrintTree(keyPath)
	})
}
