package main

import (
	"bytes"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/hive/printer"
	"github.com/joshuapare/offreg/internal/writer"
	"github.com/joshuapare/offreg/pkg/offreg"
)

var (
	exportFormat   string
	exportOutput   string
	exportMaxBytes int
	exportRootName string
)

func init() {
	cmd := newExportCmd()
	cmd.Flags().StringVarP(&exportFormat, "format", "f", "reg", "Output format (reg, text, json)")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().IntVar(&exportMaxBytes, "max-bytes", 0, "Truncate binary data after this many bytes (0 = no limit)")
	cmd.Flags().StringVar(&exportRootName, "root", "HKEY_LOCAL_MACHINE", "Key prefix for .reg output")
	rootCmd.AddCommand(cmd)
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <hive> [path]",
		Short: "Export a subtree as .reg, text or JSON",
		Long: `The export command writes a key, its values and all descendants.
The default .reg output can be imported with regedit.

Example:
  offregctl export software.hiv "Vendor" -o vendor.reg
  offregctl export system.hiv --root "HKEY_LOCAL_MACHINE\\OFFLINE" -o system.reg
  offregctl export software.hiv --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args)
		},
	}
}

func runExport(args []string) error {
	hivePath := args[0]
	var keyPath string
	if len(args) > 1 {
		keyPath = args[1]
	}

	format, err := printer.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	opts := printer.DefaultOptions()
	opts.Format = format
	opts.MaxValueBytes = exportMaxBytes
	opts.ShowTimestamps = format != printer.FormatReg
	opts.RootName = exportRootName

	var buf bytes.Buffer
	err = withHive(hivePath, func(root *offreg.Key) error {
		return printer.New(root, &buf, opts).PrintTree(keyPath)
	})
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	w := &writer.FileWriter{Path: exportOutput}
	if err := w.WriteHive(buf.Bytes()); err != nil {
		return err
	}
	printInfo("Exported %s to %s (%s)\n", hivePath, exportOutput, humanize.Bytes(uint64(buf.Len())))
	logger.Debug("exported", "hive", hivePath, "path", keyPath, "output", exportOutput, "bytes", buf.Len())
	return nil
}
