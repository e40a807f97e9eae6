package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/internal/regtext"
	"github.com/joshuapare/offreg/pkg/offreg"
	"github.com/joshuapare/offreg/pkg/types"
)

var (
	importRoot   string
	importCreate bool
)

func init() {
	cmd := newImportCmd()
	cmd.Flags().StringVar(&importRoot, "root", "HKEY_LOCAL_MACHINE", "Key prefix to strip from .reg sections")
	cmd.Flags().BoolVar(&importCreate, "create", false, "Create the hive if it doesn't exist")
	rootCmd.AddCommand(cmd)
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <hive> <file.reg>",
		Short: "Apply a .reg file to a hive",
		Long: `The import command applies the keys, values and deletions of a Windows
Registry Editor file and writes the hive back in place. Section paths must
start with the --root prefix, which is removed.

UTF-16LE files need a byte order mark. REGEDIT4 files are read as
Windows-1252 when they are not valid UTF-8.

Example:
  offregctl import software.hiv vendor.reg
  offregctl import system.hiv system.reg --root "HKEY_LOCAL_MACHINE\\OFFLINE"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args)
		},
	}
}

func runImport(args []string) error {
	hivePath, regPath := args[0], args[1]

	data, err := os.ReadFile(regPath)
	if err != nil {
		return err
	}
	ops, err := regtext.Parse(data, regtext.ParseOptions{Prefix: importRoot})
	if err != nil {
		return fmt.Errorf("%s: %w", regPath, err)
	}
	printVerbose("Parsed %d operations from %s\n", len(ops), regPath)

	version, err := currentVersion()
	if err != nil {
		return err
	}
	var result ApplyResult
	err = editHive(hivePath, version, importCreate, func(root *offreg.Key) error {
		var aerr error
		result, aerr = applyRegOps(root, ops)
		return aerr
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"hive": hivePath, "file": regPath, "result": result})
	}
	printInfo("Imported %s: %d keys created, %d keys deleted, %d values set, %d values deleted\n",
		regPath, result.KeysCreated, result.KeysDeleted, result.ValuesSet, result.ValuesDeleted)
	return nil
}

// applyRegOps runs parsed .reg operations in order against root.
func applyRegOps(root *offreg.Key, ops []regtext.Op) (ApplyResult, error) {
	var (
		res     ApplyResult
		cur     *offreg.Key
		curPath string
	)
	release := func() {
		if cur != nil {
			_ = cur.Close()
			cur = nil
		}
	}
	defer release()

	use := func(path string) error {
		if cur != nil && strings.EqualFold(curPath, path) {
			return nil
		}
		release()
		k, err := root.OpenSubKey(path)
		if err != nil {
			return err
		}
		cur, curPath = k, path
		return nil
	}

	for _, op := range ops {
		switch op := op.(type) {
		case regtext.CreateKey:
			release()
			existed, err := root.IsExistSubKey(op.Path)
			if err != nil {
				return res, err
			}
			k, err := root.CreateSubKey(op.Path)
			if err != nil {
				return res, err
			}
			cur, curPath = k, op.Path
			if !existed {
				res.KeysCreated++
			}

		case regtext.DeleteKey:
			release()
			deleted, err := deleteKeyPath(root, op.Path)
			if err != nil {
				return res, err
			}
			if deleted {
				res.KeysDeleted++
			}

		case regtext.SetValue:
			if err := use(op.Path); err != nil {
				return res, err
			}
			if err := cur.SetRaw(op.Name, op.Type, op.Data); err != nil {
				return res, err
			}
			res.ValuesSet++

		case regtext.DeleteValue:
			if err := use(op.Path); err != nil {
				return res, err
			}
			err := cur.DeleteValue(op.Name)
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			if err != nil {
				return res, err
			}
			res.ValuesDeleted++
		}
	}
	return res, nil
}
