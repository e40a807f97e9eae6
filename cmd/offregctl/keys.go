package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/offreg"
)

var (
	keysRecursive bool
	keysDepth     int
)

func init() {
	cmd := newKeysCmd()
	cmd.Flags().BoolVarP(&keysRecursive, "recursive", "r", false, "List all subkeys recursively")
	cmd.Flags().IntVar(&keysDepth, "depth", 0, "Maximum recursion depth (0 = unlimited)")
	rootCmd.AddCommand(cmd)
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <hive> [path]",
		Short: "List keys at a given path",
		Long: `The keys command lists the subkeys at a given path in a hive.
If no path is specified, lists keys at the root.

Example:
  offregctl keys system.hiv
  offregctl keys system.hiv "ControlSet001\\Services"
  offregctl keys system.hiv --recursive --depth 2
  offregctl keys system.hiv "Software" --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(args)
		},
	}
}

// keyEntry is one listed key.
type keyEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Class     string    `json:"class,omitempty"`
	LastWrite time.Time `json:"last_write"`
}

func runKeys(args []string) error {
	hivePath := args[0]
	var keyPath string
	if len(args) > 1 {
		keyPath = args[1]
	}

	var keys []keyEntry
	err := withHive(hivePath, func(root *offreg.Key) error {
		k, err := root.OpenSubKey(keyPath)
		if err != nil {
			return err
		}
		defer k.Close()
		keys, err = listKeys(k, 1)
		return err
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"hive":  hivePath,
			"path":  keyPath,
			"keys":  keys,
			"count": len(keys),
		})
	}
	for _, key := range keys {
		if keysRecursive {
			printInfo("%s\n", key.Path)
		} else {
			printInfo("%s\n", key.Name)
		}
	}
	printVerbose("\nTotal: %d keys\n", len(keys))
	return nil
}

// listKeys collects k's subkeys, descending while --recursive and --depth
// allow.
func listKeys(k *offreg.Key, depth int) ([]keyEntry, error) {
	subs, err := k.EnumerateSubKeys()
	if err != nil {
		return nil, err
	}
	var out []keyEntry
	for _, sub := range subs {
		entry := keyEntry{Name: sub.Name, Class: sub.Class, LastWrite: sub.LastWriteTime}
		entry.Path = sub.Name
		if k.FullName() != "" {
			entry.Path = k.FullName() + `\` + sub.Name
		}
		out = append(out, entry)

		if !keysRecursive || (keysDepth > 0 && depth >= keysDepth) {
			continue
		}
		child, err := k.OpenSubKey(sub.Name)
		if err != nil {
			return nil, err
		}
		nested, err := listKeys(child, depth+1)
		if cerr := child.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}
