package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/offreg/pkg/offreg"
)

var applyCreate bool

func init() {
	cmd := newApplyCmd()
	cmd.Flags().BoolVar(&applyCreate, "create", false, "Create the hive if it doesn't exist")
	rootCmd.AddCommand(cmd)
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <hive> <manifest.yaml>",
		Short: "Apply a YAML manifest of key and value edits",
		Long: `The apply command runs the edits listed in a YAML manifest and writes
the hive back in place. Nothing is written unless every edit succeeds.

Manifest format:
  keys:
    - path: Software\Vendor\App
      class: AppClass
      values:
        - name: Version
          data: "2.0"
        - name: Enabled
          type: dword
          data: 1
        - name: Paths
          type: multi_sz
          data: [C:\a, C:\b]
        - name: Legacy
          delete: true
    - path: Software\Vendor\Old
      delete: true

Example:
  offregctl apply software.hiv provision.yaml
  offregctl apply new.hiv provision.yaml --create`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(args)
		},
	}
}

func runApply(args []string) error {
	hivePath, manifestPath := args[0], args[1]

	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	version, err := currentVersion()
	if err != nil {
		return err
	}

	result, err := applyManifest(hivePath, version, m)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"hive": hivePath, "manifest": manifestPath, "result": result})
	}
	printInfo("Applied %s: %d keys created, %d keys deleted, %d values set, %d values deleted\n",
		manifestPath, result.KeysCreated, result.KeysDeleted, result.ValuesSet, result.ValuesDeleted)
	return nil
}

func applyManifest(hivePath string, version offreg.Version, m *Manifest) (ApplyResult, error) {
	var result ApplyResult
	err := editHive(hivePath, version, applyCreate, func(root *offreg.Key) error {
		var err error
		result, err = m.Apply(root)
		return err
	})
	return result, err
}
