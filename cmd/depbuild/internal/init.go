package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/goplus/depbuild/pkgs/manifest"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create an empty dependencies.json",
	Long:  `Init creates an empty dependencies.json in dir, or in the current directory.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	path := filepath.Join(dir, manifest.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := manifest.Save(dir, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", manifest.FileName, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", path)
	return nil
}
