package internal

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/depbuild/pkgs/manifest"
)

var getCmd = &cobra.Command{
	Use:   "get <url>@<branch> [dir]",
	Short: "Add a dependency to dependencies.json",
	Long: `Get adds a dependency to the dependencies.json in dir, or in the current
directory. If the url is already declared, its branch is updated instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	decl, err := parseDeclArg(args[0])
	if err != nil {
		return err
	}
	if err := decl.Validate(); err != nil {
		return err
	}
	dir := "."
	if len(args) > 1 {
		dir = args[1]
	}

	m, ok, err := manifest.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", manifest.FileName, err)
	}
	if !ok {
		return fmt.Errorf("%s not found, run 'depbuild init' first", filepath.Join(dir, manifest.FileName))
	}

	m, updated := m.Set(decl)
	if err := manifest.Save(dir, m); err != nil {
		return fmt.Errorf("failed to write %s: %w", manifest.FileName, err)
	}

	if updated {
		fmt.Fprintf(cmd.OutOrStdout(), "Updated dependency %s to %s\n", decl.URL, decl.Branch)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Added dependency %s@%s\n", decl.URL, decl.Branch)
	}
	return nil
}

// parseDeclArg splits "url@branch". Only an '@' after the last '/' or ':'
// separates the branch, so "git@host:org/repo.git" has no branch.
func parseDeclArg(arg string) (manifest.Declaration, error) {
	i := strings.LastIndexByte(arg, '@')
	if i < 0 || i < strings.LastIndexAny(arg, "/:") {
		return manifest.Declaration{}, fmt.Errorf("missing branch in %q, want <url>@<branch>", arg)
	}
	url, branch := arg[:i], arg[i+1:]
	if url == "" || branch == "" {
		return manifest.Declaration{}, fmt.Errorf("invalid dependency %q, want <url>@<branch>", arg)
	}
	return manifest.Declaration{URL: url, Branch: branch}, nil
}
