package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/goplus/depbuild/internal/build"
	"github.com/goplus/depbuild/internal/command"
	"github.com/goplus/depbuild/internal/config"
	"github.com/goplus/depbuild/internal/ctxlog"
	"github.com/goplus/depbuild/internal/fetch"
	"github.com/goplus/depbuild/internal/resolve"
	"github.com/goplus/depbuild/internal/session"
	"github.com/goplus/depbuild/internal/vcs"
)

type runFlags struct {
	verbose  bool
	quiet    bool
	strict   bool
	noDedupe bool
	noReport bool
	base     string
	config   string
}

var rootFlags runFlags

var rootCmd = &cobra.Command{
	Use:   "depbuild <target>",
	Short: "depbuild fetches and builds the dependencies of a project",
	Long: `depbuild reads <target>/dependencies.json, clones every declared repository
into a fresh workspace, builds each dependency after its own dependencies by
running its buildScript.sh, and finally builds <target> itself.

A target named like a subcommand (init, get, version, help) must follow "--":

  depbuild -- init`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Stream git and build output")
	flags.BoolVarP(&rootFlags.quiet, "quiet", "q", false, "Only print warnings and errors")
	flags.BoolVar(&rootFlags.strict, "strict", false, "Stop at the first failed dependency and do not build the target")
	flags.BoolVar(&rootFlags.noDedupe, "no-dedupe", false, "Fetch repeated dependencies again instead of reusing them")
	flags.BoolVar(&rootFlags.noReport, "no-report", false, "Do not write resolution.json into the workspace")
	flags.StringVar(&rootFlags.base, "base", "", "Directory containing the target and the workspace (default: current directory)")
	flags.StringVar(&rootFlags.config, "config", "", "Configuration file (default: depbuild.hcl in the base directory, then the user config)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	base := rootFlags.base
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	cfg, err := config.Resolve(rootFlags.config, base)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	rootFlags.apply(&cfg)

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx := ctxlog.WithLogger(cmd.Context(), logger)
	if cfg.File != "" {
		logger.Debug("loaded configuration", "file", cfg.File)
	}

	runner := command.New()
	if cfg.Verbose {
		runner = command.New(command.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	}
	git := vcs.NewGitVCS(
		vcs.WithGitPath(cfg.Git),
		vcs.WithDepth(cfg.CloneDepth),
		vcs.WithRunner(runner.WithLabel("git")),
	)
	progress := newProgress(cmd.OutOrStdout(), rootFlags.quiet)

	rep, err := session.Run(ctx, args[0], session.Options{
		Base:            base,
		Policy:          cfg.Policy,
		Dedupe:          cfg.Dedupe,
		WorkspacePrefix: cfg.WorkspacePrefix,
		Report:          cfg.Report,
		Fetcher:         fetch.New(git),
		Builder:         build.NewBuilder(build.Options{Runner: runner, Shell: cfg.Shell}),
		Digest:          fetch.Digest,
		Observer:        progress.Observe,
	})
	if rep != nil {
		progress.Summary(rep)
	}
	return err
}

// apply lets command-line flags override the configuration.
func (f runFlags) apply(cfg *config.Config) {
	if f.strict {
		cfg.Policy = resolve.Strict
	}
	if f.noDedupe {
		cfg.Dedupe = false
	}
	if f.noReport {
		cfg.Report = false
	}
	if f.verbose {
		cfg.Verbose = true
		cfg.LogLevel = min(cfg.LogLevel, slog.LevelInfo)
	}
	if f.quiet {
		cfg.Verbose = false
		cfg.LogLevel = max(cfg.LogLevel, slog.LevelWarn)
	}
}
