package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/goplus/depbuild/internal/command"
)

// VCS defines the interface for version control operations.
type VCS interface {
	// Clone materializes the repository at remote into dir, checked out at
	// ref. ref can be a branch or a tag. dir must not exist yet.
	Clone(ctx context.Context, remote, ref, dir string) error
}

// gitVCS implements VCS using git.
type gitVCS struct {
	git    string
	depth  int
	runner *command.Runner
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		if path != "" {
			g.git = path
		}
	}
}

// WithDepth makes clones shallow, truncated to depth commits.
// Zero or less clones the full history.
func WithDepth(depth int) GitOption {
	return func(g *gitVCS) {
		g.depth = depth
	}
}

// WithRunner sets the runner git is executed with.
// By default git output is suppressed and quoted in errors.
func WithRunner(r *command.Runner) GitOption {
	return func(g *gitVCS) {
		g.runner = r
	}
}

// NewGitVCS creates a new git VCS instance.
func NewGitVCS(opts ...GitOption) VCS {
	g := &gitVCS{git: "git", runner: command.New()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitVCS) Clone(ctx context.Context, remote, ref, dir string) error {
	args := []string{"clone", "--branch", ref}
	if g.depth > 0 {
		args = append(args, "--depth", strconv.Itoa(g.depth))
	}
	args = append(args, "--", remote, dir)

	if err := g.runner.Run(ctx, filepath.Dir(dir), g.git, args...); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	return nil
}
