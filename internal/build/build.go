// Package build runs the build action of a project directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goplus/depbuild/internal/command"
)

// ScriptName is the fixed name of a project's build action.
const ScriptName = "buildScript.sh"

// DefaultShell interprets the build action.
const DefaultShell = "bash"

// ErrNoBuildScript is returned when a project has no build action.
var ErrNoBuildScript = errors.New("no " + ScriptName)

// Options configures a Builder.
type Options struct {
	Runner *command.Runner // defaults to a quiet runner
	Shell  string          // defaults to DefaultShell
}

// Builder runs build actions. What a build action does is opaque to it;
// only the exit status matters.
type Builder struct {
	runner *command.Runner
	shell  string
}

func NewBuilder(opts Options) *Builder {
	b := &Builder{runner: opts.Runner, shell: opts.Shell}
	if b.runner == nil {
		b.runner = command.New()
	}
	if b.shell == "" {
		b.shell = DefaultShell
	}
	return b
}

// Build runs the build action found in dir, with dir as working directory.
func (b *Builder) Build(ctx context.Context, dir string) error {
	script := filepath.Join(dir, ScriptName)
	if _, err := os.Stat(script); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w in %s", ErrNoBuildScript, dir)
	} else if err != nil {
		return err
	}
	return b.runner.WithLabel(filepath.Base(dir)).Run(ctx, dir, b.shell, ScriptName)
}
