package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"

	"github.com/goplus/depbuild/internal/resolve"
	"github.com/goplus/depbuild/internal/session"
	"github.com/goplus/depbuild/pkgs/manifest"
)

// progress prints one line per resolution step, indented by depth.
type progress struct {
	w     io.Writer
	quiet bool
}

func newProgress(w io.Writer, quiet bool) *progress {
	return &progress{w: w, quiet: quiet}
}

func (p *progress) Observe(e resolve.Event) {
	if p.quiet {
		return
	}
	indent := strings.Repeat("  ", e.Depth)
	switch e.Kind {
	case resolve.EventFetch:
		fmt.Fprintf(p.w, "%sProcessing repository: %s (%s)\n", indent, color.Cyan.Sprint(e.Key.URL), e.Key.Ref)
	case resolve.EventResolve:
		fmt.Fprintf(p.w, "%sFound %s in %s, resolving dependencies...\n", indent, manifest.FileName, e.Node)
	case resolve.EventBuild:
		fmt.Fprintf(p.w, "%sRunning build script for %s...\n", indent, e.Node)
	case resolve.EventBuilt:
		fmt.Fprintf(p.w, "%s%s\n", indent, color.Green.Sprintf("Successfully built %s!", e.Node))
	case resolve.EventFailed:
		fmt.Fprintf(p.w, "%s%s\n", indent, color.Red.Sprintf("Failed to process %s: %v", e.Key.URL, e.Err))
	case resolve.EventReused:
		fmt.Fprintf(p.w, "%s%s\n", indent, color.Yellow.Sprintf("Already processed %s, skipping", e.Node))
	}
}

// Summary prints the outcome of the whole run.
func (p *progress) Summary(rep *session.Report) {
	failed := rep.Failed()
	if len(failed) > 0 {
		fmt.Fprintln(p.w, color.Red.Sprintf("%d of %d dependencies failed:", len(failed), len(rep.Outcomes)))
		for _, o := range failed {
			fmt.Fprintf(p.w, "  - %-20s %v\n", o.Node, o.Err)
		}
	}
	if p.quiet || rep.Root == nil {
		return
	}
	switch {
	case rep.Root.OK() && len(failed) == 0:
		fmt.Fprintln(p.w, color.Green.Sprint("All dependencies built successfully!"))
	case rep.Root.OK():
		fmt.Fprintln(p.w, color.Yellow.Sprintf("Built %s with failed dependencies", rep.Target))
	default:
		fmt.Fprintln(p.w, color.Red.Sprintf("Failed to build %s: %v", rep.Target, rep.Root.Err))
	}
	if rep.Workspace != "" {
		fmt.Fprintf(p.w, "Workspace: %s\n", rep.Workspace)
	}
}
