package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/goplus/depbuild/internal/build"
	"github.com/goplus/depbuild/internal/config"
	"github.com/goplus/depbuild/internal/resolve"
	"github.com/goplus/depbuild/internal/session"
	"github.com/goplus/depbuild/pkgs/manifest"
)

func TestRunFlagsApply(t *testing.T) {
	tests := []struct {
		name  string
		flags runFlags
		check func(t *testing.T, c config.Config)
	}{
		{"none", runFlags{}, func(t *testing.T, c config.Config) {
			if c != config.Default() {
				t.Errorf("config = %+v, want defaults", c)
			}
		}},
		{"strict", runFlags{strict: true}, func(t *testing.T, c config.Config) {
			if c.Policy != resolve.Strict {
				t.Errorf("policy = %v, want strict", c.Policy)
			}
		}},
		{"no-dedupe and no-report", runFlags{noDedupe: true, noReport: true}, func(t *testing.T, c config.Config) {
			if c.Dedupe || c.Report {
				t.Errorf("dedupe = %v, report = %v, want both false", c.Dedupe, c.Report)
			}
		}},
		{"verbose", runFlags{verbose: true}, func(t *testing.T, c config.Config) {
			if !c.Verbose || c.LogLevel != slog.LevelInfo {
				t.Errorf("verbose = %v, level = %v, want true, INFO", c.Verbose, c.LogLevel)
			}
		}},
		{"quiet", runFlags{quiet: true}, func(t *testing.T, c config.Config) {
			if c.Verbose || c.LogLevel != slog.LevelWarn {
				t.Errorf("verbose = %v, level = %v, want false, WARN", c.Verbose, c.LogLevel)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			tt.flags.apply(&c)
			tt.check(t, c)
		})
	}
}

func TestProgress(t *testing.T) {
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })

	var out bytes.Buffer
	p := newProgress(&out, false)
	p.Observe(resolve.Event{Kind: resolve.EventFetch, Node: "libX", Depth: 1})
	p.Observe(resolve.Event{Kind: resolve.EventBuilt, Node: "libX", Depth: 1})
	p.Observe(resolve.Event{Kind: resolve.EventFailed, Node: "libY", Err: errors.New("unreachable host")})
	p.Summary(&session.Report{
		Target:   "app",
		Outcomes: []resolve.Outcome{{Node: "libX", Status: resolve.StatusBuilt}, {Node: "libY", Err: errors.New("unreachable host")}},
		Root:     &resolve.Outcome{Node: "app", Status: resolve.StatusBuilt},
	})

	got := out.String()
	for _, want := range []string{
		"  Successfully built libX!",
		"unreachable host",
		"1 of 2 dependencies failed",
		"Built app with failed dependencies",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output does not contain %q:\n%s", want, got)
		}
	}

	out.Reset()
	newProgress(&out, true).Observe(resolve.Event{Kind: resolve.EventFetch, Node: "libX"})
	if out.Len() != 0 {
		t.Errorf("quiet progress printed %q", out.String())
	}
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{
		"-c", "user.name=depbuild",
		"-c", "user.email=depbuild@example.com",
		"-c", "commit.gpgsign=false",
	}, args...)...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

// newRemote creates a repository remotes/name on branch main holding files.
func newRemote(t *testing.T, remotes, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(remotes, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	git(t, dir, "init")
	git(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "init")
	return dir
}

func depsJSON(urls ...string) string {
	var b strings.Builder
	b.WriteString("[")
	for i, u := range urls {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"url":"` + u + `","branch":"main"}`)
	}
	b.WriteString("]")
	return b.String()
}

func TestRunRootEndToEnd(t *testing.T) {
	requireTools(t, "git", "bash")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })

	root := t.TempDir()
	remotes := filepath.Join(root, "remotes")
	base := filepath.Join(root, "base")
	buildLog := filepath.Join(root, "build.log")
	script := func(name string) string {
		return "echo " + name + " >> " + buildLog + "\n"
	}

	libZ := newRemote(t, remotes, "libZ", map[string]string{
		"buildScript.sh": script("libZ"),
	})
	libX := newRemote(t, remotes, "libX", map[string]string{
		"buildScript.sh":    script("libX"),
		"dependencies.json": depsJSON(libZ),
	})
	missing := filepath.Join(remotes, "libY")

	app := filepath.Join(base, "app")
	if err := os.MkdirAll(app, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "dependencies.json"), []byte(depsJSON(libX, missing)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "buildScript.sh"), []byte(script("app")), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())

	saved := rootFlags
	rootFlags = runFlags{base: base}
	t.Cleanup(func() { rootFlags = saved })

	if err := runRoot(cmd, []string{"app"}); err != nil {
		t.Fatalf("runRoot failed: %v\n%s", err, out.String())
	}

	data, err := os.ReadFile(buildLog)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := strings.Fields(string(data)), []string{"libZ", "libX", "app"}; strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("build order = %v, want %v", got, want)
	}

	workspaces, err := filepath.Glob(filepath.Join(base, "dependencies-*"))
	if err != nil || len(workspaces) != 1 {
		t.Fatalf("workspaces = %v, %v; want exactly one", workspaces, err)
	}
	for _, node := range []string{"libX", "libZ"} {
		if _, err := os.Stat(filepath.Join(workspaces[0], node, "buildScript.sh")); err != nil {
			t.Errorf("%s not fetched into the workspace: %v", node, err)
		}
	}

	report, err := os.ReadFile(filepath.Join(workspaces[0], session.ReportName))
	if err != nil {
		t.Fatal(err)
	}
	var rep struct {
		Outcomes []struct {
			Node   string `json:"node"`
			Status string `json:"status"`
			Digest string `json:"digest"`
		} `json:"outcomes"`
	}
	if err := json.Unmarshal(report, &rep); err != nil {
		t.Fatal(err)
	}
	var statuses []string
	for _, o := range rep.Outcomes {
		statuses = append(statuses, o.Node+":"+o.Status)
		if o.Status == "built" && !strings.HasPrefix(o.Digest, "h1:") {
			t.Errorf("%s has digest %q, want an h1: hash", o.Node, o.Digest)
		}
	}
	if got, want := strings.Join(statuses, " "), "libZ:built libX:built libY:failed"; got != want {
		t.Errorf("outcomes = %s, want %s", got, want)
	}
	if !strings.Contains(out.String(), "1 of 3 dependencies failed") {
		t.Errorf("summary missing from output:\n%s", out.String())
	}
}

func TestTargetNamedLikeSubcommand(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"init"})
	if err != nil || cmd != initCmd {
		t.Fatalf("Find(init) error = %v, want the init command", err)
	}
	cmd, _, err = rootCmd.Find([]string{"--base", "dir", "--", "init"})
	if err != nil || cmd != rootCmd {
		t.Fatalf("Find(-- init) error = %v, want the root command", err)
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	// A target directory "init" without a build script: reaching the
	// build step proves it was treated as the target.
	base := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "init"), 0755); err != nil {
		t.Fatal(err)
	}

	saved := rootFlags
	t.Cleanup(func() {
		rootFlags = saved
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--base", base, "--", "init"})

	err = rootCmd.ExecuteContext(context.Background())
	var fatal *session.FatalRootError
	if !errors.As(err, &fatal) || fatal.Target != "init" {
		t.Fatalf("Execute error = %v, want FatalRootError for target init", err)
	}
	if !errors.Is(err, build.ErrNoBuildScript) {
		t.Errorf("Execute error = %v, want ErrNoBuildScript", err)
	}
	if _, err := os.Stat(filepath.Join(base, manifest.FileName)); err == nil {
		t.Error("init subcommand ran instead of building the target")
	}
}
