package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/goplus/depbuild/internal/resolve"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		environ []string
		want    func(c *Config)
	}{
		{
			name: "empty",
			src:  "",
			want: func(c *Config) {},
		},
		{
			name: "all attributes",
			src: `
policy           = "strict"
dedupe           = false
verbose          = true
shell            = "sh"
git              = "/usr/local/bin/git"
clone_depth      = 1
workspace_prefix = "deps"
report           = false
log_level        = "debug"
`,
			want: func(c *Config) {
				c.Policy = resolve.Strict
				c.Dedupe = false
				c.Verbose = true
				c.Shell = "sh"
				c.Git = "/usr/local/bin/git"
				c.CloneDepth = 1
				c.WorkspacePrefix = "deps"
				c.Report = false
				c.LogLevel = slog.LevelDebug
			},
		},
		{
			name:    "environment",
			src:     `git = "${env.TOOLS}/git"`,
			environ: []string{"TOOLS=/opt/tools", "=C:=C:\\", "BROKEN"},
			want: func(c *Config) {
				c.Git = "/opt/tools/git"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse("test.hcl", []byte(tt.src), tt.environ)
			require.NoError(t, err)

			want := Default()
			want.File = "test.hcl"
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `policy = `},
		{"unknown attribute", `parallel = 4`},
		{"wrong type", `dedupe = "yes"`},
		{"unknown policy", `policy = "lenient"`},
		{"unknown level", `log_level = "loud"`},
		{"negative depth", `clone_depth = -1`},
		{"empty shell", `shell = ""`},
		{"prefix with separator", `workspace_prefix = "a/b"`},
		{"undefined variable", `git = env.NOT_SET_ANYWHERE`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.hcl", []byte(tt.src), nil)
			require.Error(t, err)
		})
	}
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(home, "system"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	base := t.TempDir()

	path, err := Find("", base)
	require.NoError(t, err)
	require.Empty(t, path)

	_, err = Find(filepath.Join(base, "missing.hcl"), base)
	require.ErrorIs(t, err, os.ErrNotExist)

	user := filepath.Join(xdg.ConfigHome, "depbuild", "config.hcl")
	require.NoError(t, os.MkdirAll(filepath.Dir(user), 0755))
	require.NoError(t, os.WriteFile(user, []byte(`shell = "zsh"`), 0644))
	path, err = Find("", base)
	require.NoError(t, err)
	require.Equal(t, user, path)

	local := filepath.Join(base, "depbuild.hcl")
	require.NoError(t, os.WriteFile(local, []byte(`shell = "sh"`), 0644))
	path, err = Find("", base)
	require.NoError(t, err)
	require.Equal(t, local, path)

	explicit := filepath.Join(t.TempDir(), "other.hcl")
	require.NoError(t, os.WriteFile(explicit, nil, 0644))
	path, err = Find(explicit, base)
	require.NoError(t, err)
	require.Equal(t, explicit, path)
}

func TestResolve(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	base := t.TempDir()
	c, err := Resolve("", base)
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	require.NoError(t, os.WriteFile(filepath.Join(base, "depbuild.hcl"), []byte(`policy = "strict"`), 0644))
	c, err = Resolve("", base)
	require.NoError(t, err)
	require.Equal(t, resolve.Strict, c.Policy)
	require.Equal(t, filepath.Join(base, "depbuild.hcl"), c.File)
}
