package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/goplus/depbuild/pkgs/manifest"
)

func TestParseDeclArg(t *testing.T) {
	tests := []struct {
		arg        string
		wantURL    string
		wantBranch string
		wantErr    bool
	}{
		{"https://github.com/org/libX.git@main", "https://github.com/org/libX.git", "main", false},
		{"https://github.com/org/libY@release/1.x", "", "", true},
		{"git@github.com:org/libZ.git@dev", "git@github.com:org/libZ.git", "dev", false},
		{"git@github.com:org/libZ.git", "", "", true},
		{"/srv/git/lib@v1.0.0", "/srv/git/lib", "v1.0.0", false},
		{"lib@feature@x", "lib@feature", "x", false},
		{"https://github.com/org/libX.git", "", "", true},
		{"https://github.com/org/libX.git@", "", "", true},
		{"@main", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			decl, err := parseDeclArg(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDeclArg(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if decl.URL != tt.wantURL {
				t.Errorf("parseDeclArg(%q) url = %q, want %q", tt.arg, decl.URL, tt.wantURL)
			}
			if decl.Branch != tt.wantBranch {
				t.Errorf("parseDeclArg(%q) branch = %q, want %q", tt.arg, decl.Branch, tt.wantBranch)
			}
		})
	}
}

func newTestCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd
}

func TestInitAndGet(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := runGet(newTestCmd(&out), []string{"https://host/libX.git@main", dir}); err == nil {
		t.Fatal("get without a manifest succeeded")
	}

	if err := runInit(newTestCmd(&out), []string{dir}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := runInit(newTestCmd(&out), []string{dir}); err == nil {
		t.Error("second init succeeded")
	}
	m, ok, err := manifest.Load(dir)
	if err != nil || !ok || len(m) != 0 {
		t.Fatalf("Load after init = %v, %v, %v; want empty manifest", m, ok, err)
	}

	for _, arg := range []string{
		"https://host/libX.git@main",
		"https://host/libY.git@dev",
		"https://host/libX.git@release",
	} {
		if err := runGet(newTestCmd(&out), []string{arg, dir}); err != nil {
			t.Fatalf("get %s failed: %v", arg, err)
		}
	}

	m, _, err = manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := manifest.Manifest{
		{URL: "https://host/libX.git", Branch: "release"},
		{URL: "https://host/libY.git", Branch: "dev"},
	}
	if len(m) != len(want) {
		t.Fatalf("manifest = %v, want %v", m, want)
	}
	for i := range want {
		if m[i] != want[i] {
			t.Errorf("manifest[%d] = %v, want %v", i, m[i], want[i])
		}
	}
	if !bytes.Contains(out.Bytes(), []byte("Updated dependency https://host/libX.git to release")) {
		t.Errorf("output does not report the update:\n%s", out.String())
	}
}

func TestGetRejectsUnnamedURL(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := runGet(newTestCmd(&out), []string{"https://host/..@main", dir}); err == nil {
		t.Error("get accepted a url without a usable node name")
	}
}
