// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the optional HCL configuration of depbuild.
//
// A configuration file sets defaults for the command-line flags:
//
//	policy           = "strict"
//	dedupe           = true
//	shell            = "bash"
//	git              = "${env.HOME}/bin/git"
//	clone_depth      = 1
//	workspace_prefix = "deps"
//	report           = true
//	log_level        = "debug"
//
// Environment variables are available as env.<NAME>.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"github.com/goplus/depbuild/internal/build"
	"github.com/goplus/depbuild/internal/env"
	"github.com/goplus/depbuild/internal/resolve"
	"github.com/goplus/depbuild/internal/session"
)

// Config holds the effective settings of a run.
type Config struct {
	Policy          resolve.Policy
	Dedupe          bool
	Verbose         bool
	Shell           string
	Git             string
	CloneDepth      int
	WorkspacePrefix string
	Report          bool
	LogLevel        slog.Level

	// File is the configuration file the settings were read from, if any.
	File string
}

// Default returns the settings used when no configuration file exists.
func Default() Config {
	return Config{
		Policy:          resolve.BestEffort,
		Dedupe:          true,
		Shell:           build.DefaultShell,
		Git:             "git",
		WorkspacePrefix: session.DefaultWorkspacePrefix,
		Report:          true,
		LogLevel:        slog.LevelWarn,
	}
}

// file mirrors the configuration file. Pointer fields tell unset
// attributes apart from zero values.
type file struct {
	Policy          *string `hcl:"policy,optional"`
	Dedupe          *bool   `hcl:"dedupe,optional"`
	Verbose         *bool   `hcl:"verbose,optional"`
	Shell           *string `hcl:"shell,optional"`
	Git             *string `hcl:"git,optional"`
	CloneDepth      *int    `hcl:"clone_depth,optional"`
	WorkspacePrefix *string `hcl:"workspace_prefix,optional"`
	Report          *bool   `hcl:"report,optional"`
	LogLevel        *string `hcl:"log_level,optional"`
}

// Parse decodes src on top of the defaults. filename must end in ".hcl"
// and is used in diagnostics. environ populates the env variables.
func Parse(filename string, src []byte, environ []string) (Config, error) {
	var f file
	if err := hclsimple.Decode(filename, src, evalContext(environ), &f); err != nil {
		return Config{}, err
	}

	c := Default()
	c.File = filename
	if f.Policy != nil {
		p, err := resolve.ParsePolicy(*f.Policy)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", filename, err)
		}
		c.Policy = p
	}
	if f.LogLevel != nil {
		if err := c.LogLevel.UnmarshalText([]byte(*f.LogLevel)); err != nil {
			return Config{}, fmt.Errorf("%s: log_level: %w", filename, err)
		}
	}
	setIf(&c.Dedupe, f.Dedupe)
	setIf(&c.Verbose, f.Verbose)
	setIf(&c.Shell, f.Shell)
	setIf(&c.Git, f.Git)
	setIf(&c.CloneDepth, f.CloneDepth)
	setIf(&c.WorkspacePrefix, f.WorkspacePrefix)
	setIf(&c.Report, f.Report)

	if err := c.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (c Config) validate() error {
	switch {
	case c.Shell == "":
		return errors.New("shell must not be empty")
	case c.Git == "":
		return errors.New("git must not be empty")
	case c.CloneDepth < 0:
		return fmt.Errorf("clone_depth must not be negative, got %d", c.CloneDepth)
	case c.WorkspacePrefix == "", strings.ContainsAny(c.WorkspacePrefix, `/\`):
		return fmt.Errorf("invalid workspace_prefix %q", c.WorkspacePrefix)
	}
	return nil
}

// Load reads the configuration file at path.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(path, src, os.Environ())
}

// Find returns the configuration file to use: explicit if set, otherwise
// depbuild.hcl in base, otherwise the user configuration file. It returns
// "" when there is none.
func Find(explicit, base string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}
	local := filepath.Join(base, env.ConfigName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	if path, ok := env.FindConfigFile(); ok {
		return path, nil
	}
	return "", nil
}

// Resolve finds and loads the configuration, falling back to Default.
func Resolve(explicit, base string) (Config, error) {
	path, err := Find(explicit, base)
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func evalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !hclName(k) {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// hclName reports whether name can be used as an attribute of env.
func hclName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}
