// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session runs one resolution: it locates the target project,
// allocates a workspace, resolves the target's dependencies into it and
// finally builds the target itself.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/depbuild/internal/ctxlog"
	"github.com/goplus/depbuild/internal/resolve"
	"github.com/goplus/depbuild/pkgs/manifest"
)

// ReportName is the file written into the workspace after a run.
const ReportName = "resolution.json"

// ErrDependencies reports that at least one dependency failed under the
// strict policy.
var ErrDependencies = errors.New("dependencies failed")

// FatalRootError is a failure of the target project itself. Dependency
// failures under the best-effort policy never produce one.
type FatalRootError struct {
	Target string
	Err    error
}

func (e *FatalRootError) Error() string {
	return fmt.Sprintf("target %s: %v", e.Target, e.Err)
}

func (e *FatalRootError) Unwrap() error { return e.Err }

// Options configures a session.
type Options struct {
	// Base is the directory the target is looked up in and the workspace
	// is created in. Empty means the current directory.
	Base string

	Policy resolve.Policy
	Dedupe bool

	// WorkspacePrefix defaults to DefaultWorkspacePrefix.
	WorkspacePrefix string

	// Report writes ReportName into the workspace.
	Report bool

	Fetcher  resolve.Fetcher
	Builder  resolve.Builder
	Digest   func(dir string) (string, error)
	Observer func(resolve.Event)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Report is the aggregate result of a session.
type Report struct {
	Target    string            `json:"target"`
	Dir       string            `json:"dir"`
	Workspace string            `json:"workspace,omitempty"`
	Policy    resolve.Policy    `json:"policy"`
	Started   time.Time         `json:"started"`
	Duration  time.Duration     `json:"duration"`
	Outcomes  []resolve.Outcome `json:"outcomes"`
	Root      *resolve.Outcome  `json:"root,omitempty"`
}

// Failed returns the failed dependency outcomes.
func (r *Report) Failed() []resolve.Outcome {
	return resolve.Failed(r.Outcomes)
}

// Run resolves and builds target, a directory relative to opts.Base.
//
// The returned report is non-nil whenever the target directory was found.
// The error is a *FatalRootError when the target itself could not be
// built; failed dependencies are only listed in the report unless the
// policy is strict.
func Run(ctx context.Context, target string, opts Options) (*Report, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fatal := func(err error) error {
		return &FatalRootError{Target: target, Err: err}
	}

	base, err := baseDir(opts.Base)
	if err != nil {
		return nil, fatal(err)
	}
	dir := target
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, target)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fatal(err)
	}
	if !fi.IsDir() {
		return nil, fatal(fmt.Errorf("%s is not a directory", dir))
	}

	logger := ctxlog.FromContext(ctx).With("target", target)
	ctx = ctxlog.WithLogger(ctx, logger)

	start := now()
	rep := &Report{Target: target, Dir: dir, Policy: opts.Policy, Started: start}
	finish := func(root resolve.Outcome) {
		root.Duration = now().Sub(start)
		rep.Root = &root
		rep.Duration = root.Duration
		if opts.Report && rep.Workspace != "" {
			if err := writeReport(rep); err != nil {
				logger.Warn("cannot write resolution report", "err", err)
			}
		}
	}
	root := resolve.Outcome{Node: filepath.Base(dir), Path: dir}

	m, ok, err := manifest.Load(dir)
	if err != nil {
		return rep, fatal(err)
	}
	if ok {
		logger.Info("reading dependencies of target", "count", len(m))
		ws, err := newWorkspace(base, opts.WorkspacePrefix, start)
		if err != nil {
			return rep, fatal(err)
		}
		rep.Workspace = ws
		logger.Info("created workspace", "dir", ws)

		r := resolve.New(resolve.Options{
			Fetcher:  opts.Fetcher,
			Builder:  opts.Builder,
			Policy:   opts.Policy,
			Dedupe:   opts.Dedupe,
			Digest:   opts.Digest,
			Observer: opts.Observer,
		})
		rep.Outcomes = r.Resolve(ctx, m, ws)

		if failed := rep.Failed(); len(failed) > 0 {
			logger.Warn("some dependencies failed", "failed", len(failed), "total", len(rep.Outcomes))
			if opts.Policy == resolve.Strict {
				err := fmt.Errorf("%w: %s", ErrDependencies, failed[0].Node)
				root.Err = fmt.Errorf("%w: not building target", resolve.ErrDependencyFailed)
				finish(root)
				return rep, fatal(err)
			}
		}
	} else {
		logger.Info("no dependencies declared, building target only")
	}

	logger.Info("running build script for target")
	if err := opts.Builder.Build(ctx, dir); err != nil {
		root.Err = err
		finish(root)
		return rep, fatal(err)
	}
	root.Status = resolve.StatusBuilt
	finish(root)
	logger.Info("built target", "duration", rep.Duration)
	return rep, nil
}

func baseDir(base string) (string, error) {
	if base == "" {
		return os.Getwd()
	}
	return filepath.Abs(base)
}

func writeReport(rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(rep.Workspace, ReportName), append(data, '\n'), 0644)
}
