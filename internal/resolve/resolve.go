// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goplus/depbuild/internal/ctxlog"
	"github.com/goplus/depbuild/pkgs/manifest"
)

// ErrDependencyFailed marks a node left unbuilt because one of its
// dependencies failed under the strict policy.
var ErrDependencyFailed = errors.New("dependency failed")

// Fetcher materializes a declaration below parent and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, decl manifest.Declaration, parent string) (string, error)
}

// Builder runs the build action of the project in dir.
type Builder interface {
	Build(ctx context.Context, dir string) error
}

// CycleError reports a declaration that is already being resolved further
// up the current dependency path.
type CycleError struct {
	Path []manifest.Key // from the outermost node to the repeated one
}

func (e *CycleError) Error() string {
	keys := make([]string, len(e.Path))
	for i, k := range e.Path {
		keys[i] = k.String()
	}
	return "dependency cycle: " + strings.Join(keys, " -> ")
}

// Options configures a Resolver.
type Options struct {
	Fetcher Fetcher
	Builder Builder
	Policy  Policy

	// Dedupe processes each (url, ref) pair at most once per run. Later
	// occurrences are recorded as StatusReused.
	Dedupe bool

	// Digest records the content hash of every fetched tree.
	Digest func(dir string) (string, error)

	// Observer, if set, is called synchronously for every event.
	Observer func(Event)
}

// Resolver walks manifests, fetching every declared node, resolving its
// nested manifest and building it after its own dependencies.
//
// A Resolver is not safe for concurrent use.
type Resolver struct {
	opts Options

	stack    []manifest.Key
	active   map[manifest.Key]bool
	done     map[manifest.Key]Outcome
	outcomes []Outcome
	stopped  bool
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve processes every declaration of m in order, fetching nodes into
// workspace, which must be an absolute path exclusively owned by this run.
// Nested dependencies are fetched into the same workspace.
//
// Failures are isolated per node and returned as outcomes, never as an
// error. Outcomes are in completion order: a node follows all of its
// dependencies.
func (r *Resolver) Resolve(ctx context.Context, m manifest.Manifest, workspace string) []Outcome {
	r.stack = nil
	r.active = make(map[manifest.Key]bool)
	r.done = make(map[manifest.Key]Outcome)
	r.outcomes = nil
	r.stopped = false

	r.resolve(ctx, m, workspace, "", 0)
	return r.outcomes
}

func (r *Resolver) resolve(ctx context.Context, m manifest.Manifest, workspace, parent string, depth int) {
	for _, decl := range m {
		if r.stopped {
			return
		}
		r.node(ctx, decl, workspace, parent, depth)
	}
}

// node runs the per-node state machine:
// fetch, check for a nested manifest, resolve it, build.
func (r *Resolver) node(ctx context.Context, decl manifest.Declaration, workspace, parent string, depth int) {
	key := decl.Key()
	start := time.Now()
	out := Outcome{
		Node:   decl.NodeName(),
		URL:    decl.URL,
		Ref:    decl.Branch,
		Parent: parent,
		Depth:  depth,
	}
	logger := ctxlog.FromContext(ctx).With("node", out.Node, "url", decl.URL, "ref", decl.Branch)

	if err := ctx.Err(); err != nil {
		r.fail(logger, &out, start, err)
		return
	}
	if r.active[key] {
		path := append(r.stackFrom(key), key)
		r.fail(logger, &out, start, &CycleError{Path: path})
		return
	}
	if prev, ok := r.done[key]; ok && r.opts.Dedupe {
		out.Status = StatusReused
		out.Path = prev.Path
		out.Digest = prev.Digest
		out.Err = prev.Err
		out.Duration = time.Since(start)
		logger.Info("dependency already processed in this run", "status", prev.Status)
		r.emit(Event{Kind: EventReused, Node: out.Node, Key: key, Depth: depth, Path: out.Path, Err: prev.Err})
		r.outcomes = append(r.outcomes, out)
		return
	}

	r.active[key] = true
	r.stack = append(r.stack, key)
	defer func() {
		delete(r.active, key)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	logger.Info("processing dependency")
	r.emit(Event{Kind: EventFetch, Node: out.Node, Key: key, Depth: depth})
	path, err := r.opts.Fetcher.Fetch(ctx, decl, workspace)
	if err != nil {
		r.fail(logger, &out, start, err)
		return
	}
	out.Path = path
	r.emit(Event{Kind: EventFetched, Node: out.Node, Key: key, Depth: depth, Path: path})

	if r.opts.Digest != nil {
		digest, err := r.opts.Digest(path)
		if err != nil {
			logger.Warn("cannot compute source digest", "err", err)
		}
		out.Digest = digest
	}

	nested, ok, err := manifest.Load(path)
	if err != nil {
		r.fail(logger, &out, start, err)
		return
	}
	if ok {
		logger.Info("resolving nested dependencies", "count", len(nested))
		r.emit(Event{Kind: EventResolve, Node: out.Node, Key: key, Depth: depth, Path: path})
		r.resolve(ctx, nested, workspace, out.Node, depth+1)
		r.emit(Event{Kind: EventResolved, Node: out.Node, Key: key, Depth: depth, Path: path})
		if r.stopped {
			r.fail(logger, &out, start, fmt.Errorf("%w: not building %s", ErrDependencyFailed, out.Node))
			return
		}
	}

	logger.Info("running build script")
	r.emit(Event{Kind: EventBuild, Node: out.Node, Key: key, Depth: depth, Path: path})
	if err := r.opts.Builder.Build(ctx, path); err != nil {
		r.fail(logger, &out, start, err)
		return
	}

	out.Status = StatusBuilt
	out.Duration = time.Since(start)
	logger.Info("built dependency", "duration", out.Duration)
	r.emit(Event{Kind: EventBuilt, Node: out.Node, Key: key, Depth: depth, Path: path})
	r.record(key, out)
}

func (r *Resolver) fail(logger *slog.Logger, out *Outcome, start time.Time, err error) {
	out.Status = StatusFailed
	out.Err = err
	out.Duration = time.Since(start)
	logger.Error("failed to process dependency", "err", err)
	r.emit(Event{Kind: EventFailed, Node: out.Node, Key: manifest.Key{URL: out.URL, Ref: out.Ref}, Depth: out.Depth, Path: out.Path, Err: err})
	r.record(manifest.Key{URL: out.URL, Ref: out.Ref}, *out)
	if r.opts.Policy == Strict {
		r.stopped = true
	}
}

func (r *Resolver) record(key manifest.Key, out Outcome) {
	r.outcomes = append(r.outcomes, out)
	var cycle *CycleError
	if errors.As(out.Err, &cycle) {
		// The node being cycled back to owns the key.
		return
	}
	r.done[key] = out
}

// stackFrom returns the part of the current path starting at key.
func (r *Resolver) stackFrom(key manifest.Key) []manifest.Key {
	for i, k := range r.stack {
		if k == key {
			return append([]manifest.Key(nil), r.stack[i:]...)
		}
	}
	return nil
}

func (r *Resolver) emit(e Event) {
	if r.opts.Observer != nil {
		r.opts.Observer(e)
	}
}
