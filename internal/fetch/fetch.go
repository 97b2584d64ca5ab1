// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch materializes a declared dependency into a node directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/mod/sumdb/dirhash"

	"github.com/goplus/depbuild/internal/vcs"
	"github.com/goplus/depbuild/pkgs/manifest"
)

// ErrExists is returned when the node directory is already present.
var ErrExists = errors.New("destination already exists")

// FetchError reports a failed fetch of one declaration.
type FetchError struct {
	URL string
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s: %v", e.URL, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher fetches declarations through a VCS.
type Fetcher struct {
	vcs vcs.VCS
}

// New creates a Fetcher backed by v.
func New(v vcs.VCS) *Fetcher {
	return &Fetcher{vcs: v}
}

// Fetch materializes decl into parent/<node name> and returns that path.
// parent must be absolute. An existing node directory is never merged into.
func (f *Fetcher) Fetch(ctx context.Context, decl manifest.Declaration, parent string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &FetchError{URL: decl.URL, Ref: decl.Branch, Err: err}
	}
	if err := decl.Validate(); err != nil {
		return fail(err)
	}
	if !filepath.IsAbs(parent) {
		return fail(fmt.Errorf("destination %q is not absolute", parent))
	}

	dest := filepath.Join(parent, decl.NodeName())
	if _, err := os.Lstat(dest); err == nil {
		return fail(fmt.Errorf("%w: %s", ErrExists, dest))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(err)
	}

	if err := f.vcs.Clone(ctx, decl.URL, decl.Branch, dest); err != nil {
		os.RemoveAll(dest)
		return fail(err)
	}
	return dest, nil
}

// Digest returns the "h1:" content hash of the tree at dir,
// leaving out version control metadata.
func Digest(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", err
	}
	return dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	})
}
