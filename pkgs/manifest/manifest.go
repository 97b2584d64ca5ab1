// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest reads and writes dependencies.json, the file a project
// uses to declare the repositories it depends on.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the fixed name of a manifest inside a project directory.
const FileName = "dependencies.json"

// Declaration identifies one dependency to fetch.
type Declaration struct {
	URL    string `json:"url"`
	Branch string `json:"branch"`
}

// Key identifies a declaration within a run.
type Key struct {
	URL string
	Ref string
}

func (k Key) String() string {
	return k.URL + "@" + k.Ref
}

// Key returns the (url, ref) pair of d.
func (d Declaration) Key() Key {
	return Key{URL: d.URL, Ref: d.Branch}
}

// NodeName returns the directory name a dependency is fetched into.
// It is the last path segment of the URL with any ".git" suffix removed.
// scp-style URLs ("git@host:repo.git") are split on the colon as well.
func (d Declaration) NodeName() string {
	return NodeName(d.URL)
}

// NodeName derives a node name from a source URL.
func NodeName(url string) string {
	name := strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}

// Validate reports whether d can be fetched into a subdirectory of its own.
func (d Declaration) Validate() error {
	name := d.NodeName()
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("cannot derive a node name from url %q", d.URL)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("node name %q of url %q contains a path separator", name, d.URL)
	}
	return nil
}

// Manifest is the ordered list of a project's direct dependencies.
// Order is significant: declarations are processed as they appear.
type Manifest []Declaration

// ParseError reports a manifest that exists but is not well-formed.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// rawDeclaration keeps required fields distinguishable from empty ones.
type rawDeclaration struct {
	URL    *string `json:"url"`
	Branch *string `json:"branch"`
}

// Parse decodes a manifest. If data is nil, the content is read from file;
// otherwise file is only used in error messages. The content must be a
// single JSON array; anything after it is an error.
func Parse(file string, data []byte) (Manifest, error) {
	if data == nil {
		var err error
		if data, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
	}

	var raw []rawDeclaration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{File: file, Err: err}
	}
	if raw == nil {
		return nil, &ParseError{File: file, Err: errors.New("manifest is null, want an array")}
	}

	m := make(Manifest, 0, len(raw))
	for i, r := range raw {
		switch {
		case r.URL == nil || *r.URL == "":
			return nil, &ParseError{File: file, Err: fmt.Errorf("entry %d: missing url", i)}
		case r.Branch == nil || *r.Branch == "":
			return nil, &ParseError{File: file, Err: fmt.Errorf("entry %d: missing branch", i)}
		}
		m = append(m, Declaration{URL: *r.URL, Branch: *r.Branch})
	}
	return m, nil
}

// Load reads the manifest of the project in dir.
// A missing manifest is not an error: Load returns ok == false.
func Load(dir string) (m Manifest, ok bool, err error) {
	file := filepath.Join(dir, FileName)
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m, err = Parse(file, data)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Save writes m as the manifest of the project in dir.
func Save(dir string, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName), append(data, '\n'), 0644)
}

// Set adds d to m, replacing the branch of an existing declaration with the
// same URL. It reports whether an existing entry was updated.
func (m Manifest) Set(d Declaration) (Manifest, bool) {
	for i := range m {
		if m[i].URL == d.URL {
			m[i].Branch = d.Branch
			return m, true
		}
	}
	return append(m, d), false
}
