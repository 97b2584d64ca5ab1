// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package command runs external processes to completion.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sys/execabs"
)

// stderrTail is how much of a command's stderr is kept for error messages.
const stderrTail = 4 << 10

// LaunchError reports a command that could not be started at all.
type LaunchError struct {
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a command that exited with a non-zero status.
type ExitError struct {
	Name     string
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string // tail of the command's standard error
}

func (e *ExitError) Error() string {
	cmdline := strings.Join(append([]string{e.Name}, e.Args...), " ")
	msg := fmt.Sprintf("%s: exit status %d", cmdline, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Runner executes commands. The zero value suppresses all output.
type Runner struct {
	stdout io.Writer
	stderr io.Writer
	env    []string
	label  string

	mu *sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput streams command output line by line to stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithEnv appends environment variables ("KEY=value") to the inherited
// environment of every command.
func WithEnv(kv ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, kv...)
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{mu: new(sync.Mutex)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Streaming reports whether r forwards command output.
func (r *Runner) Streaming() bool {
	return r.stdout != nil || r.stderr != nil
}

// WithLabel returns a copy of r that prefixes every streamed line with
// "[label] ".
func (r *Runner) WithLabel(label string) *Runner {
	c := *r
	c.label = label
	if c.mu == nil {
		c.mu = new(sync.Mutex)
	}
	return &c
}

// Run runs name with args in dir and waits for it to finish.
// dir must be set; Run never depends on the process working directory.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) error {
	if dir == "" {
		return &LaunchError{Name: name, Err: errors.New("no working directory")}
	}
	cmd := execabs.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	tail := &tailBuffer{max: stderrTail}
	var flush []*lineWriter
	mu := r.mu
	if mu == nil {
		mu = new(sync.Mutex)
	}
	prefix := ""
	if r.label != "" {
		prefix = "[" + r.label + "] "
	}
	if r.stdout != nil {
		w := &lineWriter{w: r.stdout, prefix: prefix, mu: mu}
		flush = append(flush, w)
		cmd.Stdout = w
	}
	if r.stderr != nil {
		w := &lineWriter{w: r.stderr, prefix: prefix, mu: mu}
		flush = append(flush, w)
		cmd.Stderr = io.MultiWriter(w, tail)
	} else {
		cmd.Stderr = tail
	}

	err := cmd.Run()
	for _, w := range flush {
		w.Flush()
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Name:     name,
			Args:     args,
			Dir:      dir,
			ExitCode: exitErr.ExitCode(),
			Stderr:   tail.String(),
		}
	}
	return &LaunchError{Name: name, Err: err}
}

// lineWriter forwards complete lines to w, each preceded by prefix.
type lineWriter struct {
	w      io.Writer
	prefix string
	mu     *sync.Mutex
	buf    []byte
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		if err := l.emit(l.buf[:i]); err != nil {
			return 0, err
		}
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (l *lineWriter) Flush() {
	if len(l.buf) > 0 {
		l.emit(l.buf)
		l.buf = nil
	}
}

func (l *lineWriter) emit(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s%s\n", l.prefix, line)
	return err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
