package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultWorkspacePrefix names workspaces after the folder the dependencies
// were historically cloned into.
const DefaultWorkspacePrefix = "dependencies"

const workspaceStamp = "20060102-150405.000000000"

// maxWorkspaceAttempts bounds the retries when two runs pick the same stamp.
const maxWorkspaceAttempts = 8

// WorkspaceName returns the directory name of a workspace created at t.
func WorkspaceName(prefix string, t time.Time) string {
	return prefix + "-" + t.UTC().Format(workspaceStamp)
}

// newWorkspace creates a fresh workspace directory below base. An existing
// directory is never reused: on collision the stamp moves forward.
func newWorkspace(base, prefix string, t time.Time) (string, error) {
	if prefix == "" {
		prefix = DefaultWorkspacePrefix
	}
	for i := 0; i < maxWorkspaceAttempts; i++ {
		dir := filepath.Join(base, WorkspaceName(prefix, t.Add(time.Duration(i))))
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create workspace: %w", err)
		}
	}
	return "", fmt.Errorf("create workspace: no free name for %s in %s", prefix, base)
}
