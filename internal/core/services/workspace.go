package services

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkspaceManager owns the workspace root directory that all tool
// executions are resolved against.
type WorkspaceManager struct {
	baseDir string
}

func NewWorkspaceManager(baseDir string) *WorkspaceManager {
	if baseDir == "" {
		baseDir = os.Getenv("REAGENT_WORKSPACE_DIR")
	}
	if baseDir == "" {
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, "reagent-workspace")
	}
	return &WorkspaceManager{baseDir: baseDir}
}

// Root returns the workspace root, creating it lazily.
func (s *WorkspaceManager) Root() string {
	_ = os.MkdirAll(s.baseDir, 0755)
	return s.baseDir
}

// Resolve maps a working-directory argument to an absolute path. Absolute
// paths are used as-is; relative paths are joined under the workspace root;
// empty means the root itself.
func (s *WorkspaceManager) Resolve(workingDir string) string {
	if workingDir == "" {
		return s.Root()
	}
	if filepath.IsAbs(workingDir) {
		return workingDir
	}
	return filepath.Join(s.Root(), workingDir)
}

// EnsureDir creates a directory under the root and returns its absolute path.
func (s *WorkspaceManager) EnsureDir(rel string) (string, error) {
	path := filepath.Join(s.Root(), rel)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace dir: %w", err)
	}
	return path, nil
}
