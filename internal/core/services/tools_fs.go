package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soldano/reagent/internal/core/domain"
)

// ensurePathIsSafe strictly validates that the requested path is within the
// workspace root. The prefix comparison includes the trailing separator so a
// sibling directory sharing the root's name as a prefix does not pass.
func ensurePathIsSafe(root, requestedPath string) (string, error) {
	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(filepath.Join(root, requestedPath))

	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("security violation: path %q is outside workspace root", requestedPath)
	}
	return cleanPath, nil
}

// resolveRoot picks the effective root for a tool call: the working
// directory the gateway was invoked with, or the workspace root.
func resolveRoot(ctx context.Context, ws *WorkspaceManager) string {
	if dir, ok := WorkingDirFromContext(ctx); ok {
		return ws.Resolve(dir)
	}
	return ws.Root()
}

func stringParam(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

// NewReadFileTool creates the read_file tool. With a remote executor
// configured, reads pass through its fs_read_file operation so the file is
// read where commands run; a transport failure surfaces as a failed result,
// not a silent local read of a possibly different tree.
func NewReadFileTool(ws *WorkspaceManager, remote RemoteExecutor) *domain.Tool {
	return &domain.Tool{
		Name:        "read_file",
		Description: "Reads the content of a file within the workspace. Returns content and size.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Relative path to the file (e.g., 'src/main.go').",
				},
			},
			Required: []string{"path"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			path := stringParam(params, "path")
			if path == "" {
				return nil, fmt.Errorf("path is required")
			}

			safePath, err := ensurePathIsSafe(resolveRoot(ctx, ws), path)
			if err != nil {
				return nil, err
			}

			if remote != nil {
				result, err := remote.Execute(ctx, "fs_read_file", map[string]interface{}{
					"path": safePath,
				})
				if err != nil {
					return nil, fmt.Errorf("remote read of %s failed: %w", path, err)
				}
				return result, nil
			}

			content, err := os.ReadFile(safePath)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("file not found: %s", path)
				}
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}

			return map[string]interface{}{
				"content": string(content),
				"size":    len(content),
			}, nil
		},
	}
}

// NewWriteFileTool creates the write_file tool. Writes pass through the
// remote executor when one is configured, mirroring read_file.
func NewWriteFileTool(ws *WorkspaceManager, remote RemoteExecutor) *domain.Tool {
	return &domain.Tool{
		Name:        "write_file",
		Description: "Writes content to a file. Overwrites if exists, creates parent directories if needed.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Relative path to the file.",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Text content to write.",
				},
			},
			Required: []string{"path", "content"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			path := stringParam(params, "path")
			content, ok := params["content"].(string)
			if path == "" || !ok {
				return nil, fmt.Errorf("path and content are required")
			}

			safePath, err := ensurePathIsSafe(resolveRoot(ctx, ws), path)
			if err != nil {
				return nil, err
			}

			if remote != nil {
				result, err := remote.Execute(ctx, "write_file", map[string]interface{}{
					"path":    safePath,
					"content": content,
				})
				if err != nil {
					return nil, fmt.Errorf("remote write of %s failed: %w", path, err)
				}
				return result, nil
			}

			if err := os.MkdirAll(filepath.Dir(safePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directories for %s: %w", path, err)
			}
			if err := os.WriteFile(safePath, []byte(content), 0644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", path, err)
			}

			return map[string]interface{}{
				"path":          path,
				"bytes_written": len(content),
			}, nil
		},
	}
}

// NewListFilesTool creates the list_files tool
func NewListFilesTool(ws *WorkspaceManager) *domain.Tool {
	return &domain.Tool{
		Name:        "list_files",
		Description: "Lists files and directories in a path, returned separately with a total count.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Relative path to list (default: workspace root).",
				},
			},
			Required: []string{},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			path := stringParam(params, "path")
			if path == "" {
				path = "."
			}

			safePath, err := ensurePathIsSafe(resolveRoot(ctx, ws), path)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(safePath)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", path, err)
			}

			files := []string{}
			dirs := []string{}
			for _, e := range entries {
				if e.IsDir() {
					dirs = append(dirs, e.Name())
				} else {
					files = append(files, e.Name())
				}
			}

			return map[string]interface{}{
				"files":       files,
				"directories": dirs,
				"total":       len(entries),
			}, nil
		},
	}
}

// NewCreateDirectoryTool creates the create_directory tool
func NewCreateDirectoryTool(ws *WorkspaceManager) *domain.Tool {
	return &domain.Tool{
		Name:        "create_directory",
		Description: "Creates a directory (and any missing parents) within the workspace.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Relative path of the directory to create.",
				},
			},
			Required: []string{"path"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			path := stringParam(params, "path")
			if path == "" {
				return nil, fmt.Errorf("path is required")
			}

			safePath, err := ensurePathIsSafe(resolveRoot(ctx, ws), path)
			if err != nil {
				return nil, err
			}

			if err := os.MkdirAll(safePath, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", path, err)
			}
			return fmt.Sprintf("Created directory %s", path), nil
		},
	}
}

// NewDeleteFileTool creates the delete_file tool
func NewDeleteFileTool(ws *WorkspaceManager) *domain.Tool {
	return &domain.Tool{
		Name:        "delete_file",
		Description: "Deletes a single file within the workspace.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Relative path of the file to delete.",
				},
			},
			Required: []string{"path"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			path := stringParam(params, "path")
			if path == "" {
				return nil, fmt.Errorf("path is required")
			}

			safePath, err := ensurePathIsSafe(resolveRoot(ctx, ws), path)
			if err != nil {
				return nil, err
			}

			if err := os.Remove(safePath); err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("file not found: %s", path)
				}
				return nil, fmt.Errorf("failed to delete %s: %w", path, err)
			}
			return fmt.Sprintf("Deleted %s", path), nil
		},
	}
}
