package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/soldano/reagent/internal/core/domain"
)

// runGit shells out to git in the given directory.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s failed in %s: %s", args[0], dir, msg)
	}
	return stdout.String(), nil
}

// parsePorcelainStatus buckets `git status --porcelain` lines into
// modified, untracked and staged files.
func parsePorcelainStatus(output string) (modified, untracked, staged []string) {
	modified = []string{}
	untracked = []string{}
	staged = []string{}
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		x, y := line[0], line[1]
		path := strings.TrimSpace(line[3:])

		if x == '?' && y == '?' {
			untracked = append(untracked, path)
			continue
		}
		if x != ' ' && x != '?' {
			staged = append(staged, path)
		}
		if y != ' ' && y != '?' {
			modified = append(modified, path)
		}
	}
	return modified, untracked, staged
}

// NewGitStatusTool creates the git_status tool
func NewGitStatusTool(ws *WorkspaceManager) *domain.Tool {
	return &domain.Tool{
		Name:        "git_status",
		Description: "Shows the version-control status of the workspace: modified, untracked and staged files.",
		Parameters: domain.ToolParameters{
			Type:       "object",
			Properties: map[string]interface{}{},
			Required:   []string{},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			root := resolveRoot(ctx, ws)
			output, err := runGit(ctx, root, "status", "--porcelain")
			if err != nil {
				return nil, err
			}

			modified, untracked, staged := parsePorcelainStatus(output)
			return map[string]interface{}{
				"modified":  modified,
				"untracked": untracked,
				"staged":    staged,
				"clean":     len(modified)+len(untracked)+len(staged) == 0,
			}, nil
		},
	}
}

// NewGitCommitTool creates the git_commit tool
func NewGitCommitTool(ws *WorkspaceManager) *domain.Tool {
	return &domain.Tool{
		Name:        "git_commit",
		Description: "Commits staged changes with a message. Optionally stages the named files first.",
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "The commit message.",
				},
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Files to stage before committing. Omit to commit what is already staged.",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"message"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			message := stringParam(params, "message")
			if strings.TrimSpace(message) == "" {
				return nil, fmt.Errorf("message is required")
			}
			root := resolveRoot(ctx, ws)

			if raw, ok := params["files"].([]interface{}); ok && len(raw) > 0 {
				args := []string{"add", "--"}
				for _, f := range raw {
					name, ok := f.(string)
					if !ok || name == "" {
						return nil, fmt.Errorf("files must be non-empty strings")
					}
					args = append(args, name)
				}
				if _, err := runGit(ctx, root, args...); err != nil {
					return nil, err
				}
			}

			output, err := runGit(ctx, root, "commit", "-m", message)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"committed": true,
				"output":    strings.TrimSpace(output),
			}, nil
		},
	}
}
