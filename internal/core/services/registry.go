package services

import (
	"fmt"

	"github.com/soldano/reagent/internal/core/domain"
)

// NewWorkspaceToolRegistry assembles the full tool set the gateway serves.
// remote may be nil; file reads and writes then stay local.
func NewWorkspaceToolRegistry(ws *WorkspaceManager, runner *CommandRunner, remote RemoteExecutor) (*domain.ToolRegistry, error) {
	registry := domain.NewToolRegistry()
	tools := []*domain.Tool{
		NewReadFileTool(ws, remote),
		NewWriteFileTool(ws, remote),
		NewListFilesTool(ws),
		NewCreateDirectoryTool(ws),
		NewDeleteFileTool(ws),
		NewExecuteCommandTool(runner),
		NewGitStatusTool(ws),
		NewGitCommitTool(ws),
		NewWorkspaceSummaryTool(ws),
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	return registry, nil
}
