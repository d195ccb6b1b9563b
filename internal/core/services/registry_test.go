package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkspaceToolRegistry(t *testing.T) {
	runner, ws := newTestRunner(t, nil)

	registry, err := NewWorkspaceToolRegistry(ws, runner, nil)
	require.NoError(t, err)

	expected := []string{
		"read_file",
		"write_file",
		"list_files",
		"create_directory",
		"delete_file",
		"execute_command",
		"git_status",
		"git_commit",
		"get_workspace_summary",
	}
	assert.ElementsMatch(t, expected, registry.ToolNames())

	for _, name := range expected {
		tool, ok := registry.GetTool(name)
		require.True(t, ok, name)
		assert.NotNil(t, tool.Execute, name)
		assert.NotEmpty(t, tool.Description, name)
	}
}
