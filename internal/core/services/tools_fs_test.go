package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *WorkspaceManager {
	t.Helper()
	return NewWorkspaceManager(t.TempDir())
}

func TestEnsurePathIsSafe(t *testing.T) {
	root := t.TempDir()

	safe, err := ensurePathIsSafe(root, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "main.go"), safe)

	_, err = ensurePathIsSafe(root, "../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside workspace root")
}

func TestEnsurePathIsSafe_SiblingWithRootPrefix(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "ws")
	require.NoError(t, os.MkdirAll(root, 0755))

	// ../ws-secrets shares "ws" as a name prefix but is a sibling directory.
	_, err := ensurePathIsSafe(root, "../ws-secrets/token.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside workspace root")

	// The root itself stays addressable.
	safe, err := ensurePathIsSafe(root, ".")
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(root), safe)
}

func TestReadFileTool(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "hello.txt"), []byte("hi there"), 0644))
	tool := NewReadFileTool(ws, nil)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": "hello.txt"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, "hi there", m["content"])
	assert.Equal(t, 8, m["size"])
}

func TestReadFileTool_Missing(t *testing.T) {
	tool := NewReadFileTool(newTestWorkspace(t), nil)

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "ghost.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestReadFileTool_TraversalBlocked(t *testing.T) {
	tool := NewReadFileTool(newTestWorkspace(t), nil)

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "../../../etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security violation")
}

func TestWriteFileTool_CreatesParents(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewWriteFileTool(ws, nil)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "deep/nested/file.txt",
		"content": "payload",
	})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, 7, m["bytes_written"])

	data, err := os.ReadFile(filepath.Join(ws.Root(), "deep", "nested", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWriteFileTool_Overwrites(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewWriteFileTool(ws, nil)

	for _, content := range []string{"first", "second"} {
		_, err := tool.Execute(context.Background(), map[string]interface{}{
			"path":    "f.txt",
			"content": content,
		})
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(ws.Root(), "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestListFilesTool(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "b.txt"), []byte("b"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Root(), "subdir"), 0755))
	tool := NewListFilesTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, m["files"])
	assert.ElementsMatch(t, []string{"subdir"}, m["directories"])
	assert.Equal(t, 3, m["total"])
}

func TestCreateDirectoryTool(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewCreateDirectoryTool(ws)

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "a/b/c"})
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(ws.Root(), "a", "b", "c"))
}

func TestDeleteFileTool(t *testing.T) {
	ws := newTestWorkspace(t)
	target := filepath.Join(ws.Root(), "doomed.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	tool := NewDeleteFileTool(ws)

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "doomed.txt"})
	require.NoError(t, err)
	assert.NoFileExists(t, target)

	_, err = tool.Execute(context.Background(), map[string]interface{}{"path": "doomed.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestReadFileTool_RemotePassthrough(t *testing.T) {
	ws := newTestWorkspace(t)
	remote := &fakeRemote{handler: func(tool string, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"content": "remote bytes", "size": float64(12)}, nil
	}}
	tool := NewReadFileTool(ws, remote)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": "hello.txt"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, "remote bytes", m["content"])

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "fs_read_file", remote.calls[0].tool)
	assert.Equal(t, filepath.Join(ws.Root(), "hello.txt"), remote.calls[0].params["path"])
}

func TestReadFileTool_RemoteFailureSurfaces(t *testing.T) {
	remote := &fakeRemote{handler: func(tool string, params map[string]interface{}) (map[string]interface{}, error) {
		return nil, assert.AnError
	}}
	tool := NewReadFileTool(newTestWorkspace(t), remote)

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "hello.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote read")
}

func TestWriteFileTool_RemotePassthrough(t *testing.T) {
	ws := newTestWorkspace(t)
	remote := &fakeRemote{handler: func(tool string, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"bytes_written": float64(7)}, nil
	}}
	tool := NewWriteFileTool(ws, remote)

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "f.txt",
		"content": "payload",
	})
	require.NoError(t, err)

	require.Len(t, remote.calls, 1)
	assert.Equal(t, "write_file", remote.calls[0].tool)
	assert.Equal(t, "payload", remote.calls[0].params["content"])
	assert.NoFileExists(t, filepath.Join(ws.Root(), "f.txt"), "no local write when remote handles it")
}

func TestReadFileTool_RemoteStillConfined(t *testing.T) {
	remote := &fakeRemote{handler: func(tool string, params map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{}, nil
	}}
	tool := NewReadFileTool(newTestWorkspace(t), remote)

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": "../../etc/passwd"})
	require.Error(t, err)
	assert.Empty(t, remote.calls, "confinement check runs before the remote call")
}

func TestTools_WorkingDirScopesOperations(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Root(), "projA"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "projA", "only-here.txt"), []byte("scoped"), 0644))

	tool := NewReadFileTool(ws, nil)
	ctx := ContextWithWorkingDir(context.Background(), "projA")

	result, err := tool.Execute(ctx, map[string]interface{}{"path": "only-here.txt"})
	require.NoError(t, err)
	assert.Equal(t, "scoped", result.(map[string]interface{})["content"])

	// Without the working dir the same relative path misses.
	_, err = tool.Execute(context.Background(), map[string]interface{}{"path": "only-here.txt"})
	require.Error(t, err)
}
