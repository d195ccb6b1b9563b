package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFile(t *testing.T, root string, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDetectProject(t *testing.T) {
	dir := t.TempDir()

	assert.Nil(t, detectProject(dir, "."))

	seedFile(t, dir, "go.mod", "module example.com/x\n")
	info := detectProject(dir, ".")
	require.NotNil(t, info)
	assert.Equal(t, "go", info.Type)

	// package.json wins over go.mod when both are present.
	seedFile(t, dir, "package.json", `{"dependencies": {"react": "^18.0.0"}}`)
	info = detectProject(dir, ".")
	require.NotNil(t, info)
	assert.Equal(t, "node", info.Type)
	assert.Equal(t, "React", info.Framework)
}

func TestDetectProject_FrameworkPrecedence(t *testing.T) {
	dir := t.TempDir()
	// Next.js projects also depend on react; the more specific label wins.
	seedFile(t, dir, "package.json", `{"dependencies": {"next": "14.0.0", "react": "^18.0.0"}}`)

	info := detectProject(dir, ".")
	require.NotNil(t, info)
	assert.Equal(t, "Next.js", info.Framework)
}

func TestDetectProject_DevDependencies(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "package.json", `{"devDependencies": {"svelte": "^4.0.0"}}`)

	info := detectProject(dir, ".")
	require.NotNil(t, info)
	assert.Equal(t, "Svelte", info.Framework)
}

func TestSummarizeWorkspace(t *testing.T) {
	root := t.TempDir()
	seedFile(t, root, "app/package.json", `{"dependencies": {"express": "^4.18.0"}}`)
	seedFile(t, root, "app/index.js", "console.log('hi')")
	seedFile(t, root, "app/server.js", "")
	seedFile(t, root, "notes.md", "# notes")
	seedFile(t, root, "app/node_modules/express/index.js", "skipped")
	seedFile(t, root, ".hidden/secret.txt", "skipped")

	result, err := summarizeWorkspace(root)
	require.NoError(t, err)

	projects := result["projects"].([]ProjectInfo)
	require.Len(t, projects, 1)
	assert.Equal(t, "app", projects[0].Path)
	assert.Equal(t, "Express", projects[0].Framework)

	assert.Equal(t, 4, result["total_files"], "node_modules and dotdirs excluded")

	counts := result["file_counts"].(map[string]int)
	assert.Equal(t, 2, counts[".js"])
	assert.Equal(t, 1, counts[".md"])
	assert.Equal(t, 1, counts[".json"])

	summary := result["summary"].(string)
	assert.Contains(t, summary, "app: Express")
	assert.Contains(t, summary, "4 files")
}

func TestSummarizeWorkspace_Empty(t *testing.T) {
	result, err := summarizeWorkspace(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0, result["total_files"])
	assert.Contains(t, result["summary"], "no project manifests detected")
}

func TestFlattenSummary_TopExtensionsOnly(t *testing.T) {
	counts := map[string]int{
		".go": 10, ".js": 9, ".ts": 8, ".md": 7, ".css": 6, ".html": 5, ".txt": 4,
	}
	out := flattenSummary(nil, 49, counts)
	assert.Contains(t, out, ".go×10")
	assert.NotContains(t, out, ".html")
	assert.NotContains(t, out, ".txt")
}

func TestWorkspaceSummaryTool(t *testing.T) {
	ws := newTestWorkspace(t)
	seedFile(t, ws.Root(), "go.mod", "module example.com/demo\n")
	tool := NewWorkspaceSummaryTool(ws)

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	projects := m["projects"].([]ProjectInfo)
	require.Len(t, projects, 1)
	assert.Equal(t, "Go", projects[0].Framework)
}
