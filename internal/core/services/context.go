package services

import "context"

type contextKey string

const workingDirKey contextKey = "working_dir"

// ContextWithWorkingDir returns a context carrying the resolved working
// directory for tool executions.
func ContextWithWorkingDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workingDirKey, dir)
}

// WorkingDirFromContext extracts the working directory, if present.
func WorkingDirFromContext(ctx context.Context) (string, bool) {
	dir, ok := ctx.Value(workingDirKey).(string)
	return dir, ok && dir != ""
}
