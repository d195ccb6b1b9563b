package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditLogFileName is created inside the workspace so the user's editor
// can watch command activity.
const AuditLogFileName = ".reagent-commands.log"

var auditSeparator = strings.Repeat("=", 80)

// AuditEntry is one executed command's record.
type AuditEntry struct {
	Timestamp time.Time
	Command   string
	Stdout    string
	Stderr    string
	ExitCode  int
	Mode      string // "remote", "local-fallback", "terminal", "background", "blocked"
}

// AuditLog appends command records to a plain-text file in the workspace.
// Writes are open-append-close so concurrent runs against the same
// workspace interleave whole blocks instead of sharing a handle.
type AuditLog struct {
	logger *slog.Logger
	path   string
	mu     sync.Mutex
}

func NewAuditLog(workspaceDir string, logger *slog.Logger) *AuditLog {
	return &AuditLog{
		logger: logger,
		path:   filepath.Join(workspaceDir, AuditLogFileName),
	}
}

// Path returns the log file location.
func (a *AuditLog) Path() string {
	return a.path
}

// Append writes one block. Failures are logged, not returned to the tool
// path: a missing audit record must not fail the command itself.
func (a *AuditLog) Append(entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		a.logger.Warn("audit log open failed", "path", a.path, "error", err)
		return
	}
	defer f.Close()

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(auditSeparator + "\n")
	fmt.Fprintf(&b, "[%s] %s\n", ts.Format(time.RFC3339), entry.Mode)
	fmt.Fprintf(&b, "COMMAND: %s\n", entry.Command)
	fmt.Fprintf(&b, "STDOUT:\n%s\n", entry.Stdout)
	fmt.Fprintf(&b, "STDERR:\n%s\n", entry.Stderr)
	fmt.Fprintf(&b, "EXIT CODE: %d\n", entry.ExitCode)

	if _, err := f.WriteString(b.String()); err != nil {
		a.logger.Warn("audit log write failed", "path", a.path, "error", err)
	}
}
