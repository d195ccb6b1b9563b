package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soldano/reagent/internal/core/domain"
)

const (
	// DefaultRemoteCommandTimeout bounds a command on the remote executor.
	DefaultRemoteCommandTimeout = 5 * time.Minute
	// DefaultLocalCommandTimeout bounds the stricter local fallback tier.
	DefaultLocalCommandTimeout = 30 * time.Second
	// devServerGraceDelay is how long the background fallback waits before
	// returning the log tail.
	devServerGraceDelay = 2 * time.Second
)

// devServerScripts are manifest script names that start long-running dev
// servers; they get a persistent terminal instead of an inline run.
var devServerScripts = map[string]bool{
	"dev":   true,
	"start": true,
	"serve": true,
}

// dangerousCommands is a blocklist of commands that could damage the host system.
var dangerousCommands = []string{
	"rm -rf /",
	"rm -rf /*",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"halt",
	"poweroff",
	"init 0",
	"init 6",
	":(){ :|:& };:", // fork bomb
	"format c:",
	"> /dev/sda",
	"mv / ",
	"chmod -R 777 /",
	"chown -R ",
}

// isDangerousCommand checks if a command matches the blocklist.
func isDangerousCommand(cmd string) bool {
	lower := strings.ToLower(strings.TrimSpace(cmd))
	for _, dangerous := range dangerousCommands {
		if strings.Contains(lower, strings.ToLower(dangerous)) {
			return true
		}
	}
	return false
}

// RemoteExecutor is the transport to the remote tool-execution server.
// Kept as an interface so the local-fallback path is testable with fakes.
type RemoteExecutor interface {
	Execute(ctx context.Context, tool string, parameters map[string]interface{}) (map[string]interface{}, error)
}

// CommandRunner implements the execute_command pipeline: cd-prefix
// extraction, npm-script resolution, dev-server terminals, remote
// execution with local fallback, and audit logging.
type CommandRunner struct {
	logger        *slog.Logger
	ws            *WorkspaceManager
	remote        RemoteExecutor // nil means local-only
	audit         *AuditLog
	remoteTimeout time.Duration
	localTimeout  time.Duration
	graceDelay    time.Duration
}

func NewCommandRunner(logger *slog.Logger, ws *WorkspaceManager, remote RemoteExecutor, audit *AuditLog) *CommandRunner {
	return &CommandRunner{
		logger:        logger,
		ws:            ws,
		remote:        remote,
		audit:         audit,
		remoteTimeout: DefaultRemoteCommandTimeout,
		localTimeout:  DefaultLocalCommandTimeout,
		graceDelay:    devServerGraceDelay,
	}
}

var (
	cdPrefixRe = regexp.MustCompile(`^cd\s+("[^"]+"|'[^']+'|\S+)\s*(?:&&|;)\s*(.+)$`)
	npmRunRe   = regexp.MustCompile(`^npm\s+run\s+(\S+)\s*(.*)$`)
)

// splitCdPrefix extracts an optional leading `cd <dir> && rest` / `cd <dir>; rest`.
func splitCdPrefix(command string) (dir, rest string, found bool) {
	m := cdPrefixRe.FindStringSubmatch(strings.TrimSpace(command))
	if m == nil {
		return "", command, false
	}
	dir = strings.Trim(m[1], `"'`)
	return dir, strings.TrimSpace(m[2]), true
}

// resolveNpmScript rewrites `npm run <script> [args]` to the script's
// underlying command line from package.json. Script names fail to spawn
// correctly in some shell modes, so the expansion is substituted inline.
func (r *CommandRunner) resolveNpmScript(command, dir string) (resolved, scriptName string) {
	m := npmRunRe.FindStringSubmatch(strings.TrimSpace(command))
	if m == nil {
		return command, ""
	}
	scriptName = m[1]
	args := strings.TrimSpace(m[2])

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		r.logger.Debug("no package.json for npm script resolution", "dir", dir, "error", err)
		return command, scriptName
	}
	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		r.logger.Warn("unparseable package.json", "dir", dir, "error", err)
		return command, scriptName
	}
	script, ok := manifest.Scripts[scriptName]
	if !ok || strings.TrimSpace(script) == "" {
		return command, scriptName
	}

	resolved = script
	if args != "" {
		resolved += " " + args
	}
	r.logger.Info("resolved npm script", "script", scriptName, "command", resolved)
	return resolved, scriptName
}

// Run executes one command through the full pipeline and returns the
// observation payload for the loop.
func (r *CommandRunner) Run(ctx context.Context, command string) (interface{}, error) {
	if isDangerousCommand(command) {
		r.audit.Append(AuditEntry{
			Command:  command,
			Stderr:   "blocked: matches dangerous command blocklist",
			ExitCode: -1,
			Mode:     "blocked",
		})
		return nil, fmt.Errorf("command blocked: matches dangerous command blocklist")
	}

	workDir := resolveRoot(ctx, r.ws)
	if dir, rest, ok := splitCdPrefix(command); ok {
		if filepath.IsAbs(dir) {
			workDir = dir
		} else {
			workDir = filepath.Join(r.ws.Root(), dir)
		}
		command = rest
	}

	resolved, scriptName := r.resolveNpmScript(command, workDir)

	if devServerScripts[scriptName] {
		return r.startDevServer(ctx, resolved, workDir)
	}

	if r.remote != nil {
		result, err := r.runRemote(ctx, resolved, workDir)
		if err == nil {
			return result, nil
		}
		r.logger.Warn("remote execution failed, falling back to local", "error", err)
	}
	return r.runLocal(ctx, resolved, workDir)
}

// runRemote dispatches the command to the remote executor with the
// generous command timeout and normalizes its result.
func (r *CommandRunner) runRemote(ctx context.Context, command, workDir string) (interface{}, error) {
	remoteCtx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()

	result, err := r.remote.Execute(remoteCtx, "terminal_execute", map[string]interface{}{
		"command": command,
		"cwd":     workDir,
	})
	if err != nil {
		return nil, err
	}

	stdout, _ := result["stdout"].(string)
	stderr, _ := result["stderr"].(string)
	exitCode := 0
	if ec, ok := result["exit_code"].(float64); ok {
		exitCode = int(ec)
	}

	r.audit.Append(AuditEntry{
		Command:  command,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Mode:     "remote",
	})

	return map[string]interface{}{
		"stdout":    truncateOutput(stdout, 8192),
		"stderr":    truncateOutput(stderr, 4096),
		"exit_code": exitCode,
	}, nil
}

// runLocal is the degraded tier: a strict timeout, the host shell, and a
// fallback marker so observability can tell the tiers apart.
func (r *CommandRunner) runLocal(ctx context.Context, command, workDir string) (interface{}, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.localTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	cmd.Dir = workDir
	// Children inheriting the pipes must not keep Run blocked past the
	// deadline when the killed shell leaves them running.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if execCtx.Err() == context.DeadlineExceeded {
		r.audit.Append(AuditEntry{
			Command:  command,
			Stdout:   stdout.String(),
			Stderr:   fmt.Sprintf("timed out after %s", r.localTimeout),
			ExitCode: -1,
			Mode:     "local-fallback",
		})
		return nil, fmt.Errorf("command timed out after %s", r.localTimeout)
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			r.audit.Append(AuditEntry{
				Command:  command,
				Stderr:   err.Error(),
				ExitCode: -1,
				Mode:     "local-fallback",
			})
			return nil, fmt.Errorf("command failed to start: %w", err)
		}
	}

	r.audit.Append(AuditEntry{
		Command:  command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Mode:     "local-fallback",
	})

	return map[string]interface{}{
		"stdout":    truncateOutput(stdout.String(), 8192),
		"stderr":    truncateOutput(stderr.String(), 4096),
		"exit_code": exitCode,
		"fallback":  true,
	}, nil
}

// startDevServer never runs the command inline: it asks the remote
// executor for a persistent named terminal and returns immediately with
// the terminal identifier. If terminal creation fails, the process is
// detached in the background and the log tail is returned after a short
// grace delay.
func (r *CommandRunner) startDevServer(ctx context.Context, command, workDir string) (interface{}, error) {
	name := "dev-" + uuid.NewString()[:8]

	if r.remote != nil {
		_, err := r.remote.Execute(ctx, "terminal_create", map[string]interface{}{"name": name})
		if err == nil {
			if _, err := r.remote.Execute(ctx, "terminal_send_text", map[string]interface{}{
				"name": name,
				"text": "cd " + workDir + " && " + command + "\n",
			}); err == nil {
				r.audit.Append(AuditEntry{Command: command, Mode: "terminal", Stdout: "terminal: " + name})
				return map[string]interface{}{
					"terminal": name,
					"command":  command,
					"message":  fmt.Sprintf("Dev server started in persistent terminal %q. Output can be observed there; this call does not block.", name),
				}, nil
			}
		}
		r.logger.Warn("persistent terminal unavailable, detaching in background", "terminal", name)
	}

	return r.startBackground(command, workDir)
}

// startBackground detaches the process with output redirected to a log
// file and returns the log tail after the grace delay.
func (r *CommandRunner) startBackground(command, workDir string) (interface{}, error) {
	logPath := filepath.Join(workDir, ".reagent-dev-server.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create dev-server log %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start dev server: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		r.logger.Warn("failed to release dev server process", "pid", pid, "error", err)
	}

	time.Sleep(r.graceDelay)

	tail := tailFile(logPath, 2048)
	r.audit.Append(AuditEntry{Command: command, Mode: "background", Stdout: tail})

	return map[string]interface{}{
		"background": true,
		"pid":        pid,
		"log":        logPath,
		"output":     tail,
		"message":    fmt.Sprintf("Dev server detached in background (pid %d); output is being written to %s.", pid, logPath),
	}, nil
}

func tailFile(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > n {
		data = data[len(data)-n:]
	}
	return string(data)
}

func truncateOutput(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("\n... (output truncated at %dKB)", n/1024)
}

// NewExecuteCommandTool creates the execute_command tool backed by a runner.
func NewExecuteCommandTool(runner *CommandRunner) *domain.Tool {
	return &domain.Tool{
		Name:        "execute_command",
		Description: "Executes a shell command in the workspace. Supports 'cd <dir> && <cmd>' prefixes and npm scripts; dev servers (npm run dev/start/serve) are started in a persistent terminal instead of blocking.",
		Timeout:     DefaultRemoteCommandTimeout + DefaultLocalCommandTimeout,
		Parameters: domain.ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The shell command to execute (e.g., 'ls -la', 'npm install', 'npm run dev').",
				},
			},
			Required: []string{"command"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			command, ok := params["command"].(string)
			if !ok || strings.TrimSpace(command) == "" {
				return nil, fmt.Errorf("command is required and must be a non-empty string")
			}
			return runner.Run(ctx, command)
		},
	}
}
