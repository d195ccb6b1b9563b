package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soldano/reagent/internal/core/domain"
)

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// ToolGateway is the single component that turns a textual tool request
// into a real side effect and back into data the loop can reason about.
// Tool failures never escape as errors: every outcome is a ToolResult.
type ToolGateway struct {
	logger   *slog.Logger
	registry *domain.ToolRegistry
	timeout  time.Duration
}

func NewToolGateway(logger *slog.Logger, registry *domain.ToolRegistry, timeout time.Duration) *ToolGateway {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ToolGateway{
		logger:   logger,
		registry: registry,
		timeout:  timeout,
	}
}

// ExecuteTool resolves, validates and runs one tool call under the gateway
// timeout. workingDir, when set, is made available to tools via context.
func (g *ToolGateway) ExecuteTool(ctx context.Context, call domain.ToolCall, workingDir string) domain.ToolResult {
	tool, resolved, ok := g.registry.Resolve(call.Name)
	if !ok {
		return domain.ToolResult{Success: false, Error: fmt.Sprintf("tool not found: %s", call.Name)}
	}
	if resolved != call.Name {
		g.logger.Info("fuzzy-corrected tool name", "requested", call.Name, "resolved", resolved)
	}

	if err := tool.Parameters.Validate(call.Arguments); err != nil {
		return domain.ToolResult{Success: false, Error: fmt.Sprintf("%s: %v", resolved, err)}
	}

	if workingDir != "" {
		ctx = ContextWithWorkingDir(ctx, workingDir)
	}
	timeout := g.timeout
	if tool.Timeout > 0 {
		timeout = tool.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Race the execution against the timer so a tool that ignores its
	// context can never hang the loop.
	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := tool.Execute(execCtx, call.Arguments)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			g.logger.Warn("tool execution failed", "tool", resolved, "error", out.err)
			return domain.ToolResult{Success: false, Error: out.err.Error()}
		}
		return domain.ToolResult{Success: true, Result: out.value}
	case <-execCtx.Done():
		g.logger.Warn("tool execution timed out", "tool", resolved, "timeout", timeout)
		return domain.ToolResult{
			Success: false,
			Error:   fmt.Sprintf("Tool execution timeout after %ds", int(timeout.Seconds())),
		}
	}
}

// GetAvailableTools returns the names of every registered tool.
func (g *ToolGateway) GetAvailableTools() []string {
	return g.registry.ToolNames()
}

// DescribeTools renders the registry for inclusion in an LLM prompt.
func (g *ToolGateway) DescribeTools() string {
	return g.registry.FormatToolsForPrompt()
}

// FormatToolResults renders calls and their results as a human-readable
// transcript. Presentation only; the loop builds its own prompts.
func (g *ToolGateway) FormatToolResults(calls []domain.ToolCall, results []domain.ToolResult) string {
	var b strings.Builder
	for i, call := range calls {
		if i >= len(results) {
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Tool: %s\n", call.Name)
		if len(call.Arguments) > 0 {
			args, _ := json.Marshal(call.Arguments)
			fmt.Fprintf(&b, "Arguments: %s\n", args)
		}
		res := results[i]
		if res.Success {
			fmt.Fprintf(&b, "Result: %s\n", renderObservation(res))
		} else {
			fmt.Fprintf(&b, "Failed: %s\n", res.Error)
		}
	}
	return b.String()
}

// renderObservation turns a ToolResult into the observation text fed back
// to the model: serialized result on success, "Error: ..." on failure.
func renderObservation(res domain.ToolResult) string {
	if !res.Success {
		return "Error: " + res.Error
	}
	switch v := res.Result.(type) {
	case nil:
		return "(no output)"
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
