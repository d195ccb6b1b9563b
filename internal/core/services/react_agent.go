package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soldano/reagent/internal/core/domain"
)

// DefaultMaxIterations bounds one loop run when the caller supplies no limit.
const DefaultMaxIterations = 5

// ExhaustedAnswer is returned verbatim when the iteration budget runs out
// before the model produces a final answer.
const ExhaustedAnswer = "I apologize, but I couldn't complete the task within the allowed number of steps. Please try rephrasing your request or breaking it into smaller parts."

// summaryTool gets the stronger follow-up instruction: its result is
// comprehensive enough to answer from directly, so further tool calls are
// forbidden after it.
const summaryTool = "get_workspace_summary"

// ProgressEvent describes one observable moment of a loop run.
type ProgressEvent struct {
	Stage     string `json:"stage"` // "reasoning", "tool_start", "tool_done", "answer"
	Iteration int    `json:"iteration"`
	Tool      string `json:"tool,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// RunRequest carries everything one loop invocation needs.
type RunRequest struct {
	UserMessage   string
	SystemPrompt  string
	History       []domain.Message
	MaxIterations int    // 0 means DefaultMaxIterations
	WorkingDir    string // passed through to the gateway

	// OnProgress and OnToolExecuted are optional hooks for external
	// observers (event streams, memory layers). The loop only calls them.
	OnProgress     func(ProgressEvent)
	OnToolExecuted func(call domain.ToolCall, result domain.ToolResult)
}

// toolGateway is the minimal surface the loop needs from the execution
// gateway, kept narrow so tests can substitute a fake.
type toolGateway interface {
	ExecuteTool(ctx context.Context, call domain.ToolCall, workingDir string) domain.ToolResult
	DescribeTools() string
}

// loopPhase is the explicit state-machine phase of a run.
type loopPhase int

const (
	phaseReasoning loopPhase = iota
	phaseActing
	phaseTerminated
)

// LoopState is the per-invocation state of the ReAct loop. It exists only
// for the duration of one Run call; nothing is retained across runs.
type LoopState struct {
	Phase          loopPhase
	Iteration      int
	MaxIterations  int
	CallHistory    map[string]bool
	CurrentMessage string
	History        []domain.Message
}

func newLoopState(req RunRequest) *LoopState {
	maxIters := req.MaxIterations
	if maxIters <= 0 {
		maxIters = DefaultMaxIterations
	}
	history := make([]domain.Message, len(req.History))
	copy(history, req.History)
	return &LoopState{
		Phase:          phaseReasoning,
		MaxIterations:  maxIters,
		CallHistory:    make(map[string]bool),
		CurrentMessage: req.UserMessage,
		History:        history,
	}
}

// ReActAgentService drives the reasoning/action/observation loop.
type ReActAgentService struct {
	logger  *slog.Logger
	llm     domain.LLMProvider
	parser  *ToolCallParser
	gateway toolGateway
}

func NewReActAgentService(logger *slog.Logger, llm domain.LLMProvider, parser *ToolCallParser, gateway toolGateway) *ReActAgentService {
	return &ReActAgentService{
		logger:  logger,
		llm:     llm,
		parser:  parser,
		gateway: gateway,
	}
}

// Run executes one full reasoning/acting loop and always returns a complete
// ReActResult, except when the LLM itself is unreachable — that error is
// the one failure allowed to propagate.
func (s *ReActAgentService) Run(ctx context.Context, req RunRequest) (*domain.ReActResult, error) {
	s.logger.Info("starting ReAct loop", "message", truncate(req.UserMessage, 120), "working_dir", req.WorkingDir)

	state := newLoopState(req)
	steps := []domain.ReActStep{}
	toolsUsed := []string{}

	for state.Iteration < state.MaxIterations {
		s.logger.Info("ReAct iteration", "iteration", state.Iteration+1, "max", state.MaxIterations)
		emit(req.OnProgress, ProgressEvent{Stage: "reasoning", Iteration: state.Iteration + 1})

		prompt := s.buildPrompt(req.SystemPrompt, state)
		response, err := s.llm.GenerateText(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm generate: %w", err)
		}

		call := s.parser.Parse(response)
		if call == nil {
			// No tool-call encoding found: the reply is the final answer.
			answer := strings.TrimSpace(response)
			steps = append(steps, domain.ReActStep{IsFinalAnswer: true, FinalAnswer: answer})
			state.Phase = phaseTerminated
			emit(req.OnProgress, ProgressEvent{Stage: "answer", Iteration: state.Iteration + 1})
			s.logger.Info("final answer reached", "iterations", state.Iteration+1)
			return &domain.ReActResult{FinalAnswer: answer, Steps: steps, ToolsUsed: toolsUsed}, nil
		}

		key := call.DedupKey()
		if state.CallHistory[key] {
			// Identical call seen before: never execute it a second time.
			// Force the model to answer from the data it already has.
			s.logger.Warn("repeated tool call detected", "tool", call.Name, "iteration", state.Iteration+1)
			state.CurrentMessage = repeatedCallPrompt(call.Name, req.UserMessage)
			state.Iteration++
			continue
		}
		state.CallHistory[key] = true

		steps = append(steps, domain.ReActStep{
			Thought:     thoughtFromResponse(response),
			Action:      call.Name,
			ActionInput: call.Arguments,
		})
		toolsUsed = append(toolsUsed, call.Name)

		state.Phase = phaseActing
		emit(req.OnProgress, ProgressEvent{Stage: "tool_start", Iteration: state.Iteration + 1, Tool: call.Name})
		s.logger.Info("executing tool", "tool", call.Name, "params", call.Arguments)

		result := s.gateway.ExecuteTool(ctx, *call, req.WorkingDir)
		observation := renderObservation(result)
		steps = append(steps, domain.ReActStep{Observation: observation})

		if req.OnToolExecuted != nil {
			req.OnToolExecuted(*call, result)
		}
		emit(req.OnProgress, ProgressEvent{
			Stage:     "tool_done",
			Iteration: state.Iteration + 1,
			Tool:      call.Name,
			Detail:    truncate(observation, 200),
		})
		s.logger.Info("tool executed", "tool", call.Name, "success", result.Success, "observation", truncate(observation, 200))

		state.History = append(state.History, domain.Message{
			Role:    "assistant",
			Content: fmt.Sprintf("Tool: %s\nResult: %s", call.Name, observation),
		})
		state.CurrentMessage = followUpPrompt(call.Name, observation, req.UserMessage)
		state.Phase = phaseReasoning
		state.Iteration++
	}

	state.Phase = phaseTerminated
	s.logger.Warn("iteration budget exhausted", "max", state.MaxIterations)
	emit(req.OnProgress, ProgressEvent{Stage: "answer", Iteration: state.Iteration, Detail: "exhausted"})
	return &domain.ReActResult{FinalAnswer: ExhaustedAnswer, Steps: steps, ToolsUsed: toolsUsed}, nil
}

func emit(fn func(ProgressEvent), ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}

// buildPrompt assembles [system, ...history, current message] plus the tool
// roster and the calling convention into one prompt.
func (s *ReActAgentService) buildPrompt(systemPrompt string, state *LoopState) string {
	var b strings.Builder

	if systemPrompt != "" {
		b.WriteString(systemPrompt)
	} else {
		b.WriteString("You are an AI assistant with access to tools in a development workspace.")
	}
	b.WriteString("\n\n")
	b.WriteString(s.gateway.DescribeTools())
	b.WriteString(`
To call a tool, reply with a line containing ` + ToolCallMarker + ` followed by a JSON object:
` + ToolCallMarker + `
{"tool": "<name>", "arguments": {...}}

Call at most one tool per reply, with no other text. If no tool is needed, reply with the final answer as plain text and no tool-call markup.
`)

	if len(state.History) > 0 {
		b.WriteString("\nPrevious conversation:\n")
		for _, msg := range state.History {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("---\n")
	}

	b.WriteString("\n")
	b.WriteString(state.CurrentMessage)
	return b.String()
}

// followUpPrompt builds the next reasoning prompt after a tool execution:
// observation verbatim, the original question restated so multi-step
// context survives, and the one-tool-or-answer instruction.
func followUpPrompt(toolName, observation, originalQuestion string) string {
	if toolName == summaryTool {
		return fmt.Sprintf(`Tool %s returned:
%s

Original question: %s

This summary is comprehensive. Do NOT call any more tools. Answer the original question directly as plain text.`, toolName, observation, originalQuestion)
	}
	return fmt.Sprintf(`Tool %s returned:
%s

Original question: %s

Reply with EITHER exactly one new tool call (marker format, no other text) OR the final answer as plain text with no tool-call markup.`, toolName, observation, originalQuestion)
}

// repeatedCallPrompt is issued instead of re-executing an identical call.
func repeatedCallPrompt(toolName, originalQuestion string) string {
	return fmt.Sprintf(`You already called %s with those exact arguments and its result is in the conversation above. Do not call it again.

Original question: %s

Answer the question now as plain text, using only the data you already have.`, toolName, originalQuestion)
}

// thoughtFromResponse captures the free text the model wrote before its
// tool call, which serves as the recorded reasoning for the step.
func thoughtFromResponse(response string) string {
	cut := len(response)
	for _, sep := range []string{ToolCallMarker, "<tool_call>", "{"} {
		if i := strings.Index(response, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return truncate(strings.TrimSpace(response[:cut]), 500)
}
