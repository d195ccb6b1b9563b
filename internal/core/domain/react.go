package domain

import (
	"context"
	"encoding/json"
)

// ToolCall is the canonical request to invoke one tool, extracted from
// LLM output by the parser.
type ToolCall struct {
	Name      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

// DedupKey returns the canonical name+arguments string used to detect
// repeated calls. json.Marshal sorts map keys, so the same logical call
// always produces the same key regardless of argument order.
func (c ToolCall) DedupKey() string {
	args, err := json.Marshal(c.Arguments)
	if err != nil {
		return c.Name + ":{}"
	}
	return c.Name + ":" + string(args)
}

// ToolResult is the gateway's answer to one ToolCall. Result is opaque
// structured data; Error is a human-readable cause.
type ToolResult struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ReActStep represents one step in the ReAct reasoning chain: an action
// (thought + tool call), an observation, or the final answer.
type ReActStep struct {
	Thought       string                 `json:"thought,omitempty"`
	Action        string                 `json:"action,omitempty"`
	ActionInput   map[string]interface{} `json:"action_input,omitempty"`
	Observation   string                 `json:"observation,omitempty"`
	IsFinalAnswer bool                   `json:"is_final_answer,omitempty"`
	FinalAnswer   string                 `json:"final_answer,omitempty"`
}

// ReActResult is the terminal output of one loop run. Immutable once returned.
type ReActResult struct {
	FinalAnswer string      `json:"final_answer"`
	Steps       []ReActStep `json:"steps"`
	ToolsUsed   []string    `json:"tools_used"`
}

// Message is one entry in the conversation history handed to the loop.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider defines the interface for LLM services
type LLMProvider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
