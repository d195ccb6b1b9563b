package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// Tool represents an executable capability available to the agent
type Tool struct {
	Name        string
	Description string
	Parameters  ToolParameters
	Execute     ToolExecutor
	Timeout     time.Duration // overrides the gateway default when > 0
}

// ToolParameters defines the schema for tool inputs
type ToolParameters struct {
	Type       string                 `json:"type"`       // "object"
	Properties map[string]interface{} `json:"properties"` // param definitions
	Required   []string               `json:"required"`   // required param names
}

// Validate checks the given arguments against the declared parameter schema.
// The schema shape is a subset of JSON Schema, so it round-trips through
// kin-openapi's schema validator directly.
func (p ToolParameters) Validate(args map[string]interface{}) error {
	if p.Type == "" {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal parameter schema: %w", err)
	}
	var schema openapi3.Schema
	if err := schema.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("parse parameter schema: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := schema.VisitJSON(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// ToolExecutor is the function signature for tool execution
type ToolExecutor func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ToolRegistry manages available tools
type ToolRegistry struct {
	tools map[string]*Tool
}

// NewToolRegistry creates a new empty registry
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry
func (r *ToolRegistry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	r.tools[tool.Name] = tool
	return nil
}

// Resolve returns the tool for a name, falling back to fuzzy matching to
// handle LLM-hallucinated names (e.g. "list_file" → "list_files"). The
// second return value is the name the tool was actually resolved under.
func (r *ToolRegistry) Resolve(name string) (*Tool, string, bool) {
	if tool, ok := r.tools[name]; ok {
		return tool, name, true
	}
	if match := r.fuzzyMatch(name); match != "" {
		return r.tools[match], match, true
	}
	return nil, "", false
}

// GetTool returns a tool by exact name
func (r *ToolRegistry) GetTool(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// ToolNames returns the sorted-insertion list of registered tool names
func (r *ToolRegistry) ToolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// ListTools returns all registered tools
func (r *ToolRegistry) ListTools() []*Tool {
	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// fuzzyMatch finds the best matching tool name for a hallucinated/wrong name.
// It uses word-overlap scoring + Levenshtein distance as tiebreaker.
// Returns empty string if no reasonable match is found.
func (r *ToolRegistry) fuzzyMatch(input string) string {
	inputWords := splitToolWords(input)

	bestName := ""
	bestScore := 0

	for name := range r.tools {
		nameWords := splitToolWords(name)
		score := wordOverlapScore(inputWords, nameWords)

		if score > bestScore {
			bestScore = score
			bestName = name
		} else if score == bestScore && score > 0 {
			// Tiebreak: prefer shorter Levenshtein distance
			if levenshtein(input, name) < levenshtein(input, bestName) {
				bestName = name
			}
		}
	}

	// Require at least 1 common word
	if bestScore >= 1 {
		return bestName
	}
	return ""
}

func splitToolWords(name string) []string {
	parts := []string{}
	for _, p := range strings.Split(strings.ToLower(name), "_") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func wordOverlapScore(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, w := range b {
		set[w] = true
	}
	score := 0
	for _, w := range a {
		if set[w] {
			score++
		}
	}
	return score
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// FormatToolsForPrompt generates a concise description of available tools for LLM prompt.
// Uses a compact "name: description (params)" format to reduce token usage.
func (r *ToolRegistry) FormatToolsForPrompt() string {
	result := "Available Tools:\n"
	for _, tool := range r.tools {
		reqParams := ""
		if len(tool.Parameters.Required) > 0 {
			reqParams = " | required: " + strings.Join(tool.Parameters.Required, ", ")
		}

		paramsList := ""
		if len(tool.Parameters.Properties) > 0 {
			parts := make([]string, 0, len(tool.Parameters.Properties))
			for pName, pDef := range tool.Parameters.Properties {
				pType := "any"
				if pm, ok := pDef.(map[string]interface{}); ok {
					if t, ok := pm["type"].(string); ok {
						pType = t
					}
				}
				parts = append(parts, pName+":"+pType)
			}
			paramsList = " | params: {" + strings.Join(parts, ", ") + "}"
		}

		result += fmt.Sprintf("- %s: %s%s%s\n", tool.Name, tool.Description, paramsList, reqParams)
	}
	return result
}
